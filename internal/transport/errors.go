// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import "errors"

var (
	// ErrUnknownType indicates an enum value out of range.
	ErrUnknownType = errors.New("unknown")

	// ErrPrivateKeyType indicates that a particular private key encryption
	// chosen to generate a certificate is not supported.
	ErrPrivateKeyType = errors.New("private key type not supported")

	// ErrNoCertificate indicates a handshake attempted without a local certificate.
	ErrNoCertificate = errors.New("no local certificate")

	// ErrNoRemoteFingerprint indicates a handshake attempted without the
	// remote fingerprint.
	ErrNoRemoteFingerprint = errors.New("no remote fingerprint")

	// ErrNoRemoteCertificate indicates the peer presented no certificate.
	ErrNoRemoteCertificate = errors.New("peer presented no certificate")

	// ErrFingerprintMismatch indicates the peer certificate does not hash to
	// the negotiated fingerprint.
	ErrFingerprintMismatch = errors.New("remote certificate does not match fingerprint")

	// ErrNoSRTPProtectionProfile indicates the handshake negotiated no SRTP profile.
	ErrNoSRTPProtectionProfile = errors.New("no SRTP protection profile negotiated")

	// ErrUnsupportedSRTPProfile indicates a negotiated profile srtp cannot use.
	ErrUnsupportedSRTPProfile = errors.New("unsupported SRTP protection profile")

	// ErrDtlsNotConnected indicates SRTP keys requested before the handshake completed.
	ErrDtlsNotConnected = errors.New("dtls transport is not connected")

	// ErrDtlsRoleLocked indicates a role change after the handshake started.
	ErrDtlsRoleLocked = errors.New("dtls role cannot change after the handshake started")

	// ErrNotReadyToSend indicates a send before SRTP was set up.
	ErrNotReadyToSend = errors.New("rtp transport is not ready to send")

	// ErrInvalidRTPPacket indicates an outgoing buffer that is not RTP.
	ErrInvalidRTPPacket = errors.New("invalid rtp packet")

	// ErrInvalidRTCPPacket indicates an outgoing buffer that is not RTCP.
	ErrInvalidRTCPPacket = errors.New("invalid rtcp packet")

	// ErrTransportClosed indicates use of a closed transport.
	ErrTransportClosed = errors.New("transport is closed")

	// ErrNoIceCredentials indicates an ICE agent requested without local credentials.
	ErrNoIceCredentials = errors.New("local ice credentials are not set")
)
