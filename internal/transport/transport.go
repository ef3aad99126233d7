// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package transport glues ICE and DTLS implementations into one packet
// path: the collaborator interfaces, the RTP transport with its demuxer,
// the DTLS-SRTP composition and the pion backed implementations.
//
// Transports are mutated from the network thread only. Their signals fire
// on whatever goroutine produced the event; consumers post them back onto
// their own thread.
package transport

import (
	"net"

	"github.com/pion/p2p/pkg/description"
	"github.com/pion/srtp/v3"
)

// IceTransportInit carries the creation time parameters of an IceTransport.
type IceTransportInit struct {
	Role IceRole
}

// IceTransport is one ICE component of a media transport.
type IceTransport interface {
	TransportName() string
	Component() Component

	SetIceRole(IceRole)
	IceRole() IceRole
	SetIceParameters(description.IceParameters)
	SetRemoteIceParameters(description.IceParameters)
	AddRemoteCandidate(description.Candidate) error
	MaybeStartGathering()

	State() IceTransportState
	GatheringState() IceGatheringState
	// Conn returns the selected packet path, nil until connected.
	Conn() net.Conn

	OnCandidateGathered(func(IceTransport, description.Candidate))
	OnStateChange(func(IceTransport, IceTransportState))
	OnGatheringStateChange(func(IceTransport, IceGatheringState))
	OnRoleConflict(func(IceTransport))

	Close() error
}

// IceTransportFactory creates ICE transports.
type IceTransportFactory interface {
	CreateIceTransport(name string, component Component, init IceTransportInit) (IceTransport, error)
}

// DtlsTransport runs a DTLS handshake over an IceTransport and exports the
// SRTP keying material.
type DtlsTransport interface {
	TransportName() string
	Component() Component
	IceTransport() IceTransport

	SetLocalCertificate(*Certificate) error
	SetRemoteFingerprint(algorithm string, digest []byte) error
	SetDtlsRole(DtlsRole) error
	DtlsRole() DtlsRole

	State() DtlsTransportState
	// SrtpConfig returns the keys for an SRTP session, only once connected.
	SrtpConfig() (*srtp.Config, error)
	// SrtpConns returns the demuxed SRTP and SRTCP paths, only once connected.
	SrtpConns() (rtpConn, rtcpConn net.Conn)
	SrtpProfile() string

	OnStateChange(func(DtlsTransport, DtlsTransportState))
	OnHandshakeError(func(DtlsTransport, error))

	Close() error
}

// DtlsTransportFactory creates DTLS transports on top of ICE transports.
type DtlsTransportFactory interface {
	CreateDtlsTransport(ice IceTransport) (DtlsTransport, error)
}
