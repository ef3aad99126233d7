// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jsep

import "github.com/pion/p2p/internal/transport"

// IceConnectionState aggregates the ICE state of every transport
// (https://www.w3.org/TR/webrtc/#dom-rtciceconnectionstate).
type IceConnectionState int

const (
	// IceConnectionStateUnknown is the enum's zero-value
	IceConnectionStateUnknown IceConnectionState = iota
	IceConnectionStateNew
	IceConnectionStateChecking
	IceConnectionStateConnected
	IceConnectionStateCompleted
	IceConnectionStateDisconnected
	IceConnectionStateFailed
	IceConnectionStateClosed
)

func (s IceConnectionState) String() string {
	switch s {
	case IceConnectionStateNew:
		return "new"
	case IceConnectionStateChecking:
		return "checking"
	case IceConnectionStateConnected:
		return "connected"
	case IceConnectionStateCompleted:
		return "completed"
	case IceConnectionStateDisconnected:
		return "disconnected"
	case IceConnectionStateFailed:
		return "failed"
	case IceConnectionStateClosed:
		return "closed"
	default:
		return transport.ErrUnknownType.Error()
	}
}

// PeerConnectionState combines the ICE and DTLS states of every transport
// (https://www.w3.org/TR/webrtc/#dom-rtcpeerconnectionstate).
type PeerConnectionState int

const (
	// PeerConnectionStateUnknown is the enum's zero-value
	PeerConnectionStateUnknown PeerConnectionState = iota
	PeerConnectionStateNew
	PeerConnectionStateConnecting
	PeerConnectionStateConnected
	PeerConnectionStateDisconnected
	PeerConnectionStateFailed
	PeerConnectionStateClosed
)

func (s PeerConnectionState) String() string {
	switch s {
	case PeerConnectionStateNew:
		return "new"
	case PeerConnectionStateConnecting:
		return "connecting"
	case PeerConnectionStateConnected:
		return "connected"
	case PeerConnectionStateDisconnected:
		return "disconnected"
	case PeerConnectionStateFailed:
		return "failed"
	case PeerConnectionStateClosed:
		return "closed"
	default:
		return transport.ErrUnknownType.Error()
	}
}

// TransportState is the negotiation progress of one transport record.
type TransportState int

const (
	// TransportStateUnbound is the enum's zero-value
	TransportStateUnbound TransportState = iota
	TransportStateIceCreated
	TransportStateDtlsBound
	TransportStateParametersSet
	TransportStateGatheringStarted
	TransportStateWritable
	TransportStateFailed
)

func (s TransportState) String() string {
	switch s {
	case TransportStateUnbound:
		return "unbound"
	case TransportStateIceCreated:
		return "ice-created"
	case TransportStateDtlsBound:
		return "dtls-bound"
	case TransportStateParametersSet:
		return "parameters-set"
	case TransportStateGatheringStarted:
		return "gathering-started"
	case TransportStateWritable:
		return "writable"
	case TransportStateFailed:
		return "failed"
	default:
		return transport.ErrUnknownType.Error()
	}
}

// RtcpMuxPolicy decides whether RTCP gets its own ICE and DTLS transports.
type RtcpMuxPolicy int

const (
	// RtcpMuxPolicyUnknown is the enum's zero-value
	RtcpMuxPolicyUnknown RtcpMuxPolicy = iota
	// RtcpMuxPolicyNegotiate creates RTCP transports when the remote side
	// does not offer rtcp-mux.
	RtcpMuxPolicyNegotiate
	// RtcpMuxPolicyRequire always muxes RTCP onto the RTP transport.
	RtcpMuxPolicyRequire
)

func (p RtcpMuxPolicy) String() string {
	switch p {
	case RtcpMuxPolicyNegotiate:
		return "negotiate"
	case RtcpMuxPolicyRequire:
		return "require"
	default:
		return transport.ErrUnknownType.Error()
	}
}
