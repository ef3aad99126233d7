// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import "github.com/pion/ice/v4"

// IceTransportState is the connectivity state of one ICE transport.
type IceTransportState int

const (
	// IceTransportStateUnknown is the enum's zero-value
	IceTransportStateUnknown IceTransportState = iota
	// IceTransportStateNew is waiting for remote parameters.
	IceTransportStateNew
	// IceTransportStateChecking is running connectivity checks.
	IceTransportStateChecking
	// IceTransportStateConnected has a working candidate pair.
	IceTransportStateConnected
	// IceTransportStateCompleted finished checking with a working pair.
	IceTransportStateCompleted
	// IceTransportStateFailed has no working pair left.
	IceTransportStateFailed
	// IceTransportStateDisconnected lost connectivity, possibly transiently.
	IceTransportStateDisconnected
	// IceTransportStateClosed is shut down.
	IceTransportStateClosed
)

func (s IceTransportState) String() string {
	switch s {
	case IceTransportStateNew:
		return "new"
	case IceTransportStateChecking:
		return "checking"
	case IceTransportStateConnected:
		return "connected"
	case IceTransportStateCompleted:
		return "completed"
	case IceTransportStateFailed:
		return "failed"
	case IceTransportStateDisconnected:
		return "disconnected"
	case IceTransportStateClosed:
		return "closed"
	default:
		return ErrUnknownType.Error()
	}
}

// IsWritable reports whether packets can be sent in state s.
func (s IceTransportState) IsWritable() bool {
	return s == IceTransportStateConnected || s == IceTransportStateCompleted
}

func newIceTransportStateFromICE(s ice.ConnectionState) IceTransportState {
	switch s {
	case ice.ConnectionStateNew:
		return IceTransportStateNew
	case ice.ConnectionStateChecking:
		return IceTransportStateChecking
	case ice.ConnectionStateConnected:
		return IceTransportStateConnected
	case ice.ConnectionStateCompleted:
		return IceTransportStateCompleted
	case ice.ConnectionStateFailed:
		return IceTransportStateFailed
	case ice.ConnectionStateDisconnected:
		return IceTransportStateDisconnected
	case ice.ConnectionStateClosed:
		return IceTransportStateClosed
	default:
		return IceTransportStateUnknown
	}
}

// IceGatheringState is the candidate gathering state of one ICE transport.
type IceGatheringState int

const (
	// IceGatheringStateUnknown is the enum's zero-value
	IceGatheringStateUnknown IceGatheringState = iota
	// IceGatheringStateNew has not started gathering.
	IceGatheringStateNew
	// IceGatheringStateGathering is gathering candidates.
	IceGatheringStateGathering
	// IceGatheringStateComplete has emitted every local candidate.
	IceGatheringStateComplete
)

func (s IceGatheringState) String() string {
	switch s {
	case IceGatheringStateNew:
		return "new"
	case IceGatheringStateGathering:
		return "gathering"
	case IceGatheringStateComplete:
		return "complete"
	default:
		return ErrUnknownType.Error()
	}
}

// DtlsTransportState is the handshake state of one DTLS transport.
type DtlsTransportState int

const (
	// DtlsTransportStateUnknown is the enum's zero-value
	DtlsTransportStateUnknown DtlsTransportState = iota
	// DtlsTransportStateNew has not started the handshake.
	DtlsTransportStateNew
	// DtlsTransportStateConnecting is handshaking.
	DtlsTransportStateConnecting
	// DtlsTransportStateConnected finished the handshake and verified the peer.
	DtlsTransportStateConnected
	// DtlsTransportStateClosed was closed.
	DtlsTransportStateClosed
	// DtlsTransportStateFailed failed the handshake or the peer verification.
	DtlsTransportStateFailed
)

func (s DtlsTransportState) String() string {
	switch s {
	case DtlsTransportStateNew:
		return "new"
	case DtlsTransportStateConnecting:
		return "connecting"
	case DtlsTransportStateConnected:
		return "connected"
	case DtlsTransportStateClosed:
		return "closed"
	case DtlsTransportStateFailed:
		return "failed"
	default:
		return ErrUnknownType.Error()
	}
}

// IceRole is the ICE agent role (RFC8445 section 6.1.1).
type IceRole int

const (
	// IceRoleUnknown is the enum's zero-value
	IceRoleUnknown IceRole = iota
	// IceRoleControlling nominates the candidate pair.
	IceRoleControlling
	// IceRoleControlled waits for nomination.
	IceRoleControlled
)

func (r IceRole) String() string {
	switch r {
	case IceRoleControlling:
		return "controlling"
	case IceRoleControlled:
		return "controlled"
	default:
		return ErrUnknownType.Error()
	}
}

// Reverse swaps controlling and controlled.
func (r IceRole) Reverse() IceRole {
	switch r {
	case IceRoleControlling:
		return IceRoleControlled
	case IceRoleControlled:
		return IceRoleControlling
	default:
		return r
	}
}

// DtlsRole is the DTLS handshake role.
type DtlsRole int

const (
	// DtlsRoleUnknown is the enum's zero-value
	DtlsRoleUnknown DtlsRole = iota
	// DtlsRoleClient sends the ClientHello.
	DtlsRoleClient
	// DtlsRoleServer waits for the ClientHello.
	DtlsRoleServer
)

func (r DtlsRole) String() string {
	switch r {
	case DtlsRoleClient:
		return "client"
	case DtlsRoleServer:
		return "server"
	default:
		return ErrUnknownType.Error()
	}
}

// Component is the ICE component id.
type Component uint16

const (
	// ComponentRTP carries RTP, and RTCP too when rtcp-mux is negotiated.
	ComponentRTP Component = 1
	// ComponentRTCP carries RTCP without rtcp-mux.
	ComponentRTCP Component = 2
)

func (c Component) String() string {
	switch c {
	case ComponentRTP:
		return "rtp"
	case ComponentRTCP:
		return "rtcp"
	default:
		return ErrUnknownType.Error()
	}
}
