// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"github.com/pion/p2p/internal/jsep"
	"github.com/pion/p2p/internal/transport"
)

// ICEConnectionState is the aggregate state of every ICE transport.
type ICEConnectionState = jsep.IceConnectionState

// ICEConnectionState values.
const (
	ICEConnectionStateNew          = jsep.IceConnectionStateNew
	ICEConnectionStateChecking     = jsep.IceConnectionStateChecking
	ICEConnectionStateConnected    = jsep.IceConnectionStateConnected
	ICEConnectionStateCompleted    = jsep.IceConnectionStateCompleted
	ICEConnectionStateDisconnected = jsep.IceConnectionStateDisconnected
	ICEConnectionStateFailed       = jsep.IceConnectionStateFailed
	ICEConnectionStateClosed       = jsep.IceConnectionStateClosed
)

// PeerConnectionState combines the ICE and DTLS states of every transport.
type PeerConnectionState = jsep.PeerConnectionState

// PeerConnectionState values.
const (
	PeerConnectionStateNew          = jsep.PeerConnectionStateNew
	PeerConnectionStateConnecting   = jsep.PeerConnectionStateConnecting
	PeerConnectionStateConnected    = jsep.PeerConnectionStateConnected
	PeerConnectionStateDisconnected = jsep.PeerConnectionStateDisconnected
	PeerConnectionStateFailed       = jsep.PeerConnectionStateFailed
	PeerConnectionStateClosed       = jsep.PeerConnectionStateClosed
)

// ICEGatheringState is the aggregate gathering state.
type ICEGatheringState = transport.IceGatheringState

// ICEGatheringState values.
const (
	ICEGatheringStateNew       = transport.IceGatheringStateNew
	ICEGatheringStateGathering = transport.IceGatheringStateGathering
	ICEGatheringStateComplete  = transport.IceGatheringStateComplete
)

// RTCPMuxPolicy decides whether RTCP gets its own ICE component.
type RTCPMuxPolicy = jsep.RtcpMuxPolicy

// RTCPMuxPolicy values.
const (
	// RTCPMuxPolicyNegotiate creates an RTCP component when the remote
	// section does not offer rtcp-mux.
	RTCPMuxPolicyNegotiate = jsep.RtcpMuxPolicyNegotiate
	// RTCPMuxPolicyRequire always multiplexes RTCP with RTP.
	RTCPMuxPolicyRequire = jsep.RtcpMuxPolicyRequire
)
