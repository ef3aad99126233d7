// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package bwe contains the send-side bandwidth estimation interface fed by
// the peer connection and a loss-based default implementation.
package bwe

import (
	"time"

	"github.com/pion/p2p/internal/rtprtcp"
)

// SendInfo describes a packet registered before it is sent.
type SendInfo struct {
	TransportSequence uint16
	SSRC              uint32
	SequenceNumber    uint16
	Size              int
	CreatedAt         time.Time
}

// SentInfo reports a packet handed to the network.
type SentInfo struct {
	TransportSequence uint16
	SendTime          time.Time
	Size              int
}

// TargetTransferRate is the rate the sender should encode at.
type TargetTransferRate struct {
	BitsPerSecond int
	At            time.Time
	// LossRate is the fraction of lost packets that produced this estimate.
	LossRate float64
	RTT      time.Duration
}

// Estimator consumes send and feedback events and produces target rates.
type Estimator interface {
	OnAddPacket(SendInfo)
	OnSentPacket(SentInfo)
	OnRttUpdate(time.Duration)
	OnReceiverReportBlocks([]rtprtcp.ReportBlock, time.Time)
	OnNetworkOk(bool)
	OnTargetTransferRate(func(TargetTransferRate))
	TargetBitrate() int
	Close() error
}

// Factory creates one Estimator per peer connection.
type Factory func() (Estimator, error)
