// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/p2p/internal/mux"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// NoPacketID marks a packet without transport-wide sequence number.
const NoPacketID int64 = -1

// PacketOptions travel with an outgoing packet down to the sent signal.
type PacketOptions struct {
	// PacketID is the transport-wide sequence number, NoPacketID if unset.
	PacketID int64
}

// SentPacket reports a packet handed to the network.
type SentPacket struct {
	PacketID int64
	SendTime time.Time
	Size     int
}

// PacketStats counts traffic in one direction.
type PacketStats struct {
	Packets uint64
	Bytes   uint64
}

// RtpTransport sends and receives RTP and RTCP over a pair of packet
// writers. With rtcp-mux and no dedicated RTCP writer the RTP writer also
// carries RTCP. Incoming packets
// are validated, classified and handed to the registered handlers.
type RtpTransport struct {
	mu sync.RWMutex

	rtcpMuxEnabled bool
	rtpWriter      io.Writer
	rtcpWriter     io.Writer
	readyToSend    bool

	sent     PacketStats
	received PacketStats

	onRtpPacket   func([]byte)
	onRtcpPacket  func([]byte)
	onSentPacket  func(SentPacket)
	onReadyToSend func(bool)

	log logging.LeveledLogger
}

// NewRtpTransport creates a transport with no writers.
func NewRtpTransport(rtcpMuxEnabled bool, loggerFactory logging.LoggerFactory) *RtpTransport {
	return &RtpTransport{
		rtcpMuxEnabled: rtcpMuxEnabled,
		log:            loggerFactory.NewLogger("rtp"),
	}
}

// RtcpMuxEnabled reports whether RTCP shares the RTP path.
func (t *RtpTransport) RtcpMuxEnabled() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.rtcpMuxEnabled
}

// SetRtcpMuxEnabled switches RTCP onto the RTP path or off it.
func (t *RtpTransport) SetRtcpMuxEnabled(enabled bool) {
	t.mu.Lock()
	t.rtcpMuxEnabled = enabled
	fire := t.updateReadyToSend()
	t.mu.Unlock()
	fire()
}

// SetRtpWriter installs the RTP (and muxed RTCP) writer.
func (t *RtpTransport) SetRtpWriter(w io.Writer) {
	t.mu.Lock()
	t.rtpWriter = w
	fire := t.updateReadyToSend()
	t.mu.Unlock()
	fire()
}

// SetRtcpWriter installs the RTCP writer used without rtcp-mux.
func (t *RtpTransport) SetRtcpWriter(w io.Writer) {
	t.mu.Lock()
	t.rtcpWriter = w
	fire := t.updateReadyToSend()
	t.mu.Unlock()
	fire()
}

// IsReadyToSend reports whether both RTP and RTCP can be written.
func (t *RtpTransport) IsReadyToSend() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.readyToSend
}

// updateReadyToSend must be called with mu held, the returned func must be
// called after unlocking.
func (t *RtpTransport) updateReadyToSend() func() {
	ready := t.rtpWriter != nil && (t.rtcpMuxEnabled || t.rtcpWriter != nil)
	if ready == t.readyToSend {
		return func() {}
	}
	t.readyToSend = ready
	handler := t.onReadyToSend

	return func() {
		t.log.Debugf("ready to send: %t", ready)
		if handler != nil {
			handler(ready)
		}
	}
}

// OnRtpPacket sets the handler for received RTP packets.
func (t *RtpTransport) OnRtpPacket(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRtpPacket = fn
}

// OnRtcpPacket sets the handler for received RTCP packets.
func (t *RtpTransport) OnRtcpPacket(fn func([]byte)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onRtcpPacket = fn
}

// OnSentPacket sets the handler called after every successful send.
func (t *RtpTransport) OnSentPacket(fn func(SentPacket)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onSentPacket = fn
}

// OnReadyToSend sets the handler for ready-to-send transitions.
func (t *RtpTransport) OnReadyToSend(fn func(bool)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onReadyToSend = fn
}

// SendRtpPacket validates and writes one RTP packet.
func (t *RtpTransport) SendRtpPacket(packet []byte, options PacketOptions) error {
	header := &rtp.Header{}
	if _, err := header.Unmarshal(packet); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRTPPacket, err) //nolint:errorlint
	}

	t.mu.RLock()
	w := t.rtpWriter
	t.mu.RUnlock()

	return t.send(w, packet, options)
}

// SendRtcpPacket validates and writes one compound RTCP packet.
func (t *RtpTransport) SendRtcpPacket(packet []byte, options PacketOptions) error {
	header := &rtcp.Header{}
	if err := header.Unmarshal(packet); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRTCPPacket, err) //nolint:errorlint
	}

	t.mu.RLock()
	w := t.rtcpWriter
	if w == nil && t.rtcpMuxEnabled {
		w = t.rtpWriter
	}
	t.mu.RUnlock()

	return t.send(w, packet, options)
}

func (t *RtpTransport) send(w io.Writer, packet []byte, options PacketOptions) error {
	if w == nil {
		return ErrNotReadyToSend
	}

	n, err := w.Write(packet)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.sent.Packets++
	t.sent.Bytes += uint64(n)
	handler := t.onSentPacket
	t.mu.Unlock()

	if handler != nil {
		handler(SentPacket{PacketID: options.PacketID, SendTime: time.Now(), Size: n})
	}

	return nil
}

// DeliverPacket classifies an incoming packet (RFC5761) and hands it to the
// RTP or RTCP handler. Packets that are neither are dropped.
func (t *RtpTransport) DeliverPacket(packet []byte) {
	switch {
	case mux.IsRTCP(packet):
		t.deliverRtcp(packet)
	case mux.IsRTP(packet):
		t.deliverRtp(packet)
	default:
		t.log.Debugf("dropping %d byte packet that is neither rtp nor rtcp", len(packet))
	}
}

func (t *RtpTransport) deliverRtp(packet []byte) {
	header := &rtp.Header{}
	if _, err := header.Unmarshal(packet); err != nil {
		t.log.Warnf("dropping invalid rtp packet: %v", err)

		return
	}

	t.mu.Lock()
	t.received.Packets++
	t.received.Bytes += uint64(len(packet))
	handler := t.onRtpPacket
	t.mu.Unlock()

	if handler != nil {
		handler(packet)
	}
}

func (t *RtpTransport) deliverRtcp(packet []byte) {
	header := &rtcp.Header{}
	if err := header.Unmarshal(packet); err != nil {
		t.log.Warnf("dropping invalid rtcp packet: %v", err)

		return
	}

	t.mu.Lock()
	t.received.Packets++
	t.received.Bytes += uint64(len(packet))
	handler := t.onRtcpPacket
	t.mu.Unlock()

	if handler != nil {
		handler(packet)
	}
}

// Stats returns the sent and received counters.
func (t *RtpTransport) Stats() (sent, received PacketStats) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return t.sent, t.received
}
