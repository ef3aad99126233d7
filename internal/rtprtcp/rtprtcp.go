// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package rtprtcp extracts round-trip time, report blocks and key frame
// requests from incoming compound RTCP packets.
package rtprtcp

import (
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/p2p/pkg/ntp"
	"github.com/pion/rtcp"
)

// ReportBlock is a reception report about one of our outgoing streams.
type ReportBlock struct {
	// SenderSSRC is the remote reporter.
	SenderSSRC uint32
	// SourceSSRC is the local stream the report is about.
	SourceSSRC         uint32
	FractionLost       uint8
	TotalLost          uint32
	ExtendedHighestSeq uint32
	Jitter             uint32
	LastSenderReport   uint32
	Delay              uint32
}

// Result is what one compound packet carried.
type Result struct {
	// RTT is the latest round-trip time, zero unless HasRTT.
	RTT          time.Duration
	HasRTT       bool
	ReportBlocks []ReportBlock
	// KeyFrameRequests holds the media SSRCs of PLI and FIR requests.
	KeyFrameRequests []uint32
	// RemoteSenderReports are the SSRCs of received sender reports.
	RemoteSenderReports []uint32
}

// Config tunes a Module.
type Config struct {
	// Now defaults to time.Now.
	Now           func() time.Time
	LoggerFactory logging.LoggerFactory
}

// Module processes RTCP that arrives for the local send streams.
type Module struct {
	mu         sync.Mutex
	now        func() time.Time
	localSsrcs map[uint32]struct{}
	lastRTT    time.Duration
	remoteSRs  map[uint32]senderReport
	log        logging.LeveledLogger
}

type senderReport struct {
	middle   ntp.Time32
	received time.Time
}

// New creates a module with no local streams.
func New(config Config) *Module {
	if config.Now == nil {
		config.Now = time.Now
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}

	return &Module{
		now:        config.Now,
		localSsrcs: map[uint32]struct{}{},
		remoteSRs:  map[uint32]senderReport{},
		log:        config.LoggerFactory.NewLogger("rtcp"),
	}
}

// SetLocalSsrcs replaces the set of SSRCs we send with. Report blocks about
// other SSRCs are ignored.
func (m *Module) SetLocalSsrcs(ssrcs ...uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.localSsrcs = make(map[uint32]struct{}, len(ssrcs))
	for _, ssrc := range ssrcs {
		m.localSsrcs[ssrc] = struct{}{}
	}
}

// RTT returns the last computed round-trip time.
func (m *Module) RTT() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.lastRTT
}

// ReceptionReport fills LSR and DLSR of a report about remote ssrc from the
// last sender report received from it.
func (m *Module) ReceptionReport(ssrc uint32) rtcp.ReceptionReport {
	m.mu.Lock()
	sr, ok := m.remoteSRs[ssrc]
	m.mu.Unlock()

	report := rtcp.ReceptionReport{SSRC: ssrc}
	if !ok {
		return report
	}

	delay, err := ntp.NewTime32(m.now().Sub(sr.received))
	if err != nil {
		return report
	}
	report.LastSenderReport = uint32(sr.middle)
	report.Delay = uint32(delay)

	return report
}

// OnRtcpPacket parses a compound packet. Unparseable packets yield an empty
// result.
func (m *Module) OnRtcpPacket(buf []byte) Result {
	packets, err := rtcp.Unmarshal(buf)
	if err != nil {
		m.log.Warnf("failed to unmarshal rtcp: %v", err)

		return Result{}
	}

	now := m.now()
	m.mu.Lock()
	defer m.mu.Unlock()

	var result Result
	for _, packet := range packets {
		switch p := packet.(type) {
		case *rtcp.SenderReport:
			m.remoteSRs[p.SSRC] = senderReport{middle: ntp.Time64(p.NTPTime).Middle(), received: now}
			result.RemoteSenderReports = append(result.RemoteSenderReports, p.SSRC)
			m.handleReports(&result, p.SSRC, p.Reports, now)
		case *rtcp.ReceiverReport:
			m.handleReports(&result, p.SSRC, p.Reports, now)
		case *rtcp.PictureLossIndication:
			result.KeyFrameRequests = append(result.KeyFrameRequests, p.MediaSSRC)
		case *rtcp.FullIntraRequest:
			for _, entry := range p.FIR {
				result.KeyFrameRequests = append(result.KeyFrameRequests, entry.SSRC)
			}
		}
	}

	return result
}

// handleReports must be called with mu held.
func (m *Module) handleReports(result *Result, sender uint32, reports []rtcp.ReceptionReport, now time.Time) {
	for _, report := range reports {
		if _, ok := m.localSsrcs[report.SSRC]; !ok {
			continue
		}

		result.ReportBlocks = append(result.ReportBlocks, ReportBlock{
			SenderSSRC:         sender,
			SourceSSRC:         report.SSRC,
			FractionLost:       report.FractionLost,
			TotalLost:          report.TotalLost,
			ExtendedHighestSeq: report.LastSequenceNumber,
			Jitter:             report.Jitter,
			LastSenderReport:   report.LastSenderReport,
			Delay:              report.Delay,
		})

		if rtt, ok := roundTripTime(now, report.LastSenderReport, report.Delay); ok {
			m.lastRTT = rtt
			result.RTT, result.HasRTT = rtt, true
		}
	}
}

// roundTripTime implements RFC 3550 section 6.4.1: A - LSR - DLSR in Q16.16.
func roundTripTime(now time.Time, lastSenderReport, delay uint32) (time.Duration, bool) {
	if lastSenderReport == 0 {
		return 0, false
	}

	arrival := uint32(ntp.FromTime(now).Middle())
	rtt := arrival - lastSenderReport - delay
	// a negative difference wraps to a huge value
	if int32(rtt) < 0 {
		return 0, false
	}

	return ntp.Time32(rtt).Duration(), true
}
