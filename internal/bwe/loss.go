// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package bwe

import (
	"sync"
	"time"

	"github.com/pion/logging"
	"github.com/pion/p2p/internal/rtprtcp"
)

const (
	// DefaultInitialBitrate is the start rate in bits per second.
	DefaultInitialBitrate = 300_000
	// DefaultMinBitrate is the floor in bits per second.
	DefaultMinBitrate = 30_000
	// DefaultMaxBitrate is the ceiling in bits per second.
	DefaultMaxBitrate = 2_500_000

	increaseLossThreshold = 0.02
	decreaseLossThreshold = 0.10
	increaseFactor        = 1.08
	minUpdateInterval     = 200 * time.Millisecond
)

// Option configures a LossBased estimator.
type Option func(*LossBased)

// WithInitialBitrate sets the start rate.
func WithInitialBitrate(bps int) Option {
	return func(e *LossBased) { e.target = bps }
}

// WithBitrateBounds sets the floor and ceiling.
func WithBitrateBounds(minBps, maxBps int) Option {
	return func(e *LossBased) { e.minBitrate, e.maxBitrate = minBps, maxBps }
}

// WithLoggerFactory sets the logger factory.
func WithLoggerFactory(loggerFactory logging.LoggerFactory) Option {
	return func(e *LossBased) { e.log = loggerFactory.NewLogger("bwe") }
}

// LossBased adapts the target rate to the fraction lost in receiver
// reports: above 10% loss the rate shrinks by half the loss, below 2% it
// grows by 8%, in between it holds.
type LossBased struct {
	mu sync.Mutex

	target     int
	minBitrate int
	maxBitrate int
	rtt        time.Duration
	networkOk  bool
	lastUpdate time.Time

	pending  map[uint16]SendInfo
	sentBits int64

	onTarget func(TargetTransferRate)
	log      logging.LeveledLogger
}

// NewLossBased creates an estimator starting at DefaultInitialBitrate.
func NewLossBased(opts ...Option) *LossBased {
	e := &LossBased{
		target:     DefaultInitialBitrate,
		minBitrate: DefaultMinBitrate,
		maxBitrate: DefaultMaxBitrate,
		networkOk:  true,
		pending:    map[uint16]SendInfo{},
		log:        logging.NewDefaultLoggerFactory().NewLogger("bwe"),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.target = clamp(e.target, e.minBitrate, e.maxBitrate)

	return e
}

// NewLossBasedFactory returns a Factory building LossBased estimators.
func NewLossBasedFactory(opts ...Option) Factory {
	return func() (Estimator, error) {
		return NewLossBased(opts...), nil
	}
}

// OnAddPacket registers a packet about to be sent.
func (e *LossBased) OnAddPacket(info SendInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending[info.TransportSequence] = info
}

// OnSentPacket matches a registered packet with its send time.
func (e *LossBased) OnSentPacket(info SentInfo) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.pending[info.TransportSequence]; !ok {
		e.log.Debugf("sent packet %d was never registered", info.TransportSequence)
	}
	delete(e.pending, info.TransportSequence)
	e.sentBits += int64(info.Size) * 8
}

// OnRttUpdate records the latest round-trip time.
func (e *LossBased) OnRttUpdate(rtt time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rtt = rtt
}

// OnNetworkOk pauses rate updates while the path is unusable.
func (e *LossBased) OnNetworkOk(ok bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.networkOk = ok
}

// OnTargetTransferRate sets the handler called when the target changes.
func (e *LossBased) OnTargetTransferRate(fn func(TargetTransferRate)) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.onTarget = fn
}

// TargetBitrate returns the current target.
func (e *LossBased) TargetBitrate() int {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.target
}

// OnReceiverReportBlocks folds the loss of every block into one estimate.
func (e *LossBased) OnReceiverReportBlocks(blocks []rtprtcp.ReportBlock, now time.Time) {
	if len(blocks) == 0 {
		return
	}

	var lost float64
	for _, block := range blocks {
		lost += float64(block.FractionLost) / 256
	}
	loss := lost / float64(len(blocks))

	e.mu.Lock()
	if !e.networkOk || (!e.lastUpdate.IsZero() && now.Sub(e.lastUpdate) < minUpdateInterval) {
		e.mu.Unlock()

		return
	}
	e.lastUpdate = now

	target := e.target
	switch {
	case loss > decreaseLossThreshold:
		target = int(float64(target) * (1 - 0.5*loss))
	case loss < increaseLossThreshold:
		target = int(float64(target) * increaseFactor)
	}
	target = clamp(target, e.minBitrate, e.maxBitrate)

	changed := target != e.target
	e.target = target
	handler := e.onTarget
	update := TargetTransferRate{BitsPerSecond: target, At: now, LossRate: loss, RTT: e.rtt}
	e.mu.Unlock()

	if changed && handler != nil {
		e.log.Debugf("target bitrate %d bps at %.1f%% loss", target, loss*100)
		handler(update)
	}
}

// Close drops every pending packet.
func (e *LossBased) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pending = map[uint16]SendInfo{}

	return nil
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}

	return v
}
