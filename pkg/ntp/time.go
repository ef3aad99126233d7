// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package ntp converts between time.Time and the NTP timestamps carried in
// RTCP sender and receiver reports (RFC 3550 section 4).
package ntp

import (
	"errors"
	"time"
)

var epoch = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// ErrDurationOutOfRange indicates a duration that does not fit a Time32.
var ErrDurationOutOfRange = errors.New("ntp: duration must be in [0, 65536s)")

// Time64 is a Q32.32 fixed-point number of seconds since 0h UTC on
// 1 January 1900. Only the current era (until 2036) is handled.
type Time64 uint64

// FromTime converts t into a Time64 timestamp.
func FromTime(t time.Time) Time64 {
	d := t.Sub(epoch)
	sec := uint64(d / time.Second)
	frac := uint64(d%time.Second) << 32 / uint64(time.Second)

	return Time64(sec<<32 | frac)
}

// Duration returns the amount of time since the epoch represented by this timestamp.
func (t Time64) Duration() time.Duration {
	sec := time.Duration(t>>32) * time.Second
	frac := time.Duration(t&0xffffffff) * time.Second >> 32

	return sec + frac
}

// Time returns the Go Time represented by this timestamp.
func (t Time64) Time() time.Time {
	return epoch.Add(t.Duration())
}

// Middle returns the middle 32 bits, the form used by the LSR field of a
// reception report.
func (t Time64) Middle() Time32 {
	return Time32(t >> 16)
}

// Time32 is a Q16.16 fixed-point number of seconds. It overflows after ~18
// hours so it only encodes differences, like LSR and DLSR.
type Time32 uint32

// NewTime32 converts d into a Time32, rounding the fraction up.
func NewTime32(d time.Duration) (Time32, error) {
	if d < 0 || d >= (1<<16)*time.Second {
		return 0, ErrDurationOutOfRange
	}
	sec := d / time.Second
	frac := (d - sec*time.Second) << 16
	frac = (frac + time.Second - 1) / time.Second

	return Time32(uint32(sec)<<16 | uint32(frac)), nil
}

// Duration returns the time span represented by t.
func (t Time32) Duration() time.Duration {
	t64 := uint64(t)
	sec := (t64 >> 16) * uint64(time.Second)
	frac := (t64 & 0xffff) * uint64(time.Second) >> 16

	return time.Duration(sec + frac)
}
