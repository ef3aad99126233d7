// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package fmtp implements per codec matching of fmtp parameters
package fmtp

import (
	"strings"

	"github.com/pion/p2p/pkg/description"
)

func defaultClockRate(mimeType string) uint32 {
	defaults := map[string]uint32{
		"audio/opus": 48000,
		"audio/pcmu": 8000,
		"audio/pcma": 8000,
	}

	if def, ok := defaults[strings.ToLower(mimeType)]; ok {
		return def
	}

	return 90000
}

func defaultChannels(mimeType string) uint16 {
	defaults := map[string]uint16{
		"audio/opus": 2,
	}

	if def, ok := defaults[strings.ToLower(mimeType)]; ok {
		return def
	}

	return 0
}

func parseParameters(params []description.Param) map[string]string {
	parameters := make(map[string]string, len(params))
	for _, p := range params {
		key := strings.ToLower(strings.TrimSpace(p.Key))
		if key == "" {
			continue
		}
		parameters[key] = strings.TrimSpace(p.Value)
	}

	return parameters
}

// ClockRateEqual checks whether two clock rates are equal. Zero stands for
// the default rate of mimeType.
func ClockRateEqual(mimeType string, valA, valB uint32) bool {
	if valA == 0 {
		valA = defaultClockRate(mimeType)
	}
	if valB == 0 {
		valB = defaultClockRate(mimeType)
	}

	return valA == valB
}

// ChannelsEqual checks whether two channels are equal.
func ChannelsEqual(mimeType string, valA, valB uint16) bool {
	if valA == 0 {
		valA = defaultChannels(mimeType)
	}
	if valB == 0 {
		valB = defaultChannels(mimeType)
	}

	// RFC8866: channel count "is OPTIONAL and may be omitted
	// if the number of channels is one".
	if valA == 0 {
		valA = 1
	}
	if valB == 0 {
		valB = 1
	}

	return valA == valB
}

func paramsEqual(valA, valB map[string]string) bool {
	for k, v := range valA {
		if vb, ok := valB[k]; ok && !strings.EqualFold(vb, v) {
			return false
		}
	}

	for k, v := range valB {
		if va, ok := valA[k]; ok && !strings.EqualFold(va, v) {
			return false
		}
	}

	return true
}

// FMTP interface for implementing custom
// FMTP parsers based on MimeType.
type FMTP interface {
	// MimeType returns the MimeType associated with
	// the fmtp
	MimeType() string
	// Match compares two fmtp descriptions for
	// compatibility based on the MimeType
	Match(f FMTP) bool
	// Parameter returns a value for the associated key
	// if contained in the parsed fmtp string
	Parameter(key string) (string, bool)
}

// Parse builds the FMTP of a codec with the given parameters.
func Parse(mimeType string, clockRate uint32, channels uint16, params []description.Param) FMTP {
	parameters := parseParameters(params)

	if strings.EqualFold(mimeType, "video/h264") {
		return &h264FMTP{parameters: parameters}
	}

	return &genericFMTP{
		mimeType:   mimeType,
		clockRate:  clockRate,
		channels:   channels,
		parameters: parameters,
	}
}

// FromCodec builds the FMTP of codec within a section of kind t.
func FromCodec(t description.MediaType, codec *description.Codec) FMTP {
	return Parse(t.String()+"/"+codec.Name, codec.ClockRate, codec.Channels, codec.Params)
}

type genericFMTP struct {
	mimeType   string
	clockRate  uint32
	channels   uint16
	parameters map[string]string
}

func (g *genericFMTP) MimeType() string {
	return g.mimeType
}

// Match returns true if g and b are compatible fmtp descriptions
// The generic implementation is used for MimeTypes that are not defined.
func (g *genericFMTP) Match(b FMTP) bool {
	fmtp, ok := b.(*genericFMTP)
	if !ok {
		return false
	}

	return strings.EqualFold(g.mimeType, fmtp.MimeType()) &&
		ClockRateEqual(g.mimeType, g.clockRate, fmtp.clockRate) &&
		ChannelsEqual(g.mimeType, g.channels, fmtp.channels) &&
		paramsEqual(g.parameters, fmtp.parameters)
}

func (g *genericFMTP) Parameter(key string) (string, bool) {
	v, ok := g.parameters[key]

	return v, ok
}
