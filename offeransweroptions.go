// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

// AnswerOptions selects the sections and multiplexing of a created answer.
type AnswerOptions struct {
	SendAudio bool
	RecvAudio bool
	SendVideo bool
	RecvVideo bool
	// UseRtpMux bundles every section on one transport.
	UseRtpMux bool
	// UseRtcpMux multiplexes RTCP with RTP on each transport.
	UseRtcpMux bool
}

func (o AnswerOptions) hasAudio() bool {
	return o.SendAudio || o.RecvAudio
}

func (o AnswerOptions) hasVideo() bool {
	return o.SendVideo || o.RecvVideo
}
