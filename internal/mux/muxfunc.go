// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package mux

// MatchFunc allows custom logic for mapping packets to an Endpoint
type MatchFunc func([]byte) bool

// MatchAll always returns true
func MatchAll([]byte) bool {
	return true
}

// MatchRange is a MatchFunc that accepts packets with the first byte in [lower..upper]
func MatchRange(lower, upper byte) MatchFunc {
	return func(buf []byte) bool {
		if len(buf) < 1 {
			return false
		}
		b := buf[0]

		return b >= lower && b <= upper
	}
}

// MatchFuncs as described in RFC7983
// https://tools.ietf.org/html/rfc7983
//              +----------------+
//              |        [0..3] -+--> forward to STUN
//              |                |
//              |      [16..19] -+--> forward to ZRTP
//              |                |
//  packet -->  |      [20..63] -+--> forward to DTLS
//              |                |
//              |      [64..79] -+--> forward to TURN Channel
//              |                |
//              |    [128..191] -+--> forward to RTP/RTCP
//              +----------------+

// MatchSTUN accepts packets with the first byte in [0..3].
var MatchSTUN = MatchRange(0, 3)

// MatchDTLS accepts packets with the first byte in [20..63].
var MatchDTLS = MatchRange(20, 63)

// MatchSRTPOrSRTCP accepts packets with the first byte in [128..191].
var MatchSRTPOrSRTCP = MatchRange(128, 191)

// IsRTCP reports whether buf looks like an RTCP packet: RTCP packet types
// occupy [192..223] in the second byte (RFC5761 section 4).
func IsRTCP(buf []byte) bool {
	// Not long enough to determine RTP/RTCP
	if len(buf) < 4 {
		return false
	}

	return buf[1] >= 192 && buf[1] <= 223
}

// IsRTP reports whether buf is version 2 RTP and not RTCP.
func IsRTP(buf []byte) bool {
	return len(buf) >= 12 && MatchSRTPOrSRTCP(buf) && !IsRTCP(buf)
}

// MatchSRTP is a MatchFunc that only matches SRTP and not SRTCP
func MatchSRTP(buf []byte) bool {
	return MatchSRTPOrSRTCP(buf) && !IsRTCP(buf)
}

// MatchSRTCP is a MatchFunc that only matches SRTCP and not SRTP
func MatchSRTCP(buf []byte) bool {
	return MatchSRTPOrSRTCP(buf) && IsRTCP(buf)
}
