// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import (
	"strconv"
	"strings"
)

// MediaType is the kind of media carried by a content.
type MediaType int

const (
	// MediaTypeAudio is an audio section.
	MediaTypeAudio MediaType = iota + 1
	// MediaTypeVideo is a video section.
	MediaTypeVideo
)

func (t MediaType) String() string {
	switch t {
	case MediaTypeAudio:
		return "audio"
	case MediaTypeVideo:
		return "video"
	default:
		return ErrUnknownType.Error()
	}
}

// Protocol is the transport protocol family of a content.
type Protocol int

const (
	// ProtocolRTP covers every RTP profile (RTP/AVP, UDP/TLS/RTP/SAVPF, ...).
	ProtocolRTP Protocol = iota + 1
	// ProtocolSCTP covers DTLS/SCTP and UDP/DTLS/SCTP.
	ProtocolSCTP
	// ProtocolOther is any other protocol.
	ProtocolOther
)

func (p Protocol) String() string {
	switch p {
	case ProtocolRTP:
		return "rtp"
	case ProtocolSCTP:
		return "sctp"
	case ProtocolOther:
		return "other"
	default:
		return ErrUnknownType.Error()
	}
}

func newProtocol(proto string) Protocol {
	switch {
	case strings.Contains(proto, "RTP"):
		return ProtocolRTP
	case strings.Contains(proto, "SCTP"):
		return ProtocolSCTP
	default:
		return ProtocolOther
	}
}

// Direction is the negotiated media direction of a section.
type Direction int

const (
	// DirectionSendRecv sends and receives.
	DirectionSendRecv Direction = iota + 1
	// DirectionSendOnly only sends.
	DirectionSendOnly
	// DirectionRecvOnly only receives.
	DirectionRecvOnly
	// DirectionInactive neither sends nor receives.
	DirectionInactive
)

const (
	directionSendRecvStr = "sendrecv"
	directionSendOnlyStr = "sendonly"
	directionRecvOnlyStr = "recvonly"
	directionInactiveStr = "inactive"
)

// NewDirection maps an SDP direction attribute to a Direction. The zero
// value is returned for unknown attributes.
func NewDirection(raw string) Direction {
	switch raw {
	case directionSendRecvStr:
		return DirectionSendRecv
	case directionSendOnlyStr:
		return DirectionSendOnly
	case directionRecvOnlyStr:
		return DirectionRecvOnly
	case directionInactiveStr:
		return DirectionInactive
	default:
		return Direction(0)
	}
}

// DirectionFromFlags derives a direction from send and receive toggles.
func DirectionFromFlags(send, recv bool) Direction {
	switch {
	case send && recv:
		return DirectionSendRecv
	case send:
		return DirectionSendOnly
	case recv:
		return DirectionRecvOnly
	default:
		return DirectionInactive
	}
}

func (d Direction) String() string {
	switch d {
	case DirectionSendRecv:
		return directionSendRecvStr
	case DirectionSendOnly:
		return directionSendOnlyStr
	case DirectionRecvOnly:
		return directionRecvOnlyStr
	case DirectionInactive:
		return directionInactiveStr
	default:
		return ErrUnknownType.Error()
	}
}

// Reverse returns the direction the other side must answer with.
func (d Direction) Reverse() Direction {
	switch d {
	case DirectionSendOnly:
		return DirectionRecvOnly
	case DirectionRecvOnly:
		return DirectionSendOnly
	default:
		return d
	}
}

// Feedback is an rtcp-fb entry of a codec.
type Feedback struct {
	Type      string
	Parameter string
}

func (f Feedback) String() string {
	if f.Parameter == "" {
		return f.Type
	}

	return f.Type + " " + f.Parameter
}

// Param is one key=value pair of a codec fmtp line.
type Param struct {
	Key   string
	Value string
}

// Codec is a payload format of a media section.
type Codec struct {
	ID        uint8
	Name      string
	ClockRate uint32
	// Channels is only meaningful for audio codecs, zero means unset.
	Channels uint16
	Params   []Param
	Feedback []Feedback
}

// RtxCodecName is the encoding name of retransmission payloads.
const RtxCodecName = "rtx"

// RtxAptParam names the primary payload type of an rtx codec.
const RtxAptParam = "apt"

// Param returns the value of the fmtp parameter key.
func (c *Codec) Param(key string) (string, bool) {
	for _, p := range c.Params {
		if p.Key == key {
			return p.Value, true
		}
	}

	return "", false
}

// SetParam sets or appends the fmtp parameter key.
func (c *Codec) SetParam(key, value string) {
	for i := range c.Params {
		if c.Params[i].Key == key {
			c.Params[i].Value = value

			return
		}
	}
	c.Params = append(c.Params, Param{Key: key, Value: value})
}

// AddFeedback appends an rtcp-fb entry unless it is already present.
func (c *Codec) AddFeedback(f Feedback) {
	for _, existing := range c.Feedback {
		if existing == f {
			return
		}
	}
	c.Feedback = append(c.Feedback, f)
}

// IsRTX reports whether c is a retransmission codec.
func (c *Codec) IsRTX() bool {
	return strings.EqualFold(c.Name, RtxCodecName)
}

// rtpmapValue returns "name/clock[/channels]".
func (c *Codec) rtpmapValue() string {
	v := c.Name + "/" + strconv.FormatUint(uint64(c.ClockRate), 10)
	if c.Channels > 0 {
		v += "/" + strconv.FormatUint(uint64(c.Channels), 10)
	}

	return v
}

// fmtpValue joins the parameters with ';'.
func (c *Codec) fmtpValue() string {
	var b strings.Builder
	for _, p := range c.Params {
		b.WriteByte(';')
		b.WriteString(p.Key)
		if p.Value != "" {
			b.WriteByte('=')
			b.WriteString(p.Value)
		}
	}

	return strings.TrimPrefix(b.String(), ";")
}

func (c Codec) clone() Codec {
	c.Params = append([]Param(nil), c.Params...)
	c.Feedback = append([]Feedback(nil), c.Feedback...)

	return c
}

// SsrcGroup groups SSRCs of one stream, e.g. FID pairs media with rtx.
type SsrcGroup struct {
	Semantics string
	Ssrcs     []uint32
}

// SsrcGroupFID is the flow identification semantics used for rtx pairing.
const SsrcGroupFID = "FID"

// StreamParams describes one send stream of a section.
type StreamParams struct {
	// ID is the track id, written as the second msid token.
	ID         string
	Cname      string
	StreamIDs  []string
	Ssrcs      []uint32
	SsrcGroups []SsrcGroup
}

// FirstSsrc returns the primary SSRC, zero when there is none.
func (s *StreamParams) FirstSsrc() uint32 {
	if len(s.Ssrcs) == 0 {
		return 0
	}

	return s.Ssrcs[0]
}

// HasSsrc reports whether ssrc belongs to the stream.
func (s *StreamParams) HasSsrc(ssrc uint32) bool {
	for _, v := range s.Ssrcs {
		if v == ssrc {
			return true
		}
	}

	return false
}

// FidSsrc returns the SSRC paired with primary in an FID group.
func (s *StreamParams) FidSsrc(primary uint32) (uint32, bool) {
	for _, g := range s.SsrcGroups {
		if g.Semantics != SsrcGroupFID || len(g.Ssrcs) != 2 {
			continue
		}
		if g.Ssrcs[0] == primary {
			return g.Ssrcs[1], true
		}
	}

	return 0, false
}

func (s StreamParams) clone() StreamParams {
	s.StreamIDs = append([]string(nil), s.StreamIDs...)
	s.Ssrcs = append([]uint32(nil), s.Ssrcs...)
	if s.SsrcGroups != nil {
		groups := make([]SsrcGroup, len(s.SsrcGroups))
		for i, g := range s.SsrcGroups {
			groups[i] = SsrcGroup{Semantics: g.Semantics, Ssrcs: append([]uint32(nil), g.Ssrcs...)}
		}
		s.SsrcGroups = groups
	}

	return s
}

// RtpExtension is a negotiated RTP header extension (a=extmap).
type RtpExtension struct {
	ID  int
	URI string
}

// MediaDescription holds what audio and video sections share.
type MediaDescription struct {
	Direction  Direction
	RtcpMux    bool
	Codecs     []Codec
	Streams    []StreamParams
	Extensions []RtpExtension
}

// Codec returns the codec with payload type id.
func (m *MediaDescription) Codec(id uint8) (*Codec, bool) {
	for i := range m.Codecs {
		if m.Codecs[i].ID == id {
			return &m.Codecs[i], true
		}
	}

	return nil, false
}

// CodecByName returns the first codec whose encoding name matches name.
func (m *MediaDescription) CodecByName(name string) (*Codec, bool) {
	for i := range m.Codecs {
		if strings.EqualFold(m.Codecs[i].Name, name) {
			return &m.Codecs[i], true
		}
	}

	return nil, false
}

// CodecIDs returns the payload types in codec order.
func (m *MediaDescription) CodecIDs() []uint8 {
	ids := make([]uint8, len(m.Codecs))
	for i := range m.Codecs {
		ids[i] = m.Codecs[i].ID
	}

	return ids
}

// AddCodec appends c.
func (m *MediaDescription) AddCodec(c Codec) {
	m.Codecs = append(m.Codecs, c)
}

// AddStream appends s.
func (m *MediaDescription) AddStream(s StreamParams) {
	m.Streams = append(m.Streams, s)
}

// ExtensionID returns the id negotiated for uri.
func (m *MediaDescription) ExtensionID(uri string) (int, bool) {
	for _, e := range m.Extensions {
		if e.URI == uri {
			return e.ID, true
		}
	}

	return 0, false
}

func (m *MediaDescription) clone() MediaDescription {
	out := MediaDescription{
		Direction:  m.Direction,
		RtcpMux:    m.RtcpMux,
		Extensions: append([]RtpExtension(nil), m.Extensions...),
	}
	for i := range m.Codecs {
		out.Codecs = append(out.Codecs, m.Codecs[i].clone())
	}
	for i := range m.Streams {
		out.Streams = append(out.Streams, m.Streams[i].clone())
	}

	return out
}

// MediaContentDescription is either an *AudioContentDescription or a
// *VideoContentDescription.
type MediaContentDescription interface {
	MediaType() MediaType
	Media() *MediaDescription
	Clone() MediaContentDescription
}

// AudioContentDescription describes an audio section.
type AudioContentDescription struct {
	MediaDescription
}

// NewAudioContentDescription returns an empty sendrecv audio description.
func NewAudioContentDescription() *AudioContentDescription {
	return &AudioContentDescription{MediaDescription{Direction: DirectionSendRecv}}
}

// MediaType returns MediaTypeAudio.
func (*AudioContentDescription) MediaType() MediaType { return MediaTypeAudio }

// Media returns the shared section fields.
func (a *AudioContentDescription) Media() *MediaDescription { return &a.MediaDescription }

// Clone returns a deep copy.
func (a *AudioContentDescription) Clone() MediaContentDescription {
	return &AudioContentDescription{a.MediaDescription.clone()}
}

// VideoContentDescription describes a video section.
type VideoContentDescription struct {
	MediaDescription
}

// NewVideoContentDescription returns an empty sendrecv video description.
func NewVideoContentDescription() *VideoContentDescription {
	return &VideoContentDescription{MediaDescription{Direction: DirectionSendRecv}}
}

// MediaType returns MediaTypeVideo.
func (*VideoContentDescription) MediaType() MediaType { return MediaTypeVideo }

// Media returns the shared section fields.
func (v *VideoContentDescription) Media() *MediaDescription { return &v.MediaDescription }

// Clone returns a deep copy.
func (v *VideoContentDescription) Clone() MediaContentDescription {
	return &VideoContentDescription{v.MediaDescription.clone()}
}

func newMediaContentDescription(t MediaType) MediaContentDescription {
	if t == MediaTypeVideo {
		return NewVideoContentDescription()
	}

	return NewAudioContentDescription()
}
