// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pion/logging"
)

// Parsed is the result of Parse.
type Parsed struct {
	Description *SessionDescription
	// Candidates are in the order they appeared, tagged with their mid.
	Candidates []Candidate
	// VideoPayloadType is the first payload type of the video m= line, -1
	// when the input has no video section.
	VideoPayloadType int
}

type ssrcInfo struct {
	cname    string
	streamID string
	trackID  string
}

type sectionState struct {
	present   bool
	content   ContentInfo
	transport TransportDescription

	wildcardFeedback []Feedback
	ssrcOrder        []uint32
	ssrcs            map[uint32]*ssrcInfo
	ssrcGroups       []SsrcGroup
}

type pendingCandidate struct {
	section   *sectionState
	candidate Candidate
}

type parser struct {
	log logging.LeveledLogger

	audio, video *sectionState
	current      *sectionState
	skipping     bool

	session    TransportDescription
	groups     []ContentGroup
	candidates []pendingCandidate
	videoPT    int
}

func newSectionState(t MediaType) *sectionState {
	return &sectionState{
		content: ContentInfo{
			Name:        t.String(),
			Protocol:    ProtocolRTP,
			Description: newMediaContentDescription(t),
		},
		ssrcs: map[uint32]*ssrcInfo{},
	}
}

// Parse reads a session description. The result always holds exactly one
// audio and one video content, in that order; a kind missing from raw is
// marked rejected. Nothing is returned on error: parsing happens on a
// scratch value that is only handed out once every line was accepted.
func Parse(raw string, log logging.LeveledLogger) (*Parsed, error) {
	if log == nil {
		log = logging.NewDefaultLoggerFactory().NewLogger("sdp")
	}
	if strings.TrimSpace(raw) == "" {
		log.Warn("failed to parse empty session description")

		return nil, ErrEmptyDescription
	}

	p := &parser{
		log:     log,
		audio:   newSectionState(MediaTypeAudio),
		video:   newSectionState(MediaTypeVideo),
		videoPT: -1,
	}

	crlf := strings.Contains(raw, "\r\n")
	for _, line := range strings.Split(raw, "\n") {
		if crlf {
			line = strings.TrimSuffix(line, "\r")
		}
		if line == "" {
			continue
		}
		if err := p.parseLine(line); err != nil {
			log.Warnf("failed to parse line %q: %v", line, err)

			return nil, err
		}
	}

	return p.commit(), nil
}

func (p *parser) parseLine(line string) error {
	if len(line) < 2 || line[1] != '=' {
		p.log.Debugf("skipping unexpected line %q", line)

		return nil
	}

	switch line[0] {
	case 'm':
		return p.parseMediaLine(line[2:])
	case 'a':
		return p.parseAttribute(line[2:])
	default:
		return nil
	}
}

func (p *parser) parseMediaLine(value string) error {
	fields := strings.Fields(value)
	if len(fields) <= 2 {
		return fmt.Errorf("%w: %q", ErrMalformedMediaLine, value)
	}

	var section *sectionState
	switch fields[0] {
	case MediaTypeAudio.String():
		section = p.audio
	case MediaTypeVideo.String():
		section = p.video
	default:
		p.log.Debugf("skipping %s section", fields[0])
		p.current, p.skipping = nil, true

		return nil
	}
	if section.present {
		p.log.Warnf("skipping additional %s section", fields[0])
		p.current, p.skipping = nil, true

		return nil
	}

	port, err := strconv.Atoi(strings.SplitN(fields[1], "/", 2)[0])
	if err != nil {
		return fmt.Errorf("%w: port %q", ErrMalformedMediaLine, fields[1])
	}

	section.present = true
	section.content.Rejected = port == 0
	section.content.Protocol = newProtocol(fields[2])
	p.current, p.skipping = section, false

	if section.content.Protocol != ProtocolRTP {
		return nil
	}

	media := section.content.Media()
	for _, f := range fields[3:] {
		id, err := strconv.ParseUint(f, 10, 8)
		if err != nil {
			return fmt.Errorf("%w: payload type %q", ErrMalformedMediaLine, f)
		}
		if _, exists := media.Codec(uint8(id)); !exists {
			media.AddCodec(Codec{ID: uint8(id)})
		}
	}

	if section == p.video && len(fields) >= 4 {
		p.videoPT = int(media.Codecs[0].ID)
	}

	return nil
}

func (p *parser) parseAttribute(attr string) error {
	key, value, _ := strings.Cut(attr, ":")

	if key == "group" {
		return p.parseGroup(value)
	}
	if p.skipping {
		return nil
	}

	td := &p.session
	if p.current != nil {
		td = &p.current.transport
	}

	switch key {
	case "candidate":
		c, err := ParseCandidate(value)
		if err != nil {
			return err
		}
		p.candidates = append(p.candidates, pendingCandidate{section: p.current, candidate: c})

		return nil
	case "ice-ufrag":
		if value == "" {
			return fmt.Errorf("%w: empty ice-ufrag", ErrMalformedAttribute)
		}
		td.IceUfrag = value

		return nil
	case "ice-pwd":
		if value == "" {
			return fmt.Errorf("%w: empty ice-pwd", ErrMalformedAttribute)
		}
		td.IcePwd = value

		return nil
	case "ice-options":
		td.IceOptions = strings.Fields(value)

		return nil
	case "fingerprint":
		fp, err := parseFingerprintAttribute(value)
		if err != nil {
			return err
		}
		td.Fingerprint = fp

		return nil
	case "setup":
		role, err := NewConnectionRole(value)
		if err != nil {
			return err
		}
		td.ConnectionRole = role

		return nil
	}

	if p.current == nil {
		return nil
	}

	return p.current.parseMediaAttribute(key, value)
}

func (p *parser) parseGroup(value string) error {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return fmt.Errorf("%w: empty group", ErrMalformedAttribute)
	}
	p.groups = append(p.groups, ContentGroup{Semantics: fields[0], ContentNames: fields[1:]})

	return nil
}

// parseFingerprintAttribute expects exactly "<algorithm> <digest>".
func parseFingerprintAttribute(value string) (*Fingerprint, error) {
	parts := strings.Split(value, " ")
	if len(parts) != 2 {
		return nil, fmt.Errorf("%w: %q", ErrMalformedFingerprint, value)
	}

	return ParseFingerprint(strings.ToLower(parts[0]), parts[1])
}

func (s *sectionState) parseMediaAttribute(key, value string) error {
	media := s.content.Media()

	switch key {
	case "mid":
		if value == "" {
			return fmt.Errorf("%w: empty mid", ErrMalformedAttribute)
		}
		s.content.Name = value
	case "rtcp-mux":
		media.RtcpMux = true
	case "bundle-only":
		s.content.BundleOnly = true
	case directionSendRecvStr, directionSendOnlyStr, directionRecvOnlyStr, directionInactiveStr:
		media.Direction = NewDirection(key)
	case "rtpmap":
		return s.parseRtpmap(value)
	case "fmtp":
		return s.parseFmtp(value)
	case "rtcp-fb":
		return s.parseRtcpFb(value)
	case "ssrc":
		return s.parseSsrc(value)
	case "ssrc-group":
		return s.parseSsrcGroup(value)
	case "extmap":
		return s.parseExtmap(value)
	}

	return nil
}

// codec returns the codec for a "<payload type> ..." attribute value and
// the remainder of the value.
func (s *sectionState) codec(value string) (*Codec, string, error) {
	idStr, rest, _ := strings.Cut(value, " ")
	id, err := strconv.ParseUint(idStr, 10, 8)
	if err != nil {
		return nil, "", fmt.Errorf("%w: payload type %q", ErrMalformedAttribute, idStr)
	}

	media := s.content.Media()
	c, ok := media.Codec(uint8(id))
	if !ok {
		media.AddCodec(Codec{ID: uint8(id)})
		c = &media.Codecs[len(media.Codecs)-1]
	}

	return c, strings.TrimSpace(rest), nil
}

func (s *sectionState) parseRtpmap(value string) error {
	c, rest, err := s.codec(value)
	if err != nil {
		return err
	}

	parts := strings.Split(rest, "/")
	if len(parts) < 2 || parts[0] == "" {
		return fmt.Errorf("%w: rtpmap %q", ErrMalformedAttribute, value)
	}
	clockRate, err := strconv.ParseUint(parts[1], 10, 32)
	if err != nil {
		return fmt.Errorf("%w: rtpmap clock rate %q", ErrMalformedAttribute, parts[1])
	}

	c.Name = parts[0]
	c.ClockRate = uint32(clockRate)
	if len(parts) > 2 {
		channels, err := strconv.ParseUint(parts[2], 10, 16)
		if err != nil {
			return fmt.Errorf("%w: rtpmap channels %q", ErrMalformedAttribute, parts[2])
		}
		c.Channels = uint16(channels)
	}

	return nil
}

func (s *sectionState) parseFmtp(value string) error {
	c, rest, err := s.codec(value)
	if err != nil {
		return err
	}

	for _, kv := range strings.Split(rest, ";") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		k, v, _ := strings.Cut(kv, "=")
		c.SetParam(k, v)
	}

	return nil
}

func (s *sectionState) parseRtcpFb(value string) error {
	idStr, rest, _ := strings.Cut(value, " ")
	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return fmt.Errorf("%w: rtcp-fb %q", ErrMalformedAttribute, value)
	}
	fb := Feedback{Type: fields[0], Parameter: strings.Join(fields[1:], " ")}

	if idStr == "*" {
		s.wildcardFeedback = append(s.wildcardFeedback, fb)

		return nil
	}

	c, _, err := s.codec(idStr)
	if err != nil {
		return err
	}
	c.AddFeedback(fb)

	return nil
}

func (s *sectionState) ssrc(ssrc uint32) *ssrcInfo {
	info, ok := s.ssrcs[ssrc]
	if !ok {
		info = &ssrcInfo{}
		s.ssrcs[ssrc] = info
		s.ssrcOrder = append(s.ssrcOrder, ssrc)
	}

	return info
}

func (s *sectionState) parseSsrc(value string) error {
	ssrcStr, attr, _ := strings.Cut(value, " ")
	ssrc, err := strconv.ParseUint(ssrcStr, 10, 32)
	if err != nil {
		return fmt.Errorf("%w: ssrc %q", ErrMalformedAttribute, ssrcStr)
	}

	info := s.ssrc(uint32(ssrc))
	k, v, _ := strings.Cut(attr, ":")
	switch k {
	case "cname":
		info.cname = v
	case "msid":
		fields := strings.Fields(v)
		if len(fields) > 0 {
			info.streamID = fields[0]
		}
		if len(fields) > 1 {
			info.trackID = fields[1]
		}
	}

	return nil
}

func (s *sectionState) parseSsrcGroup(value string) error {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return fmt.Errorf("%w: ssrc-group %q", ErrMalformedAttribute, value)
	}

	group := SsrcGroup{Semantics: fields[0]}
	for _, f := range fields[1:] {
		ssrc, err := strconv.ParseUint(f, 10, 32)
		if err != nil {
			return fmt.Errorf("%w: ssrc-group ssrc %q", ErrMalformedAttribute, f)
		}
		group.Ssrcs = append(group.Ssrcs, uint32(ssrc))
	}
	s.ssrcGroups = append(s.ssrcGroups, group)

	return nil
}

func (s *sectionState) parseExtmap(value string) error {
	fields := strings.Fields(value)
	if len(fields) < 2 {
		return fmt.Errorf("%w: extmap %q", ErrMalformedAttribute, value)
	}

	id, err := strconv.Atoi(strings.SplitN(fields[0], "/", 2)[0])
	if err != nil {
		return fmt.Errorf("%w: extmap id %q", ErrMalformedAttribute, fields[0])
	}
	media := s.content.Media()
	media.Extensions = append(media.Extensions, RtpExtension{ID: id, URI: fields[1]})

	return nil
}

// finalize applies wildcard feedback and folds ssrc attributes into streams.
func (s *sectionState) finalize(session *TransportDescription) {
	if !s.present {
		s.content.Rejected = true
	}

	media := s.content.Media()
	for i := range media.Codecs {
		for _, fb := range s.wildcardFeedback {
			media.Codecs[i].AddFeedback(fb)
		}
	}

	assigned := map[uint32]bool{}
	for _, ssrc := range s.ssrcOrder {
		if assigned[ssrc] {
			continue
		}

		stream := StreamParams{Ssrcs: []uint32{ssrc}}
		for _, g := range s.ssrcGroups {
			if len(g.Ssrcs) == 0 || g.Ssrcs[0] != ssrc {
				continue
			}
			stream.SsrcGroups = append(stream.SsrcGroups, g)
			for _, other := range g.Ssrcs[1:] {
				if !stream.HasSsrc(other) {
					stream.Ssrcs = append(stream.Ssrcs, other)
				}
			}
		}
		for _, v := range stream.Ssrcs {
			assigned[v] = true
		}

		info := s.ssrcs[ssrc]
		stream.Cname = info.cname
		stream.ID = info.trackID
		if info.streamID != "" {
			stream.StreamIDs = []string{info.streamID}
		}
		media.AddStream(stream)
	}

	// Session level attributes are defaults for every section.
	if s.transport.IceUfrag == "" {
		s.transport.IceUfrag = session.IceUfrag
	}
	if s.transport.IcePwd == "" {
		s.transport.IcePwd = session.IcePwd
	}
	if s.transport.IceOptions == nil {
		s.transport.IceOptions = session.IceOptions
	}
	if s.transport.Fingerprint == nil {
		s.transport.Fingerprint = session.Fingerprint
	}
	if s.transport.ConnectionRole == ConnectionRoleNone {
		s.transport.ConnectionRole = session.ConnectionRole
	}
}

func (p *parser) commit() *Parsed {
	desc := &SessionDescription{Groups: p.groups}
	for _, s := range []*sectionState{p.audio, p.video} {
		s.finalize(&p.session)
		desc.Contents = append(desc.Contents, s.content)
		desc.TransportInfos = append(desc.TransportInfos, TransportInfo{
			ContentName: s.content.Name,
			Description: s.transport.clone(),
		})
	}

	candidates := make([]Candidate, 0, len(p.candidates))
	for _, pc := range p.candidates {
		c := pc.candidate
		if pc.section != nil {
			c.Mid = pc.section.content.Name
		}
		candidates = append(candidates, c)
	}

	return &Parsed{Description: desc, Candidates: candidates, VideoPayloadType: p.videoPT}
}
