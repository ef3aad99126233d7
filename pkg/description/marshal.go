// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import (
	"strconv"
	"strings"

	"github.com/pion/sdp/v3"
)

const (
	discardPort      = 9
	unspecifiedIP4   = "0.0.0.0"
	originAddress    = "127.0.0.1"
	originVersion    = 2
	iceOptionTrickle = "trickle"
	msidNoStream     = "-"
)

// Marshal serializes the description. The output only depends on the
// model, so marshaling an unchanged model twice yields identical bytes.
func (d *SessionDescription) Marshal() (string, error) {
	raw, err := d.toSDP().Marshal()
	if err != nil {
		return "", err
	}

	return string(raw), nil
}

func (d *SessionDescription) toSDP() *sdp.SessionDescription {
	out := &sdp.SessionDescription{
		Version: 0,
		Origin: sdp.Origin{
			Username:       "-",
			SessionID:      0,
			SessionVersion: originVersion,
			NetworkType:    "IN",
			AddressType:    "IP4",
			UnicastAddress: originAddress,
		},
		SessionName: "-",
		TimeDescriptions: []sdp.TimeDescription{
			{Timing: sdp.Timing{StartTime: 0, StopTime: 0}},
		},
	}

	if bundle := d.GroupByName(GroupBundle); bundle != nil && len(bundle.ContentNames) > 0 {
		out.WithValueAttribute(sdp.AttrKeyGroup, GroupBundle+" "+strings.Join(bundle.ContentNames, " "))
	}
	// msid-semantic is written with a space after the colon
	out.WithValueAttribute(sdp.AttrKeyMsidSemantic, " "+sdp.SemanticTokenWebRTCMediaStreams)

	for i := range d.Contents {
		out.WithMedia(d.mediaSection(&d.Contents[i]))
	}

	return out
}

func (d *SessionDescription) mediaSection(content *ContentInfo) *sdp.MediaDescription {
	media := content.Media()
	if media == nil {
		media = &MediaDescription{Direction: DirectionInactive}
	}

	formats := make([]string, 0, len(media.Codecs))
	for _, c := range media.Codecs {
		formats = append(formats, strconv.Itoa(int(c.ID)))
	}

	port := discardPort
	if content.Rejected {
		port = 0
	}

	m := &sdp.MediaDescription{
		MediaName: sdp.MediaName{
			Media:   content.MediaType().String(),
			Port:    sdp.RangedPort{Value: port},
			Protos:  []string{"UDP", "TLS", "RTP", "SAVPF"},
			Formats: formats,
		},
		ConnectionInformation: &sdp.ConnectionInformation{
			NetworkType: "IN",
			AddressType: "IP4",
			Address:     &sdp.Address{Address: unspecifiedIP4},
		},
	}
	m.WithValueAttribute("rtcp", strconv.Itoa(discardPort)+" IN IP4 "+unspecifiedIP4)

	if info := d.TransportInfoByName(content.Name); info != nil {
		td := &info.Description
		m.WithValueAttribute("ice-ufrag", td.IceUfrag)
		m.WithValueAttribute("ice-pwd", td.IcePwd)
		m.WithValueAttribute("ice-options", iceOptionTrickle)
		if td.Fingerprint != nil {
			m.WithFingerprint(td.Fingerprint.Algorithm, td.Fingerprint.String())
			m.WithValueAttribute(sdp.AttrKeyConnectionSetup, td.ConnectionRole.String())
		}
	}

	m.WithValueAttribute(sdp.AttrKeyMID, content.Name)
	m.WithPropertyAttribute(media.Direction.String())
	if media.RtcpMux {
		m.WithPropertyAttribute(sdp.AttrKeyRTCPMux)
	}
	for _, ext := range media.Extensions {
		m.WithValueAttribute("extmap", strconv.Itoa(ext.ID)+" "+ext.URI)
	}

	for i := range media.Codecs {
		c := &media.Codecs[i]
		id := strconv.Itoa(int(c.ID))
		m.WithValueAttribute("rtpmap", id+" "+c.rtpmapValue())
		for _, fb := range c.Feedback {
			m.WithValueAttribute("rtcp-fb", id+" "+fb.String())
		}
		if len(c.Params) > 0 {
			m.WithValueAttribute("fmtp", id+" "+c.fmtpValue())
		}
	}

	for i := range media.Streams {
		addStreamAttributes(m, &media.Streams[i])
	}

	return m
}

func addStreamAttributes(m *sdp.MediaDescription, stream *StreamParams) {
	for _, g := range stream.SsrcGroups {
		if len(g.Ssrcs) == 0 {
			continue
		}
		ssrcs := make([]string, len(g.Ssrcs))
		for i, ssrc := range g.Ssrcs {
			ssrcs[i] = strconv.FormatUint(uint64(ssrc), 10)
		}
		m.WithValueAttribute(sdp.AttrKeySSRCGroup, g.Semantics+" "+strings.Join(ssrcs, " "))
	}

	streamID := msidNoStream
	if len(stream.StreamIDs) > 0 {
		streamID = stream.StreamIDs[0]
	}
	for _, ssrc := range stream.Ssrcs {
		s := strconv.FormatUint(uint64(ssrc), 10)
		m.WithValueAttribute(sdp.AttrKeySSRC, s+" cname:"+stream.Cname)
		m.WithValueAttribute(sdp.AttrKeySSRC, s+" msid:"+streamID+" "+stream.ID)
	}
}
