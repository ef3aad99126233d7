// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"fmt"
	"strconv"

	"github.com/pion/interceptor"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"
	"github.com/pion/sdp/v3"
)

// videoTimestampRate converts a millisecond capture time to the 90kHz
// RTP clock.
const videoTimestampRate = videoClockRate / 1000

// EncodedImage is one encoded H264 frame in Annex B format.
type EncodedImage struct {
	Data []byte
	// Timestamp is the capture time in milliseconds.
	Timestamp uint32
	KeyFrame  bool
}

// videoSender packetizes frames of the negotiated H264 stream.
type videoSender struct {
	mid         string
	ssrc        uint32
	payloadType uint8
	extensionID int

	info      *interceptor.StreamInfo
	writer    interceptor.RTPWriter
	payloader rtp.Payloader
	sequencer rtp.Sequencer
}

func newVideoSender(mid string, media *description.MediaDescription) (*videoSender, error) {
	h264, ok := media.CodecByName("H264")
	if !ok {
		return nil, fmt.Errorf("%w: %s has no H264 codec", ErrUnsupportedCodec, mid)
	}

	stream := media.Streams[0]
	sender := &videoSender{
		mid:         mid,
		ssrc:        stream.FirstSsrc(),
		payloadType: h264.ID,
		payloader:   &codecs.H264Payloader{},
		sequencer:   rtp.NewRandomSequencer(),
	}
	sender.extensionID, _ = media.ExtensionID(sdp.TransportCCURI)

	info := &interceptor.StreamInfo{
		SSRC:        sender.ssrc,
		PayloadType: h264.ID,
		MimeType:    mimeTypeH264,
		ClockRate:   h264.ClockRate,
	}
	for _, fb := range h264.Feedback {
		info.RTCPFeedback = append(info.RTCPFeedback, interceptor.RTCPFeedback{Type: fb.Type, Parameter: fb.Parameter})
	}
	if sender.extensionID > 0 {
		info.RTPHeaderExtensions = []interceptor.RTPHeaderExtension{{URI: sdp.TransportCCURI, ID: sender.extensionID}}
	}
	if rtxSsrc, ok := stream.FidSsrc(sender.ssrc); ok {
		info.SSRCRetransmission = rtxSsrc
		if rtx, ok := rtxCodec(media, h264.ID); ok {
			info.PayloadTypeRetransmission = rtx.ID
		}
	}
	sender.info = info

	return sender, nil
}

// rtxCodec returns the rtx codec retransmitting primary.
func rtxCodec(media *description.MediaDescription, primary uint8) (*description.Codec, bool) {
	want := strconv.Itoa(int(primary))
	for i := range media.Codecs {
		codec := &media.Codecs[i]
		if apt, ok := codec.Param(description.RtxAptParam); ok && codec.IsRTX() && apt == want {
			return codec, true
		}
	}

	return nil, false
}

// send splits image into packets of at most mtu bytes. The last packet of
// the frame carries the marker bit.
func (s *videoSender) send(image EncodedImage, mtu uint) error {
	payloads := s.payloader.Payload(uint16(mtu-rtpOverhead), image.Data) //nolint:gosec // mtu is validated by SetPacketMTU
	if len(payloads) == 0 {
		return ErrEmptyFrame
	}

	timestamp := image.Timestamp * videoTimestampRate
	for i, payload := range payloads {
		header := rtp.Header{
			Version:        2,
			Marker:         i == len(payloads)-1,
			PayloadType:    s.payloadType,
			SequenceNumber: s.sequencer.NextSequenceNumber(),
			Timestamp:      timestamp,
			SSRC:           s.ssrc,
		}
		if _, err := s.writer.Write(&header, payload, interceptor.Attributes{}); err != nil {
			return err
		}
	}

	return nil
}
