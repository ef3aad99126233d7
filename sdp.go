// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"strconv"

	"github.com/google/uuid"
	"github.com/pion/p2p/internal/fmtp"
	"github.com/pion/p2p/internal/util"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/randutil"
	"github.com/pion/sdp/v3"
)

const (
	defaultAudioMid = "audio"
	defaultVideoMid = "video"

	opusPayloadType = 111
	h264PayloadType = 107
	rtxPayloadType  = 99

	minDynamicPayloadType = 96
	maxDynamicPayloadType = 127

	opusClockRate  = 48000
	opusChannels   = 2
	videoClockRate = 90000

	transportCCExtensionID = 3

	mimeTypeH264 = "video/H264"

	cnameLength = 16
)

// answerParams is everything an answer is built from.
type answerParams struct {
	options     AnswerOptions
	streamID    string
	remote      *description.SessionDescription
	ice         description.IceParameters
	fingerprint *description.Fingerprint
	cname       string
	random      randutil.MathRandomGenerator
}

func videoFeedback() []description.Feedback {
	return []description.Feedback{
		{Type: "goog-remb"},
		{Type: "transport-cc"},
		{Type: "ccm", Parameter: "fir"},
		{Type: "nack"},
		{Type: "nack", Parameter: "pli"},
	}
}

// remoteMid returns the name of the remote section of kind t, fallback
// when the remote has none.
func remoteMid(remote *description.SessionDescription, t description.MediaType, fallback string) string {
	if remote == nil {
		return fallback
	}
	if content := remote.FirstContentByType(t); content != nil && content.Name != "" {
		return content.Name
	}

	return fallback
}

// remoteMedia returns the first remote section of kind t, nil when there is
// none.
func remoteMedia(remote *description.SessionDescription, t description.MediaType) *description.MediaDescription {
	if remote == nil {
		return nil
	}
	content := remote.FirstContentByType(t)
	if content == nil {
		return nil
	}

	return content.Media()
}

// freePayloadType returns preferred unless taken or a remote codec already
// use it, then the lowest unused dynamic id. Remote ids without an rtpmap
// do not count.
func freePayloadType(media *description.MediaDescription, preferred uint8, taken ...uint8) uint8 {
	used := map[uint8]bool{}
	for _, id := range taken {
		used[id] = true
	}
	if media != nil {
		for _, codec := range media.Codecs {
			if codec.Name != "" {
				used[codec.ID] = true
			}
		}
	}
	if !used[preferred] {
		return preferred
	}
	for id := minDynamicPayloadType; id <= maxDynamicPayloadType; id++ {
		if !used[uint8(id)] {
			return uint8(id)
		}
	}

	return preferred
}

// remotePayloadType returns the id of the remote codec compatible with
// local. Without one the id of local is kept if the remote section does
// not use it for something else.
func remotePayloadType(remote *description.SessionDescription, t description.MediaType,
	local description.Codec,
) uint8 {
	media := remoteMedia(remote, t)
	if media == nil {
		return local.ID
	}
	want := fmtp.FromCodec(t, &local)
	for i := range media.Codecs {
		codec := &media.Codecs[i]
		if fmtp.FromCodec(t, codec).Match(want) {
			return codec.ID
		}
	}

	return freePayloadType(media, local.ID)
}

// remoteRtxPayloadType returns the remote rtx id paired with primary, or a
// free id when the remote does not offer rtx for it.
func remoteRtxPayloadType(remote *description.SessionDescription, primary uint8) uint8 {
	media := remoteMedia(remote, description.MediaTypeVideo)
	if media == nil {
		return freePayloadType(nil, rtxPayloadType, primary)
	}
	for i := range media.Codecs {
		codec := &media.Codecs[i]
		if !codec.IsRTX() {
			continue
		}
		if apt, ok := codec.Param(description.RtxAptParam); ok && apt == strconv.Itoa(int(primary)) {
			return codec.ID
		}
	}

	return freePayloadType(media, rtxPayloadType, primary)
}

// answerConnectionRole answers actpass and passive remotes with active.
func answerConnectionRole(remote *description.SessionDescription, mid string) description.ConnectionRole {
	if remote == nil {
		return description.ConnectionRoleActive
	}
	if info := remote.TransportInfoByName(mid); info != nil &&
		info.Description.ConnectionRole == description.ConnectionRoleActive {
		return description.ConnectionRolePassive
	}

	return description.ConnectionRoleActive
}

func buildAnswer(params answerParams) (*description.SessionDescription, error) {
	opts := params.options
	if !opts.hasAudio() && !opts.hasVideo() {
		return nil, ErrNoMediaSections
	}

	desc := &description.SessionDescription{}
	var mids []string

	if opts.hasAudio() {
		mid := remoteMid(params.remote, description.MediaTypeAudio, defaultAudioMid)
		audio := description.NewAudioContentDescription()
		audio.Direction = description.DirectionFromFlags(opts.SendAudio, opts.RecvAudio)
		audio.RtcpMux = opts.UseRtcpMux
		opus := description.Codec{
			ID:        opusPayloadType,
			Name:      "opus",
			ClockRate: opusClockRate,
			Channels:  opusChannels,
			Params:    []description.Param{{Key: "minptime", Value: "10"}, {Key: "useinbandfec", Value: "1"}},
			Feedback:  []description.Feedback{{Type: "transport-cc"}},
		}
		opus.ID = remotePayloadType(params.remote, description.MediaTypeAudio, opus)
		audio.AddCodec(opus)
		audio.Extensions = []description.RtpExtension{{ID: transportCCExtensionID, URI: sdp.TransportCCURI}}
		if opts.SendAudio {
			audio.AddStream(description.StreamParams{
				ID:        uuid.NewString(),
				Cname:     params.cname,
				StreamIDs: []string{params.streamID},
				Ssrcs:     []uint32{util.RandSSRC(params.random)},
			})
		}
		desc.AddContent(mid, description.ProtocolRTP, audio)
		mids = append(mids, mid)
	}

	if opts.hasVideo() {
		mid := remoteMid(params.remote, description.MediaTypeVideo, defaultVideoMid)
		video := description.NewVideoContentDescription()
		video.Direction = description.DirectionFromFlags(opts.SendVideo, opts.RecvVideo)
		video.RtcpMux = opts.UseRtcpMux
		codec := description.Codec{
			ID:        h264PayloadType,
			Name:      "H264",
			ClockRate: videoClockRate,
			Params: []description.Param{
				{Key: "level-asymmetry-allowed", Value: "1"},
				{Key: "packetization-mode", Value: "1"},
				{Key: "profile-level-id", Value: "42e01f"},
			},
			Feedback: videoFeedback(),
		}
		codec.ID = remotePayloadType(params.remote, description.MediaTypeVideo, codec)
		h264 := codec.ID
		video.AddCodec(codec)
		video.AddCodec(description.Codec{
			ID:        remoteRtxPayloadType(params.remote, h264),
			Name:      description.RtxCodecName,
			ClockRate: videoClockRate,
			Params:    []description.Param{{Key: description.RtxAptParam, Value: strconv.Itoa(int(h264))}},
		})
		video.Extensions = []description.RtpExtension{{ID: transportCCExtensionID, URI: sdp.TransportCCURI}}
		if opts.SendVideo {
			ssrc := util.RandSSRC(params.random)
			rtxSsrc := util.RandSSRC(params.random)
			for rtxSsrc == ssrc {
				rtxSsrc = util.RandSSRC(params.random)
			}
			video.AddStream(description.StreamParams{
				ID:        uuid.NewString(),
				Cname:     params.cname,
				StreamIDs: []string{params.streamID},
				Ssrcs:     []uint32{ssrc, rtxSsrc},
				SsrcGroups: []description.SsrcGroup{
					{Semantics: description.SsrcGroupFID, Ssrcs: []uint32{ssrc, rtxSsrc}},
				},
			})
		}
		desc.AddContent(mid, description.ProtocolRTP, video)
		mids = append(mids, mid)
	}

	for _, mid := range mids {
		desc.AddTransportInfo(description.TransportInfo{
			ContentName: mid,
			Description: description.TransportDescription{
				IceUfrag:       params.ice.Ufrag,
				IcePwd:         params.ice.Pwd,
				Fingerprint:    params.fingerprint,
				ConnectionRole: answerConnectionRole(params.remote, mid),
			},
		})
	}
	if opts.UseRtpMux {
		desc.AddGroup(description.ContentGroup{Semantics: description.GroupBundle, ContentNames: mids})
	}

	return desc, nil
}

// localSsrcs returns every SSRC the description sends on.
func localSsrcs(desc *description.SessionDescription) []uint32 {
	var ssrcs []uint32
	for _, content := range desc.ActiveContents() {
		if content.Media() == nil {
			continue
		}
		for _, stream := range content.Media().Streams {
			ssrcs = append(ssrcs, stream.Ssrcs...)
		}
	}

	return ssrcs
}
