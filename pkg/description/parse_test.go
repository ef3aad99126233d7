// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = "AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99:" +
	"AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99"

func crlf(lines ...string) string {
	return strings.Join(lines, "\r\n") + "\r\n"
}

func TestParse_MinimalOffer(t *testing.T) {
	raw := crlf(
		"v=0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=ice-ufrag:abc",
		"a=ice-pwd:defdefdefdefdefdefdef",
		"a=fingerprint:sha-256 "+testDigest,
		"m=video 9 UDP/TLS/RTP/SAVPF 107",
	)

	parsed, err := Parse(raw, nil)
	require.NoError(t, err)

	desc := parsed.Description
	require.Len(t, desc.Contents, 2)
	require.Len(t, desc.TransportInfos, 2)

	audio := desc.TransportInfoByName("audio")
	require.NotNil(t, audio)
	assert.Equal(t, "abc", audio.Description.IceUfrag)
	assert.Equal(t, "defdefdefdefdefdefdef", audio.Description.IcePwd)
	require.NotNil(t, audio.Description.Fingerprint)
	assert.Equal(t, "sha-256", audio.Description.Fingerprint.Algorithm)
	assert.Len(t, audio.Description.Fingerprint.Digest, 32)
	assert.Equal(t, testDigest, audio.Description.Fingerprint.String())

	video := desc.TransportInfoByName("video")
	require.NotNil(t, video)
	assert.False(t, video.Description.HasIceCredentials())

	assert.Equal(t, 107, parsed.VideoPayloadType)
	assert.Equal(t, MediaTypeAudio, desc.Contents[0].MediaType())
	assert.Equal(t, MediaTypeVideo, desc.Contents[1].MediaType())
	assert.False(t, desc.Contents[0].Rejected)
	assert.False(t, desc.Contents[1].Rejected)
}

func TestParse_LineEndings(t *testing.T) {
	lines := []string{
		"v=0",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=ice-ufrag:abc",
		"a=ice-pwd:secretsecretsecretsecret",
	}

	for name, raw := range map[string]string{
		"lf":   strings.Join(lines, "\n"),
		"crlf": strings.Join(lines, "\r\n"),
	} {
		parsed, err := Parse(raw, nil)
		require.NoError(t, err, name)
		info := parsed.Description.TransportInfoByName("audio")
		require.NotNil(t, info, name)
		assert.Equal(t, "abc", info.Description.IceUfrag, name)
		assert.Equal(t, "secretsecretsecretsecret", info.Description.IcePwd, name)
	}
}

func TestParse_MissingSectionIsRejected(t *testing.T) {
	parsed, err := Parse(crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111"), nil)
	require.NoError(t, err)

	desc := parsed.Description
	require.Len(t, desc.Contents, 2)
	assert.False(t, desc.Contents[0].Rejected)
	assert.True(t, desc.Contents[1].Rejected)
	assert.Equal(t, "video", desc.Contents[1].Name)
	assert.Equal(t, -1, parsed.VideoPayloadType)
}

func TestParse_Errors(t *testing.T) {
	for _, test := range []struct {
		name string
		raw  string
		err  error
	}{
		{"empty", "", ErrEmptyDescription},
		{"blank", " \r\n ", ErrEmptyDescription},
		{"short media line", crlf("v=0", "m=audio 9"), ErrMalformedMediaLine},
		{"bad payload type", crlf("v=0", "m=video 9 RTP/AVP x"), ErrMalformedMediaLine},
		{
			"seven field candidate",
			crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=candidate:1 1 udp 2130706431 10.0.0.1 5000 typ"),
			ErrMalformedCandidate,
		},
		{
			"unparsable candidate",
			crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=candidate:1 1 udp notanumber 10.0.0.1 5000 typ host"),
			ErrMalformedCandidate,
		},
		{
			"fingerprint without digest",
			crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=fingerprint:sha-256"),
			ErrMalformedFingerprint,
		},
		{
			"fingerprint short digest",
			crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=fingerprint:sha-256 AA:BB"),
			ErrMalformedFingerprint,
		},
		{
			"fingerprint bad hex",
			crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=fingerprint:sha-256 ZZ:BB"),
			ErrMalformedFingerprint,
		},
		{
			"fingerprint unknown algorithm",
			crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=fingerprint:whirlpool AA:BB"),
			ErrUnsupportedFingerprint,
		},
		{"empty ufrag", crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=ice-ufrag:"), ErrMalformedAttribute},
		{"bad setup", crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=setup:maybe"), ErrMalformedAttribute},
		{"bad rtpmap", crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=rtpmap:111 opus"), ErrMalformedAttribute},
	} {
		parsed, err := Parse(test.raw, nil)
		assert.ErrorIs(t, err, test.err, test.name)
		assert.Nil(t, parsed, test.name)
	}
}

func TestParse_FingerprintAlgorithmIsLowercased(t *testing.T) {
	parsed, err := Parse(crlf("v=0", "m=audio 9 UDP/TLS/RTP/SAVPF 111", "a=fingerprint:SHA-256 "+testDigest), nil)
	require.NoError(t, err)

	fp := parsed.Description.TransportInfos[0].Description.Fingerprint
	require.NotNil(t, fp)
	assert.Equal(t, "sha-256", fp.Algorithm)
}

func TestParse_Candidates(t *testing.T) {
	raw := crlf(
		"v=0",
		"a=group:BUNDLE 0 1",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=mid:0",
		"a=candidate:1 1 udp 2130706431 192.168.1.10 54321 typ host",
		"m=video 9 UDP/TLS/RTP/SAVPF 96",
		"a=candidate:2 1 udp 1694498815 203.0.113.7 60000 typ srflx raddr 192.168.1.10 rport 54322",
		"a=mid:1",
	)

	parsed, err := Parse(raw, nil)
	require.NoError(t, err)
	require.Len(t, parsed.Candidates, 2)

	host := parsed.Candidates[0]
	assert.Equal(t, "0", host.Mid)
	assert.Equal(t, "1", host.Foundation)
	assert.Equal(t, uint16(1), host.Component)
	assert.Equal(t, "udp", host.Protocol)
	assert.Equal(t, uint32(2130706431), host.Priority)
	assert.Equal(t, "192.168.1.10", host.Address)
	assert.Equal(t, 54321, host.Port)
	assert.Equal(t, "host", host.Type)

	// a=mid after the candidate still names its section
	srflx := parsed.Candidates[1]
	assert.Equal(t, "1", srflx.Mid)
	assert.Equal(t, "srflx", srflx.Type)

	_, err = srflx.ICE()
	assert.NoError(t, err)

	bundle := parsed.Description.GroupByName(GroupBundle)
	require.NotNil(t, bundle)
	assert.Equal(t, []string{"0", "1"}, bundle.ContentNames)
	assert.Equal(t, 96, parsed.VideoPayloadType)
}

func TestParse_MediaAttributes(t *testing.T) {
	raw := crlf(
		"v=0",
		"o=- 0 2 IN IP4 127.0.0.1",
		"a=ice-ufrag:sess",
		"a=ice-pwd:sessionpasswordsessionpwd",
		"m=audio 9 UDP/TLS/RTP/SAVPF 111",
		"a=mid:a",
		"a=sendonly",
		"a=rtcp-mux",
		"a=setup:actpass",
		"a=extmap:3/sendrecv http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01",
		"a=rtpmap:111 opus/48000/2",
		"a=rtcp-fb:111 transport-cc",
		"a=fmtp:111 minptime=10;useinbandfec=1",
		"m=video 9 UDP/TLS/RTP/SAVPF 107 99",
		"a=mid:v",
		"a=ice-ufrag:vid",
		"a=ice-pwd:videopasswordvideopassword",
		"a=rtpmap:107 H264/90000",
		"a=rtcp-fb:107 nack pli",
		"a=rtcp-fb:* nack",
		"a=rtpmap:99 rtx/90000",
		"a=fmtp:99 apt=107",
		"a=ssrc-group:FID 1111 2222",
		"a=ssrc:1111 cname:cn",
		"a=ssrc:1111 msid:stream track",
		"a=ssrc:2222 cname:cn",
		"a=ssrc:2222 msid:stream track",
		"m=application 9 UDP/DTLS/SCTP webrtc-datachannel",
		"a=mid:data",
	)

	parsed, err := Parse(raw, nil)
	require.NoError(t, err)
	desc := parsed.Description
	require.Len(t, desc.Contents, 2)

	audio := desc.ContentByName("a")
	require.NotNil(t, audio)
	am := audio.Media()
	assert.Equal(t, DirectionSendOnly, am.Direction)
	assert.True(t, am.RtcpMux)
	require.Len(t, am.Codecs, 1)
	opus := am.Codecs[0]
	assert.Equal(t, "opus", opus.Name)
	assert.Equal(t, uint32(48000), opus.ClockRate)
	assert.Equal(t, uint16(2), opus.Channels)
	assert.Equal(t, []Feedback{{Type: "transport-cc"}}, opus.Feedback)
	assert.Equal(t, []Param{{"minptime", "10"}, {"useinbandfec", "1"}}, opus.Params)
	id, ok := am.ExtensionID("http://www.ietf.org/id/draft-holmer-rmcat-transport-wide-cc-extensions-01")
	assert.True(t, ok)
	assert.Equal(t, 3, id)

	// session level credentials are section defaults
	audioTransport := desc.TransportInfoByName("a")
	require.NotNil(t, audioTransport)
	assert.Equal(t, "sess", audioTransport.Description.IceUfrag)
	assert.Equal(t, ConnectionRoleActpass, audioTransport.Description.ConnectionRole)
	assert.Equal(t, "vid", desc.TransportInfoByName("v").Description.IceUfrag)

	vm := desc.ContentByName("v").Media()
	require.Len(t, vm.Codecs, 2)
	h264, ok := vm.CodecByName("h264")
	require.True(t, ok)
	assert.Equal(t, []Feedback{{Type: "nack", Parameter: "pli"}, {Type: "nack"}}, h264.Feedback)
	rtx, ok := vm.Codec(99)
	require.True(t, ok)
	assert.True(t, rtx.IsRTX())
	apt, _ := rtx.Param(RtxAptParam)
	assert.Equal(t, "107", apt)

	require.Len(t, vm.Streams, 1)
	stream := vm.Streams[0]
	assert.Equal(t, []uint32{1111, 2222}, stream.Ssrcs)
	assert.Equal(t, "cn", stream.Cname)
	assert.Equal(t, []string{"stream"}, stream.StreamIDs)
	assert.Equal(t, "track", stream.ID)
	fid, ok := stream.FidSsrc(1111)
	assert.True(t, ok)
	assert.Equal(t, uint32(2222), fid)

	assert.NoError(t, desc.Validate())
}

func TestParse_RejectedPort(t *testing.T) {
	parsed, err := Parse(crlf("v=0", "m=audio 0 UDP/TLS/RTP/SAVPF 111", "m=video 9 UDP/TLS/RTP/SAVPF 96"), nil)
	require.NoError(t, err)
	assert.True(t, parsed.Description.Contents[0].Rejected)
	assert.Len(t, parsed.Description.ActiveContents(), 1)
}
