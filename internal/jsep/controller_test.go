// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jsep

import (
	"context"
	"crypto/rand"
	"errors"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/p2p/internal/thread"
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/internal/transport/transporttest"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/rtp"
	"github.com/pion/srtp/v3"
	"github.com/pion/transport/v4/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testDigest = "AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99:" +
	"AA:BB:CC:DD:EE:FF:00:11:22:33:44:55:66:77:88:99"

type sdpOptions struct {
	bundle  bool
	rtcpMux bool
	setup   string
	ufrag   string
	pwd     string
	videoOn bool
}

func buildSDP(opts sdpOptions) string {
	lines := []string{"v=0", "o=- 1 2 IN IP4 127.0.0.1", "s=-", "t=0 0"}
	if opts.bundle {
		lines = append(lines, "a=group:BUNDLE audio video")
	}
	section := func(media, pt, codec string, port int) {
		lines = append(lines,
			"m="+media+" "+strconv.Itoa(port)+" UDP/TLS/RTP/SAVPF "+pt,
			"a=mid:"+media,
			"a=ice-ufrag:"+opts.ufrag+media,
			"a=ice-pwd:"+opts.pwd,
			"a=fingerprint:sha-256 "+testDigest,
			"a=setup:"+opts.setup,
			"a=sendrecv",
			"a=rtpmap:"+pt+" "+codec,
		)
		if opts.rtcpMux {
			lines = append(lines, "a=rtcp-mux")
		}
	}
	section("audio", "111", "opus/48000/2", 9)
	videoPort := 0
	if opts.videoOn {
		videoPort = 9
	}
	section("video", "107", "H264/90000", videoPort)

	return strings.Join(lines, "\r\n") + "\r\n"
}

func remoteDesc(t *testing.T, opts sdpOptions) *description.SessionDescription {
	t.Helper()

	if opts.ufrag == "" {
		opts.ufrag, opts.pwd = "remote", "remotepwdremotepwdremote"
	}
	if opts.setup == "" {
		opts.setup = "actpass"
	}
	parsed, err := description.Parse(buildSDP(opts), nil)
	require.NoError(t, err)

	return parsed.Description
}

func localDesc(t *testing.T, opts sdpOptions) *description.SessionDescription {
	t.Helper()

	if opts.ufrag == "" {
		opts.ufrag, opts.pwd = "local", "localpwdlocalpwdlocalpwd"
	}
	if opts.setup == "" {
		opts.setup = "active"
	}
	parsed, err := description.Parse(buildSDP(opts), nil)
	require.NoError(t, err)

	return parsed.Description
}

type harness struct {
	t          *testing.T
	network    *thread.Thread
	ice        *transporttest.IceFactory
	dtls       *transporttest.DtlsFactory
	controller *Controller
}

func newHarness(t *testing.T, policy RtcpMuxPolicy) *harness {
	t.Helper()

	loggerFactory := logging.NewDefaultLoggerFactory()
	h := &harness{
		t:       t,
		network: thread.New("network", loggerFactory),
		ice:     &transporttest.IceFactory{},
		dtls:    &transporttest.DtlsFactory{},
	}

	var err error
	h.controller, err = NewController(context.Background(), Config{
		NetworkThread:        h.network,
		IceTransportFactory:  h.ice,
		DtlsTransportFactory: h.dtls,
		RtcpMuxPolicy:        policy,
		LoggerFactory:        loggerFactory,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = h.controller.Close(context.Background())
		h.network.Stop()
	})

	return h
}

func (h *harness) negotiate(remote, local sdpOptions) {
	h.t.Helper()

	ctx := context.Background()
	require.NoError(h.t, h.controller.SetRemoteDescription(ctx, remoteDesc(h.t, remote)))
	require.NoError(h.t, h.controller.SetLocalDescription(ctx, localDesc(h.t, local), nil))
	h.network.Flush()
}

func testCertificate(t *testing.T) *transport.Certificate {
	t.Helper()

	cert, err := transport.GenerateCertificate(rand.Reader, time.Now(), time.Hour)
	require.NoError(t, err)

	return cert
}

func TestNewController_Config(t *testing.T) {
	_, err := NewController(context.Background(), Config{})
	assert.ErrorIs(t, err, ErrNoThread)

	network := thread.New("network", logging.NewDefaultLoggerFactory())
	defer network.Stop()
	_, err = NewController(context.Background(), Config{NetworkThread: network})
	assert.ErrorIs(t, err, ErrNoTransportFactory)

	controller, err := NewController(context.Background(), Config{
		NetworkThread:        network,
		IceTransportFactory:  &transporttest.IceFactory{},
		DtlsTransportFactory: &transporttest.DtlsFactory{},
	})
	require.NoError(t, err)

	role, err := controller.IceRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, transport.IceRoleControlled, role)

	states, err := controller.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, AggregateStates{
		IceConnection: IceConnectionStateNew,
		Connection:    PeerConnectionStateNew,
		IceGathering:  transport.IceGatheringStateNew,
	}, states)
}

func TestController_NilDescription(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)

	assert.ErrorIs(t, h.controller.SetRemoteDescription(context.Background(), nil), ErrNilDescription)
	assert.ErrorIs(t, h.controller.SetLocalDescription(context.Background(), nil, nil), ErrNilDescription)
	assert.ErrorIs(t, h.controller.SetLocalCertificate(context.Background(), nil), transport.ErrNoCertificate)
}

func TestController_Bundle(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	require.Len(t, h.ice.Transports(), 1, "bundled sections share one ice transport")
	require.Len(t, h.dtls.Transports(), 1)

	audio, err := h.controller.Transport(context.Background(), "audio")
	require.NoError(t, err)
	video, err := h.controller.Transport(context.Background(), "video")
	require.NoError(t, err)
	assert.Same(t, audio, video)
	assert.Equal(t, "audio", video.Name())
	assert.True(t, audio.RtcpMuxEnabled())

	_, err = h.controller.Transport(context.Background(), "data")
	assert.ErrorIs(t, err, ErrUnknownMid)
}

func TestController_WithoutBundle(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	require.Len(t, h.ice.Transports(), 2)
	assert.NotNil(t, h.ice.Get("audio", transport.ComponentRTP))
	assert.NotNil(t, h.ice.Get("video", transport.ComponentRTP))
}

func TestController_RtcpMuxNegotiate(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyNegotiate)
	h.negotiate(sdpOptions{bundle: true}, sdpOptions{bundle: true})

	require.Len(t, h.ice.Transports(), 2)
	assert.NotNil(t, h.ice.Get("audio", transport.ComponentRTP))
	assert.NotNil(t, h.ice.Get("audio", transport.ComponentRTCP))
	require.Len(t, h.dtls.Transports(), 2)

	rec, err := h.controller.Transport(context.Background(), "audio")
	require.NoError(t, err)
	assert.False(t, rec.RtcpMuxEnabled())

	stats, err := h.controller.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 2)
	assert.Equal(t, transport.ComponentRTP, stats[0].Component)
	assert.Equal(t, transport.ComponentRTCP, stats[1].Component)
}

func TestController_RtcpMuxRequireIgnoresOffer(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	h.negotiate(sdpOptions{bundle: true}, sdpOptions{bundle: true})

	require.Len(t, h.ice.Transports(), 1)
}

func TestController_Parameters(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	ctx := context.Background()
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}

	require.NoError(t, h.controller.SetRemoteDescription(ctx, remoteDesc(t, opts)))
	h.network.Flush()

	state, err := h.controller.TransportState(ctx, "audio")
	require.NoError(t, err)
	assert.Equal(t, TransportStateDtlsBound, state)

	ice := h.ice.Get("audio", transport.ComponentRTP)
	require.NotNil(t, ice)
	assert.Equal(t, description.IceParameters{Ufrag: "remoteaudio", Pwd: "remotepwdremotepwdremote"},
		ice.RemoteParameters())
	assert.False(t, ice.GatherRequested())

	dtls := h.dtls.Get("audio", transport.ComponentRTP)
	require.NotNil(t, dtls)
	require.NotNil(t, dtls.RemoteFingerprint())
	assert.Equal(t, testDigest, dtls.RemoteFingerprint().String())

	cert := testCertificate(t)
	require.NoError(t, h.controller.SetLocalDescription(ctx, localDesc(t, opts), cert))
	h.network.Flush()

	assert.Equal(t, description.IceParameters{Ufrag: "localaudio", Pwd: "localpwdlocalpwdlocalpwd"},
		ice.LocalParameters())
	assert.True(t, ice.GatherRequested())
	assert.Same(t, cert, dtls.Certificate())

	state, err = h.controller.TransportState(ctx, "video")
	require.NoError(t, err)
	assert.Equal(t, TransportStateGatheringStarted, state)
}

func TestController_CertificateReachesLaterTransports(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	cert := testCertificate(t)

	require.NoError(t, h.controller.SetLocalCertificate(context.Background(), cert))
	h.negotiate(sdpOptions{rtcpMux: true, videoOn: true}, sdpOptions{rtcpMux: true, videoOn: true})

	for _, d := range h.dtls.Transports() {
		assert.Same(t, cert, d.Certificate())
	}
}

func TestController_DtlsRole(t *testing.T) {
	for _, tc := range []struct {
		name        string
		remoteSetup string
		localSetup  string
		expected    transport.DtlsRole
	}{
		{"local active", "actpass", "active", transport.DtlsRoleClient},
		{"local passive", "actpass", "passive", transport.DtlsRoleServer},
		{"remote active", "active", "actpass", transport.DtlsRoleServer},
		{"remote passive", "passive", "actpass", transport.DtlsRoleClient},
		{"neither", "actpass", "actpass", transport.DtlsRoleClient},
	} {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, RtcpMuxPolicyRequire)
			h.negotiate(
				sdpOptions{bundle: true, rtcpMux: true, setup: tc.remoteSetup},
				sdpOptions{bundle: true, rtcpMux: true, setup: tc.localSetup},
			)

			dtls := h.dtls.Get("audio", transport.ComponentRTP)
			require.NotNil(t, dtls)
			assert.Equal(t, tc.expected, dtls.DtlsRole())
		})
	}
}

func TestController_RemoteCandidates(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	h.negotiate(sdpOptions{rtcpMux: true, videoOn: true}, sdpOptions{rtcpMux: true, videoOn: true})

	candidate, err := description.ParseCandidate("candidate:1 1 udp 2130706431 10.0.0.1 5000 typ host")
	require.NoError(t, err)

	forVideo := candidate
	forVideo.Mid = "video"
	unknown := candidate
	unknown.Mid = "data"
	require.NoError(t, h.controller.AddRemoteCandidates(forVideo, unknown, candidate))
	h.network.Flush()

	audio := h.ice.Get("audio", transport.ComponentRTP)
	video := h.ice.Get("video", transport.ComponentRTP)
	assert.Len(t, audio.RemoteCandidates(), 1, "only the candidate without mid")
	assert.Len(t, video.RemoteCandidates(), 2)
	assert.Equal(t, "video", video.RemoteCandidates()[0].Mid)
}

func TestController_BundledCandidateRouting(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	candidate, err := description.ParseCandidate("1 1 udp 2130706431 10.0.0.1 5000 typ host")
	require.NoError(t, err)
	candidate.Mid = "video"
	require.NoError(t, h.controller.AddRemoteCandidates(candidate))
	h.network.Flush()

	assert.Len(t, h.ice.Get("audio", transport.ComponentRTP).RemoteCandidates(), 1)
}

func TestController_CandidateGathered(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	gathered := make(chan description.Candidate, 1)
	h.controller.OnCandidateGathered(func(c description.Candidate) { gathered <- c })

	candidate, err := description.ParseCandidate("1 1 udp 2130706431 192.168.1.2 6000 typ host")
	require.NoError(t, err)
	h.ice.Get("audio", transport.ComponentRTP).Gather(candidate)
	h.network.Flush()

	select {
	case c := <-gathered:
		assert.Equal(t, "audio", c.Mid)
		assert.Equal(t, 6000, c.Port)
	default:
		require.FailNow(t, "candidate was not signaled")
	}
}

func TestController_RoleConflict(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	audio := h.ice.Get("audio", transport.ComponentRTP)
	video := h.ice.Get("video", transport.ComponentRTP)
	assert.Equal(t, transport.IceRoleControlled, audio.IceRole())

	audio.RoleConflict()
	video.RoleConflict()
	h.network.Flush()

	role, err := h.controller.IceRole(context.Background())
	require.NoError(t, err)
	assert.Equal(t, transport.IceRoleControlling, role, "only the first conflict reverses the role")
	assert.Equal(t, transport.IceRoleControlling, audio.IceRole())
	assert.Equal(t, transport.IceRoleControlling, video.IceRole())
}

type stateRecorder struct {
	mu         sync.Mutex
	ice        []IceConnectionState
	connection []PeerConnectionState
	gathering  []transport.IceGatheringState
}

func recordStates(c *Controller) *stateRecorder {
	r := &stateRecorder{}
	c.OnIceConnectionStateChange(func(s IceConnectionState) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.ice = append(r.ice, s)
	})
	c.OnConnectionStateChange(func(s PeerConnectionState) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.connection = append(r.connection, s)
	})
	c.OnGatheringStateChange(func(s transport.IceGatheringState) {
		r.mu.Lock()
		defer r.mu.Unlock()
		r.gathering = append(r.gathering, s)
	})

	return r
}

func (r *stateRecorder) snapshot() ([]IceConnectionState, []PeerConnectionState, []transport.IceGatheringState) {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]IceConnectionState(nil), r.ice...),
		append([]PeerConnectionState(nil), r.connection...),
		append([]transport.IceGatheringState(nil), r.gathering...)
}

func TestController_AggregateStatesAreEdgeTriggered(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)
	recorder := recordStates(h.controller)

	audioIce := h.ice.Get("audio", transport.ComponentRTP)
	videoIce := h.ice.Get("video", transport.ComponentRTP)
	audioDtls := h.dtls.Get("audio", transport.ComponentRTP)
	videoDtls := h.dtls.Get("video", transport.ComponentRTP)

	// every change is folded on the network thread before the next one
	for _, step := range []func(){
		func() { audioIce.SetGatheringState(transport.IceGatheringStateGathering) },
		func() { videoIce.SetGatheringState(transport.IceGatheringStateGathering) },
		func() { audioIce.SetState(transport.IceTransportStateChecking) },
		func() { audioIce.SetState(transport.IceTransportStateConnected) },
		func() { videoIce.SetState(transport.IceTransportStateChecking) },
		func() { videoIce.SetState(transport.IceTransportStateConnected) },
		func() { videoIce.SetState(transport.IceTransportStateConnected) },
		func() { audioIce.SetGatheringState(transport.IceGatheringStateComplete) },
		func() { videoIce.SetGatheringState(transport.IceGatheringStateComplete) },
		func() { audioDtls.SetState(transport.DtlsTransportStateConnecting) },
		func() { audioDtls.SetState(transport.DtlsTransportStateConnected) },
		func() { videoDtls.SetState(transport.DtlsTransportStateConnecting) },
		func() { videoDtls.SetState(transport.DtlsTransportStateConnected) },
	} {
		step()
		h.network.Flush()
	}

	iceStates, connectionStates, gatheringStates := recorder.snapshot()
	assert.Equal(t, []IceConnectionState{IceConnectionStateChecking, IceConnectionStateConnected}, iceStates)
	assert.Equal(t, []PeerConnectionState{PeerConnectionStateConnecting, PeerConnectionStateConnected}, connectionStates)
	assert.Equal(t, []transport.IceGatheringState{
		transport.IceGatheringStateGathering, transport.IceGatheringStateComplete,
	}, gatheringStates)

	videoIce.SetState(transport.IceTransportStateDisconnected)
	h.network.Flush()
	states, err := h.controller.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, IceConnectionStateDisconnected, states.IceConnection)
	assert.Equal(t, PeerConnectionStateDisconnected, states.Connection)

	videoIce.SetState(transport.IceTransportStateFailed)
	h.network.Flush()
	states, err = h.controller.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, IceConnectionStateFailed, states.IceConnection)
	assert.Equal(t, PeerConnectionStateFailed, states.Connection)

	state, err := h.controller.TransportState(context.Background(), "video")
	require.NoError(t, err)
	assert.Equal(t, TransportStateFailed, state)
}

func TestController_DtlsHandshakeError(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	errHandshake := errors.New("handshake")
	var (
		mu      sync.Mutex
		failed  string
		failErr error
	)
	h.controller.OnDtlsHandshakeError(func(name string, err error) {
		mu.Lock()
		defer mu.Unlock()
		failed, failErr = name, err
	})

	h.dtls.Get("audio", transport.ComponentRTP).Fail(errHandshake)
	h.network.Flush()

	mu.Lock()
	assert.Equal(t, "audio", failed)
	assert.ErrorIs(t, failErr, errHandshake)
	mu.Unlock()

	state, err := h.controller.TransportState(context.Background(), "video")
	require.NoError(t, err)
	assert.Equal(t, TransportStateFailed, state)

	states, err := h.controller.States(context.Background())
	require.NoError(t, err)
	assert.Equal(t, PeerConnectionStateFailed, states.Connection)
}

var (
	keyA  = []byte{0xe1, 0xf9, 0x7a, 0x0d, 0x3e, 0x01, 0x8b, 0xe0, 0xd6, 0x4f, 0xa3, 0x2c, 0x06, 0xde, 0x41, 0x39}
	saltA = []byte{0x0e, 0xc6, 0x75, 0xad, 0x49, 0x8a, 0xfe, 0xeb, 0xb6, 0x96, 0x0b, 0x3a, 0xab, 0xe6}
	keyB  = []byte{0x4c, 0x1a, 0xa4, 0x5a, 0x81, 0x44, 0x22, 0x9e, 0x7f, 0x2b, 0x6e, 0x7c, 0xa1, 0x3d, 0x11, 0x90}
	saltB = []byte{0x7a, 0x55, 0x21, 0x0c, 0x9d, 0xe4, 0x31, 0xbb, 0x02, 0x18, 0x6c, 0x44, 0x5f, 0x93}
)

func srtpConfig(localKey, localSalt, remoteKey, remoteSalt []byte) *srtp.Config {
	return &srtp.Config{
		Keys: srtp.SessionKeys{
			LocalMasterKey:   localKey,
			LocalMasterSalt:  localSalt,
			RemoteMasterKey:  remoteKey,
			RemoteMasterSalt: remoteSalt,
		},
		Profile: srtp.ProtectionProfileAes128CmHmacSha1_80,
	}
}

func TestController_WritableAndMedia(t *testing.T) {
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	rtpLocal, rtpRemote := net.Pipe()
	rtcpLocal, rtcpRemote := net.Pipe()
	remote := transport.NewDtlsSrtpTransport(true, logging.NewDefaultLoggerFactory())
	defer func() { assert.NoError(t, remote.Close()) }()
	remoteReceived := make(chan []byte, 1)
	remote.OnRtpPacket(func(p []byte) { remoteReceived <- p })

	ready := make(chan bool, 2)
	h.controller.OnReadyToSend(func(name string, r bool) {
		assert.Equal(t, "audio", name)
		ready <- r
	})
	localReceived := make(chan []byte, 1)
	h.controller.OnRtpPacket(func(name string, p []byte) {
		assert.Equal(t, "audio", name)
		localReceived <- p
	})
	sent := make(chan transport.SentPacket, 1)
	h.controller.OnSentPacket(func(_ string, p transport.SentPacket) { sent <- p })

	dtls := h.dtls.Get("audio", transport.ComponentRTP)
	dtls.SetSrtp(srtpConfig(keyA, saltA, keyB, saltB), rtpLocal, rtcpLocal)
	require.NoError(t, remote.StartSrtp(
		srtpConfig(keyB, saltB, keyA, saltA), rtpRemote,
		srtpConfig(keyB, saltB, keyA, saltA), rtcpRemote,
	))
	dtls.SetState(transport.DtlsTransportStateConnected)
	h.network.Flush()

	assert.True(t, <-ready)
	state, err := h.controller.TransportState(context.Background(), "video")
	require.NoError(t, err)
	assert.Equal(t, TransportStateWritable, state)

	packet, err := (&rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 107, SequenceNumber: 7, Timestamp: 90, SSRC: 1234},
		Payload: []byte{0x01, 0x02, 0x03},
	}).Marshal()
	require.NoError(t, err)

	require.NoError(t, h.controller.SendRtpPacket("video", packet, transport.PacketOptions{PacketID: 42}))
	select {
	case p := <-remoteReceived:
		assert.Equal(t, packet, p)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "remote did not receive the packet")
	}
	select {
	case p := <-sent:
		assert.Equal(t, int64(42), p.PacketID)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "sent packet was not signaled")
	}

	require.NoError(t, remote.SendRtpPacket(packet, transport.PacketOptions{PacketID: transport.NoPacketID}))
	select {
	case p := <-localReceived:
		assert.Equal(t, packet, p)
	case <-time.After(5 * time.Second):
		require.FailNow(t, "controller did not deliver the packet")
	}

	stats, err := h.controller.Stats(context.Background())
	require.NoError(t, err)
	require.Len(t, stats, 1)
	assert.Equal(t, "AES_CM_128_HMAC_SHA1_80", stats[0].SrtpProfile)
	assert.Equal(t, uint64(1), stats[0].Sent.Packets)
}

func TestController_RejectedSectionReleasesTransport(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	video := h.ice.Get("video", transport.ComponentRTP)
	require.NotNil(t, video)

	rejected := sdpOptions{rtcpMux: true}
	require.NoError(t, h.controller.SetRemoteDescription(context.Background(), remoteDesc(t, rejected)))
	h.network.Flush()

	assert.True(t, video.Closed())
	assert.True(t, h.dtls.Get("video", transport.ComponentRTP).Closed())
	assert.False(t, h.ice.Get("audio", transport.ComponentRTP).Closed())

	_, err := h.controller.Transport(context.Background(), "video")
	assert.ErrorIs(t, err, ErrUnknownMid)
}

func TestController_RejectedBundledSectionKeepsTransport(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{bundle: true, rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)

	rejected := sdpOptions{bundle: true, rtcpMux: true}
	require.NoError(t, h.controller.SetRemoteDescription(context.Background(), remoteDesc(t, rejected)))
	h.network.Flush()

	assert.False(t, h.ice.Get("audio", transport.ComponentRTP).Closed())
	_, err := h.controller.Transport(context.Background(), "audio")
	assert.NoError(t, err)
}

func TestController_Close(t *testing.T) {
	h := newHarness(t, RtcpMuxPolicyRequire)
	opts := sdpOptions{rtcpMux: true, videoOn: true}
	h.negotiate(opts, opts)
	recorder := recordStates(h.controller)

	require.NoError(t, h.controller.Close(context.Background()))
	for _, ice := range h.ice.Transports() {
		assert.True(t, ice.Closed())
	}
	for _, dtls := range h.dtls.Transports() {
		assert.True(t, dtls.Closed())
	}

	iceStates, connectionStates, _ := recorder.snapshot()
	assert.Equal(t, []IceConnectionState{IceConnectionStateClosed}, iceStates)
	assert.Equal(t, []PeerConnectionState{PeerConnectionStateClosed}, connectionStates)

	assert.NoError(t, h.controller.Close(context.Background()))
	assert.ErrorIs(t, h.controller.SetRemoteDescription(context.Background(), remoteDesc(t, opts)),
		ErrControllerClosed)
	assert.ErrorIs(t, h.controller.SendRtpPacket("audio", []byte{0x80}, transport.PacketOptions{}),
		ErrControllerClosed)
	assert.ErrorIs(t, h.controller.AddRemoteCandidates(), ErrControllerClosed)
}
