// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport_test

import (
	"net"
	"testing"
	"time"

	"github.com/pion/logging"
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/internal/transport/transporttest"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
	"github.com/pion/srtp/v3"
	"github.com/pion/transport/v4/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

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

func rtpPacket(t *testing.T, ssrc uint32) []byte {
	t.Helper()

	raw, err := (&rtp.Packet{
		Header:  rtp.Header{Version: 2, PayloadType: 107, SequenceNumber: 100, Timestamp: 9000, SSRC: ssrc},
		Payload: []byte{0xde, 0xad, 0xbe, 0xef},
	}).Marshal()
	require.NoError(t, err)

	return raw
}

func rtcpPacket(t *testing.T, ssrc uint32) []byte {
	t.Helper()

	raw, err := rtcp.Marshal([]rtcp.Packet{&rtcp.PictureLossIndication{SenderSSRC: ssrc, MediaSSRC: ssrc + 1}})
	require.NoError(t, err)

	return raw
}

func receive(t *testing.T, ch <-chan []byte) []byte {
	t.Helper()

	select {
	case p := <-ch:
		return p
	case <-time.After(5 * time.Second):
		require.FailNow(t, "timed out waiting for packet")
	}

	return nil
}

func TestDtlsSrtpTransport_StartSrtp(t *testing.T) {
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	loggerFactory := logging.NewDefaultLoggerFactory()
	rtpA, rtpB := net.Pipe()
	rtcpA, rtcpB := net.Pipe()

	sideA := transport.NewDtlsSrtpTransport(false, loggerFactory)
	sideB := transport.NewDtlsSrtpTransport(false, loggerFactory)

	rtpReceived := make(chan []byte, 1)
	rtcpReceived := make(chan []byte, 1)
	sideB.OnRtpPacket(func(p []byte) { rtpReceived <- p })
	sideB.OnRtcpPacket(func(p []byte) { rtcpReceived <- p })

	assert.False(t, sideA.IsReadyToSend())
	require.NoError(t, sideA.StartSrtp(
		srtpConfig(keyA, saltA, keyB, saltB), rtpA,
		srtpConfig(keyA, saltA, keyB, saltB), rtcpA,
	))
	require.NoError(t, sideB.StartSrtp(
		srtpConfig(keyB, saltB, keyA, saltA), rtpB,
		srtpConfig(keyB, saltB, keyA, saltA), rtcpB,
	))
	assert.True(t, sideA.IsReadyToSend())
	assert.True(t, sideA.IsSrtpActive())

	sentRTP := rtpPacket(t, 5000)
	require.NoError(t, sideA.SendRtpPacket(sentRTP, transport.PacketOptions{PacketID: transport.NoPacketID}))
	assert.Equal(t, sentRTP, receive(t, rtpReceived))

	sentRTCP := rtcpPacket(t, 5000)
	require.NoError(t, sideA.SendRtcpPacket(sentRTCP, transport.PacketOptions{PacketID: transport.NoPacketID}))
	assert.Equal(t, sentRTCP, receive(t, rtcpReceived))

	assert.NoError(t, sideA.Close())
	assert.NoError(t, sideB.Close())
	assert.ErrorIs(t, sideA.StartSrtp(nil, nil, nil, nil), transport.ErrTransportClosed)
}

func TestDtlsSrtpTransport_WaitsForDtls(t *testing.T) {
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	loggerFactory := logging.NewDefaultLoggerFactory()
	rtpConn, rtpRemote := net.Pipe()
	rtcpConn, rtcpRemote := net.Pipe()
	defer func() {
		_ = rtpRemote.Close()
		_ = rtcpRemote.Close()
	}()

	rtpDtls := transporttest.NewDtlsTransport(
		transporttest.NewIceTransport("0", transport.ComponentRTP, transport.IceRoleControlling))
	rtcpDtls := transporttest.NewDtlsTransport(
		transporttest.NewIceTransport("0", transport.ComponentRTCP, transport.IceRoleControlling))
	rtpDtls.SetSrtp(srtpConfig(keyA, saltA, keyB, saltB), rtpConn, nil)
	rtcpDtls.SetSrtp(srtpConfig(keyA, saltA, keyB, saltB), nil, rtcpConn)

	srtpTransport := transport.NewDtlsSrtpTransport(false, loggerFactory)
	srtpTransport.SetDtlsTransports(rtpDtls, rtcpDtls)
	assert.False(t, srtpTransport.IsSrtpActive())

	rtpDtls.SetState(transport.DtlsTransportStateConnected)
	assert.False(t, srtpTransport.IsSrtpActive(), "rtcp dtls is not connected yet")

	rtcpDtls.SetState(transport.DtlsTransportStateConnected)
	assert.True(t, srtpTransport.IsSrtpActive())
	assert.True(t, srtpTransport.IsReadyToSend())
	assert.Equal(t, "AES_CM_128_HMAC_SHA1_80", srtpTransport.SrtpProfile())

	assert.NoError(t, srtpTransport.Close())
}

func TestDtlsSrtpTransport_CloseWithInboundStreams(t *testing.T) {
	lim := test.TimeOut(time.Second * 20)
	defer lim.Stop()

	report := test.CheckRoutines(t)
	defer report()

	loggerFactory := logging.NewDefaultLoggerFactory()
	rtpA, rtpB := net.Pipe()
	rtcpA, rtcpB := net.Pipe()

	sideA := transport.NewDtlsSrtpTransport(false, loggerFactory)
	sideB := transport.NewDtlsSrtpTransport(false, loggerFactory)

	rtpReceived := make(chan []byte, 1)
	rtcpReceived := make(chan []byte, 1)
	sideB.OnRtpPacket(func(p []byte) { rtpReceived <- p })
	sideB.OnRtcpPacket(func(p []byte) { rtcpReceived <- p })

	require.NoError(t, sideA.StartSrtp(
		srtpConfig(keyA, saltA, keyB, saltB), rtpA,
		srtpConfig(keyA, saltA, keyB, saltB), rtcpA,
	))
	require.NoError(t, sideB.StartSrtp(
		srtpConfig(keyB, saltB, keyA, saltA), rtpB,
		srtpConfig(keyB, saltB, keyA, saltA), rtcpB,
	))

	require.NoError(t, sideA.SendRtpPacket(rtpPacket(t, 6000), transport.PacketOptions{PacketID: transport.NoPacketID}))
	receive(t, rtpReceived)
	require.NoError(t, sideA.SendRtcpPacket(rtcpPacket(t, 6000), transport.PacketOptions{PacketID: transport.NoPacketID}))
	receive(t, rtcpReceived)

	// sideB has accepted one srtp and one srtcp read stream
	closed := make(chan error, 1)
	go func() {
		closed <- sideB.Close()
	}()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		require.FailNow(t, "Close blocked on inbound read streams")
	}

	assert.NoError(t, sideA.Close())
}
