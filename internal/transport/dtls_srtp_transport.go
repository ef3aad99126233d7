// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"io"
	"net"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/p2p/internal/util"
	"github.com/pion/srtp/v3"
)

// receiveMTU is the largest packet read from a stream.
const receiveMTU = 1460

// DtlsSrtpTransport is an RtpTransport whose packets are protected with
// keys exported from DTLS transports. Until every required DTLS transport
// is connected nothing can be sent.
type DtlsSrtpTransport struct {
	*RtpTransport

	mu           sync.Mutex
	rtpDtls      DtlsTransport
	rtcpDtls     DtlsTransport
	srtpSession  *srtp.SessionSRTP
	srtcpSession *srtp.SessionSRTCP
	profile      string
	isClosed     bool
	readers      sync.WaitGroup
	// streams are the accepted read streams, closed before readers is
	// waited on
	streams []io.Closer

	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger
}

// NewDtlsSrtpTransport creates a transport without DTLS transports.
func NewDtlsSrtpTransport(rtcpMuxEnabled bool, loggerFactory logging.LoggerFactory) *DtlsSrtpTransport {
	return &DtlsSrtpTransport{
		RtpTransport:  NewRtpTransport(rtcpMuxEnabled, loggerFactory),
		loggerFactory: loggerFactory,
		log:           loggerFactory.NewLogger("srtp"),
	}
}

// SetDtlsTransports binds the RTP and the optional RTCP DTLS transport. SRTP
// is set up as soon as they are connected.
func (t *DtlsSrtpTransport) SetDtlsTransports(rtpDtls, rtcpDtls DtlsTransport) {
	t.mu.Lock()
	t.rtpDtls, t.rtcpDtls = rtpDtls, rtcpDtls
	t.mu.Unlock()

	for _, d := range []DtlsTransport{rtpDtls, rtcpDtls} {
		if d == nil {
			continue
		}
		d.OnStateChange(func(_ DtlsTransport, state DtlsTransportState) {
			if state == DtlsTransportStateConnected {
				t.maybeSetupSrtp()
			}
		})
	}
	t.maybeSetupSrtp()
}

// IsSrtpActive reports whether the SRTP sessions are running.
func (t *DtlsSrtpTransport) IsSrtpActive() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.srtpSession != nil
}

// SrtpProfile returns the name of the negotiated protection profile.
func (t *DtlsSrtpTransport) SrtpProfile() string {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.profile
}

func (t *DtlsSrtpTransport) maybeSetupSrtp() {
	t.mu.Lock()
	rtpDtls, rtcpDtls := t.rtpDtls, t.rtcpDtls
	ready := !t.isClosed && t.srtpSession == nil &&
		rtpDtls != nil && rtpDtls.State() == DtlsTransportStateConnected
	t.mu.Unlock()
	if !ready {
		return
	}

	rtpConfig, err := rtpDtls.SrtpConfig()
	if err != nil {
		t.log.Errorf("%s: failed to export srtp keys: %v", rtpDtls.TransportName(), err)

		return
	}
	rtpConn, rtcpConn := rtpDtls.SrtpConns()
	rtcpConfig := rtpConfig

	if !t.RtcpMuxEnabled() {
		if rtcpDtls == nil || rtcpDtls.State() != DtlsTransportStateConnected {
			return
		}
		if rtcpConfig, err = rtcpDtls.SrtpConfig(); err != nil {
			t.log.Errorf("%s: failed to export srtcp keys: %v", rtcpDtls.TransportName(), err)

			return
		}
		_, rtcpConn = rtcpDtls.SrtpConns()
	}

	if err = t.StartSrtp(rtpConfig, rtpConn, rtcpConfig, rtcpConn); err != nil {
		t.log.Errorf("%s: failed to start srtp: %v", rtpDtls.TransportName(), err)

		return
	}

	t.mu.Lock()
	t.profile = rtpDtls.SrtpProfile()
	t.mu.Unlock()
}

// StartSrtp creates the SRTP and SRTCP sessions over the given conns and
// opens the write path. It is a no-op once sessions exist.
func (t *DtlsSrtpTransport) StartSrtp(rtpConfig *srtp.Config, rtpConn net.Conn,
	rtcpConfig *srtp.Config, rtcpConn net.Conn,
) error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()

		return ErrTransportClosed
	}
	if t.srtpSession != nil {
		t.mu.Unlock()

		return nil
	}

	rtpWriter, rtcpWriter, err := t.openSessions(rtpConfig, rtpConn, rtcpConfig, rtcpConn)
	t.mu.Unlock()
	if err != nil {
		return err
	}

	t.SetRtcpWriter(rtcpWriter)
	t.SetRtpWriter(rtpWriter)

	return nil
}

// openSessions must be called with mu held.
func (t *DtlsSrtpTransport) openSessions(rtpConfig *srtp.Config, rtpConn net.Conn,
	rtcpConfig *srtp.Config, rtcpConn net.Conn,
) (*srtp.WriteStreamSRTP, *srtp.WriteStreamSRTCP, error) {
	if rtpConfig.LoggerFactory == nil {
		rtpConfig.LoggerFactory = t.loggerFactory
	}
	if rtcpConfig.LoggerFactory == nil {
		rtcpConfig.LoggerFactory = t.loggerFactory
	}

	srtpSession, err := srtp.NewSessionSRTP(rtpConn, rtpConfig)
	if err != nil {
		return nil, nil, err
	}
	srtcpSession, err := srtp.NewSessionSRTCP(rtcpConn, rtcpConfig)
	if err != nil {
		return nil, nil, util.FlattenErrs([]error{err, srtpSession.Close()})
	}

	rtpWriter, err := srtpSession.OpenWriteStream()
	if err != nil {
		return nil, nil, util.FlattenErrs([]error{err, srtpSession.Close(), srtcpSession.Close()})
	}
	rtcpWriter, err := srtcpSession.OpenWriteStream()
	if err != nil {
		return nil, nil, util.FlattenErrs([]error{err, srtpSession.Close(), srtcpSession.Close()})
	}

	t.srtpSession, t.srtcpSession = srtpSession, srtcpSession

	t.readers.Add(2)
	go t.acceptRtp(srtpSession)
	go t.acceptRtcp(srtcpSession)

	return rtpWriter, rtcpWriter, nil
}

func (t *DtlsSrtpTransport) acceptRtp(session *srtp.SessionSRTP) {
	defer t.readers.Done()
	for {
		stream, ssrc, err := session.AcceptStream()
		if err != nil {
			t.log.Debugf("srtp accept loop ended: %v", err)

			return
		}
		t.log.Debugf("incoming srtp stream %d", ssrc)
		if !t.trackStream(stream) {
			_ = stream.Close()

			return
		}

		t.readers.Add(1)
		go func() {
			defer t.readers.Done()
			buf := make([]byte, receiveMTU)
			for {
				n, err := stream.Read(buf)
				if err != nil {
					return
				}
				t.DeliverPacket(append([]byte(nil), buf[:n]...))
			}
		}()
	}
}

func (t *DtlsSrtpTransport) acceptRtcp(session *srtp.SessionSRTCP) {
	defer t.readers.Done()
	for {
		stream, ssrc, err := session.AcceptStream()
		if err != nil {
			t.log.Debugf("srtcp accept loop ended: %v", err)

			return
		}
		t.log.Debugf("incoming srtcp stream %d", ssrc)
		if !t.trackStream(stream) {
			_ = stream.Close()

			return
		}

		t.readers.Add(1)
		go func() {
			defer t.readers.Done()
			buf := make([]byte, receiveMTU)
			for {
				n, err := stream.Read(buf)
				if err != nil {
					return
				}
				t.DeliverPacket(append([]byte(nil), buf[:n]...))
			}
		}()
	}
}

// trackStream records stream so Close can unblock its reader. It reports
// false once the transport is closed.
func (t *DtlsSrtpTransport) trackStream(stream io.Closer) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed {
		return false
	}
	t.streams = append(t.streams, stream)

	return true
}

// Close stops the SRTP sessions. The DTLS transports stay open, they are
// owned by the caller.
func (t *DtlsSrtpTransport) Close() error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()

		return nil
	}
	t.isClosed = true
	srtpSession, srtcpSession := t.srtpSession, t.srtcpSession
	streams := t.streams
	t.streams = nil
	t.mu.Unlock()

	var errs []error
	for _, stream := range streams {
		errs = append(errs, stream.Close())
	}
	if srtpSession != nil {
		errs = append(errs, srtpSession.Close())
	}
	if srtcpSession != nil {
		errs = append(errs, srtcpSession.Close())
	}
	t.readers.Wait()

	return util.FlattenErrs(errs)
}
