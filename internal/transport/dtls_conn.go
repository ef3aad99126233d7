// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/pion/dtls/v3"
	"github.com/pion/logging"
	"github.com/pion/p2p/internal/mux"
	"github.com/pion/p2p/internal/thread"
	"github.com/pion/p2p/internal/util"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/srtp/v3"
)

// DefaultHandshakeTimeout bounds a single DTLS handshake.
const DefaultHandshakeTimeout = 30 * time.Second

// ConnConfig configures the DTLS transports created by ConnFactory.
type ConnConfig struct {
	// SRTPProtectionProfiles in preference order, empty means every
	// supported profile.
	SRTPProtectionProfiles []dtls.SRTPProtectionProfile
	HandshakeTimeout       time.Duration
	ReplayProtectionWindow uint
	LoggerFactory          logging.LoggerFactory
}

// ConnFactory creates DtlsTransports backed by pion/dtls.
type ConnFactory struct {
	Config ConnConfig
}

// CreateDtlsTransport returns a transport that handshakes as soon as ice is
// writable and both the local certificate and the remote fingerprint are set.
func (f *ConnFactory) CreateDtlsTransport(ice IceTransport) (DtlsTransport, error) {
	loggerFactory := f.Config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	conn := &ConnTransport{
		ice:    ice,
		config: f.Config,
		state:  DtlsTransportStateNew,
		events: thread.New("dtls-events-"+ice.TransportName(), loggerFactory),
		log:    loggerFactory.NewLogger("dtls"),
	}
	if conn.config.HandshakeTimeout == 0 {
		conn.config.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if conn.config.LoggerFactory == nil {
		conn.config.LoggerFactory = loggerFactory
	}

	ice.OnStateChange(func(_ IceTransport, state IceTransportState) {
		switch {
		case state.IsWritable():
			conn.maybeStart()
		case state == IceTransportStateFailed:
			conn.setState(DtlsTransportStateFailed)
		}
	})

	return conn, nil
}

// ConnTransport is a DtlsTransport over the conn of an IceTransport.
type ConnTransport struct {
	DtlsSignals

	mu                sync.Mutex
	ice               IceTransport
	config            ConnConfig
	certificate       *Certificate
	remoteFingerprint *description.Fingerprint
	role              DtlsRole
	started           bool
	isClosed          bool
	state             DtlsTransportState

	mux           *mux.Mux
	conn          *dtls.Conn
	srtpEndpoint  *mux.Endpoint
	srtcpEndpoint *mux.Endpoint
	srtpProfile   srtp.ProtectionProfile
	cancel        context.CancelFunc

	events *thread.Thread
	log    logging.LeveledLogger
}

// TransportName returns the mid of the underlying ICE transport.
func (t *ConnTransport) TransportName() string {
	return t.ice.TransportName()
}

// Component returns the ICE component.
func (t *ConnTransport) Component() Component {
	return t.ice.Component()
}

// IceTransport returns the transport the handshake runs over.
func (t *ConnTransport) IceTransport() IceTransport {
	return t.ice
}

// SetLocalCertificate sets the certificate presented in the handshake.
func (t *ConnTransport) SetLocalCertificate(cert *Certificate) error {
	if cert == nil {
		return ErrNoCertificate
	}

	t.mu.Lock()
	t.certificate = cert
	t.mu.Unlock()
	t.maybeStart()

	return nil
}

// SetRemoteFingerprint sets the fingerprint the remote certificate must match.
func (t *ConnTransport) SetRemoteFingerprint(algorithm string, digest []byte) error {
	fp, err := description.NewFingerprint(algorithm, digest)
	if err != nil {
		return err
	}

	t.mu.Lock()
	t.remoteFingerprint = fp
	t.mu.Unlock()
	t.maybeStart()

	return nil
}

// SetDtlsRole sets the handshake role. It cannot change once started.
func (t *ConnTransport) SetDtlsRole(role DtlsRole) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started && role != t.role {
		return ErrDtlsRoleLocked
	}
	t.role = role

	return nil
}

// DtlsRole returns the handshake role.
func (t *ConnTransport) DtlsRole() DtlsRole {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.role
}

// State returns the handshake state.
func (t *ConnTransport) State() DtlsTransportState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// SrtpConfig exports the SRTP keys of the finished handshake.
func (t *ConnTransport) SrtpConfig() (*srtp.Config, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != DtlsTransportStateConnected || t.conn == nil {
		return nil, ErrDtlsNotConnected
	}

	connState, ok := t.conn.ConnectionState()
	if !ok {
		return nil, ErrDtlsNotConnected
	}

	config := &srtp.Config{
		Profile:       t.srtpProfile,
		LoggerFactory: t.config.LoggerFactory,
	}
	if t.config.ReplayProtectionWindow > 0 {
		config.RemoteOptions = append(config.RemoteOptions,
			srtp.SRTPReplayProtection(t.config.ReplayProtectionWindow),
			srtp.SRTCPReplayProtection(t.config.ReplayProtectionWindow),
		)
	}
	if err := config.ExtractSessionKeysFromDTLS(&connState, t.role == DtlsRoleClient); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoSRTPProtectionProfile, err)
	}

	return config, nil
}

// SrtpConns returns the SRTP and SRTCP endpoints of the mux.
func (t *ConnTransport) SrtpConns() (net.Conn, net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srtpEndpoint == nil {
		return nil, nil
	}

	return t.srtpEndpoint, t.srtcpEndpoint
}

// SrtpProfile returns the negotiated protection profile name.
func (t *ConnTransport) SrtpProfile() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.state != DtlsTransportStateConnected {
		return ""
	}

	return srtpProfileName(t.srtpProfile)
}

// Close tears down the handshake, the conn and the mux.
func (t *ConnTransport) Close() error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()

		return nil
	}
	t.isClosed = true
	conn, mx, cancel := t.conn, t.mux, t.cancel
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var errs []error
	if conn != nil {
		errs = append(errs, conn.Close())
	}
	if mx != nil {
		errs = append(errs, mx.Close())
	}
	t.setState(DtlsTransportStateClosed)

	return util.FlattenErrs(errs)
}

func (t *ConnTransport) maybeStart() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started || t.isClosed || t.certificate == nil || t.remoteFingerprint == nil ||
		!t.ice.State().IsWritable() {
		return
	}
	iceConn := t.ice.Conn()
	if iceConn == nil {
		return
	}
	if t.role == DtlsRoleUnknown {
		t.role = DtlsRoleClient
	}
	t.started = true

	t.mux = mux.NewMux(mux.Config{
		Conn:          iceConn,
		BufferSize:    mux.DefaultBufferSize,
		LoggerFactory: t.config.LoggerFactory,
	})
	dtlsEndpoint := t.mux.NewEndpoint(mux.MatchDTLS)
	t.srtpEndpoint = t.mux.NewEndpoint(mux.MatchSRTP)
	t.srtcpEndpoint = t.mux.NewEndpoint(mux.MatchSRTCP)

	ctx, cancel := context.WithTimeout(context.Background(), t.config.HandshakeTimeout)
	t.cancel = cancel
	config := t.dtlsConfig()
	role := t.role

	t.setStateLocked(DtlsTransportStateConnecting)
	go t.handshake(ctx, dtlsEndpoint, iceConn.RemoteAddr(), role, config)
}

// dtlsConfig must be called with mu held.
func (t *ConnTransport) dtlsConfig() *dtls.Config {
	profiles := t.config.SRTPProtectionProfiles
	if len(profiles) == 0 {
		profiles = defaultSRTPProtectionProfiles()
	}
	remote := t.remoteFingerprint

	return &dtls.Config{
		Certificates:           []tls.Certificate{t.certificate.TLSCertificate()},
		SRTPProtectionProfiles: profiles,
		ClientAuth:             dtls.RequireAnyClientCert,
		InsecureSkipVerify:     true,
		LoggerFactory:          t.config.LoggerFactory,
		VerifyPeerCertificate: func(rawCerts [][]byte, _ [][]*x509.Certificate) error {
			return verifyFingerprint(rawCerts, remote)
		},
	}
}

func (t *ConnTransport) handshake(ctx context.Context, endpoint *mux.Endpoint, raddr net.Addr,
	role DtlsRole, config *dtls.Config,
) {
	var (
		conn *dtls.Conn
		err  error
	)
	if role == DtlsRoleServer {
		conn, err = dtls.Server(endpoint, raddr, config)
	} else {
		conn, err = dtls.Client(endpoint, raddr, config)
	}
	if err == nil {
		err = conn.HandshakeContext(ctx)
	}

	var profile srtp.ProtectionProfile
	if err == nil {
		profile, err = selectedProfile(conn)
	}

	if err != nil {
		if conn != nil {
			_ = conn.Close()
		}
		t.fail(err)

		return
	}

	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()
		_ = conn.Close()

		return
	}
	t.conn = conn
	t.srtpProfile = profile
	t.setStateLocked(DtlsTransportStateConnected)
	t.mu.Unlock()
	t.log.Infof("%s: dtls handshake complete as %s, profile %s", t.TransportName(), role, srtpProfileName(profile))
}

func (t *ConnTransport) fail(err error) {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()

		return
	}
	t.setStateLocked(DtlsTransportStateFailed)
	t.mu.Unlock()

	t.log.Warnf("%s: dtls handshake failed: %v", t.TransportName(), err)
	t.events.Post(func(context.Context) {
		t.EmitHandshakeError(t, err)
	})
}

func (t *ConnTransport) setState(state DtlsTransportState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.setStateLocked(state)
}

func (t *ConnTransport) setStateLocked(state DtlsTransportState) {
	if t.state == state || t.state == DtlsTransportStateClosed {
		return
	}
	t.state = state
	t.events.Post(func(context.Context) {
		t.EmitStateChange(t, state)
	})
}

func verifyFingerprint(rawCerts [][]byte, remote *description.Fingerprint) error {
	if remote == nil {
		return ErrNoRemoteFingerprint
	}
	if len(rawCerts) == 0 {
		return ErrNoRemoteCertificate
	}

	cert, err := x509.ParseCertificate(rawCerts[0])
	if err != nil {
		return err
	}
	actual, err := description.FingerprintFromCertificate(cert, remote.Algorithm)
	if err != nil {
		return err
	}
	if !actual.Equal(remote) {
		return ErrFingerprintMismatch
	}

	return nil
}

func defaultSRTPProtectionProfiles() []dtls.SRTPProtectionProfile {
	return []dtls.SRTPProtectionProfile{
		dtls.SRTP_AEAD_AES_128_GCM,
		dtls.SRTP_AEAD_AES_256_GCM,
		dtls.SRTP_AES128_CM_HMAC_SHA1_80,
	}
}

func selectedProfile(conn *dtls.Conn) (srtp.ProtectionProfile, error) {
	selected, ok := conn.SelectedSRTPProtectionProfile()
	if !ok {
		return 0, ErrNoSRTPProtectionProfile
	}

	switch selected {
	case dtls.SRTP_AEAD_AES_128_GCM:
		return srtp.ProtectionProfileAeadAes128Gcm, nil
	case dtls.SRTP_AEAD_AES_256_GCM:
		return srtp.ProtectionProfileAeadAes256Gcm, nil
	case dtls.SRTP_AES128_CM_HMAC_SHA1_80:
		return srtp.ProtectionProfileAes128CmHmacSha1_80, nil
	default:
		return 0, fmt.Errorf("%w: %#x", ErrUnsupportedSRTPProfile, uint16(selected))
	}
}

func srtpProfileName(profile srtp.ProtectionProfile) string {
	switch profile {
	case srtp.ProtectionProfileAeadAes128Gcm:
		return "AEAD_AES_128_GCM"
	case srtp.ProtectionProfileAeadAes256Gcm:
		return "AEAD_AES_256_GCM"
	case srtp.ProtectionProfileAes128CmHmacSha1_80:
		return "AES_CM_128_HMAC_SHA1_80"
	default:
		return ""
	}
}
