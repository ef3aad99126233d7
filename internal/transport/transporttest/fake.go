// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package transporttest provides in-memory ICE and DTLS transports that are
// driven by hand.
package transporttest

import (
	"net"
	"sync"

	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/srtp/v3"
)

// IceTransport is a transport.IceTransport whose state is set by the test.
type IceTransport struct {
	transport.IceSignals

	mu              sync.Mutex
	name            string
	component       transport.Component
	role            transport.IceRole
	local           description.IceParameters
	remote          description.IceParameters
	candidates      []description.Candidate
	gatherRequested bool
	state           transport.IceTransportState
	gatheringState  transport.IceGatheringState
	conn            net.Conn
	closed          bool
}

// NewIceTransport returns a transport in the new state.
func NewIceTransport(name string, component transport.Component, role transport.IceRole) *IceTransport {
	return &IceTransport{
		name:           name,
		component:      component,
		role:           role,
		state:          transport.IceTransportStateNew,
		gatheringState: transport.IceGatheringStateNew,
	}
}

func (t *IceTransport) TransportName() string { return t.name }
func (t *IceTransport) Component() transport.Component { return t.component }
func (t *IceTransport) SetIceRole(role transport.IceRole) { t.with(func() { t.role = role }) }

func (t *IceTransport) IceRole() transport.IceRole {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.role
}

func (t *IceTransport) SetIceParameters(p description.IceParameters) {
	t.with(func() { t.local = p })
}

func (t *IceTransport) SetRemoteIceParameters(p description.IceParameters) {
	t.with(func() { t.remote = p })
}

func (t *IceTransport) AddRemoteCandidate(c description.Candidate) error {
	t.with(func() { t.candidates = append(t.candidates, c) })

	return nil
}

func (t *IceTransport) MaybeStartGathering() {
	t.with(func() { t.gatherRequested = true })
}

func (t *IceTransport) State() transport.IceTransportState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

func (t *IceTransport) GatheringState() transport.IceGatheringState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.gatheringState
}

func (t *IceTransport) Conn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.conn
}

func (t *IceTransport) Close() error {
	t.with(func() { t.closed = true })

	return nil
}

// LocalParameters returns what SetIceParameters received.
func (t *IceTransport) LocalParameters() description.IceParameters {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.local
}

// RemoteParameters returns what SetRemoteIceParameters received.
func (t *IceTransport) RemoteParameters() description.IceParameters {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.remote
}

// RemoteCandidates returns every added remote candidate.
func (t *IceTransport) RemoteCandidates() []description.Candidate {
	t.mu.Lock()
	defer t.mu.Unlock()

	return append([]description.Candidate(nil), t.candidates...)
}

// GatherRequested reports whether MaybeStartGathering was called.
func (t *IceTransport) GatherRequested() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.gatherRequested
}

// Closed reports whether Close was called.
func (t *IceTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// SetConn sets the conn returned by Conn.
func (t *IceTransport) SetConn(conn net.Conn) {
	t.with(func() { t.conn = conn })
}

// SetState changes the state and emits it synchronously.
func (t *IceTransport) SetState(state transport.IceTransportState) {
	t.with(func() { t.state = state })
	t.EmitStateChange(t, state)
}

// SetGatheringState changes the gathering state and emits it synchronously.
func (t *IceTransport) SetGatheringState(state transport.IceGatheringState) {
	t.with(func() { t.gatheringState = state })
	t.EmitGatheringStateChange(t, state)
}

// Gather emits c as a locally gathered candidate.
func (t *IceTransport) Gather(c description.Candidate) {
	c.Mid = t.name
	t.EmitCandidateGathered(t, c)
}

// RoleConflict emits a role conflict.
func (t *IceTransport) RoleConflict() {
	t.EmitRoleConflict(t)
}

func (t *IceTransport) with(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

// IceFactory records every transport it creates.
type IceFactory struct {
	mu         sync.Mutex
	transports []*IceTransport
}

// CreateIceTransport implements transport.IceTransportFactory.
func (f *IceFactory) CreateIceTransport(name string, component transport.Component,
	init transport.IceTransportInit,
) (transport.IceTransport, error) {
	t := NewIceTransport(name, component, init.Role)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transports = append(f.transports, t)

	return t, nil
}

// Transports returns the created transports in creation order.
func (f *IceFactory) Transports() []*IceTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*IceTransport(nil), f.transports...)
}

// Get returns the transport created for name and component, nil if none.
func (f *IceFactory) Get(name string, component transport.Component) *IceTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transports {
		if t.name == name && t.component == component {
			return t
		}
	}

	return nil
}

// DtlsTransport is a transport.DtlsTransport whose state is set by the test.
type DtlsTransport struct {
	transport.DtlsSignals

	mu          sync.Mutex
	ice         transport.IceTransport
	certificate *transport.Certificate
	fingerprint *description.Fingerprint
	role        transport.DtlsRole
	state       transport.DtlsTransportState
	srtpConfig  *srtp.Config
	rtpConn     net.Conn
	rtcpConn    net.Conn
	closed      bool
}

// NewDtlsTransport returns a transport over ice in the new state.
func NewDtlsTransport(ice transport.IceTransport) *DtlsTransport {
	return &DtlsTransport{ice: ice, state: transport.DtlsTransportStateNew}
}

func (t *DtlsTransport) TransportName() string { return t.ice.TransportName() }
func (t *DtlsTransport) Component() transport.Component { return t.ice.Component() }
func (t *DtlsTransport) IceTransport() transport.IceTransport { return t.ice }
func (t *DtlsTransport) SrtpProfile() string { return "AES_CM_128_HMAC_SHA1_80" }

func (t *DtlsTransport) SetLocalCertificate(cert *transport.Certificate) error {
	if cert == nil {
		return transport.ErrNoCertificate
	}
	t.with(func() { t.certificate = cert })

	return nil
}

func (t *DtlsTransport) SetRemoteFingerprint(algorithm string, digest []byte) error {
	fp, err := description.NewFingerprint(algorithm, digest)
	if err != nil {
		return err
	}
	t.with(func() { t.fingerprint = fp })

	return nil
}

func (t *DtlsTransport) SetDtlsRole(role transport.DtlsRole) error {
	t.with(func() { t.role = role })

	return nil
}

func (t *DtlsTransport) DtlsRole() transport.DtlsRole {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.role
}

func (t *DtlsTransport) State() transport.DtlsTransportState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

func (t *DtlsTransport) SrtpConfig() (*srtp.Config, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.srtpConfig == nil || t.state != transport.DtlsTransportStateConnected {
		return nil, transport.ErrDtlsNotConnected
	}
	config := *t.srtpConfig

	return &config, nil
}

func (t *DtlsTransport) SrtpConns() (net.Conn, net.Conn) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.rtpConn, t.rtcpConn
}

func (t *DtlsTransport) Close() error {
	t.with(func() { t.closed = true })

	return nil
}

// Certificate returns what SetLocalCertificate received.
func (t *DtlsTransport) Certificate() *transport.Certificate {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.certificate
}

// RemoteFingerprint returns what SetRemoteFingerprint received.
func (t *DtlsTransport) RemoteFingerprint() *description.Fingerprint {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.fingerprint
}

// Closed reports whether Close was called.
func (t *DtlsTransport) Closed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.closed
}

// SetSrtp sets the keys and conns handed out once connected.
func (t *DtlsTransport) SetSrtp(config *srtp.Config, rtpConn, rtcpConn net.Conn) {
	t.with(func() {
		t.srtpConfig = config
		t.rtpConn, t.rtcpConn = rtpConn, rtcpConn
	})
}

// SetState changes the state and emits it synchronously.
func (t *DtlsTransport) SetState(state transport.DtlsTransportState) {
	t.with(func() { t.state = state })
	t.EmitStateChange(t, state)
}

// Fail moves to the failed state and emits err.
func (t *DtlsTransport) Fail(err error) {
	t.SetState(transport.DtlsTransportStateFailed)
	t.EmitHandshakeError(t, err)
}

func (t *DtlsTransport) with(fn func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	fn()
}

// DtlsFactory records every transport it creates.
type DtlsFactory struct {
	mu         sync.Mutex
	transports []*DtlsTransport
}

// CreateDtlsTransport implements transport.DtlsTransportFactory.
func (f *DtlsFactory) CreateDtlsTransport(ice transport.IceTransport) (transport.DtlsTransport, error) {
	t := NewDtlsTransport(ice)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.transports = append(f.transports, t)

	return t, nil
}

// Transports returns the created transports in creation order.
func (f *DtlsFactory) Transports() []*DtlsTransport {
	f.mu.Lock()
	defer f.mu.Unlock()

	return append([]*DtlsTransport(nil), f.transports...)
}

// Get returns the transport created for name and component, nil if none.
func (f *DtlsFactory) Get(name string, component transport.Component) *DtlsTransport {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, t := range f.transports {
		if t.TransportName() == name && t.Component() == component {
			return t
		}
	}

	return nil
}
