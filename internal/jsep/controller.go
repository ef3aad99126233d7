// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package jsep binds negotiated session descriptions to ICE, DTLS and SRTP
// transports, one stack per transport name, and folds their states into
// session level states.
package jsep

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/logging"
	"github.com/pion/p2p/internal/thread"
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/internal/util"
	"github.com/pion/p2p/pkg/description"
)

// Config configures a Controller.
type Config struct {
	// NetworkThread owns every transport object.
	NetworkThread *thread.Thread

	IceTransportFactory  transport.IceTransportFactory
	DtlsTransportFactory transport.DtlsTransportFactory

	// IceRole defaults to controlled.
	IceRole transport.IceRole
	// RtcpMuxPolicy defaults to require.
	RtcpMuxPolicy RtcpMuxPolicy

	LoggerFactory logging.LoggerFactory
}

// AggregateStates are the session level states.
type AggregateStates struct {
	IceConnection IceConnectionState
	Connection    PeerConnectionState
	IceGathering  transport.IceGatheringState
}

// TransportStats describes one component of a transport record.
type TransportStats struct {
	TransportName string
	Component     transport.Component
	State         TransportState
	IceState      transport.IceTransportState
	DtlsState     transport.DtlsTransportState
	SrtpProfile   string
	// Sent and Received count the whole record, they are repeated for the
	// RTCP component.
	Sent     transport.PacketStats
	Received transport.PacketStats
}

// Controller is the transport controller. Everything but handler
// registration runs on the network thread.
type Controller struct {
	network       *thread.Thread
	alive         *thread.SafetyFlag
	iceFactory    transport.IceTransportFactory
	dtlsFactory   transport.DtlsTransportFactory
	rtcpMuxPolicy RtcpMuxPolicy
	loggerFactory logging.LoggerFactory
	log           logging.LeveledLogger

	// owned by the network thread
	transports       map[string]*JsepTransport
	order            []string
	midToTransport   map[string]string
	iceRole          transport.IceRole
	roleConflictSeen bool
	certificate      *transport.Certificate
	localDesc        *description.SessionDescription
	remoteDesc       *description.SessionDescription
	states           AggregateStates
	isClosed         bool

	handlersMu                 sync.RWMutex
	onIceConnectionStateChange func(IceConnectionState)
	onConnectionStateChange    func(PeerConnectionState)
	onGatheringStateChange     func(transport.IceGatheringState)
	onCandidateGathered        func(description.Candidate)
	onRtpPacket                func(string, []byte)
	onRtcpPacket               func(string, []byte)
	onSentPacket               func(string, transport.SentPacket)
	onReadyToSend              func(string, bool)
	onDtlsHandshakeError       func(string, error)
}

// NewController creates a controller. When ctx is not on the network thread
// the initialization is posted there, every later call is queued behind it.
func NewController(ctx context.Context, config Config) (*Controller, error) {
	if config.NetworkThread == nil {
		return nil, ErrNoThread
	}
	if config.IceTransportFactory == nil || config.DtlsTransportFactory == nil {
		return nil, ErrNoTransportFactory
	}
	if config.LoggerFactory == nil {
		config.LoggerFactory = logging.NewDefaultLoggerFactory()
	}
	if config.IceRole == transport.IceRoleUnknown {
		config.IceRole = transport.IceRoleControlled
	}
	if config.RtcpMuxPolicy == RtcpMuxPolicyUnknown {
		config.RtcpMuxPolicy = RtcpMuxPolicyRequire
	}

	c := &Controller{
		network:       config.NetworkThread,
		alive:         thread.NewSafetyFlag(),
		iceFactory:    config.IceTransportFactory,
		dtlsFactory:   config.DtlsTransportFactory,
		rtcpMuxPolicy: config.RtcpMuxPolicy,
		loggerFactory: config.LoggerFactory,
		log:           config.LoggerFactory.NewLogger("jsep"),
	}
	c.network.PostOrRun(ctx, func(context.Context) {
		c.transports = map[string]*JsepTransport{}
		c.midToTransport = map[string]string{}
		c.iceRole = config.IceRole
		c.states = AggregateStates{
			IceConnection: IceConnectionStateNew,
			Connection:    PeerConnectionStateNew,
			IceGathering:  transport.IceGatheringStateNew,
		}
	})

	return c, nil
}

// SetLocalCertificate installs cert on every current and future DTLS
// transport.
func (c *Controller) SetLocalCertificate(ctx context.Context, cert *transport.Certificate) error {
	if cert == nil {
		return transport.ErrNoCertificate
	}

	return c.invoke(ctx, func(context.Context) error {
		c.setCertificate(cert)

		return nil
	})
}

// SetRemoteDescription creates the transports of every active section and
// schedules the remote ICE credentials and DTLS fingerprint. Transports of
// rejected sections are released.
func (c *Controller) SetRemoteDescription(ctx context.Context, desc *description.SessionDescription) error {
	if desc == nil {
		return ErrNilDescription
	}

	return c.invoke(ctx, func(context.Context) error {
		c.remoteDesc = desc
		c.removeRejected(desc)

		for _, content := range desc.ActiveContents() {
			rec, err := c.maybeCreateJsepTransport(content.Name, desc)
			if err != nil {
				return err
			}
			if rec.name != content.Name {
				continue
			}

			info := desc.TransportInfoByName(content.Name)
			if info == nil || !info.Description.HasIceCredentials() {
				c.log.Warnf("%s: remote description carries no ice credentials", content.Name)

				continue
			}
			td := info.Description
			c.post(func(context.Context) {
				c.applyRemoteParameters(rec, td)
			})
		}
		c.updateAggregateStates()

		return nil
	})
}

// SetLocalDescription applies the local ICE credentials, DTLS role and
// certificate (when cert is not nil) and then starts gathering on every
// ICE transport.
func (c *Controller) SetLocalDescription(ctx context.Context, desc *description.SessionDescription,
	cert *transport.Certificate,
) error {
	if desc == nil {
		return ErrNilDescription
	}
	if err := desc.Validate(); err != nil {
		return err
	}

	err := c.invoke(ctx, func(context.Context) error {
		c.localDesc = desc
		if cert != nil {
			c.setCertificate(cert)
		}
		c.removeRejected(desc)

		for _, content := range desc.ActiveContents() {
			rec, err := c.maybeCreateJsepTransport(content.Name, desc)
			if err != nil {
				return err
			}
			if rec.name != content.Name {
				continue
			}
			c.applyLocalParameters(rec, desc.TransportInfoByName(content.Name).Description)
		}
		c.updateAggregateStates()

		return nil
	})
	if err != nil {
		return err
	}

	c.network.PostOrRun(ctx, c.alive.Guard(func(context.Context) {
		c.startGathering()
	}))

	return nil
}

// AddRemoteCandidates hands candidates to the ICE transport of their mid,
// a candidate without mid goes to every transport.
func (c *Controller) AddRemoteCandidates(candidates ...description.Candidate) error {
	if !c.alive.Alive() {
		return ErrControllerClosed
	}

	c.post(func(context.Context) {
		for _, candidate := range candidates {
			c.addRemoteCandidate(candidate)
		}
	})

	return nil
}

// SendRtpPacket copies packet and sends it on the transport of mid from the
// network thread. The outcome is only reported through OnSentPacket.
func (c *Controller) SendRtpPacket(mid string, packet []byte, options transport.PacketOptions) error {
	return c.send(mid, packet, options, false)
}

// SendRtcpPacket is SendRtpPacket for compound RTCP.
func (c *Controller) SendRtcpPacket(mid string, packet []byte) error {
	return c.send(mid, packet, transport.PacketOptions{PacketID: transport.NoPacketID}, true)
}

// Transport returns the record serving mid.
func (c *Controller) Transport(ctx context.Context, mid string) (*JsepTransport, error) {
	var rec *JsepTransport
	err := c.invoke(ctx, func(context.Context) error {
		var err error
		rec, err = c.transportForMid(mid)

		return err
	})

	return rec, err
}

// TransportState returns the negotiation progress of the record serving mid.
func (c *Controller) TransportState(ctx context.Context, mid string) (TransportState, error) {
	var state TransportState
	err := c.invoke(ctx, func(context.Context) error {
		rec, err := c.transportForMid(mid)
		if err != nil {
			return err
		}
		state = rec.state

		return nil
	})

	return state, err
}

// States returns the aggregate states.
func (c *Controller) States(ctx context.Context) (AggregateStates, error) {
	var states AggregateStates
	err := c.invoke(ctx, func(context.Context) error {
		states = c.states

		return nil
	})

	return states, err
}

// IceRole returns the role used for new transports.
func (c *Controller) IceRole(ctx context.Context) (transport.IceRole, error) {
	var role transport.IceRole
	err := c.invoke(ctx, func(context.Context) error {
		role = c.iceRole

		return nil
	})

	return role, err
}

// Stats returns one entry per component of every record, in creation order.
func (c *Controller) Stats(ctx context.Context) ([]TransportStats, error) {
	var stats []TransportStats
	err := c.invoke(ctx, func(context.Context) error {
		for _, name := range c.order {
			rec := c.transports[name]
			sent, received := rec.srtp.Stats()
			dtls := rec.dtlsTransports()
			for i, ice := range rec.iceTransports() {
				stats = append(stats, TransportStats{
					TransportName: name,
					Component:     ice.Component(),
					State:         rec.state,
					IceState:      ice.State(),
					DtlsState:     dtls[i].State(),
					SrtpProfile:   rec.srtp.SrtpProfile(),
					Sent:          sent,
					Received:      received,
				})
			}
		}

		return nil
	})

	return stats, err
}

// Close releases every transport, SRTP first and ICE last, and cancels
// pending tasks.
func (c *Controller) Close(ctx context.Context) error {
	var closeErr error
	err := c.network.Invoke(ctx, func(context.Context) {
		if c.isClosed {
			return
		}
		c.isClosed = true
		c.alive.SetNotAlive()

		var errs []error
		for _, name := range c.order {
			errs = append(errs, c.transports[name].close())
		}
		c.transports = map[string]*JsepTransport{}
		c.midToTransport = map[string]string{}
		c.order = nil

		c.setIceConnectionState(IceConnectionStateClosed)
		c.setConnectionState(PeerConnectionStateClosed)
		closeErr = util.FlattenErrs(errs)
	})
	if errors.Is(err, thread.ErrClosed) {
		return ErrControllerClosed
	}
	if err != nil {
		return err
	}

	return closeErr
}

// OnIceConnectionStateChange sets the handler for aggregate ICE state changes.
func (c *Controller) OnIceConnectionStateChange(fn func(IceConnectionState)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onIceConnectionStateChange = fn
}

// OnConnectionStateChange sets the handler for combined state changes.
func (c *Controller) OnConnectionStateChange(fn func(PeerConnectionState)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnectionStateChange = fn
}

// OnGatheringStateChange sets the handler for aggregate gathering changes.
func (c *Controller) OnGatheringStateChange(fn func(transport.IceGatheringState)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onGatheringStateChange = fn
}

// OnCandidateGathered sets the handler for local candidates.
func (c *Controller) OnCandidateGathered(fn func(description.Candidate)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onCandidateGathered = fn
}

// OnRtpPacket sets the handler for decrypted RTP, called on the receiving
// goroutine with the transport name.
func (c *Controller) OnRtpPacket(fn func(transportName string, packet []byte)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onRtpPacket = fn
}

// OnRtcpPacket sets the handler for decrypted RTCP, called on the receiving
// goroutine with the transport name.
func (c *Controller) OnRtcpPacket(fn func(transportName string, packet []byte)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onRtcpPacket = fn
}

// OnSentPacket sets the handler for packets handed to the network.
func (c *Controller) OnSentPacket(fn func(transportName string, packet transport.SentPacket)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onSentPacket = fn
}

// OnReadyToSend sets the handler for ready-to-send transitions.
func (c *Controller) OnReadyToSend(fn func(transportName string, ready bool)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onReadyToSend = fn
}

// OnDtlsHandshakeError sets the handler for failed handshakes. Nothing is
// retried.
func (c *Controller) OnDtlsHandshakeError(fn func(transportName string, err error)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onDtlsHandshakeError = fn
}

func (c *Controller) invoke(ctx context.Context, fn func(context.Context) error) error {
	var taskErr error
	err := c.network.Invoke(ctx, func(taskCtx context.Context) {
		if c.isClosed {
			taskErr = ErrControllerClosed

			return
		}
		taskErr = fn(taskCtx)
	})
	if errors.Is(err, thread.ErrClosed) {
		return ErrControllerClosed
	}
	if err != nil {
		return err
	}

	return taskErr
}

func (c *Controller) post(fn thread.Task) {
	c.network.Post(c.alive.Guard(fn))
}

func (c *Controller) send(mid string, packet []byte, options transport.PacketOptions, isRTCP bool) error {
	if !c.alive.Alive() {
		return ErrControllerClosed
	}

	buf := append([]byte(nil), packet...)
	c.post(func(context.Context) {
		rec, err := c.transportForMid(mid)
		if err != nil {
			c.log.Warnf("dropping packet: %v", err)

			return
		}

		if isRTCP {
			err = rec.srtp.SendRtcpPacket(buf, options)
		} else {
			err = rec.srtp.SendRtpPacket(buf, options)
		}
		if err != nil {
			c.log.Debugf("%s: send failed: %v", rec.name, err)
		}
	})

	return nil
}

// transportName maps mid onto the first active mid of its BUNDLE group.
func transportName(desc *description.SessionDescription, mid string) string {
	group := desc.GroupByName(description.GroupBundle)
	if group == nil || !group.HasContentName(mid) {
		return mid
	}
	for _, name := range group.ContentNames {
		if content := desc.ContentByName(name); content != nil && !content.Rejected {
			return name
		}
	}

	return mid
}

func (c *Controller) transportForMid(mid string) (*JsepTransport, error) {
	name, ok := c.midToTransport[mid]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMid, mid)
	}
	rec, ok := c.transports[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownMid, mid)
	}

	return rec, nil
}

func (c *Controller) rtcpMuxEnabled(desc *description.SessionDescription, name string) bool {
	if c.rtcpMuxPolicy == RtcpMuxPolicyRequire {
		return true
	}
	content := desc.ContentByName(name)
	if content == nil || content.Media() == nil {
		return true
	}

	return content.Media().RtcpMux
}

func (c *Controller) maybeCreateJsepTransport(mid string, desc *description.SessionDescription) (*JsepTransport, error) {
	if name, ok := c.midToTransport[mid]; ok {
		if rec, ok := c.transports[name]; ok {
			return rec, nil
		}
	}

	name := transportName(desc, mid)
	c.midToTransport[mid] = name
	if rec, ok := c.transports[name]; ok {
		return rec, nil
	}

	rec, err := c.createJsepTransport(name, c.rtcpMuxEnabled(desc, name))
	if err != nil {
		delete(c.midToTransport, mid)

		return nil, err
	}
	c.transports[name] = rec
	c.order = append(c.order, name)
	c.log.Infof("%s: created transport for mid %s, rtcp-mux %t", name, mid, rec.RtcpMuxEnabled())

	return rec, nil
}

func (c *Controller) createJsepTransport(name string, rtcpMux bool) (rec *JsepTransport, err error) {
	rec = &JsepTransport{name: name}
	defer func() {
		if err != nil {
			err = util.FlattenErrs([]error{err, rec.closePartial()})
		}
	}()

	init := transport.IceTransportInit{Role: c.iceRole}
	if rec.rtpIce, err = c.iceFactory.CreateIceTransport(name, transport.ComponentRTP, init); err != nil {
		return rec, err
	}
	if !rtcpMux {
		if rec.rtcpIce, err = c.iceFactory.CreateIceTransport(name, transport.ComponentRTCP, init); err != nil {
			return rec, err
		}
	}
	rec.advance(TransportStateIceCreated)

	if rec.rtpDtls, err = c.dtlsFactory.CreateDtlsTransport(rec.rtpIce); err != nil {
		return rec, err
	}
	if rec.rtcpIce != nil {
		if rec.rtcpDtls, err = c.dtlsFactory.CreateDtlsTransport(rec.rtcpIce); err != nil {
			return rec, err
		}
	}
	for _, d := range rec.dtlsTransports() {
		if err = d.SetDtlsRole(transport.DtlsRoleClient); err != nil {
			return rec, err
		}
		if c.certificate != nil {
			if err = d.SetLocalCertificate(c.certificate); err != nil {
				return rec, err
			}
		}
	}

	rec.srtp = transport.NewDtlsSrtpTransport(rtcpMux, c.loggerFactory)
	rec.srtp.SetDtlsTransports(rec.rtpDtls, rec.rtcpDtls)
	rec.advance(TransportStateDtlsBound)
	c.wireTransport(rec)

	return rec, nil
}

// wireTransport subscribes to the signals of rec. Signals fire on the
// producer's goroutine and are posted to the network thread.
func (c *Controller) wireTransport(rec *JsepTransport) {
	for _, ice := range rec.iceTransports() {
		ice.OnStateChange(func(transport.IceTransport, transport.IceTransportState) {
			c.post(func(context.Context) { c.onTransportStateChanged(rec) })
		})
		ice.OnGatheringStateChange(func(transport.IceTransport, transport.IceGatheringState) {
			c.post(func(context.Context) { c.updateAggregateStates() })
		})
		ice.OnCandidateGathered(func(_ transport.IceTransport, candidate description.Candidate) {
			c.post(func(context.Context) { c.emitCandidateGathered(candidate) })
		})
		ice.OnRoleConflict(func(transport.IceTransport) {
			c.post(func(context.Context) { c.handleRoleConflict() })
		})
	}

	for _, d := range rec.dtlsTransports() {
		d.OnStateChange(func(transport.DtlsTransport, transport.DtlsTransportState) {
			c.post(func(context.Context) { c.onTransportStateChanged(rec) })
		})
		d.OnHandshakeError(func(_ transport.DtlsTransport, err error) {
			c.post(func(context.Context) {
				rec.advance(TransportStateFailed)
				c.emitDtlsHandshakeError(rec.name, err)
			})
		})
	}

	name := rec.name
	rec.srtp.OnRtpPacket(func(packet []byte) {
		c.handlersMu.RLock()
		handler := c.onRtpPacket
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(name, packet)
		}
	})
	rec.srtp.OnRtcpPacket(func(packet []byte) {
		c.handlersMu.RLock()
		handler := c.onRtcpPacket
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(name, packet)
		}
	})
	rec.srtp.OnSentPacket(func(packet transport.SentPacket) {
		c.handlersMu.RLock()
		handler := c.onSentPacket
		c.handlersMu.RUnlock()
		if handler != nil {
			handler(name, packet)
		}
	})
	rec.srtp.OnReadyToSend(func(ready bool) {
		c.post(func(context.Context) {
			if ready {
				rec.advance(TransportStateWritable)
			}
			c.handlersMu.RLock()
			handler := c.onReadyToSend
			c.handlersMu.RUnlock()
			if handler != nil {
				handler(name, ready)
			}
		})
	})
}

// removeRejected releases records that only served rejected sections.
func (c *Controller) removeRejected(desc *description.SessionDescription) {
	for i := range desc.Contents {
		content := &desc.Contents[i]
		if !content.Rejected {
			continue
		}
		name, ok := c.midToTransport[content.Name]
		if !ok {
			continue
		}
		delete(c.midToTransport, content.Name)

		inUse := false
		for _, other := range c.midToTransport {
			inUse = inUse || other == name
		}
		if inUse {
			continue
		}

		if rec, ok := c.transports[name]; ok {
			if err := rec.close(); err != nil {
				c.log.Warnf("%s: failed to close rejected transport: %v", name, err)
			}
			delete(c.transports, name)
			for j, n := range c.order {
				if n == name {
					c.order = append(c.order[:j], c.order[j+1:]...)

					break
				}
			}
			c.log.Infof("%s: released transport of rejected section", name)
		}
	}
}

func (c *Controller) setCertificate(cert *transport.Certificate) {
	c.certificate = cert
	for _, name := range c.order {
		for _, d := range c.transports[name].dtlsTransports() {
			if err := d.SetLocalCertificate(cert); err != nil {
				c.log.Errorf("%s: failed to set certificate: %v", name, err)
			}
		}
	}
}

func (c *Controller) applyLocalParameters(rec *JsepTransport, td description.TransportDescription) {
	if !td.HasIceCredentials() {
		c.log.Errorf("%s: local description carries no ice credentials", rec.name)

		return
	}

	for _, ice := range rec.iceTransports() {
		ice.SetIceParameters(td.IceParameters())
	}
	c.applyDtlsRole(rec)

	rec.localParamsSet = true
	if rec.remoteParamsSet {
		rec.advance(TransportStateParametersSet)
	}
}

func (c *Controller) applyRemoteParameters(rec *JsepTransport, td description.TransportDescription) {
	for _, ice := range rec.iceTransports() {
		ice.SetRemoteIceParameters(td.IceParameters())
	}
	if fp := td.Fingerprint; fp != nil {
		for _, d := range rec.dtlsTransports() {
			if err := d.SetRemoteFingerprint(fp.Algorithm, fp.Digest); err != nil {
				c.log.Errorf("%s: failed to set remote fingerprint: %v", rec.name, err)
			}
		}
	} else {
		c.log.Warnf("%s: remote description carries no fingerprint", rec.name)
	}
	c.applyDtlsRole(rec)

	rec.remoteParamsSet = true
	if rec.localParamsSet {
		rec.advance(TransportStateParametersSet)
	}
}

// negotiatedDtlsRole follows the local a=setup, then the remote one, and
// defaults to client.
func (c *Controller) negotiatedDtlsRole(name string) transport.DtlsRole {
	if c.localDesc != nil {
		if info := c.localDesc.TransportInfoByName(name); info != nil {
			switch info.Description.ConnectionRole {
			case description.ConnectionRoleActive:
				return transport.DtlsRoleClient
			case description.ConnectionRolePassive:
				return transport.DtlsRoleServer
			default:
			}
		}
	}
	if c.remoteDesc != nil {
		if info := c.remoteDesc.TransportInfoByName(name); info != nil {
			switch info.Description.ConnectionRole {
			case description.ConnectionRoleActive:
				return transport.DtlsRoleServer
			case description.ConnectionRolePassive:
				return transport.DtlsRoleClient
			default:
			}
		}
	}

	return transport.DtlsRoleClient
}

func (c *Controller) applyDtlsRole(rec *JsepTransport) {
	role := c.negotiatedDtlsRole(rec.name)
	for _, d := range rec.dtlsTransports() {
		if err := d.SetDtlsRole(role); err != nil {
			c.log.Debugf("%s: keeping dtls role %s: %v", rec.name, d.DtlsRole(), err)
		}
	}
}

func (c *Controller) startGathering() {
	for _, name := range c.order {
		rec := c.transports[name]
		for _, ice := range rec.iceTransports() {
			ice.MaybeStartGathering()
		}
		rec.advance(TransportStateGatheringStarted)
	}
	c.updateAggregateStates()
}

func (c *Controller) addRemoteCandidate(candidate description.Candidate) {
	if candidate.Mid == "" {
		for _, name := range c.order {
			rec := c.transports[name]
			if err := rec.iceFor(candidate.Component).AddRemoteCandidate(candidate); err != nil {
				c.log.Warnf("%s: failed to add candidate %s: %v", name, candidate, err)
			}
		}

		return
	}

	rec, err := c.transportForMid(candidate.Mid)
	if err != nil {
		c.log.Warnf("dropping candidate %s: %v", candidate, err)

		return
	}
	if err := rec.iceFor(candidate.Component).AddRemoteCandidate(candidate); err != nil {
		c.log.Warnf("%s: failed to add candidate %s: %v", rec.name, candidate, err)
	}
}

// handleRoleConflict reverses the role once; the first conflict decides
// since roles are resolved before any port commits to one.
func (c *Controller) handleRoleConflict() {
	if c.roleConflictSeen {
		return
	}
	c.roleConflictSeen = true
	c.iceRole = c.iceRole.Reverse()
	c.log.Infof("got role conflict, switching to %s role", c.iceRole)

	for _, name := range c.order {
		for _, ice := range c.transports[name].iceTransports() {
			ice.SetIceRole(c.iceRole)
		}
	}
}

func (c *Controller) onTransportStateChanged(rec *JsepTransport) {
	dtls := rec.dtlsTransports()
	for i, ice := range rec.iceTransports() {
		if ice.State() == transport.IceTransportStateFailed || dtls[i].State() == transport.DtlsTransportStateFailed {
			rec.advance(TransportStateFailed)
		}
	}
	c.updateAggregateStates()
}

// updateAggregateStates folds every component into the session states and
// signals each change once.
func (c *Controller) updateAggregateStates() {
	iceCounts := map[transport.IceTransportState]int{}
	dtlsCounts := map[transport.DtlsTransportState]int{}
	gatheringCounts := map[transport.IceGatheringState]int{}
	total := 0

	for _, name := range c.order {
		rec := c.transports[name]
		dtls := rec.dtlsTransports()
		for i, ice := range rec.iceTransports() {
			total++
			iceCounts[ice.State()]++
			dtlsCounts[dtls[i].State()]++
			gatheringCounts[ice.GatheringState()]++
		}
	}

	c.setIceConnectionState(aggregateIceConnectionState(iceCounts, total))
	c.setConnectionState(aggregateConnectionState(iceCounts, dtlsCounts, total))
	c.setGatheringState(aggregateGatheringState(gatheringCounts, total))
}

func aggregateIceConnectionState(counts map[transport.IceTransportState]int, total int) IceConnectionState {
	closed := counts[transport.IceTransportStateClosed]
	connected := counts[transport.IceTransportStateConnected]
	completed := counts[transport.IceTransportStateCompleted]
	newOrChecking := counts[transport.IceTransportStateNew] + counts[transport.IceTransportStateChecking]

	switch {
	case total == 0:
		return IceConnectionStateNew
	case counts[transport.IceTransportStateFailed] > 0:
		return IceConnectionStateFailed
	case counts[transport.IceTransportStateDisconnected] > 0:
		return IceConnectionStateDisconnected
	case counts[transport.IceTransportStateNew]+closed == total:
		return IceConnectionStateNew
	case newOrChecking > 0:
		return IceConnectionStateChecking
	case completed+closed == total:
		return IceConnectionStateCompleted
	case connected+completed+closed == total:
		return IceConnectionStateConnected
	default:
		return IceConnectionStateChecking
	}
}

func aggregateConnectionState(ice map[transport.IceTransportState]int,
	dtls map[transport.DtlsTransportState]int, total int,
) PeerConnectionState {
	iceClosed := ice[transport.IceTransportStateClosed]
	dtlsClosed := dtls[transport.DtlsTransportStateClosed]
	iceUp := ice[transport.IceTransportStateConnected] + ice[transport.IceTransportStateCompleted] + iceClosed

	switch {
	case total == 0:
		return PeerConnectionStateNew
	case ice[transport.IceTransportStateFailed] > 0 || dtls[transport.DtlsTransportStateFailed] > 0:
		return PeerConnectionStateFailed
	case ice[transport.IceTransportStateDisconnected] > 0:
		return PeerConnectionStateDisconnected
	case ice[transport.IceTransportStateNew]+iceClosed == total && dtls[transport.DtlsTransportStateNew]+dtlsClosed == total:
		return PeerConnectionStateNew
	case iceUp == total && dtls[transport.DtlsTransportStateConnected]+dtlsClosed == total:
		return PeerConnectionStateConnected
	default:
		return PeerConnectionStateConnecting
	}
}

func aggregateGatheringState(counts map[transport.IceGatheringState]int, total int) transport.IceGatheringState {
	switch {
	case counts[transport.IceGatheringStateGathering] > 0:
		return transport.IceGatheringStateGathering
	case total > 0 && counts[transport.IceGatheringStateComplete] == total:
		return transport.IceGatheringStateComplete
	default:
		return transport.IceGatheringStateNew
	}
}

func (c *Controller) setIceConnectionState(state IceConnectionState) {
	if c.states.IceConnection == state {
		return
	}
	c.states.IceConnection = state
	c.log.Infof("ice connection state changed: %s", state)

	c.handlersMu.RLock()
	handler := c.onIceConnectionStateChange
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(state)
	}
}

func (c *Controller) setConnectionState(state PeerConnectionState) {
	if c.states.Connection == state {
		return
	}
	c.states.Connection = state
	c.log.Infof("peer connection state changed: %s", state)

	c.handlersMu.RLock()
	handler := c.onConnectionStateChange
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(state)
	}
}

func (c *Controller) setGatheringState(state transport.IceGatheringState) {
	if c.states.IceGathering == state {
		return
	}
	c.states.IceGathering = state
	c.log.Debugf("ice gathering state changed: %s", state)

	c.handlersMu.RLock()
	handler := c.onGatheringStateChange
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(state)
	}
}

func (c *Controller) emitCandidateGathered(candidate description.Candidate) {
	c.handlersMu.RLock()
	handler := c.onCandidateGathered
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(candidate)
	}
}

func (c *Controller) emitDtlsHandshakeError(name string, err error) {
	c.log.Warnf("%s: dtls handshake failed: %v", name, err)

	c.handlersMu.RLock()
	handler := c.onDtlsHandshakeError
	c.handlersMu.RUnlock()
	if handler != nil {
		handler(name, err)
	}
}
