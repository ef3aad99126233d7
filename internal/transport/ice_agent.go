// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"context"
	"errors"
	"net"
	"sync"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/p2p/internal/thread"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/stun/v3"
	transportpkg "github.com/pion/transport/v4"
)

// AgentConfig configures the pion/ice agents created by AgentFactory.
type AgentConfig struct {
	Urls         []*stun.URI
	PortMin      uint16
	PortMax      uint16
	NetworkTypes []ice.NetworkType

	// Net is the network manager, nil means the host network.
	Net transportpkg.Net
	// UDPMux shares one socket between every agent when set.
	UDPMux ice.UDPMux

	IncludeLoopback bool
	InterfaceFilter func(string) bool

	DisconnectedTimeout *time.Duration
	FailedTimeout       *time.Duration
	KeepaliveInterval   *time.Duration

	LoggerFactory logging.LoggerFactory
}

// AgentFactory creates IceTransports backed by pion/ice agents.
type AgentFactory struct {
	Config AgentConfig
}

// CreateIceTransport returns a transport whose agent is created as soon as
// local credentials are set.
func (f *AgentFactory) CreateIceTransport(name string, component Component, init IceTransportInit) (IceTransport, error) {
	loggerFactory := f.Config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	return &AgentTransport{
		name:           name,
		component:      component,
		role:           init.Role,
		config:         f.Config,
		state:          IceTransportStateNew,
		gatheringState: IceGatheringStateNew,
		events:         thread.New("ice-events-"+name, loggerFactory),
		log:            loggerFactory.NewLogger("ice"),
	}, nil
}

// AgentTransport is an IceTransport over a pion/ice Agent.
type AgentTransport struct {
	IceSignals

	mu        sync.Mutex
	name      string
	component Component
	role      IceRole
	config    AgentConfig

	local             description.IceParameters
	remote            description.IceParameters
	pendingCandidates []ice.Candidate
	gatherRequested   bool

	agent          *ice.Agent
	conn           *ice.Conn
	cancelConnect  context.CancelFunc
	connecting     bool
	state          IceTransportState
	gatheringState IceGatheringState
	isClosed       bool

	// agentState is the last state reported by the agent, including
	// writable states held back until the conn is handed out.
	agentState IceTransportState

	// events serializes signal emission outside of mu
	events *thread.Thread
	log    logging.LeveledLogger
}

// TransportName returns the mid the transport was created for.
func (t *AgentTransport) TransportName() string {
	return t.name
}

// Component returns the ICE component.
func (t *AgentTransport) Component() Component {
	return t.component
}

// SetIceRole sets the role used when connectivity checks start.
func (t *AgentTransport) SetIceRole(role IceRole) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.role = role
}

// IceRole returns the current role.
func (t *AgentTransport) IceRole() IceRole {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.role
}

// SetIceParameters sets the local credentials and creates the agent.
func (t *AgentTransport) SetIceParameters(params description.IceParameters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed || t.agent != nil {
		return
	}
	t.local = params

	if err := t.createAgent(); err != nil {
		t.log.Errorf("%s: failed to create ice agent: %v", t.name, err)
		t.setStateLocked(IceTransportStateFailed)
	}
}

// SetRemoteIceParameters sets the remote credentials and starts
// connectivity checks once the agent exists.
func (t *AgentTransport) SetRemoteIceParameters(params description.IceParameters) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.remote = params
	t.maybeConnect()
}

// AddRemoteCandidate adds c, buffering it until the agent exists.
func (t *AgentTransport) AddRemoteCandidate(c description.Candidate) error {
	candidate, err := c.ICE()
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if t.isClosed {
		return ErrTransportClosed
	}
	if t.agent == nil {
		t.pendingCandidates = append(t.pendingCandidates, candidate)

		return nil
	}

	return t.agent.AddRemoteCandidate(candidate)
}

// MaybeStartGathering starts gathering once, deferred until the agent exists.
func (t *AgentTransport) MaybeStartGathering() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.gatherRequested || t.isClosed {
		return
	}
	t.gatherRequested = true
	t.startGathering()
}

// State returns the connectivity state.
func (t *AgentTransport) State() IceTransportState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.state
}

// GatheringState returns the gathering state.
func (t *AgentTransport) GatheringState() IceGatheringState {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.gatheringState
}

// Conn returns the connected ice.Conn.
func (t *AgentTransport) Conn() net.Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.conn == nil {
		return nil
	}

	return t.conn
}

// Close stops the agent.
func (t *AgentTransport) Close() error {
	t.mu.Lock()
	if t.isClosed {
		t.mu.Unlock()

		return nil
	}
	t.isClosed = true
	agent, cancel := t.agent, t.cancelConnect
	t.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	var err error
	if agent != nil {
		err = agent.Close()
	}

	t.mu.Lock()
	t.setStateLocked(IceTransportStateClosed)
	t.mu.Unlock()

	return err
}

// createAgent must be called with mu held.
func (t *AgentTransport) createAgent() error {
	if t.local.Ufrag == "" || t.local.Pwd == "" {
		return ErrNoIceCredentials
	}

	loggerFactory := t.config.LoggerFactory
	if loggerFactory == nil {
		loggerFactory = logging.NewDefaultLoggerFactory()
	}

	agent, err := ice.NewAgent(&ice.AgentConfig{
		Urls:                t.config.Urls,
		PortMin:             t.config.PortMin,
		PortMax:             t.config.PortMax,
		NetworkTypes:        t.config.NetworkTypes,
		LocalUfrag:          t.local.Ufrag,
		LocalPwd:            t.local.Pwd,
		Net:                 t.config.Net,
		UDPMux:              t.config.UDPMux,
		IncludeLoopback:     t.config.IncludeLoopback,
		InterfaceFilter:     t.config.InterfaceFilter,
		DisconnectedTimeout: t.config.DisconnectedTimeout,
		FailedTimeout:       t.config.FailedTimeout,
		KeepaliveInterval:   t.config.KeepaliveInterval,
		MulticastDNSMode:    ice.MulticastDNSModeDisabled,
		LoggerFactory:       loggerFactory,
	})
	if err != nil {
		return err
	}

	if err = agent.OnCandidate(t.onAgentCandidate); err != nil {
		return errors.Join(err, agent.Close())
	}
	if err = agent.OnConnectionStateChange(t.onAgentStateChange); err != nil {
		return errors.Join(err, agent.Close())
	}
	t.agent = agent

	for _, c := range t.pendingCandidates {
		if err := agent.AddRemoteCandidate(c); err != nil {
			t.log.Warnf("%s: failed to add buffered candidate %s: %v", t.name, c, err)
		}
	}
	t.pendingCandidates = nil

	if t.gatherRequested {
		t.startGathering()
	}
	t.maybeConnect()

	return nil
}

// startGathering must be called with mu held.
func (t *AgentTransport) startGathering() {
	if t.agent == nil || t.gatheringState != IceGatheringStateNew {
		return
	}
	if err := t.agent.GatherCandidates(); err != nil {
		t.log.Errorf("%s: failed to gather candidates: %v", t.name, err)

		return
	}
	t.setGatheringStateLocked(IceGatheringStateGathering)
}

// maybeConnect must be called with mu held.
func (t *AgentTransport) maybeConnect() {
	if t.agent == nil || t.connecting || t.isClosed || t.remote.Ufrag == "" || t.remote.Pwd == "" {
		return
	}
	t.connecting = true

	ctx, cancel := context.WithCancel(context.Background())
	t.cancelConnect = cancel
	agent, role, remote := t.agent, t.role, t.remote

	go func() {
		var (
			conn *ice.Conn
			err  error
		)
		if role == IceRoleControlled {
			conn, err = agent.Accept(ctx, remote.Ufrag, remote.Pwd)
		} else {
			conn, err = agent.Dial(ctx, remote.Ufrag, remote.Pwd)
		}

		t.mu.Lock()
		defer t.mu.Unlock()
		if err != nil {
			if !t.isClosed {
				t.log.Warnf("%s: ice connect failed: %v", t.name, err)
				t.setStateLocked(IceTransportStateFailed)
			}

			return
		}
		t.conn = conn
		if t.agentState.IsWritable() {
			t.setStateLocked(t.agentState)
		} else {
			t.setStateLocked(IceTransportStateConnected)
		}
	}()
}

func (t *AgentTransport) onAgentCandidate(c ice.Candidate) {
	if c == nil {
		t.mu.Lock()
		t.setGatheringStateLocked(IceGatheringStateComplete)
		t.mu.Unlock()

		return
	}

	candidate, err := description.ParseCandidate(c.Marshal())
	if err != nil {
		t.log.Warnf("%s: dropping local candidate %s: %v", t.name, c, err)

		return
	}
	candidate.Mid = t.name
	t.events.Post(func(context.Context) {
		t.EmitCandidateGathered(t, candidate)
	})
}

func (t *AgentTransport) onAgentStateChange(s ice.ConnectionState) {
	state := newIceTransportStateFromICE(s)
	t.log.Infof("%s: ice connection state changed: %s", t.name, state)

	t.mu.Lock()
	defer t.mu.Unlock()
	t.agentState = state
	// Connected is reported once Dial or Accept handed out the conn.
	if state.IsWritable() && t.conn == nil {
		return
	}
	t.setStateLocked(state)
}

// setStateLocked must be called with mu held. Listeners may call back into
// the transport, so they run on the events thread.
func (t *AgentTransport) setStateLocked(state IceTransportState) {
	if t.state == state || t.state == IceTransportStateClosed {
		return
	}
	t.state = state
	t.events.Post(func(context.Context) {
		t.EmitStateChange(t, state)
	})
}

func (t *AgentTransport) setGatheringStateLocked(state IceGatheringState) {
	if t.gatheringState == state {
		return
	}
	t.gatheringState = state
	t.events.Post(func(context.Context) {
		t.EmitGatheringStateChange(t, state)
	})
}
