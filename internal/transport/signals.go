// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"sync"

	"github.com/pion/p2p/pkg/description"
)

// IceSignals implements the handler registration half of IceTransport.
// Every On* call adds a listener; listeners run in registration order on
// the emitting goroutine.
type IceSignals struct {
	mu                sync.RWMutex
	onCandidate       []func(IceTransport, description.Candidate)
	onStateChange     []func(IceTransport, IceTransportState)
	onGatheringChange []func(IceTransport, IceGatheringState)
	onRoleConflict    []func(IceTransport)
}

// OnCandidateGathered registers fn for locally gathered candidates.
func (s *IceSignals) OnCandidateGathered(fn func(IceTransport, description.Candidate)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onCandidate = append(s.onCandidate, fn)
}

// OnStateChange registers fn for connectivity state changes.
func (s *IceSignals) OnStateChange(fn func(IceTransport, IceTransportState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = append(s.onStateChange, fn)
}

// OnGatheringStateChange registers fn for gathering state changes.
func (s *IceSignals) OnGatheringStateChange(fn func(IceTransport, IceGatheringState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onGatheringChange = append(s.onGatheringChange, fn)
}

// OnRoleConflict registers fn for ICE role conflicts.
func (s *IceSignals) OnRoleConflict(fn func(IceTransport)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onRoleConflict = append(s.onRoleConflict, fn)
}

// EmitCandidateGathered calls every candidate listener.
func (s *IceSignals) EmitCandidateGathered(t IceTransport, c description.Candidate) {
	s.mu.RLock()
	handlers := s.onCandidate
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(t, c)
	}
}

// EmitStateChange calls every state listener.
func (s *IceSignals) EmitStateChange(t IceTransport, state IceTransportState) {
	s.mu.RLock()
	handlers := s.onStateChange
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(t, state)
	}
}

// EmitGatheringStateChange calls every gathering listener.
func (s *IceSignals) EmitGatheringStateChange(t IceTransport, state IceGatheringState) {
	s.mu.RLock()
	handlers := s.onGatheringChange
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(t, state)
	}
}

// EmitRoleConflict calls every role conflict listener.
func (s *IceSignals) EmitRoleConflict(t IceTransport) {
	s.mu.RLock()
	handlers := s.onRoleConflict
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(t)
	}
}

// DtlsSignals implements the handler registration half of DtlsTransport.
type DtlsSignals struct {
	mu               sync.RWMutex
	onStateChange    []func(DtlsTransport, DtlsTransportState)
	onHandshakeError []func(DtlsTransport, error)
}

// OnStateChange registers fn for handshake state changes.
func (s *DtlsSignals) OnStateChange(fn func(DtlsTransport, DtlsTransportState)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onStateChange = append(s.onStateChange, fn)
}

// OnHandshakeError registers fn for handshake failures.
func (s *DtlsSignals) OnHandshakeError(fn func(DtlsTransport, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onHandshakeError = append(s.onHandshakeError, fn)
}

// EmitStateChange calls every state listener.
func (s *DtlsSignals) EmitStateChange(t DtlsTransport, state DtlsTransportState) {
	s.mu.RLock()
	handlers := s.onStateChange
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(t, state)
	}
}

// EmitHandshakeError calls every handshake error listener.
func (s *DtlsSignals) EmitHandshakeError(t DtlsTransport, err error) {
	s.mu.RLock()
	handlers := s.onHandshakeError
	s.mu.RUnlock()
	for _, fn := range handlers {
		fn(t, err)
	}
}
