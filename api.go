// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"sync"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/p2p/internal/bwe"
	"github.com/pion/p2p/internal/transport"
)

// API bundles the settings shared by the peer connections it creates.
// Peer connections of one API share a ConnectionContext, so they run on
// the same threads and sockets.
type API struct {
	settingEngine       *SettingEngine
	interceptorRegistry *interceptor.Registry
	estimatorFactory    bwe.Factory
	iceFactory          transport.IceTransportFactory
	dtlsFactory         transport.DtlsTransportFactory

	mu                sync.Mutex
	connectionContext *ConnectionContext
}

// NewAPI Creates a new API object for keeping semi-global settings to WebRTC objects
//
// It uses the default interceptors when WithInterceptorRegistry is not
// given.
func NewAPI(options ...func(*API)) *API {
	a := &API{}

	for _, o := range options {
		o(a)
	}

	if a.settingEngine == nil {
		a.settingEngine = &SettingEngine{}
	}

	if a.interceptorRegistry == nil {
		a.interceptorRegistry = &interceptor.Registry{}
		if err := RegisterDefaultInterceptors(a.interceptorRegistry); err != nil {
			a.settingEngine.getLoggerFactory().NewLogger("api").Errorf("failed to register interceptors: %v", err)
		}
	}

	if a.estimatorFactory == nil {
		a.estimatorFactory = bwe.NewLossBasedFactory(bwe.WithLoggerFactory(a.settingEngine.getLoggerFactory()))
	}

	return a
}

// WithSettingEngine allows providing a SettingEngine to the API.
// Settings should not be changed after passing the engine to an API.
func WithSettingEngine(s SettingEngine) func(a *API) {
	return func(a *API) {
		a.settingEngine = &s
	}
}

// WithInterceptorRegistry allows providing Interceptors to the API.
// Settings should not be changed after passing the registry to an API.
func WithInterceptorRegistry(ir *interceptor.Registry) func(a *API) {
	return func(a *API) {
		a.interceptorRegistry = ir
	}
}

// WithBandwidthEstimatorFactory replaces the loss based estimator.
func WithBandwidthEstimatorFactory(f bwe.Factory) func(a *API) {
	return func(a *API) {
		a.estimatorFactory = f
	}
}

// WithIceTransportFactory replaces the pion/ice backed ICE transports.
func WithIceTransportFactory(f transport.IceTransportFactory) func(a *API) {
	return func(a *API) {
		a.iceFactory = f
	}
}

// WithDtlsTransportFactory replaces the pion/dtls backed DTLS transports.
func WithDtlsTransportFactory(f transport.DtlsTransportFactory) func(a *API) {
	return func(a *API) {
		a.dtlsFactory = f
	}
}

func (api *API) loggerFactory() logging.LoggerFactory {
	return api.settingEngine.getLoggerFactory()
}

// acquireConnectionContext returns the shared context, creating it for the
// first peer connection.
func (api *API) acquireConnectionContext() (*ConnectionContext, error) {
	api.mu.Lock()
	defer api.mu.Unlock()

	if api.connectionContext == nil {
		c, err := newConnectionContext(api.settingEngine, api.iceFactory, api.dtlsFactory)
		if err != nil {
			return nil, err
		}
		api.connectionContext = c
	}
	api.connectionContext.retain()

	return api.connectionContext, nil
}

// releaseConnectionContext drops one reference, the last one tears the
// context down.
func (api *API) releaseConnectionContext(c *ConnectionContext) error {
	api.mu.Lock()
	defer api.mu.Unlock()

	last, err := c.release()
	if last && api.connectionContext == c {
		api.connectionContext = nil
	}

	return err
}
