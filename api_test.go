// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"errors"
	"testing"

	"github.com/pion/interceptor"
	"github.com/pion/p2p/internal/bwe"
	"github.com/pion/p2p/internal/transport/transporttest"
	"github.com/pion/transport/v4/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewAPI(t *testing.T) {
	api := NewAPI()
	assert.NotNil(t, api.settingEngine, "failed to init settings engine")
	assert.NotNil(t, api.interceptorRegistry, "failed to init interceptor registry")
	assert.NotNil(t, api.estimatorFactory, "failed to init bandwidth estimator")
	assert.Nil(t, api.iceFactory)
	assert.Nil(t, api.dtlsFactory)
}

func TestNewAPI_Options(t *testing.T) {
	s := SettingEngine{}
	s.SetICEControlling(true)
	registry := &interceptor.Registry{}
	estimator := &recordingEstimator{}

	api := NewAPI(
		WithSettingEngine(s),
		WithInterceptorRegistry(registry),
		WithBandwidthEstimatorFactory(func() (bwe.Estimator, error) { return estimator, nil }),
	)

	assert.Equal(t, s.iceRole, api.settingEngine.iceRole)
	assert.Same(t, registry, api.interceptorRegistry)
	got, err := api.estimatorFactory()
	require.NoError(t, err)
	assert.Same(t, estimator, got)
}

func TestAPI_SharedConnectionContext(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	api, _ := newTestAPI(SettingEngine{})

	first, err := api.NewPeerConnection()
	require.NoError(t, err)
	second, err := api.NewPeerConnection()
	require.NoError(t, err)

	shared := first.connectionContext
	assert.Same(t, shared, second.connectionContext)
	assert.Same(t, shared.SignalingThread(), second.signaling)

	require.NoError(t, first.Close())
	assert.False(t, shared.NetworkThread().IsClosed())
	require.NoError(t, second.SetRemoteSDP(minimalOffer))

	require.NoError(t, second.Close())
	assert.True(t, shared.NetworkThread().IsClosed())
	assert.True(t, shared.WorkerThread().IsClosed())
	assert.True(t, shared.SignalingThread().IsClosed())

	// a later connection gets a new context
	third, err := api.NewPeerConnection()
	require.NoError(t, err)
	assert.NotSame(t, shared, third.connectionContext)
	require.NoError(t, third.Close())
}

var errNoEstimator = errors.New("no estimator")

func TestAPI_EstimatorFactoryError(t *testing.T) {
	report := test.CheckRoutines(t)
	defer report()

	api := NewAPI(
		WithIceTransportFactory(&transporttest.IceFactory{}),
		WithDtlsTransportFactory(&transporttest.DtlsFactory{}),
		WithBandwidthEstimatorFactory(func() (bwe.Estimator, error) { return nil, errNoEstimator }),
	)

	_, err := api.NewPeerConnection()
	assert.ErrorIs(t, err, errNoEstimator)
	assert.Nil(t, api.connectionContext)
}
