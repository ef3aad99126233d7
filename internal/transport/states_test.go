// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"testing"

	"github.com/pion/ice/v4"
	"github.com/stretchr/testify/assert"
)

func TestIceTransportState_String(t *testing.T) {
	testCases := []struct {
		state          IceTransportState
		expectedString string
		writable       bool
	}{
		{IceTransportStateUnknown, ErrUnknownType.Error(), false},
		{IceTransportStateNew, "new", false},
		{IceTransportStateChecking, "checking", false},
		{IceTransportStateConnected, "connected", true},
		{IceTransportStateCompleted, "completed", true},
		{IceTransportStateFailed, "failed", false},
		{IceTransportStateDisconnected, "disconnected", false},
		{IceTransportStateClosed, "closed", false},
	}

	for i, testCase := range testCases {
		assert.Equal(t, testCase.expectedString, testCase.state.String(), "testCase: %d %v", i, testCase)
		assert.Equal(t, testCase.writable, testCase.state.IsWritable(), "testCase: %d %v", i, testCase)
	}
}

func TestNewIceTransportStateFromICE(t *testing.T) {
	assert.Equal(t, IceTransportStateChecking, newIceTransportStateFromICE(ice.ConnectionStateChecking))
	assert.Equal(t, IceTransportStateConnected, newIceTransportStateFromICE(ice.ConnectionStateConnected))
	assert.Equal(t, IceTransportStateFailed, newIceTransportStateFromICE(ice.ConnectionStateFailed))
	assert.Equal(t, IceTransportStateClosed, newIceTransportStateFromICE(ice.ConnectionStateClosed))
}

func TestIceRole_Reverse(t *testing.T) {
	assert.Equal(t, IceRoleControlled, IceRoleControlling.Reverse())
	assert.Equal(t, IceRoleControlling, IceRoleControlled.Reverse())
	assert.Equal(t, IceRoleUnknown, IceRoleUnknown.Reverse())
}

func TestDtlsStates_String(t *testing.T) {
	assert.Equal(t, "connecting", DtlsTransportStateConnecting.String())
	assert.Equal(t, "failed", DtlsTransportStateFailed.String())
	assert.Equal(t, "client", DtlsRoleClient.String())
	assert.Equal(t, "server", DtlsRoleServer.String())
	assert.Equal(t, "complete", IceGatheringStateComplete.String())
	assert.Equal(t, "rtcp", ComponentRTCP.String())
}
