// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"crypto/rand"
	"io"
	"time"

	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/p2p/internal/log"
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/randutil"
	"github.com/pion/stun/v3"
	transportpkg "github.com/pion/transport/v4"
	"go.uber.org/zap"
)

const (
	// DefaultCertificateValidity is the lifetime of the certificate
	// generated for every negotiation round.
	DefaultCertificateValidity = 365 * 24 * time.Hour

	// DefaultPacketMTU bounds the size of every RTP packet sent.
	DefaultPacketMTU = 1200

	// rtpOverhead is the fixed RTP header plus the transport-cc extension.
	rtpOverhead = 12 + 8
)

// SettingEngine allows influencing behavior in ways that are not
// supported by the WebRTC API. This allows us to support additional
// use-cases without deviating from the WebRTC API elsewhere.
type SettingEngine struct {
	ephemeralUDP struct {
		PortMin uint16
		PortMax uint16
	}
	timeout struct {
		ICEDisconnectedTimeout *time.Duration
		ICEFailedTimeout       *time.Duration
		ICEKeepaliveInterval   *time.Duration
	}
	candidates struct {
		ICENetworkTypes []ice.NetworkType
		IncludeLoopback bool
		InterfaceFilter func(string) bool
	}
	iceURLs             []*stun.URI
	iceUDPMuxPort       int
	net                 transportpkg.Net
	rtcpMuxPolicy       RTCPMuxPolicy
	iceRole             transport.IceRole
	certificateValidity time.Duration
	mathRandom          randutil.MathRandomGenerator
	cryptoRandom        io.Reader
	packetMTU           uint
	LoggerFactory       logging.LoggerFactory
}

// SetEphemeralUDPPortRange limits the pool of ephemeral ports that
// ICE UDP connections can allocate from. This affects both host candidates,
// and the local address of server reflexive candidates.
func (e *SettingEngine) SetEphemeralUDPPortRange(portMin, portMax uint16) error {
	if portMax < portMin {
		return errSettingEngineSetEphemeralUDPPortRange
	}

	e.ephemeralUDP.PortMin = portMin
	e.ephemeralUDP.PortMax = portMax

	return nil
}

// SetICETimeouts sets the behavior around ICE Timeouts
//
// disconnectedTimeout:
//
//	Duration without network activity before an Agent is considered disconnected.
//
// failedTimeout:
//
//	Duration without network activity before an Agent is considered failed after disconnected.
//
// keepAliveInterval:
//
//	How often the ICE Agent sends extra traffic if there is no activity, if media is flowing no traffic is sent.
func (e *SettingEngine) SetICETimeouts(disconnectedTimeout, failedTimeout, keepAliveInterval time.Duration) {
	e.timeout.ICEDisconnectedTimeout = &disconnectedTimeout
	e.timeout.ICEFailedTimeout = &failedTimeout
	e.timeout.ICEKeepaliveInterval = &keepAliveInterval
}

// SetNetworkTypes configures what types of candidate networks are supported
// during local and server reflexive gathering.
func (e *SettingEngine) SetNetworkTypes(candidateTypes []ice.NetworkType) {
	e.candidates.ICENetworkTypes = candidateTypes
}

// SetIncludeLoopbackCandidate enable pion to gather loopback candidates, it is useful
// for some VM have public IP mapped to loopback interface.
func (e *SettingEngine) SetIncludeLoopbackCandidate(include bool) {
	e.candidates.IncludeLoopback = include
}

// SetInterfaceFilter sets the filtering functions when gathering ICE candidates
// This can be used to exclude certain network interfaces from ICE. Which may be
// useful if you know a certain interface will never succeed, or if you wish to reduce
// the amount of information you wish to expose to the remote peer.
func (e *SettingEngine) SetInterfaceFilter(filter func(string) bool) {
	e.candidates.InterfaceFilter = filter
}

// SetICEServers parses the STUN and TURN urls used for gathering.
func (e *SettingEngine) SetICEServers(urls ...string) error {
	parsed := make([]*stun.URI, 0, len(urls))
	for _, raw := range urls {
		uri, err := stun.ParseURI(raw)
		if err != nil {
			return err
		}
		parsed = append(parsed, uri)
	}
	e.iceURLs = parsed

	return nil
}

// SetICEUDPMux makes every ICE transport share one UDP socket bound to
// port. Zero disables sharing.
func (e *SettingEngine) SetICEUDPMux(port int) {
	e.iceUDPMuxPort = port
}

// SetNet sets the network manager, a vnet.Net in tests. Nil restores the
// host network.
func (e *SettingEngine) SetNet(net transportpkg.Net) {
	e.net = net
}

// SetRTCPMuxPolicy sets the policy applied to remote descriptions.
func (e *SettingEngine) SetRTCPMuxPolicy(policy RTCPMuxPolicy) {
	e.rtcpMuxPolicy = policy
}

// SetICEControlling sets the ICE role of new transports. Answerers are
// controlled by default.
func (e *SettingEngine) SetICEControlling(controlling bool) {
	if controlling {
		e.iceRole = transport.IceRoleControlling
	} else {
		e.iceRole = transport.IceRoleControlled
	}
}

// SetCertificateValidity sets the lifetime of generated certificates.
func (e *SettingEngine) SetCertificateValidity(validity time.Duration) {
	e.certificateValidity = validity
}

// SetRandomSources replaces the generators of SSRCs, cnames and
// certificates. ICE credentials always come from crypto/rand. A nil argument
// keeps the default.
func (e *SettingEngine) SetRandomSources(mathRandom randutil.MathRandomGenerator, cryptoRandom io.Reader) {
	e.mathRandom = mathRandom
	e.cryptoRandom = cryptoRandom
}

// SetPacketMTU sets the largest RTP packet the send path produces.
func (e *SettingEngine) SetPacketMTU(mtu uint) error {
	if mtu <= rtpOverhead {
		return errSettingEngineInvalidMTU
	}
	e.packetMTU = mtu

	return nil
}

// SetZapLogger routes every log line of the connection through logger,
// tagged with the scope that produced it.
func (e *SettingEngine) SetZapLogger(logger *zap.Logger) {
	e.LoggerFactory = log.NewZapFactory(logger)
}

func (e *SettingEngine) getLoggerFactory() logging.LoggerFactory {
	if e.LoggerFactory == nil {
		return logging.NewDefaultLoggerFactory()
	}

	return e.LoggerFactory
}

func (e *SettingEngine) getCertificateValidity() time.Duration {
	if e.certificateValidity == 0 {
		return DefaultCertificateValidity
	}

	return e.certificateValidity
}

func (e *SettingEngine) getMathRandom() randutil.MathRandomGenerator {
	if e.mathRandom == nil {
		return randutil.NewMathRandomGenerator()
	}

	return e.mathRandom
}

func (e *SettingEngine) getCryptoRandom() io.Reader {
	if e.cryptoRandom == nil {
		return rand.Reader
	}

	return e.cryptoRandom
}

func (e *SettingEngine) getPacketMTU() uint {
	if e.packetMTU == 0 {
		return DefaultPacketMTU
	}

	return e.packetMTU
}

func (e *SettingEngine) agentConfig(net transportpkg.Net, mux ice.UDPMux) transport.AgentConfig {
	return transport.AgentConfig{
		Urls:                e.iceURLs,
		PortMin:             e.ephemeralUDP.PortMin,
		PortMax:             e.ephemeralUDP.PortMax,
		NetworkTypes:        e.candidates.ICENetworkTypes,
		Net:                 net,
		UDPMux:              mux,
		IncludeLoopback:     e.candidates.IncludeLoopback,
		InterfaceFilter:     e.candidates.InterfaceFilter,
		DisconnectedTimeout: e.timeout.ICEDisconnectedTimeout,
		FailedTimeout:       e.timeout.ICEFailedTimeout,
		KeepaliveInterval:   e.timeout.ICEKeepaliveInterval,
		LoggerFactory:       e.getLoggerFactory(),
	}
}
