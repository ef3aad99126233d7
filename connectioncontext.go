// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"errors"
	"net"
	"sync"

	"github.com/pion/ice/v4"
	"github.com/pion/logging"
	"github.com/pion/p2p/internal/thread"
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/internal/util"
	transportpkg "github.com/pion/transport/v4"
	"github.com/pion/transport/v4/stdnet"
)

// ConnectionContext owns what peer connections of one API share: the
// network, worker and signaling threads, the network manager and the
// socket factory. It is reference counted; the last release stops the
// threads after the sockets are closed.
type ConnectionContext struct {
	mu   sync.Mutex
	refs int

	network   *thread.Thread
	worker    *thread.Thread
	signaling *thread.Thread

	net      transportpkg.Net
	udpConn  net.PacketConn
	udpMux   *ice.UDPMuxDefault
	released bool

	iceFactory  transport.IceTransportFactory
	dtlsFactory transport.DtlsTransportFactory

	log logging.LeveledLogger
}

func newConnectionContext(settings *SettingEngine, iceFactory transport.IceTransportFactory,
	dtlsFactory transport.DtlsTransportFactory,
) (*ConnectionContext, error) {
	loggerFactory := settings.getLoggerFactory()
	c := &ConnectionContext{
		network:     thread.New("pc_network_thread", loggerFactory),
		worker:      thread.New("pc_worker_thread", loggerFactory),
		signaling:   thread.New("pc_signaling_thread", loggerFactory),
		net:         settings.net,
		iceFactory:  iceFactory,
		dtlsFactory: dtlsFactory,
		log:         loggerFactory.NewLogger("pc"),
	}

	if c.net == nil {
		stdNet, err := stdnet.NewNet()
		if err != nil {
			c.stopThreads()

			return nil, err
		}
		c.net = stdNet
	}

	if settings.iceUDPMuxPort != 0 && c.iceFactory == nil {
		conn, err := c.net.ListenUDP("udp", &net.UDPAddr{Port: settings.iceUDPMuxPort})
		if err != nil {
			c.stopThreads()

			return nil, err
		}
		c.udpConn = conn
		c.udpMux = ice.NewUDPMuxDefault(ice.UDPMuxParams{
			Logger:  loggerFactory.NewLogger("ice"),
			UDPConn: conn,
			Net:     c.net,
		})
		c.log.Infof("sharing udp port %d between ice transports", settings.iceUDPMuxPort)
	}

	if c.iceFactory == nil {
		var mux ice.UDPMux
		if c.udpMux != nil {
			mux = c.udpMux
		}
		c.iceFactory = &transport.AgentFactory{Config: settings.agentConfig(c.net, mux)}
	}
	if c.dtlsFactory == nil {
		c.dtlsFactory = &transport.ConnFactory{Config: transport.ConnConfig{LoggerFactory: loggerFactory}}
	}

	return c, nil
}

// NetworkThread owns every transport object.
func (c *ConnectionContext) NetworkThread() *thread.Thread {
	return c.network
}

// WorkerThread runs the media send path.
func (c *ConnectionContext) WorkerThread() *thread.Thread {
	return c.worker
}

// SignalingThread owns session descriptions and delivers callbacks.
func (c *ConnectionContext) SignalingThread() *thread.Thread {
	return c.signaling
}

// Net returns the network manager.
func (c *ConnectionContext) Net() transportpkg.Net {
	return c.net
}

func (c *ConnectionContext) retain() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.refs++
}

// release drops one reference and reports whether it was the last. The
// caller must have released its transports before.
func (c *ConnectionContext) release() (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.released {
		return true, nil
	}
	c.refs--
	if c.refs > 0 {
		return false, nil
	}
	c.released = true

	var errs []error
	if c.udpMux != nil {
		errs = append(errs, c.udpMux.Close())
	}
	if c.udpConn != nil {
		if err := c.udpConn.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			errs = append(errs, err)
		}
	}
	c.stopThreads()

	return true, util.FlattenErrs(errs)
}

// stopThreads stops the signaling thread first, nothing posts to the
// network thread once signaling and worker are drained.
func (c *ConnectionContext) stopThreads() {
	c.signaling.Stop()
	c.worker.Stop()
	c.network.Stop()
}
