// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jsep

import (
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/internal/util"
)

// JsepTransport is the transport stack of one transport name: the mid that
// owns it, or the first mid of its BUNDLE group. It is only touched on the
// network thread.
type JsepTransport struct {
	name  string
	state TransportState

	rtpIce   transport.IceTransport
	rtcpIce  transport.IceTransport
	rtpDtls  transport.DtlsTransport
	rtcpDtls transport.DtlsTransport
	srtp     *transport.DtlsSrtpTransport

	localParamsSet  bool
	remoteParamsSet bool
}

// Name returns the transport name.
func (t *JsepTransport) Name() string {
	return t.name
}

// State returns the negotiation progress.
func (t *JsepTransport) State() TransportState {
	return t.state
}

// RtcpMuxEnabled reports whether RTCP travels on the RTP transport.
func (t *JsepTransport) RtcpMuxEnabled() bool {
	return t.rtcpIce == nil
}

// RtpTransport returns the SRTP packet path.
func (t *JsepTransport) RtpTransport() *transport.DtlsSrtpTransport {
	return t.srtp
}

func (t *JsepTransport) iceTransports() []transport.IceTransport {
	if t.rtcpIce == nil {
		return []transport.IceTransport{t.rtpIce}
	}

	return []transport.IceTransport{t.rtpIce, t.rtcpIce}
}

func (t *JsepTransport) dtlsTransports() []transport.DtlsTransport {
	if t.rtcpDtls == nil {
		return []transport.DtlsTransport{t.rtpDtls}
	}

	return []transport.DtlsTransport{t.rtpDtls, t.rtcpDtls}
}

func (t *JsepTransport) iceFor(component uint16) transport.IceTransport {
	if transport.Component(component) == transport.ComponentRTCP && t.rtcpIce != nil {
		return t.rtcpIce
	}

	return t.rtpIce
}

// advance moves the state forward, Failed and Writable are only left for
// Failed.
func (t *JsepTransport) advance(state TransportState) {
	if t.state == TransportStateFailed {
		return
	}
	if state == TransportStateFailed || state > t.state {
		t.state = state
	}
}

// close releases the stack top down: SRTP, then DTLS, then ICE.
func (t *JsepTransport) close() error {
	var errs []error
	if t.srtp != nil {
		errs = append(errs, t.srtp.Close())
	}
	for _, d := range t.dtlsTransports() {
		if d != nil {
			errs = append(errs, d.Close())
		}
	}
	for _, i := range t.iceTransports() {
		if i != nil {
			errs = append(errs, i.Close())
		}
	}

	return util.FlattenErrs(errs)
}

// closePartial releases what a failed creation left behind.
func (t *JsepTransport) closePartial() error {
	var errs []error
	for _, d := range []transport.DtlsTransport{t.rtpDtls, t.rtcpDtls} {
		if d != nil {
			errs = append(errs, d.Close())
		}
	}
	for _, i := range []transport.IceTransport{t.rtpIce, t.rtcpIce} {
		if i != nil {
			errs = append(errs, i.Close())
		}
	}

	return util.FlattenErrs(errs)
}
