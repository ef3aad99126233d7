// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/interceptor/pkg/nack"
	"github.com/pion/interceptor/pkg/report"
)

// DefaultSenderReportInterval is how often sender reports are sent.
const DefaultSenderReportInterval = time.Second

// RegisterDefaultInterceptors will register some useful interceptors.
// If you want to customize which interceptors are loaded, you should copy the
// code from this method and remove unwanted interceptors.
func RegisterDefaultInterceptors(interceptorRegistry *interceptor.Registry) error {
	if err := ConfigureNack(interceptorRegistry); err != nil {
		return err
	}

	return ConfigureRTCPReports(interceptorRegistry)
}

// ConfigureRTCPReports will setup everything necessary for generating Sender Reports.
// Receiver reports are not generated, this core only sends media.
func ConfigureRTCPReports(interceptorRegistry *interceptor.Registry) error {
	sender, err := report.NewSenderInterceptor(report.SenderInterval(DefaultSenderReportInterval))
	if err != nil {
		return err
	}

	interceptorRegistry.Add(sender)

	return nil
}

// ConfigureNack will setup everything necessary for responding to nack
// messages. The answer always negotiates nack and nack pli for video.
func ConfigureNack(interceptorRegistry *interceptor.Registry) error {
	responder, err := nack.NewResponderInterceptor()
	if err != nil {
		return err
	}

	interceptorRegistry.Add(responder)

	return nil
}

// rtcpFeed turns pushed RTCP into reads for the interceptor chain. It is
// only used from the signaling thread.
type rtcpFeed struct {
	packet []byte
}

func (f *rtcpFeed) Read(b []byte, attributes interceptor.Attributes) (int, interceptor.Attributes, error) {
	n := copy(b, f.packet)
	f.packet = nil

	return n, attributes, nil
}
