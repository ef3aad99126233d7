// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package p2p implements a peer connection that answers remote offers and
// sends encoded video over ICE, DTLS and SRTP transports.
package p2p

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pion/interceptor"
	"github.com/pion/logging"
	"github.com/pion/p2p/internal/bwe"
	"github.com/pion/p2p/internal/jsep"
	"github.com/pion/p2p/internal/rtprtcp"
	"github.com/pion/p2p/internal/thread"
	"github.com/pion/p2p/internal/transport"
	"github.com/pion/p2p/internal/util"
	"github.com/pion/p2p/pkg/description"
	"github.com/pion/p2p/pkg/rtcerr"
	"github.com/pion/randutil"
	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

const (
	iceUfragLength = 16
	icePwdLength   = 32

	// receiveMTU bounds one incoming compound RTCP packet.
	receiveMTU = 1500
)

// TransportStats describes one component of a negotiated transport.
type TransportStats = jsep.TransportStats

// PeerConnection answers a remote offer and sends media over the
// negotiated transports.
//
// Callbacks run on the signaling thread. They must not call methods of
// the PeerConnection that wait for it, such as SetRemoteSDP or Close.
type PeerConnection struct {
	api               *API
	connectionContext *ConnectionContext
	signaling         *thread.Thread
	worker            *thread.Thread
	alive             *thread.SafetyFlag
	isClosed          atomic.Bool

	controller  *jsep.Controller
	rtcp        *rtprtcp.Module
	estimator   bwe.Estimator
	interceptor interceptor.Interceptor
	rtcpReader  interceptor.RTCPReader
	rtcpFeed    *rtcpFeed

	mathRandom          randutil.MathRandomGenerator
	cryptoRandom        io.Reader
	certificateValidity time.Duration
	packetMTU           uint

	// owned by the signaling thread
	iceParameters     description.IceParameters
	certificate       *transport.Certificate
	remoteDescription *description.SessionDescription
	localDescription  *description.SessionDescription
	networkOk         bool

	// transport-wide sequence number of the last packet sent
	transportSequence atomic.Uint32

	sendMu  sync.Mutex
	video   *videoSender
	rtcpMid string

	handlersMu                 sync.RWMutex
	onICEConnectionStateChange func(ICEConnectionState)
	onConnectionStateChange    func(PeerConnectionState)
	onICEGatheringStateChange  func(ICEGatheringState)
	onICECandidate             func(description.Candidate)
	onTargetTransferRate       func(bwe.TargetTransferRate)
	onKeyFrameRequest          func(ssrc uint32)

	log    logging.LeveledLogger
	sdpLog logging.LeveledLogger
}

// NewPeerConnection creates a PeerConnection with the default API.
// If you wish to customize the set of active interceptors or the network
// settings, create an API with a custom interceptor registry and
// SettingEngine.
func NewPeerConnection() (*PeerConnection, error) {
	return NewAPI().NewPeerConnection()
}

// NewPeerConnection creates a PeerConnection sharing the threads and
// sockets of every other PeerConnection of api.
func (api *API) NewPeerConnection() (*PeerConnection, error) {
	connectionContext, err := api.acquireConnectionContext()
	if err != nil {
		return nil, err
	}

	loggerFactory := api.loggerFactory()
	settings := api.settingEngine
	pc := &PeerConnection{
		api:                 api,
		connectionContext:   connectionContext,
		signaling:           connectionContext.SignalingThread(),
		worker:              connectionContext.WorkerThread(),
		alive:               thread.NewSafetyFlag(),
		rtcp:                rtprtcp.New(rtprtcp.Config{LoggerFactory: loggerFactory}),
		rtcpFeed:            &rtcpFeed{},
		mathRandom:          settings.getMathRandom(),
		cryptoRandom:        settings.getCryptoRandom(),
		certificateValidity: settings.getCertificateValidity(),
		packetMTU:           settings.getPacketMTU(),
		log:                 loggerFactory.NewLogger("pc"),
		sdpLog:              loggerFactory.NewLogger("sdp"),
	}

	if err = pc.init(settings, loggerFactory); err != nil {
		return nil, util.FlattenErrs([]error{err, pc.teardown()})
	}

	return pc, nil
}

func (pc *PeerConnection) init(settings *SettingEngine, loggerFactory logging.LoggerFactory) error {
	var err error
	pc.controller, err = jsep.NewController(context.Background(), jsep.Config{
		NetworkThread:        pc.connectionContext.NetworkThread(),
		IceTransportFactory:  pc.connectionContext.iceFactory,
		DtlsTransportFactory: pc.connectionContext.dtlsFactory,
		IceRole:              settings.iceRole,
		RtcpMuxPolicy:        settings.rtcpMuxPolicy,
		LoggerFactory:        loggerFactory,
	})
	if err != nil {
		return err
	}

	if pc.estimator, err = pc.api.estimatorFactory(); err != nil {
		return err
	}
	if pc.interceptor, err = pc.api.interceptorRegistry.Build(""); err != nil {
		return err
	}
	pc.interceptor.BindRTCPWriter(interceptor.RTCPWriterFunc(pc.writeRTCP))
	pc.rtcpReader = pc.interceptor.BindRTCPReader(pc.rtcpFeed)

	pc.wireController()
	pc.estimator.OnTargetTransferRate(func(rate bwe.TargetTransferRate) {
		pc.signaling.Post(pc.alive.Guard(func(context.Context) {
			pc.handlersMu.RLock()
			handler := pc.onTargetTransferRate
			pc.handlersMu.RUnlock()
			if handler != nil {
				handler(rate)
			}
		}))
	})

	return nil
}

// wireController forwards controller events to the signaling thread.
func (pc *PeerConnection) wireController() {
	pc.controller.OnIceConnectionStateChange(func(state ICEConnectionState) {
		pc.signaling.Post(pc.alive.Guard(func(context.Context) {
			pc.onICEConnectionStateChanged(state)
		}))
	})
	pc.controller.OnConnectionStateChange(func(state PeerConnectionState) {
		pc.signaling.Post(pc.alive.Guard(func(context.Context) {
			pc.handlersMu.RLock()
			handler := pc.onConnectionStateChange
			pc.handlersMu.RUnlock()
			if handler != nil {
				handler(state)
			}
		}))
	})
	pc.controller.OnGatheringStateChange(func(state ICEGatheringState) {
		pc.signaling.Post(pc.alive.Guard(func(context.Context) {
			pc.handlersMu.RLock()
			handler := pc.onICEGatheringStateChange
			pc.handlersMu.RUnlock()
			if handler != nil {
				handler(state)
			}
		}))
	})
	pc.controller.OnCandidateGathered(func(candidate description.Candidate) {
		pc.signaling.Post(pc.alive.Guard(func(context.Context) {
			pc.handlersMu.RLock()
			handler := pc.onICECandidate
			pc.handlersMu.RUnlock()
			if handler != nil {
				handler(candidate)
			}
		}))
	})
	pc.controller.OnDtlsHandshakeError(func(name string, err error) {
		pc.log.Errorf("%s: dtls handshake failed: %v", name, err)
	})
	pc.controller.OnRtcpPacket(func(_ string, packet []byte) {
		buf := append([]byte(nil), packet...)
		pc.signaling.Post(pc.alive.Guard(func(context.Context) {
			pc.onRTCPPacketReceived(buf)
		}))
	})
	pc.controller.OnSentPacket(func(_ string, sent transport.SentPacket) {
		if sent.PacketID == transport.NoPacketID {
			return
		}
		pc.estimator.OnSentPacket(bwe.SentInfo{
			TransportSequence: uint16(sent.PacketID), //nolint:gosec // the id is a 16 bit counter
			SendTime:          sent.SendTime,
			Size:              sent.Size,
		})
	})
}

// SetRemoteSDP parses sdp and applies it. Every call starts a negotiation
// round with fresh ICE credentials and a fresh certificate. Nothing is
// applied when sdp does not parse.
func (pc *PeerConnection) SetRemoteSDP(sdp string) error {
	return pc.invokeSignaling(func(ctx context.Context) error {
		parsed, err := description.Parse(sdp, pc.sdpLog)
		if err != nil {
			return &rtcerr.SyntaxError{Err: err}
		}

		ufrag, err := util.RandCredential(iceUfragLength)
		if err != nil {
			return &rtcerr.UnknownError{Err: err}
		}
		pwd, err := util.RandCredential(icePwdLength)
		if err != nil {
			return &rtcerr.UnknownError{Err: err}
		}
		pc.iceParameters = description.IceParameters{Ufrag: ufrag, Pwd: pwd}
		pc.certificate, err = transport.GenerateCertificate(pc.cryptoRandom, time.Now(), pc.certificateValidity)
		if err != nil {
			pc.log.Errorf("failed to generate certificate, continuing without: %v", err)
			pc.certificate = nil
		} else if err = pc.controller.SetLocalCertificate(ctx, pc.certificate); err != nil {
			return controllerError(err)
		}

		if err = pc.controller.SetRemoteDescription(ctx, parsed.Description); err != nil {
			return controllerError(err)
		}
		if len(parsed.Candidates) > 0 {
			if err = pc.controller.AddRemoteCandidates(parsed.Candidates...); err != nil {
				return controllerError(err)
			}
		}
		pc.remoteDescription = parsed.Description

		return nil
	})
}

// AddICECandidate adds a trickled remote candidate of section mid. An
// empty mid hands it to every transport.
func (pc *PeerConnection) AddICECandidate(candidate, mid string) error {
	parsed, err := description.ParseCandidate(candidate)
	if err != nil {
		return &rtcerr.SyntaxError{Err: err}
	}
	parsed.Mid = mid

	return pc.invokeSignaling(func(context.Context) error {
		if pc.remoteDescription == nil {
			return &rtcerr.InvalidStateError{Err: ErrNoRemoteDescription}
		}

		return controllerError(pc.controller.AddRemoteCandidates(parsed))
	})
}

// CreateAnswer builds the local description answering the remote one,
// applies it and returns its text. Every call allocates new SSRCs.
func (pc *PeerConnection) CreateAnswer(options AnswerOptions, streamID string) (string, error) {
	var answer string
	err := pc.invokeSignaling(func(ctx context.Context) error {
		if pc.remoteDescription == nil {
			return &rtcerr.InvalidStateError{Err: ErrNoRemoteDescription}
		}

		var fingerprint *description.Fingerprint
		if pc.certificate != nil {
			fp, err := pc.certificate.Fingerprint("sha-256")
			if err != nil {
				return &rtcerr.UnknownError{Err: err}
			}
			fingerprint = fp
		}

		desc, err := buildAnswer(answerParams{
			options:     options,
			streamID:    streamID,
			remote:      pc.remoteDescription,
			ice:         pc.iceParameters,
			fingerprint: fingerprint,
			cname:       util.RandSeq(pc.mathRandom, cnameLength),
			random:      pc.mathRandom,
		})
		if err != nil {
			return &rtcerr.InvalidAccessError{Err: err}
		}

		if err = pc.controller.SetLocalDescription(ctx, desc, pc.certificate); err != nil {
			return controllerError(err)
		}
		pc.localDescription = desc
		pc.rtcp.SetLocalSsrcs(localSsrcs(desc)...)
		if err = pc.bindSenders(desc); err != nil {
			return err
		}

		answer, err = desc.Marshal()

		return err
	})

	return answer, err
}

// bindSenders replaces the interceptor stream of the previous answer with
// the video stream of desc.
func (pc *PeerConnection) bindSenders(desc *description.SessionDescription) error {
	pc.sendMu.Lock()
	defer pc.sendMu.Unlock()

	if pc.video != nil {
		pc.interceptor.UnbindLocalStream(pc.video.info)
		pc.video = nil
	}
	if active := desc.ActiveContents(); len(active) > 0 {
		pc.rtcpMid = active[0].Name
	}

	content := desc.FirstContentByType(description.MediaTypeVideo)
	if content == nil || content.Media() == nil || len(content.Media().Streams) == 0 {
		return nil
	}

	sender, err := newVideoSender(content.Name, content.Media())
	if err != nil {
		return &rtcerr.NotSupportedError{Err: err}
	}
	sender.writer = pc.interceptor.BindLocalStream(sender.info, pc.rtpWriter(content.Name, sender.extensionID))
	pc.video = sender
	pc.log.Infof("%s: sending H264 on ssrc %d", content.Name, sender.ssrc)

	return nil
}

// SendVideoEncode packetizes one encoded frame and sends it on the video
// section. The frame timestamp is in milliseconds.
func (pc *PeerConnection) SendVideoEncode(image EncodedImage) error {
	if len(image.Data) == 0 {
		return &rtcerr.InvalidAccessError{Err: ErrEmptyFrame}
	}
	if pc.isClosed.Load() {
		return &rtcerr.InvalidStateError{Err: ErrConnectionClosed}
	}

	var sendErr error
	err := pc.worker.Invoke(context.Background(), func(context.Context) {
		pc.sendMu.Lock()
		defer pc.sendMu.Unlock()
		if pc.video == nil {
			sendErr = &rtcerr.InvalidStateError{Err: ErrNoVideoSender}

			return
		}
		sendErr = pc.video.send(image, pc.packetMTU)
	})
	if errors.Is(err, thread.ErrClosed) {
		return &rtcerr.InvalidStateError{Err: ErrConnectionClosed}
	}
	if err != nil {
		return err
	}

	return sendErr
}

// rtpWriter is the bottom of the interceptor chain for section mid. It
// stamps the transport-wide sequence number, registers the packet with the
// estimator and hands it to the network thread.
func (pc *PeerConnection) rtpWriter(mid string, extensionID int) interceptor.RTPWriter {
	return interceptor.RTPWriterFunc(func(header *rtp.Header, payload []byte, _ interceptor.Attributes) (int, error) {
		sequence := uint16(pc.transportSequence.Add(1)) //nolint:gosec // wraps like the extension
		stamped := header.Clone()
		if extensionID > 0 {
			ext, err := (&rtp.TransportCCExtension{TransportSequence: sequence}).Marshal()
			if err != nil {
				return 0, err
			}
			if err = stamped.SetExtension(uint8(extensionID), ext); err != nil { //nolint:gosec // ids are below 15
				return 0, err
			}
		}

		raw, err := (&rtp.Packet{Header: stamped, Payload: payload}).Marshal()
		if err != nil {
			return 0, err
		}

		pc.estimator.OnAddPacket(bwe.SendInfo{
			TransportSequence: sequence,
			SSRC:              stamped.SSRC,
			SequenceNumber:    stamped.SequenceNumber,
			Size:              len(raw),
			CreatedAt:         time.Now(),
		})
		if err = pc.controller.SendRtpPacket(mid, raw, transport.PacketOptions{PacketID: int64(sequence)}); err != nil {
			return 0, err
		}

		return len(raw), nil
	})
}

// writeRTCP is the bottom of the RTCP interceptor chain.
func (pc *PeerConnection) writeRTCP(pkts []rtcp.Packet, _ interceptor.Attributes) (int, error) {
	pc.sendMu.Lock()
	mid := pc.rtcpMid
	pc.sendMu.Unlock()
	if mid == "" {
		return 0, nil
	}

	raw, err := rtcp.Marshal(pkts)
	if err != nil {
		return 0, err
	}
	if err = pc.controller.SendRtcpPacket(mid, raw); err != nil {
		return 0, err
	}

	return len(raw), nil
}

// onRTCPPacketReceived runs on the signaling thread. The interceptors see
// the packet first, so NACKs are answered before the reports are used.
func (pc *PeerConnection) onRTCPPacketReceived(packet []byte) {
	pc.rtcpFeed.packet = packet
	buf := make([]byte, receiveMTU)
	if _, _, err := pc.rtcpReader.Read(buf, interceptor.Attributes{}); err != nil {
		pc.log.Debugf("interceptors rejected rtcp: %v", err)
	}

	result := pc.rtcp.OnRtcpPacket(packet)
	if result.HasRTT {
		pc.estimator.OnRttUpdate(result.RTT)
	}
	if len(result.ReportBlocks) > 0 {
		pc.estimator.OnReceiverReportBlocks(result.ReportBlocks, time.Now())
	}
	if len(result.KeyFrameRequests) == 0 {
		return
	}

	pc.handlersMu.RLock()
	handler := pc.onKeyFrameRequest
	pc.handlersMu.RUnlock()
	if handler == nil {
		return
	}
	for _, ssrc := range result.KeyFrameRequests {
		handler(ssrc)
	}
}

// onICEConnectionStateChanged runs on the signaling thread.
func (pc *PeerConnection) onICEConnectionStateChanged(state ICEConnectionState) {
	switch state {
	case ICEConnectionStateConnected, ICEConnectionStateCompleted:
		if !pc.networkOk {
			pc.networkOk = true
			pc.estimator.OnNetworkOk(true)
		}
	case ICEConnectionStateFailed, ICEConnectionStateClosed:
		if pc.networkOk {
			pc.networkOk = false
			pc.estimator.OnNetworkOk(false)
		}
	default:
	}
	pc.log.Infof("ICE connection state changed: %s", state)

	pc.handlersMu.RLock()
	handler := pc.onICEConnectionStateChange
	pc.handlersMu.RUnlock()
	if handler != nil {
		handler(state)
	}
}

// OnICEConnectionStateChange sets an event handler which is called
// when an ICE connection state is changed.
func (pc *PeerConnection) OnICEConnectionStateChange(f func(ICEConnectionState)) {
	pc.handlersMu.Lock()
	defer pc.handlersMu.Unlock()
	pc.onICEConnectionStateChange = f
}

// OnConnectionStateChange sets an event handler which is called
// when the PeerConnectionState has changed.
func (pc *PeerConnection) OnConnectionStateChange(f func(PeerConnectionState)) {
	pc.handlersMu.Lock()
	defer pc.handlersMu.Unlock()
	pc.onConnectionStateChange = f
}

// OnICEGatheringStateChange sets an event handler which is called
// when the ICE gathering state changes.
func (pc *PeerConnection) OnICEGatheringStateChange(f func(ICEGatheringState)) {
	pc.handlersMu.Lock()
	defer pc.handlersMu.Unlock()
	pc.onICEGatheringStateChange = f
}

// OnICECandidate sets an event handler which is invoked when a new ICE
// candidate is found. The candidate carries the mid it was gathered for.
func (pc *PeerConnection) OnICECandidate(f func(description.Candidate)) {
	pc.handlersMu.Lock()
	defer pc.handlersMu.Unlock()
	pc.onICECandidate = f
}

// OnTargetTransferRate sets the handler for bandwidth estimates.
func (pc *PeerConnection) OnTargetTransferRate(f func(bwe.TargetTransferRate)) {
	pc.handlersMu.Lock()
	defer pc.handlersMu.Unlock()
	pc.onTargetTransferRate = f
}

// OnKeyFrameRequest sets the handler for PLI and FIR requests, it receives
// the SSRC of the requested stream.
func (pc *PeerConnection) OnKeyFrameRequest(f func(ssrc uint32)) {
	pc.handlersMu.Lock()
	defer pc.handlersMu.Unlock()
	pc.onKeyFrameRequest = f
}

// RemoteDescription returns the applied remote description, nil before
// SetRemoteSDP succeeded.
func (pc *PeerConnection) RemoteDescription() *description.SessionDescription {
	var desc *description.SessionDescription
	_ = pc.invokeSignaling(func(context.Context) error {
		desc = pc.remoteDescription.Clone()

		return nil
	})

	return desc
}

// LocalDescription returns the last created answer, nil before
// CreateAnswer succeeded.
func (pc *PeerConnection) LocalDescription() *description.SessionDescription {
	var desc *description.SessionDescription
	_ = pc.invokeSignaling(func(context.Context) error {
		desc = pc.localDescription.Clone()

		return nil
	})

	return desc
}

// ConnectionState returns the combined ICE and DTLS state.
func (pc *PeerConnection) ConnectionState() PeerConnectionState {
	states, err := pc.controller.States(context.Background())
	if err != nil {
		return PeerConnectionStateClosed
	}

	return states.Connection
}

// GetStats returns the state and counters of every transport.
func (pc *PeerConnection) GetStats() ([]TransportStats, error) {
	stats, err := pc.controller.Stats(context.Background())

	return stats, controllerError(err)
}

// TargetBitrate returns the current bandwidth estimate in bits per second.
func (pc *PeerConnection) TargetBitrate() int {
	return pc.estimator.TargetBitrate()
}

// Close ends the PeerConnection. Transports are released first, then the
// shared context drops the reference of this connection.
func (pc *PeerConnection) Close() error {
	if !pc.isClosed.CompareAndSwap(false, true) {
		return nil
	}
	pc.alive.SetNotAlive()

	return pc.teardown()
}

// teardown releases what init created, in reverse order.
func (pc *PeerConnection) teardown() error {
	var errs []error
	if pc.controller != nil {
		if err := pc.controller.Close(context.Background()); !errors.Is(err, jsep.ErrControllerClosed) {
			errs = append(errs, err)
		}
	}
	if pc.interceptor != nil {
		errs = append(errs, pc.interceptor.Close())
	}
	if pc.estimator != nil {
		errs = append(errs, pc.estimator.Close())
	}
	errs = append(errs, pc.api.releaseConnectionContext(pc.connectionContext))

	return util.FlattenErrs(errs)
}

func (pc *PeerConnection) invokeSignaling(fn func(context.Context) error) error {
	if pc.isClosed.Load() {
		return &rtcerr.InvalidStateError{Err: ErrConnectionClosed}
	}

	var taskErr error
	err := pc.signaling.Invoke(context.Background(), func(ctx context.Context) {
		taskErr = fn(ctx)
	})
	if errors.Is(err, thread.ErrClosed) {
		return &rtcerr.InvalidStateError{Err: ErrConnectionClosed}
	}
	if err != nil {
		return err
	}

	return taskErr
}

// controllerError maps controller failures onto the public error types.
func controllerError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, jsep.ErrControllerClosed):
		return &rtcerr.InvalidStateError{Err: ErrConnectionClosed}
	case errors.Is(err, jsep.ErrNilDescription):
		return &rtcerr.InvalidAccessError{Err: err}
	default:
		return &rtcerr.OperationError{Err: err}
	}
}
