// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package p2p

import (
	"errors"
)

var (
	// ErrConnectionClosed indicates an operation executed after connection
	// has already been closed.
	ErrConnectionClosed = errors.New("connection closed")

	// ErrNoRemoteDescription indicates that an operation needs the remote
	// description that has not been applied yet.
	ErrNoRemoteDescription = errors.New("remote description is not set")

	// ErrNoMediaSections indicates that the answer options enable neither
	// audio nor video.
	ErrNoMediaSections = errors.New("answer options select no media")

	// ErrNoVideoSender indicates that the local description does not send
	// video.
	ErrNoVideoSender = errors.New("local description does not send video")

	// ErrUnsupportedCodec indicates that the negotiated video codec has no
	// packetizer.
	ErrUnsupportedCodec = errors.New("unsupported codec")

	// ErrEmptyFrame indicates an encoded image without payload.
	ErrEmptyFrame = errors.New("encoded image is empty")

	errSettingEngineSetEphemeralUDPPortRange = errors.New("SetEphemeralUDPPortRange: max < min")
	errSettingEngineInvalidMTU               = errors.New("packet MTU must be above the RTP header size")
)
