// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package jsep

import "errors"

var (
	// ErrNilDescription indicates a nil session description.
	ErrNilDescription = errors.New("jsep: session description is nil")
	// ErrControllerClosed indicates use of a closed controller.
	ErrControllerClosed = errors.New("jsep: controller is closed")
	// ErrUnknownMid indicates a mid without transport.
	ErrUnknownMid = errors.New("jsep: no transport for mid")
	// ErrNoThread indicates a controller config without network thread.
	ErrNoThread = errors.New("jsep: network thread is required")
	// ErrNoTransportFactory indicates a controller config without ICE or DTLS factory.
	ErrNoTransportFactory = errors.New("jsep: ice and dtls transport factories are required")
)
