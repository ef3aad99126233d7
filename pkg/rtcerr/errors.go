// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package rtcerr implements the typed errors returned by the peer
// connection surface. Each type wraps the sentinel error describing the
// cause, so callers can match the class with errors.As and the cause with
// errors.Is.
package rtcerr

import (
	"fmt"
)

// UnknownError indicates the operation failed for an unknown transient
// reason, e.g. a failure of the platform random source.
type UnknownError struct {
	Err error
}

func (e *UnknownError) Error() string {
	return fmt.Sprintf("UnknownError: %v", e.Err)
}

func (e *UnknownError) Unwrap() error {
	return e.Err
}

// InvalidStateError indicates the object is in a state that does not allow
// the operation: answering before a remote description was applied, or
// using a closed connection.
type InvalidStateError struct {
	Err error
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("InvalidStateError: %v", e.Err)
}

func (e *InvalidStateError) Unwrap() error {
	return e.Err
}

// InvalidAccessError indicates an argument the operation cannot accept,
// such as a nil description or an expired certificate.
type InvalidAccessError struct {
	Err error
}

func (e *InvalidAccessError) Error() string {
	return fmt.Sprintf("InvalidAccessError: %v", e.Err)
}

func (e *InvalidAccessError) Unwrap() error {
	return e.Err
}

// NotSupportedError indicates the operation is not supported, e.g. a
// private key type certificates cannot be generated for.
type NotSupportedError struct {
	Err error
}

func (e *NotSupportedError) Error() string {
	return fmt.Sprintf("NotSupportedError: %v", e.Err)
}

func (e *NotSupportedError) Unwrap() error {
	return e.Err
}

// SyntaxError indicates a session description that could not be parsed.
type SyntaxError struct {
	Err error
}

func (e *SyntaxError) Error() string {
	return fmt.Sprintf("SyntaxError: %v", e.Err)
}

func (e *SyntaxError) Unwrap() error {
	return e.Err
}

// OperationError indicates a failure specific to the operation which is
// not covered by the other types.
type OperationError struct {
	Err error
}

func (e *OperationError) Error() string {
	return fmt.Sprintf("OperationError: %v", e.Err)
}

func (e *OperationError) Unwrap() error {
	return e.Err
}
