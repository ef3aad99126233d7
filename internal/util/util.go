// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package util provides auxiliary functions internally used by the p2p packages
package util

import (
	"strings"

	"github.com/pion/randutil"
)

// runesAlpha is the alphabet of ICE credentials and cnames (RFC 8839 ice-char
// without '+' and '/').
const runesAlpha = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// RandSeq generates a random alpha numeric sequence of the requested length
// from gen.
func RandSeq(gen randutil.MathRandomGenerator, n int) string {
	return gen.GenerateString(n, runesAlpha)
}

// RandCredential generates an alpha numeric ICE credential of the requested
// length from the crypto random source.
func RandCredential(n int) (string, error) {
	return randutil.GenerateCryptoRandomString(n, runesAlpha)
}

// RandSSRC returns a non-zero random SSRC from gen.
func RandSSRC(gen randutil.MathRandomGenerator) uint32 {
	for {
		if ssrc := gen.Uint32(); ssrc != 0 {
			return ssrc
		}
	}
}

// FlattenErrs flattens multiple errors into one
func FlattenErrs(errs []error) error {
	errs2 := []error{}
	for _, e := range errs {
		if e != nil {
			errs2 = append(errs2, e)
		}
	}
	if len(errs2) == 0 {
		return nil
	}

	return multiError(errs2)
}

type multiError []error

func (me multiError) Error() string {
	var errstrings []string

	for _, err := range me {
		if err != nil {
			errstrings = append(errstrings, err.Error())
		}
	}

	if len(errstrings) == 0 {
		return "multiError must contain multiple error but is empty"
	}

	return strings.Join(errstrings, "\n")
}

func (me multiError) Is(err error) bool {
	for _, e := range me {
		if e == err { //nolint:errorlint
			return true
		}
		if me2, ok := e.(multiError); ok { //nolint:errorlint
			if me2.Is(err) {
				return true
			}
		}
	}

	return false
}
