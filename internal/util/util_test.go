// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package util

import (
	"errors"
	"regexp"
	"testing"

	"github.com/pion/randutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRandSeq(t *testing.T) {
	gen := randutil.NewMathRandomGenerator()
	assert.Len(t, RandSeq(gen, 10), 10)

	isAlphaNumeric := regexp.MustCompile(`^[a-zA-Z0-9]+$`).MatchString
	assert.True(t, isAlphaNumeric(RandSeq(gen, 32)), "RandSeq should be AlphaNumeric only")
	assert.NotEqual(t, RandSeq(gen, 32), RandSeq(gen, 32))
}

func TestRandCredential(t *testing.T) {
	ufrag, err := RandCredential(16)
	require.NoError(t, err)
	assert.Len(t, ufrag, 16)
	assert.Regexp(t, `^[a-zA-Z0-9]+$`, ufrag)

	other, err := RandCredential(16)
	require.NoError(t, err)
	assert.NotEqual(t, ufrag, other)
}

func TestRandSSRC(t *testing.T) {
	gen := randutil.NewMathRandomGenerator()
	for i := 0; i < 100; i++ {
		assert.NotZero(t, RandSSRC(gen))
	}
}

func TestMultiError(t *testing.T) {
	rawErrs := []error{
		errors.New("err1"),
		errors.New("err2"),
		errors.New("err3"),
		errors.New("err4"),
	}
	errs := FlattenErrs([]error{
		rawErrs[0],
		nil,
		rawErrs[1],
		FlattenErrs([]error{
			rawErrs[2],
		}),
	})
	assert.Equal(t, "err1\nerr2\nerr3", errs.Error())

	for i := 0; i < 3; i++ {
		assert.ErrorIs(t, errs, rawErrs[i])
	}
	assert.NotErrorIs(t, errs, rawErrs[3])

	require.NoError(t, FlattenErrs([]error{nil, nil}))
}
