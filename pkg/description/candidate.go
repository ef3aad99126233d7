// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import (
	"fmt"
	"strings"

	"github.com/pion/ice/v4"
)

// minCandidateFields is foundation, component, protocol, priority,
// address, port, "typ" and the type.
const minCandidateFields = 8

const candidatePrefix = "candidate:"

// Candidate is a remote ICE candidate read from a description.
type Candidate struct {
	// Mid names the section the candidate appeared in.
	Mid        string
	Foundation string
	Component  uint16
	Protocol   string
	Priority   uint32
	Address    string
	Port       int
	Type       string

	// Raw is the attribute value without the "candidate:" prefix, in
	// the grammar understood by ice.UnmarshalCandidate.
	Raw string
}

// ParseCandidate parses the value of an a=candidate attribute. The
// "candidate:" prefix is optional.
func ParseCandidate(value string) (Candidate, error) {
	raw := strings.TrimPrefix(strings.TrimSpace(value), candidatePrefix)
	if fields := strings.Fields(raw); len(fields) < minCandidateFields {
		return Candidate{}, fmt.Errorf("%w: %d fields in %q", ErrMalformedCandidate, len(fields), value)
	}

	c, err := ice.UnmarshalCandidate(raw)
	if err != nil {
		return Candidate{}, fmt.Errorf("%w: %v", ErrMalformedCandidate, err) //nolint:errorlint
	}

	return Candidate{
		Foundation: c.Foundation(),
		Component:  c.Component(),
		Protocol:   c.NetworkType().NetworkShort(),
		Priority:   c.Priority(),
		Address:    c.Address(),
		Port:       c.Port(),
		Type:       c.Type().String(),
		Raw:        raw,
	}, nil
}

// ICE converts the candidate back into an ice.Candidate.
func (c *Candidate) ICE() (ice.Candidate, error) {
	return ice.UnmarshalCandidate(c.Raw)
}

func (c Candidate) String() string {
	return candidatePrefix + c.Raw
}
