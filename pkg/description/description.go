// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

// Package description implements the session description model together
// with its parser and serializer.
package description

import (
	"fmt"
	"strconv"
)

// GroupBundle is the semantics of a BUNDLE content group.
const GroupBundle = "BUNDLE"

// ContentInfo is one media section.
type ContentInfo struct {
	// Name is the mid.
	Name        string
	Protocol    Protocol
	Rejected    bool
	BundleOnly  bool
	Description MediaContentDescription
}

// MediaType returns the type of the owned description.
func (c *ContentInfo) MediaType() MediaType {
	if c.Description == nil {
		return 0
	}

	return c.Description.MediaType()
}

// Media returns the shared fields of the owned description, nil when unset.
func (c *ContentInfo) Media() *MediaDescription {
	if c.Description == nil {
		return nil
	}

	return c.Description.Media()
}

// Clone deep copies the content and its description.
func (c ContentInfo) Clone() ContentInfo {
	if c.Description != nil {
		c.Description = c.Description.Clone()
	}

	return c
}

// ContentGroup groups content names under a semantics tag.
type ContentGroup struct {
	Semantics    string
	ContentNames []string
}

// HasContentName reports whether name is part of the group.
func (g *ContentGroup) HasContentName(name string) bool {
	for _, n := range g.ContentNames {
		if n == name {
			return true
		}
	}

	return false
}

// FirstContentName returns the tagged name, empty for an empty group.
func (g *ContentGroup) FirstContentName() string {
	if len(g.ContentNames) == 0 {
		return ""
	}

	return g.ContentNames[0]
}

// SessionDescription is a parsed or locally built offer or answer.
type SessionDescription struct {
	Contents       []ContentInfo
	TransportInfos []TransportInfo
	Groups         []ContentGroup
}

// AddContent appends a content.
func (d *SessionDescription) AddContent(name string, protocol Protocol, desc MediaContentDescription) {
	d.Contents = append(d.Contents, ContentInfo{Name: name, Protocol: protocol, Description: desc})
}

// AddTransportInfo appends a transport info.
func (d *SessionDescription) AddTransportInfo(info TransportInfo) {
	d.TransportInfos = append(d.TransportInfos, info)
}

// AddGroup appends a content group.
func (d *SessionDescription) AddGroup(g ContentGroup) {
	d.Groups = append(d.Groups, g)
}

// ContentByName returns the content named name.
func (d *SessionDescription) ContentByName(name string) *ContentInfo {
	for i := range d.Contents {
		if d.Contents[i].Name == name {
			return &d.Contents[i]
		}
	}

	return nil
}

// FirstContentByType returns the first content of media type t.
func (d *SessionDescription) FirstContentByType(t MediaType) *ContentInfo {
	for i := range d.Contents {
		if d.Contents[i].MediaType() == t {
			return &d.Contents[i]
		}
	}

	return nil
}

// TransportInfoByName returns the transport info of content name.
func (d *SessionDescription) TransportInfoByName(name string) *TransportInfo {
	for i := range d.TransportInfos {
		if d.TransportInfos[i].ContentName == name {
			return &d.TransportInfos[i]
		}
	}

	return nil
}

// GroupByName returns the first group with the given semantics.
func (d *SessionDescription) GroupByName(semantics string) *ContentGroup {
	for i := range d.Groups {
		if d.Groups[i].Semantics == semantics {
			return &d.Groups[i]
		}
	}

	return nil
}

// ActiveContents returns the contents which are not rejected.
func (d *SessionDescription) ActiveContents() []*ContentInfo {
	var out []*ContentInfo
	for i := range d.Contents {
		if !d.Contents[i].Rejected {
			out = append(out, &d.Contents[i])
		}
	}

	return out
}

// Clone returns a deep copy, no slice or description is shared.
func (d *SessionDescription) Clone() *SessionDescription {
	if d == nil {
		return nil
	}

	out := &SessionDescription{
		Contents:       make([]ContentInfo, len(d.Contents)),
		TransportInfos: make([]TransportInfo, len(d.TransportInfos)),
		Groups:         make([]ContentGroup, len(d.Groups)),
	}
	for i := range d.Contents {
		out.Contents[i] = d.Contents[i].Clone()
	}
	for i, t := range d.TransportInfos {
		out.TransportInfos[i] = TransportInfo{ContentName: t.ContentName, Description: t.Description.clone()}
	}
	for i, g := range d.Groups {
		out.Groups[i] = ContentGroup{Semantics: g.Semantics, ContentNames: append([]string(nil), g.ContentNames...)}
	}

	return out
}

// Validate checks the structural invariants of the model: unique content
// names with a matching transport info, group names that exist, unique
// codec payload types per section and rtx codecs whose apt references a
// codec of the same section.
func (d *SessionDescription) Validate() error {
	seen := make(map[string]bool, len(d.Contents))
	for i := range d.Contents {
		c := &d.Contents[i]
		if seen[c.Name] {
			return fmt.Errorf("%w: %s", ErrDuplicateContent, c.Name)
		}
		seen[c.Name] = true

		if d.TransportInfoByName(c.Name) == nil {
			return fmt.Errorf("%w: %s", ErrMissingTransportInfo, c.Name)
		}
		if m := c.Media(); m != nil {
			if err := validateCodecs(c.Name, m.Codecs); err != nil {
				return err
			}
		}
	}

	for _, g := range d.Groups {
		for _, name := range g.ContentNames {
			if !seen[name] {
				return fmt.Errorf("%w: %s %s", ErrUnknownGroupContent, g.Semantics, name)
			}
		}
	}

	return nil
}

func validateCodecs(mid string, codecs []Codec) error {
	ids := make(map[uint8]bool, len(codecs))
	for _, c := range codecs {
		if ids[c.ID] {
			return fmt.Errorf("%w: %s payload type %d", ErrDuplicateCodec, mid, c.ID)
		}
		ids[c.ID] = true
	}

	for i := range codecs {
		if !codecs[i].IsRTX() {
			continue
		}
		apt, ok := codecs[i].Param(RtxAptParam)
		if !ok {
			return fmt.Errorf("%w: %s payload type %d has no apt", ErrInvalidRtxApt, mid, codecs[i].ID)
		}
		aptID, err := strconv.ParseUint(apt, 10, 8)
		if err != nil || !ids[uint8(aptID)] || uint8(aptID) == codecs[i].ID {
			return fmt.Errorf("%w: %s apt=%s", ErrInvalidRtxApt, mid, apt)
		}
	}

	return nil
}
