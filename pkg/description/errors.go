// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import "errors"

var (
	// ErrUnknownType indicates an enum value out of range.
	ErrUnknownType = errors.New("unknown")

	// ErrEmptyDescription indicates the raw description had no content.
	ErrEmptyDescription = errors.New("description: empty session description")

	// ErrMalformedMediaLine indicates an m= line with too few fields or a
	// non numeric payload type.
	ErrMalformedMediaLine = errors.New("description: malformed media line")

	// ErrMalformedCandidate indicates an a=candidate line that could not be parsed.
	ErrMalformedCandidate = errors.New("description: malformed candidate")

	// ErrMalformedFingerprint indicates an a=fingerprint line whose digest
	// could not be decoded.
	ErrMalformedFingerprint = errors.New("description: malformed fingerprint")

	// ErrUnsupportedFingerprint indicates a fingerprint hash algorithm which
	// is not supported.
	ErrUnsupportedFingerprint = errors.New("description: unsupported fingerprint algorithm")

	// ErrMalformedAttribute indicates an attribute with an invalid value.
	ErrMalformedAttribute = errors.New("description: malformed attribute")

	// ErrDuplicateCodec indicates two codecs of one section share a payload type.
	ErrDuplicateCodec = errors.New("description: duplicate codec payload type")

	// ErrInvalidRtxApt indicates an rtx codec whose apt does not name a codec
	// of the same section.
	ErrInvalidRtxApt = errors.New("description: rtx apt does not reference a codec")

	// ErrUnknownGroupContent indicates a content group naming a missing content.
	ErrUnknownGroupContent = errors.New("description: group references unknown content")

	// ErrMissingTransportInfo indicates a content without a transport info.
	ErrMissingTransportInfo = errors.New("description: content has no transport info")

	// ErrDuplicateContent indicates two contents sharing a name.
	ErrDuplicateContent = errors.New("description: duplicate content name")
)
