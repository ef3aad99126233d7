// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package description

import (
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/pion/dtls/v3/pkg/crypto/fingerprint"
)

// ConnectionRole is the a=setup role of a transport (RFC4145).
type ConnectionRole int

const (
	// ConnectionRoleNone means no a=setup attribute.
	ConnectionRoleNone ConnectionRole = iota
	// ConnectionRoleActive initiates the DTLS handshake.
	ConnectionRoleActive
	// ConnectionRolePassive waits for the DTLS handshake.
	ConnectionRolePassive
	// ConnectionRoleActpass may take either role.
	ConnectionRoleActpass
	// ConnectionRoleHoldconn does not want a connection yet.
	ConnectionRoleHoldconn
)

// NewConnectionRole parses an a=setup value.
func NewConnectionRole(raw string) (ConnectionRole, error) {
	switch strings.ToLower(raw) {
	case "active":
		return ConnectionRoleActive, nil
	case "passive":
		return ConnectionRolePassive, nil
	case "actpass":
		return ConnectionRoleActpass, nil
	case "holdconn":
		return ConnectionRoleHoldconn, nil
	default:
		return ConnectionRoleNone, fmt.Errorf("%w: setup %q", ErrMalformedAttribute, raw)
	}
}

func (r ConnectionRole) String() string {
	switch r {
	case ConnectionRoleActive:
		return "active"
	case ConnectionRolePassive:
		return "passive"
	case ConnectionRoleActpass:
		return "actpass"
	case ConnectionRoleHoldconn:
		return "holdconn"
	default:
		return ErrUnknownType.Error()
	}
}

// Fingerprint is a certificate fingerprint (RFC4572).
type Fingerprint struct {
	// Algorithm is the lower case hash function name, e.g. "sha-256".
	Algorithm string
	Digest    []byte
}

// NewFingerprint checks that digest has the size of algorithm's hash.
func NewFingerprint(algorithm string, digest []byte) (*Fingerprint, error) {
	algorithm = strings.ToLower(algorithm)
	hash, err := fingerprint.HashFromString(algorithm)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFingerprint, algorithm)
	}
	if len(digest) != hash.Size() {
		return nil, fmt.Errorf("%w: %s digest is %d bytes, expected %d",
			ErrMalformedFingerprint, algorithm, len(digest), hash.Size())
	}

	return &Fingerprint{Algorithm: algorithm, Digest: append([]byte(nil), digest...)}, nil
}

// ParseFingerprint decodes the colon separated hex digest of an
// a=fingerprint attribute.
func ParseFingerprint(algorithm, value string) (*Fingerprint, error) {
	if value == "" {
		return nil, fmt.Errorf("%w: empty digest", ErrMalformedFingerprint)
	}

	octets := strings.Split(value, ":")
	digest := make([]byte, 0, len(octets))
	for _, octet := range octets {
		if len(octet) != 2 {
			return nil, fmt.Errorf("%w: %q", ErrMalformedFingerprint, value)
		}
		b, err := hex.DecodeString(octet)
		if err != nil {
			return nil, fmt.Errorf("%w: %q", ErrMalformedFingerprint, value)
		}
		digest = append(digest, b[0])
	}

	return NewFingerprint(algorithm, digest)
}

// FingerprintFromCertificate hashes cert with algorithm.
func FingerprintFromCertificate(cert *x509.Certificate, algorithm string) (*Fingerprint, error) {
	hash, err := fingerprint.HashFromString(strings.ToLower(algorithm))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFingerprint, algorithm)
	}
	value, err := fingerprint.Fingerprint(cert, hash)
	if err != nil {
		return nil, err
	}

	return ParseFingerprint(algorithm, value)
}

// String returns the upper case colon separated digest.
func (f *Fingerprint) String() string {
	if f == nil {
		return ""
	}

	encoded := strings.ToUpper(hex.EncodeToString(f.Digest))
	var b strings.Builder
	for i := 0; i < len(encoded); i += 2 {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(encoded[i : i+2])
	}

	return b.String()
}

// Equal compares algorithm and digest.
func (f *Fingerprint) Equal(o *Fingerprint) bool {
	if f == nil || o == nil {
		return f == o
	}

	return f.Algorithm == o.Algorithm && string(f.Digest) == string(o.Digest)
}

func (f *Fingerprint) clone() *Fingerprint {
	if f == nil {
		return nil
	}

	return &Fingerprint{Algorithm: f.Algorithm, Digest: append([]byte(nil), f.Digest...)}
}

// IceParameters is an ICE credential pair.
type IceParameters struct {
	Ufrag string
	Pwd   string
}

// TransportDescription carries the ICE and DTLS parameters of a section.
type TransportDescription struct {
	IceUfrag       string
	IcePwd         string
	IceOptions     []string
	Fingerprint    *Fingerprint
	ConnectionRole ConnectionRole
}

// IceParameters returns the credential pair.
func (t *TransportDescription) IceParameters() IceParameters {
	return IceParameters{Ufrag: t.IceUfrag, Pwd: t.IcePwd}
}

// HasIceCredentials reports whether both ufrag and pwd are set.
func (t *TransportDescription) HasIceCredentials() bool {
	return t.IceUfrag != "" && t.IcePwd != ""
}

func (t TransportDescription) clone() TransportDescription {
	t.IceOptions = append([]string(nil), t.IceOptions...)
	t.Fingerprint = t.Fingerprint.clone()

	return t
}

// TransportInfo binds a TransportDescription to a content name.
type TransportInfo struct {
	ContentName string
	Description TransportDescription
}
