// SPDX-FileCopyrightText: 2023 The Pion community <https://pion.ly>
// SPDX-License-Identifier: MIT

package transport

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rsa"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/hex"
	"io"
	"math/big"
	"time"

	"github.com/pion/p2p/pkg/description"
	"github.com/pion/p2p/pkg/rtcerr"
)

// DefaultFingerprintAlgorithm is the hash advertised in a=fingerprint.
const DefaultFingerprintAlgorithm = "sha-256"

// Certificate is a self-signed x509 certificate used to authenticate the
// DTLS handshake.
type Certificate struct {
	privateKey crypto.PrivateKey
	x509Cert   *x509.Certificate
}

// NewCertificate signs tpl with key. rand is the randomness source of the
// signature.
func NewCertificate(rand io.Reader, key crypto.PrivateKey, tpl x509.Certificate) (*Certificate, error) {
	var pub crypto.PublicKey
	switch sk := key.(type) {
	case *rsa.PrivateKey:
		pub = sk.Public()
		tpl.SignatureAlgorithm = x509.SHA256WithRSA
	case *ecdsa.PrivateKey:
		pub = sk.Public()
		tpl.SignatureAlgorithm = x509.ECDSAWithSHA256
	default:
		return nil, &rtcerr.NotSupportedError{Err: ErrPrivateKeyType}
	}

	certDER, err := x509.CreateCertificate(rand, &tpl, &tpl, pub, key)
	if err != nil {
		return nil, &rtcerr.UnknownError{Err: err}
	}
	cert, err := x509.ParseCertificate(certDER)
	if err != nil {
		return nil, &rtcerr.UnknownError{Err: err}
	}

	return &Certificate{privateKey: key, x509Cert: cert}, nil
}

// GenerateCertificate creates a P-256 key and a certificate valid from now
// for validity. The serial and common name are read from rand, and a read
// failure is returned as an UnknownError.
func GenerateCertificate(rand io.Reader, now time.Time, validity time.Duration) (*Certificate, error) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand)
	if err != nil {
		return nil, &rtcerr.UnknownError{Err: err}
	}

	origin := make([]byte, 16)
	if _, err = io.ReadFull(rand, origin); err != nil {
		return nil, &rtcerr.UnknownError{Err: err}
	}

	// Max random value, a 130-bits integer, i.e 2^130 - 1
	maxBigInt := new(big.Int)
	maxBigInt.Exp(big.NewInt(2), big.NewInt(130), nil).Sub(maxBigInt, big.NewInt(1))
	serialBytes := make([]byte, 17)
	if _, err = io.ReadFull(rand, serialBytes); err != nil {
		return nil, &rtcerr.UnknownError{Err: err}
	}
	serialNumber := new(big.Int).SetBytes(serialBytes)
	serialNumber.Mod(serialNumber, maxBigInt)

	return NewCertificate(rand, key, x509.Certificate{
		ExtKeyUsage: []x509.ExtKeyUsage{
			x509.ExtKeyUsageClientAuth,
			x509.ExtKeyUsageServerAuth,
		},
		BasicConstraintsValid: true,
		NotBefore:             now,
		KeyUsage:              x509.KeyUsageDigitalSignature,
		NotAfter:              now.Add(validity),
		SerialNumber:          serialNumber,
		Version:               2,
		Subject:               pkix.Name{CommonName: hex.EncodeToString(origin)},
		IsCA:                  true,
	})
}

// Equals determines if two certificates are identical by comparing both the
// private keys and the x509 certificates.
func (c *Certificate) Equals(o *Certificate) bool {
	if c == nil || o == nil {
		return c == o
	}

	switch cSK := c.privateKey.(type) {
	case *rsa.PrivateKey:
		oSK, ok := o.privateKey.(*rsa.PrivateKey)

		return ok && cSK.N.Cmp(oSK.N) == 0 && c.x509Cert.Equal(o.x509Cert)
	case *ecdsa.PrivateKey:
		oSK, ok := o.privateKey.(*ecdsa.PrivateKey)

		return ok && cSK.Equal(oSK) && c.x509Cert.Equal(o.x509Cert)
	default:
		return false
	}
}

// Expires returns the timestamp after which this certificate is no longer valid.
func (c *Certificate) Expires() time.Time {
	if c.x509Cert == nil {
		return time.Time{}
	}

	return c.x509Cert.NotAfter
}

// X509 returns the parsed certificate.
func (c *Certificate) X509() *x509.Certificate {
	return c.x509Cert
}

// Fingerprint hashes the certificate with algorithm.
func (c *Certificate) Fingerprint(algorithm string) (*description.Fingerprint, error) {
	return description.FingerprintFromCertificate(c.x509Cert, algorithm)
}

// TLSCertificate returns the certificate in the form dtls.Config expects.
func (c *Certificate) TLSCertificate() tls.Certificate {
	return tls.Certificate{
		Certificate: [][]byte{c.x509Cert.Raw},
		PrivateKey:  c.privateKey,
		Leaf:        c.x509Cert,
	}
}
