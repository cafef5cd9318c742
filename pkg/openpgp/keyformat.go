package openpgp

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// ALGORITHM ATTRIBUTES (OpenPGP card spec §4.4.3.9):
// Each key slot advertises its algorithm in a small attribute blob:
//
//	byte 0:    algorithm ID (1 = RSA, 18 = ECDH, 19 = ECDSA, 22 = EdDSA)
//	RSA:       bytes 1-2 modulus bits, bytes 3-4 public exponent bits
//	           (big-endian), byte 5 import format
//	ECDH/ECDSA/EdDSA: bytes 1.. the curve OID body, optionally followed
//	           by 0xFF when import includes the public key point
//
// The parsed record is what operations consult to decide how to build
// import templates and how to interpret 7F49 public key material.

// Algorithm is the OpenPGP public-key algorithm ID.
type Algorithm byte

const (
	AlgRsa   Algorithm = 1
	AlgEcdh  Algorithm = 18
	AlgEcdsa Algorithm = 19
	AlgEddsa Algorithm = 22
)

// RsaImportFormat selects the private key template layout for import.
type RsaImportFormat byte

const (
	RsaImportStd            RsaImportFormat = 0 // e, p, q
	RsaImportStdWithModulus RsaImportFormat = 1
	RsaImportCrt            RsaImportFormat = 2
	RsaImportCrtWithModulus RsaImportFormat = 3
)

// KeyFormat is one slot's parsed algorithm attributes.
type KeyFormat interface {
	Algorithm() Algorithm
	// Attributes re-encodes the record to its DO form.
	Attributes() []byte
}

// RsaKeyFormat describes an RSA slot.
type RsaKeyFormat struct {
	ModulusBits  int
	ExponentBits int
	ImportFormat RsaImportFormat
}

// Algorithm returns AlgRsa.
func (f RsaKeyFormat) Algorithm() Algorithm { return AlgRsa }

// Attributes re-encodes the 6-byte RSA attribute blob.
func (f RsaKeyFormat) Attributes() []byte {
	out := make([]byte, 6)
	out[0] = byte(AlgRsa)
	binary.BigEndian.PutUint16(out[1:3], uint16(f.ModulusBits))
	binary.BigEndian.PutUint16(out[3:5], uint16(f.ExponentBits))
	out[5] = byte(f.ImportFormat)
	return out
}

func (f RsaKeyFormat) String() string {
	return fmt.Sprintf("RSA-%d (e %d bits, import format %d)", f.ModulusBits, f.ExponentBits, f.ImportFormat)
}

// EcKeyFormat describes an ECDH or ECDSA slot.
type EcKeyFormat struct {
	Alg        Algorithm // AlgEcdh or AlgEcdsa
	CurveOid   []byte    // DER OID body
	WithPubkey bool      // import carries the public point
}

// Algorithm returns the slot's EC algorithm.
func (f EcKeyFormat) Algorithm() Algorithm { return f.Alg }

// Attributes re-encodes the EC attribute blob.
func (f EcKeyFormat) Attributes() []byte {
	out := append([]byte{byte(f.Alg)}, f.CurveOid...)
	if f.WithPubkey {
		out = append(out, 0xFF)
	}
	return out
}

// EddsaKeyFormat describes an EdDSA slot.
type EddsaKeyFormat struct {
	CurveOid []byte
}

// Algorithm returns AlgEddsa.
func (f EddsaKeyFormat) Algorithm() Algorithm { return AlgEddsa }

// Attributes re-encodes the EdDSA attribute blob.
func (f EddsaKeyFormat) Attributes() []byte {
	return append([]byte{byte(AlgEddsa)}, f.CurveOid...)
}

// ParseKeyFormat decodes an algorithm attribute blob into a typed
// record.
func ParseKeyFormat(attrs []byte) (KeyFormat, error) {
	if len(attrs) == 0 {
		return nil, fmt.Errorf("%w: empty algorithm attributes", ErrUnsupportedKeyFormat)
	}

	switch Algorithm(attrs[0]) {
	case AlgRsa:
		if len(attrs) < 6 {
			return nil, fmt.Errorf("%w: RSA attributes truncated (%d bytes)", ErrUnsupportedKeyFormat, len(attrs))
		}
		return RsaKeyFormat{
			ModulusBits:  int(binary.BigEndian.Uint16(attrs[1:3])),
			ExponentBits: int(binary.BigEndian.Uint16(attrs[3:5])),
			ImportFormat: RsaImportFormat(attrs[5]),
		}, nil

	case AlgEcdh, AlgEcdsa:
		oid := attrs[1:]
		withPubkey := false
		if n := len(oid); n > 0 && oid[n-1] == 0xFF {
			oid = oid[:n-1]
			withPubkey = true
		}
		if len(oid) == 0 {
			return nil, fmt.Errorf("%w: EC attributes without curve OID", ErrUnsupportedKeyFormat)
		}
		return EcKeyFormat{
			Alg:        Algorithm(attrs[0]),
			CurveOid:   append([]byte(nil), oid...),
			WithPubkey: withPubkey,
		}, nil

	case AlgEddsa:
		if len(attrs) < 2 {
			return nil, fmt.Errorf("%w: EdDSA attributes without curve OID", ErrUnsupportedKeyFormat)
		}
		return EddsaKeyFormat{CurveOid: append([]byte(nil), attrs[1:]...)}, nil

	default:
		return nil, fmt.Errorf("%w: algorithm ID %d", ErrUnsupportedKeyFormat, attrs[0])
	}
}

// equalFormats compares two records by their canonical encoding.
func equalFormats(a, b KeyFormat) bool {
	if a == nil || b == nil {
		return a == b
	}
	return bytes.Equal(a.Attributes(), b.Attributes())
}
