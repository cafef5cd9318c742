package openpgp

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rsa"
	"fmt"
	"math/big"

	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/gregLibert/security-key/pkg/tlv"
)

// PUBLIC KEY RETRIEVAL:
// GENERATE ASYMMETRIC KEY PAIR in read mode (P1=0x81) returns the
// public key of an existing slot inside DO 7F49:
//
//	RSA:  81 modulus, 82 public exponent
//	EC:   86 public point (uncompressed, or raw for EdDSA/X25519)
//
// The slot's algorithm attributes decide how 7F49 is interpreted.

// Named curve OID bodies (DER, without the tag/length prefix).
var (
	oidNistP256   = []byte{0x2A, 0x86, 0x48, 0xCE, 0x3D, 0x03, 0x01, 0x07}
	oidNistP384   = []byte{0x2B, 0x81, 0x04, 0x00, 0x22}
	oidNistP521   = []byte{0x2B, 0x81, 0x04, 0x00, 0x23}
	oidEd25519    = []byte{0x2B, 0x06, 0x01, 0x04, 0x01, 0xDA, 0x47, 0x0F, 0x01}
	oidCurve25519 = []byte{0x2B, 0x06, 0x01, 0x04, 0x01, 0x97, 0x55, 0x01, 0x05, 0x01}
)

// RetrievePublicKey reads the public half of a key slot.
func (c *AppletConnection) RetrievePublicKey(k KeyType) (crypto.PublicKey, error) {
	caps := c.Capabilities()
	if caps == nil {
		return nil, fmt.Errorf("%w: connection not opened", ErrCapabilityParse)
	}
	format := caps.Format(k)
	if format == nil {
		return nil, fmt.Errorf("%w: slot %s reports no algorithm attributes", ErrUnsupportedKeyFormat, k)
	}

	blob, err := c.readPublicKeyTemplate(k)
	if err != nil {
		return nil, err
	}
	return parsePublicKey(format, blob)
}

// readPublicKeyTemplate runs GENERATE ASYMMETRIC KEY PAIR in read mode
// and returns the raw 7F49 template.
func (c *AppletConnection) readPublicKeyTemplate(k KeyType) ([]byte, error) {
	cls, _ := iso7816.NewClass(0x00)
	crt := []byte{k.Slot(), 0x00}
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsGenerateAsymmetricKeyPair, 0x81, 0x00, crt, c.responseNe())
	return c.Transceive(cmd)
}

// parsePublicKey interprets a 7F49 template per the slot's format.
func parsePublicKey(format KeyFormat, blob []byte) (crypto.PublicKey, error) {
	root, err := tlv.ParseSingle(blob, false)
	if err != nil {
		return nil, fmt.Errorf("parsing public key template: %w", err)
	}
	if root.Tag != 0x7F49 {
		if found := tlv.FindRecursive(&root, 0x7F49); found != nil {
			root = *found
		} else {
			return nil, fmt.Errorf("%w: no 7F49 template in response", ErrUnsupportedKeyFormat)
		}
	}

	switch f := format.(type) {
	case RsaKeyFormat:
		return parseRsaPublicKey(&root)
	case EcKeyFormat:
		return parseEcPublicKey(f, &root)
	case EddsaKeyFormat:
		return parseEddsaPublicKey(f, &root)
	default:
		return nil, ErrUnsupportedKeyFormat
	}
}

func parseRsaPublicKey(root *tlv.TLV) (*rsa.PublicKey, error) {
	modulus := tlv.FindRecursive(root, 0x81)
	exponent := tlv.FindRecursive(root, 0x82)
	if modulus == nil || exponent == nil {
		return nil, fmt.Errorf("%w: RSA template missing tags 81/82", ErrUnsupportedKeyFormat)
	}

	e := new(big.Int).SetBytes(exponent.Value)
	if !e.IsInt64() || e.Int64() > int64(1)<<31 {
		return nil, fmt.Errorf("%w: oversized RSA exponent", ErrUnsupportedKeyFormat)
	}
	return &rsa.PublicKey{
		N: new(big.Int).SetBytes(modulus.Value),
		E: int(e.Int64()),
	}, nil
}

func parseEcPublicKey(format EcKeyFormat, root *tlv.TLV) (crypto.PublicKey, error) {
	point := tlv.FindRecursive(root, 0x86)
	if point == nil {
		return nil, fmt.Errorf("%w: EC template missing tag 86", ErrUnsupportedKeyFormat)
	}

	curve, err := curveForOid(format.CurveOid)
	if err != nil {
		return nil, err
	}

	x, y := elliptic.Unmarshal(curve, point.Value)
	if x == nil {
		return nil, fmt.Errorf("%w: invalid EC point encoding", ErrUnsupportedKeyFormat)
	}
	return &ecdsa.PublicKey{Curve: curve, X: x, Y: y}, nil
}

func parseEddsaPublicKey(format EddsaKeyFormat, root *tlv.TLV) (crypto.PublicKey, error) {
	point := tlv.FindRecursive(root, 0x86)
	if point == nil {
		return nil, fmt.Errorf("%w: EdDSA template missing tag 86", ErrUnsupportedKeyFormat)
	}

	if !oidEqual(format.CurveOid, oidEd25519) {
		return nil, fmt.Errorf("%w: unknown EdDSA curve OID %X", ErrUnsupportedKeyFormat, format.CurveOid)
	}
	if len(point.Value) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: Ed25519 point is %d bytes", ErrUnsupportedKeyFormat, len(point.Value))
	}
	return ed25519.PublicKey(append([]byte(nil), point.Value...)), nil
}

func curveForOid(oid []byte) (elliptic.Curve, error) {
	switch {
	case oidEqual(oid, oidNistP256):
		return elliptic.P256(), nil
	case oidEqual(oid, oidNistP384):
		return elliptic.P384(), nil
	case oidEqual(oid, oidNistP521):
		return elliptic.P521(), nil
	default:
		return nil, fmt.Errorf("%w: unknown curve OID %X", ErrUnsupportedKeyFormat, oid)
	}
}

func oidEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
