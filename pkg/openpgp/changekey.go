package openpgp

import (
	"crypto/rsa"
	"encoding/binary"
	"errors"
	"fmt"
	"math/big"

	"github.com/gregLibert/security-key/pkg/tlv"
)

// KEY IMPORT (OpenPGP card spec §4.4.3.12):
// A private key travels to the card as an "extended header list":
//
//	4D LL
//	  B6|B8|A4 00                  control reference template
//	  7F48 LL  91 l(e) 92 l(p) 93 l(q) 94 l(u) 95 l(dp) 96 l(dq) 97 l(n)
//	  5F48 LL  e p q u dp dq n    concatenated values, same order
//
// where u = p⁻¹ mod q, dp = d mod (p-1), dq = d mod (q-1). The list is
// written with PUT DATA (odd instruction, DB 3FFF), chained when it
// exceeds the command buffer; PW3 must be verified first.
//
// After import the host stores the fingerprint (SHA-1 over the
// canonical v4 public key packet) and the generation timestamp in the
// slot's data objects, then refreshes the capability snapshot.

// ChangeKeyRsa imports a host-generated RSA private key into a slot
// and returns the key's fingerprint. Requires prior PW3 verification.
func (c *AppletConnection) ChangeKeyRsa(k KeyType, key *rsa.PrivateKey, creationTime uint32) ([]byte, error) {
	caps := c.Capabilities()
	if caps == nil {
		return nil, fmt.Errorf("%w: connection not opened", ErrCapabilityParse)
	}
	if format, ok := caps.Format(k).(RsaKeyFormat); ok {
		if keyBits := key.N.BitLen(); keyBits != format.ModulusBits {
			return nil, fmt.Errorf("%w: slot %s expects RSA-%d, key is %d bits",
				ErrUnsupportedKeyFormat, k, format.ModulusBits, keyBits)
		}
	}

	headerList, err := buildRsaHeaderList(k, key)
	if err != nil {
		return nil, err
	}

	if err := c.putDataOdd(headerList); err != nil {
		if errors.Is(err, ErrWrongData) || errors.Is(err, ErrConditionsNotSatisfied) {
			return nil, fmt.Errorf("%w: %v", ErrKeyImportRejected, err)
		}
		return nil, err
	}

	fingerprint := RsaFingerprint(&key.PublicKey, creationTime)
	if err := c.PutData(k.FingerprintDO(), fingerprint[:]); err != nil {
		return nil, fmt.Errorf("storing fingerprint: %w", err)
	}

	ts := binary.BigEndian.AppendUint32(nil, creationTime)
	if err := c.PutData(k.TimestampDO(), ts); err != nil {
		return nil, fmt.Errorf("storing generation time: %w", err)
	}

	if err := c.RefreshCapabilities(); err != nil {
		return nil, fmt.Errorf("refreshing capabilities: %w", err)
	}

	return fingerprint[:], nil
}

// buildRsaHeaderList assembles the 4D extended header list for an RSA
// private key.
func buildRsaHeaderList(k KeyType, key *rsa.PrivateKey) ([]byte, error) {
	if len(key.Primes) != 2 {
		return nil, fmt.Errorf("%w: RSA key must have exactly two primes", ErrUnsupportedKeyFormat)
	}
	p, q := key.Primes[0], key.Primes[1]

	u := new(big.Int).ModInverse(p, q)
	if u == nil {
		return nil, fmt.Errorf("%w: p has no inverse mod q", ErrUnsupportedKeyFormat)
	}

	one := big.NewInt(1)
	dp := new(big.Int).Mod(key.D, new(big.Int).Sub(p, one))
	dq := new(big.Int).Mod(key.D, new(big.Int).Sub(q, one))
	e := big.NewInt(int64(key.PublicKey.E))

	components := []*big.Int{e, p, q, u, dp, dq, key.N}
	tags := []byte{0x91, 0x92, 0x93, 0x94, 0x95, 0x96, 0x97}

	var template, cryptogram []byte
	for i, comp := range components {
		value := comp.Bytes()
		template = append(template, tags[i])
		template = append(template, tlvLength(len(value))...)
		cryptogram = append(cryptogram, value...)
	}

	var inner []byte
	inner = append(inner, k.Slot(), 0x00)
	inner = append(inner, tlv.Encode(0x7F48, template)...)
	inner = append(inner, tlv.Encode(0x5F48, cryptogram)...)

	return tlv.Encode(0x4D, inner), nil
}

// tlvLength encodes just the BER length octets for a template entry.
func tlvLength(n int) []byte {
	switch {
	case n <= 0x7F:
		return []byte{byte(n)}
	case n <= 0xFF:
		return []byte{0x81, byte(n)}
	default:
		return []byte{0x82, byte(n >> 8), byte(n)}
	}
}
