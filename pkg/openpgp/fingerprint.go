package openpgp

import (
	"crypto/rsa"
	"crypto/sha1"
	"encoding/binary"
	"math/big"
)

// OPENPGP V4 FINGERPRINT (RFC 4880 §12.2):
// The fingerprint is the SHA-1 of the public key packet body framed
// with a 0x99 header:
//
//	99 | length (2 bytes) | 04 | creation time (4 bytes) | algorithm |
//	algorithm-specific MPIs
//
// For RSA the MPIs are the modulus n then the exponent e. An MPI is a
// 2-byte big-endian bit count followed by the minimal big-endian
// magnitude.

// mpi encodes a big integer as an OpenPGP multiprecision integer.
func mpi(v *big.Int) []byte {
	mag := v.Bytes()
	out := make([]byte, 2+len(mag))
	binary.BigEndian.PutUint16(out[0:2], uint16(v.BitLen()))
	copy(out[2:], mag)
	return out
}

// rsaPublicKeyPacketBody builds the v4 public key packet body for an
// RSA key with the given creation timestamp.
func rsaPublicKeyPacketBody(pub *rsa.PublicKey, creationTime uint32) []byte {
	body := make([]byte, 0, 6+2+(pub.N.BitLen()+7)/8+2+4)
	body = append(body, 0x04)
	body = binary.BigEndian.AppendUint32(body, creationTime)
	body = append(body, 0x01) // RSA (encrypt or sign)
	body = append(body, mpi(pub.N)...)
	body = append(body, mpi(big.NewInt(int64(pub.E)))...)
	return body
}

// RsaFingerprint computes the v4 fingerprint of an RSA public key.
func RsaFingerprint(pub *rsa.PublicKey, creationTime uint32) [20]byte {
	body := rsaPublicKeyPacketBody(pub, creationTime)

	framed := make([]byte, 0, 3+len(body))
	framed = append(framed, 0x99, byte(len(body)>>8), byte(len(body)))
	framed = append(framed, body...)

	return sha1.Sum(framed)
}
