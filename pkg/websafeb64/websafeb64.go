// Package websafeb64 implements the websafe-base64 encoding used by
// the FIDO U2F raw message formats: RFC 4648 §5 (URL and filename safe
// alphabet) without padding.
package websafeb64

import "encoding/base64"

// EncodeToString encodes data without padding.
func EncodeToString(decoded []byte) string {
	return base64.RawURLEncoding.EncodeToString(decoded)
}

// Decode decodes an unpadded websafe-base64 string.
func Decode(encoded string) ([]byte, error) {
	return base64.RawURLEncoding.DecodeString(encoded)
}
