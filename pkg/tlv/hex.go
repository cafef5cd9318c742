package tlv

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// Hex constructs a byte slice from a series of hex strings. Spaces and
// newlines are stripped, so wire captures can be pasted verbatim, e.g.
// Hex("00 A4 04 00 06", "D2 76 00 01 24 01").
func Hex(parts ...string) []byte {
	fullHex := strings.Join(parts, "")
	cleanHex := strings.NewReplacer(" ", "", "\n", "", "\t", "").Replace(fullHex)

	data, err := hex.DecodeString(cleanHex)
	if err != nil {
		panic(fmt.Sprintf("invalid input '%s': %v", cleanHex, err))
	}
	return data
}
