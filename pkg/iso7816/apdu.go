package iso7816

import (
	"bytes"
	"fmt"
)

// APDU (Application Protocol Data Unit) encodings according to ISO/IEC
// 7816-3 and 7816-4.
//
// COMMAND APDU (C-APDU):
// Header CLA INS P1 P2, then an optional body:
//   - Lc: number of bytes in the data field.
//   - Data: the command payload.
//   - Le: maximum number of response bytes expected.
//
// ENCODING CASES (ISO 7816-3):
// - Case 1: No Data, No Response (Header only).
// - Case 2: No Data, Response Expected (Header + Le).
// - Case 3: Data Present, No Response (Header + Lc + Data).
// - Case 4: Data Present, Response Expected (Header + Lc + Data + Le).
//
// LENGTH MODES:
//   - Short: Lc/Le on 1 byte (max 255/256; Le 0x00 encodes 256).
//   - Extended: 00 flag byte then 2-byte fields (max 65535/65536;
//     Le 0x0000 encodes 65536). Selected when Nc > 255 or Ne > 256.
//
// RESPONSE APDU (R-APDU):
// Optional data field, then the mandatory 2-byte status word SW1 SW2.

// APDU limits according to ISO 7816-3.
const (
	// MaxShortNc is the maximum data length encodable in short form.
	MaxShortNc = 255

	// MaxShortNe is the maximum expected response length in short form;
	// 0x00 encodes 256.
	MaxShortNe = 256

	// MaxExtendedNc is the limit for Lc in extended form.
	MaxExtendedNc = 65535

	// MaxExtendedNe is the maximum Ne in extended form; 0x0000 encodes
	// 65536.
	MaxExtendedNe = 65536
)

// CommandAPDU represents a command sent to the card.
type CommandAPDU struct {
	Class       Class
	Instruction InsCode
	P1, P2      byte
	Data        []byte
	Ne          int // expected response length, 0 means none
}

// NewCommandAPDU creates a basic command.
func NewCommandAPDU(cla Class, ins InsCode, p1, p2 byte, data []byte, ne int) *CommandAPDU {
	return &CommandAPDU{
		Class:       cla,
		Instruction: ins,
		P1:          p1,
		P2:          p2,
		Data:        data,
		Ne:          ne,
	}
}

// WithNe returns a copy of the command with a different expected
// response length.
func (c *CommandAPDU) WithNe(ne int) *CommandAPDU {
	dup := *c
	dup.Ne = ne
	return &dup
}

// WithData returns a copy of the command carrying different data.
func (c *CommandAPDU) WithData(data []byte) *CommandAPDU {
	dup := *c
	dup.Data = data
	return &dup
}

// WithChaining returns a copy with the CLA chaining bit set or cleared.
func (c *CommandAPDU) WithChaining(chained bool) *CommandAPDU {
	dup := *c
	dup.Class = dup.Class.WithChaining(chained)
	return &dup
}

// Bytes encodes the CommandAPDU, selecting short or extended form from
// the data and expected-response lengths.
func (c *CommandAPDU) Bytes() ([]byte, error) {
	nc := len(c.Data)
	ne := c.Ne

	if nc > MaxExtendedNc {
		return nil, fmt.Errorf("command data too long: %d > %d", nc, MaxExtendedNc)
	}
	if ne > MaxExtendedNe {
		return nil, fmt.Errorf("expected length too large: %d > %d", ne, MaxExtendedNe)
	}

	buf := new(bytes.Buffer)
	buf.WriteByte(c.Class.Encode())
	buf.WriteByte(byte(c.Instruction))
	buf.WriteByte(c.P1)
	buf.WriteByte(c.P2)

	isExtended := nc > MaxShortNc || ne > MaxShortNe

	if nc > 0 {
		if !isExtended {
			buf.WriteByte(byte(nc))
		} else {
			// Extended Lc: 00 flag, then 2 bytes big-endian.
			buf.WriteByte(0x00)
			buf.WriteByte(byte(nc >> 8))
			buf.WriteByte(byte(nc))
		}
		buf.Write(c.Data)
	}

	if ne > 0 {
		if !isExtended {
			if ne == MaxShortNe {
				buf.WriteByte(0x00)
			} else {
				buf.WriteByte(byte(ne))
			}
		} else {
			// Case 2 extended has no Lc; the 00 flag byte still leads.
			if nc == 0 {
				buf.WriteByte(0x00)
			}
			if ne == MaxExtendedNe {
				buf.WriteByte(0x00)
				buf.WriteByte(0x00)
			} else {
				buf.WriteByte(byte(ne >> 8))
				buf.WriteByte(byte(ne))
			}
		}
	}

	return buf.Bytes(), nil
}

// String returns a readable representation of the command meta-data.
func (c *CommandAPDU) String() string {
	return fmt.Sprintf("%s | P1: %02X, P2: %02X | Lc: %d | Le: %d",
		c.Instruction, c.P1, c.P2, len(c.Data), c.Ne)
}

// ResponseAPDU represents the reply from the card (R-APDU).
type ResponseAPDU struct {
	Data   []byte
	Status StatusWord
}

// ParseResponseAPDU parses raw bytes received from the card. The input
// must contain at least the 2-byte status word.
func ParseResponseAPDU(raw []byte) (*ResponseAPDU, error) {
	if len(raw) < 2 {
		return nil, fmt.Errorf("%w: response length %d", ErrMalformed, len(raw))
	}

	indexSW1 := len(raw) - 2
	return &ResponseAPDU{
		Data:   raw[:indexSW1],
		Status: NewStatusWord(raw[indexSW1], raw[indexSW1+1]),
	}, nil
}

// IsSuccess reports whether the response carries SW 9000.
func (r *ResponseAPDU) IsSuccess() bool {
	return r.Status == SwNoError
}

// String returns a readable representation of the response.
func (r *ResponseAPDU) String() string {
	return fmt.Sprintf("Data (%d bytes) | Status: %s", len(r.Data), r.Status.Verbose())
}
