package iso7816

import (
	"fmt"

	"github.com/gregLibert/security-key/pkg/bits"
)

// Class Byte (CLA) Structure according to ISO/IEC 7816-4.
//
// The CLA byte conveys the command class: secure messaging (SM),
// command chaining, and logical channel selection.
//
// First Interindustry Class (00xx xxxx), the only range the OpenPGP
// card application uses:
//   - Bit 5: Command Chaining (0=Last/Only, 1=More follow).
//   - Bits 4-3: Secure Messaging indicator.
//   - Bits 2-1: Logical Channel number (0-3).
//
// Bit 8 set marks a proprietary class; such bytes are carried opaque.

// SecureMessaging defines the security level applied to the APDU.
type SecureMessaging byte

const (
	// SMNone indicates no secure messaging or no indication given.
	SMNone SecureMessaging = 0
	// SMProprietary indicates a proprietary secure messaging format.
	SMProprietary SecureMessaging = 1
	// SMHeaderNoProc indicates ISO SM where the header is not processed.
	SMHeaderNoProc SecureMessaging = 2
	// SMHeaderAuth indicates ISO SM where the header is authenticated.
	SMHeaderAuth SecureMessaging = 3
)

// Class represents the parsed ISO 7816-4 Class byte (CLA).
type Class struct {
	Raw             byte
	IsProprietary   bool
	IsChained       bool
	SecureMessaging SecureMessaging
	Channel         uint8
}

// NewClass creates a Class object by decoding a raw CLA byte.
func NewClass(cla byte) (Class, error) {
	if cla == 0xFF {
		return Class{}, fmt.Errorf("invalid CLA value: 0xFF is reserved")
	}

	c := Class{Raw: cla}

	if bits.IsSet(cla, 8) {
		c.IsProprietary = true
		return c, nil
	}
	if bits.IsSet(cla, 7) {
		return Class{}, fmt.Errorf("further interindustry CLA 0x%02X not supported", cla)
	}

	c.IsChained = bits.IsSet(cla, 5)
	c.SecureMessaging = SecureMessaging(bits.GetRange(cla, 4, 3))
	c.Channel = bits.GetRange(cla, 2, 1)

	return c, nil
}

// WithChaining returns a copy of the class with the chaining bit set or
// cleared. Used when splitting oversized command data across multiple
// APDUs: every chunk but the last carries the chaining bit.
func (c Class) WithChaining(chained bool) Class {
	c.IsChained = chained
	c.Raw = c.encode()
	return c
}

// Encode converts the Class object back to its byte representation.
func (c *Class) Encode() byte {
	if c.IsProprietary {
		return c.Raw
	}
	return c.encode()
}

func (c Class) encode() byte {
	var res byte
	if c.IsChained {
		res = bits.Set(res, 5)
	}
	res = bits.SetRange(res, 4, 3, byte(c.SecureMessaging))
	return bits.SetRange(res, 2, 1, c.Channel)
}

// Verbose returns a human-readable description of the CLA byte.
func (c Class) Verbose() string {
	if c.IsProprietary {
		return fmt.Sprintf("Class: Proprietary (0x%02X)", c.Raw)
	}

	chaining := "last or only"
	if c.IsChained {
		chaining = "more follow"
	}
	return fmt.Sprintf("CLA 0x%02X | Chaining: %s | SM: %d | Channel: %d",
		c.Encode(), chaining, c.SecureMessaging, c.Channel)
}
