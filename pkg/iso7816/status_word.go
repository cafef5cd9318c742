package iso7816

import (
	"fmt"

	"github.com/gregLibert/security-key/pkg/bits"
)

// Dynamic Status Word Logic:
//
// Most Status Words (SW) are static 2-byte values (e.g., 0x9000), but
// ISO 7816-4 defines ranges where the value carries contextual
// information:
//
// 1. '61XX' (SW1=0x61): Process completed, XX more response bytes are
//    available via GET RESPONSE.
// 2. '6CXX' (SW1=0x6C): Wrong Le; XX is the correct expected length.
// 3. '63CX': Counter warning. The lower nibble of SW2 is a counter
//    value; the OpenPGP applet uses it for remaining PIN retries.

// StatusWord represents the two-byte status (SW1-SW2) returned by the card.
type StatusWord uint16

// NewStatusWord creates a StatusWord from two separate bytes.
func NewStatusWord(sw1, sw2 byte) StatusWord {
	return StatusWord(uint16(sw1)<<8 | uint16(sw2))
}

// SW1 returns the first (high) byte of the status word.
func (sw StatusWord) SW1() byte {
	return byte(sw >> 8)
}

// SW2 returns the second (low) byte of the status word.
func (sw StatusWord) SW2() byte {
	return byte(sw)
}

// IsSuccess returns true for 9000 or 61XX (data available).
func (sw StatusWord) IsSuccess() bool {
	return sw == SwNoError || sw.SW1() == 0x61
}

// HasMoreData returns true for 61XX. SW2 is the number of bytes the
// card holds ready for GET RESPONSE.
func (sw StatusWord) HasMoreData() bool {
	return sw.SW1() == 0x61
}

// IsWrongLe returns true for 6CXX. SW2 is the Le the card expects.
func (sw StatusWord) IsWrongLe() bool {
	return sw.SW1() == 0x6C
}

// IsRetryCounter returns true for 63CX, the PIN retry counter warning.
func (sw StatusWord) IsRetryCounter() bool {
	return sw.SW1() == 0x63 && bits.GetRange(sw.SW2(), 8, 5) == 0x0C
}

// RetryCount extracts the counter from a 63CX status word.
func (sw StatusWord) RetryCount() int {
	return int(bits.GetRange(sw.SW2(), 4, 1))
}

// Verbose returns a human-readable description of the status word.
func (sw StatusWord) Verbose() string {
	switch {
	case sw.HasMoreData():
		return fmt.Sprintf("[%04X] process completed, %d bytes available", uint16(sw), sw.SW2())
	case sw.IsWrongLe():
		return fmt.Sprintf("[%04X] wrong length, correct Le is %d", uint16(sw), sw.SW2())
	case sw.IsRetryCounter():
		return fmt.Sprintf("[%04X] verification failed, %d retries left", uint16(sw), sw.RetryCount())
	}
	return fmt.Sprintf("[%04X] %s", uint16(sw), sw.describe())
}

func (sw StatusWord) describe() string {
	switch sw {
	case SwNoError:
		return "no error"
	case SwTerminationState:
		return "selected file in termination state"
	case SwMemoryFailure:
		return "memory failure"
	case SwWrongLength:
		return "wrong length"
	case SwChainingNotSupported:
		return "command chaining not supported"
	case SwSecurityStatusNotSatisfied:
		return "security status not satisfied"
	case SwAuthMethodBlocked:
		return "authentication method blocked"
	case SwConditionsNotSatisfied:
		return "conditions of use not satisfied"
	case SwIncorrectData:
		return "incorrect parameters in the data field"
	case SwFuncNotSupported:
		return "function not supported"
	case SwFileNotFound:
		return "file or application not found"
	case SwRecordNotFound:
		return "record not found"
	case SwRefDataNotFound:
		return "referenced data not found"
	case SwWrongP1P2:
		return "wrong parameters P1-P2"
	case SwInsNotSupported:
		return "instruction not supported or invalid"
	case SwClaNotSupported:
		return "class not supported"
	case SwUnknown:
		return "no precise diagnosis"
	}

	switch sw.SW1() {
	case 0x62:
		return "warning: NV memory unchanged"
	case 0x63:
		return "warning: NV memory changed"
	case 0x64:
		return "execution error: NV memory unchanged"
	case 0x65:
		return "execution error: NV memory changed"
	case 0x66:
		return "security-related execution error"
	case 0x68:
		return "checking error: function not supported"
	case 0x69:
		return "checking error: command not allowed"
	case 0x6A:
		return "checking error: wrong parameters"
	default:
		return "unknown status"
	}
}

// Status word values returned by ISO 7816-4 cards and the OpenPGP card
// application.
const (
	SwNoError StatusWord = 0x9000

	SwTerminationState StatusWord = 0x6285

	SwMemoryFailure StatusWord = 0x6581
	SwWrongLength   StatusWord = 0x6700

	SwChainingNotSupported StatusWord = 0x6884

	SwSecurityStatusNotSatisfied StatusWord = 0x6982
	SwAuthMethodBlocked          StatusWord = 0x6983
	SwConditionsNotSatisfied     StatusWord = 0x6985

	SwIncorrectData    StatusWord = 0x6A80
	SwFuncNotSupported StatusWord = 0x6A81
	SwFileNotFound     StatusWord = 0x6A82
	SwRecordNotFound   StatusWord = 0x6A83
	SwRefDataNotFound  StatusWord = 0x6A88

	SwWrongP1P2       StatusWord = 0x6B00
	SwInsNotSupported StatusWord = 0x6D00
	SwClaNotSupported StatusWord = 0x6E00
	SwUnknown         StatusWord = 0x6F00
)
