// Package iso7816 implements the ISO/IEC 7816-4 command and response
// APDU model: class and instruction bytes, short and extended length
// encodings, and status word interpretation.
//
// The package is wire-exact and transport-agnostic; framing an APDU
// onto a physical link (CCID, U2F HID, ISO-DEP) is the transport
// packages' concern.
package iso7816
