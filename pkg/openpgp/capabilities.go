package openpgp

import (
	"encoding/binary"
	"fmt"

	"github.com/gregLibert/security-key/pkg/tlv"
	"github.com/moov-io/bertlv"
)

// APPLICATION RELATED DATA (DO 0x6E):
// One GET DATA on 0x6E returns the card's whole capability surface as
// nested data objects:
//
//	4F    AID
//	73    discretionary data objects, containing
//	  C0  extended capabilities (flags, buffer sizes)
//	  C1/C2/C3  algorithm attributes per key slot
//	  C4  PW status (validity mode, max lengths, retry counters)
//	  C5  fingerprints (3 x 20 bytes: sign, encrypt, auth)
//	  C6  CA fingerprints
//	  CD  generation timestamps (3 x 4 bytes)
//
// Some applets flatten the discretionary objects directly under 6E;
// both shapes are accepted.
//
// A Capabilities value is an immutable snapshot. It stays valid until
// the next refresh or a destructive administrative operation; the
// connection swaps the current snapshot atomically so concurrent
// readers never observe a torn state.

const fingerprintLen = 20

// Capabilities is an immutable snapshot of the applet's capability
// surface.
type Capabilities struct {
	aid          Aid
	versionMajor int
	versionMinor int

	extendedLengthFlag bool
	maxCmdApduLen      int
	maxRspApduLen      int
	maxCertLen         int
	features           byte

	pw1ValidMultiple bool
	pinRetries       [3]int

	formats      [3]KeyFormat
	fingerprints [3][fingerprintLen]byte
	timestamps   [3]uint32
	caFprs       []byte
}

// Aid returns the parsed application identifier.
func (c *Capabilities) Aid() Aid { return c.aid }

// Version returns the applet specification version from the AID.
func (c *Capabilities) Version() (major, minor int) {
	return c.versionMajor, c.versionMinor
}

// ExtendedLengthFlag reports the applet's extended-length capability
// bit. Whether extended length is actually used also depends on the
// transport.
func (c *Capabilities) ExtendedLengthFlag() bool { return c.extendedLengthFlag }

// MaxCmdApduLen returns the largest command APDU the applet accepts.
func (c *Capabilities) MaxCmdApduLen() int { return c.maxCmdApduLen }

// MaxRspApduLen returns the largest response APDU the applet produces.
func (c *Capabilities) MaxRspApduLen() int { return c.maxRspApduLen }

// MaxCardholderCertLen bounds the cardholder certificate DO (0x7F21).
func (c *Capabilities) MaxCardholderCertLen() int { return c.maxCertLen }

// Features returns the raw extended-capability flag byte.
func (c *Capabilities) Features() byte { return c.features }

// Pw1ValidForMultipleSignatures reports PW status byte 0: whether a
// PW1 verification in mode 0x81 outlasts one signature.
func (c *Capabilities) Pw1ValidForMultipleSignatures() bool { return c.pw1ValidMultiple }

// PinRetries returns the remaining retries for PW1, the resetting code,
// and PW3.
func (c *Capabilities) PinRetries() [3]int { return c.pinRetries }

// Format returns the slot's parsed algorithm attributes, nil when the
// card did not report them.
func (c *Capabilities) Format(k KeyType) KeyFormat { return c.formats[k] }

// Fingerprint returns the slot's 20-byte fingerprint.
func (c *Capabilities) Fingerprint(k KeyType) []byte {
	out := make([]byte, fingerprintLen)
	copy(out, c.fingerprints[k][:])
	return out
}

// GenerationTime returns the slot's key generation timestamp.
func (c *Capabilities) GenerationTime(k KeyType) uint32 { return c.timestamps[k] }

// HasKey reports whether the slot holds a key (nonzero fingerprint).
func (c *Capabilities) HasKey(k KeyType) bool {
	return c.fingerprints[k] != [fingerprintLen]byte{}
}

// HasEncryptKey is the emptiness probe used by the pairing flow.
func (c *Capabilities) HasEncryptKey() bool { return c.HasKey(KeyEncrypt) }

// appRelatedDOs maps the children of DO 6E.
type appRelatedDOs struct {
	Aid           []byte           `tlv:"4F"`
	Discretionary discretionaryDOs `tlv:"73"`

	// Flattened variants (applets that skip the 73 template).
	ExtendedCaps []byte `tlv:"C0"`
	SignAttrs    []byte `tlv:"C1"`
	EncryptAttrs []byte `tlv:"C2"`
	AuthAttrs    []byte `tlv:"C3"`
	PwStatus     []byte `tlv:"C4"`
	Fingerprints []byte `tlv:"C5"`
	CaFprs       []byte `tlv:"C6"`
	Timestamps   []byte `tlv:"CD"`
}

type discretionaryDOs struct {
	ExtendedCaps []byte `tlv:"C0"`
	SignAttrs    []byte `tlv:"C1"`
	EncryptAttrs []byte `tlv:"C2"`
	AuthAttrs    []byte `tlv:"C3"`
	PwStatus     []byte `tlv:"C4"`
	Fingerprints []byte `tlv:"C5"`
	CaFprs       []byte `tlv:"C6"`
	Timestamps   []byte `tlv:"CD"`
}

// ParseCapabilities builds a snapshot from the GET DATA 6E response.
func ParseCapabilities(blob []byte) (*Capabilities, error) {
	packets, err := bertlv.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityParse, err)
	}

	// Cards may answer with the 6E template itself or with its content.
	if len(packets) == 1 && packets[0].Tag == "6E" {
		packets = packets[0].TLVs
	}

	var dos appRelatedDOs
	if err := tlv.UnmarshalFromPackets(packets, &dos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCapabilityParse, err)
	}
	d := dos.Discretionary
	merge := func(nested, flat []byte) []byte {
		if len(nested) > 0 {
			return nested
		}
		return flat
	}

	caps := &Capabilities{}

	aid, err := ParseAid(dos.Aid)
	if err != nil {
		return nil, err
	}
	caps.aid = aid
	caps.versionMajor, caps.versionMinor = aid.Version()

	if err := caps.parseExtendedCaps(merge(d.ExtendedCaps, dos.ExtendedCaps)); err != nil {
		return nil, err
	}
	if err := caps.parsePwStatus(merge(d.PwStatus, dos.PwStatus)); err != nil {
		return nil, err
	}
	if err := caps.parseFingerprints(merge(d.Fingerprints, dos.Fingerprints)); err != nil {
		return nil, err
	}
	caps.parseTimestamps(merge(d.Timestamps, dos.Timestamps))
	caps.caFprs = merge(d.CaFprs, dos.CaFprs)

	attrBlobs := [3][]byte{
		KeySign:    merge(d.SignAttrs, dos.SignAttrs),
		KeyEncrypt: merge(d.EncryptAttrs, dos.EncryptAttrs),
		KeyAuth:    merge(d.AuthAttrs, dos.AuthAttrs),
	}
	for _, k := range AllKeyTypes {
		if len(attrBlobs[k]) == 0 {
			continue
		}
		format, err := ParseKeyFormat(attrBlobs[k])
		if err != nil {
			return nil, fmt.Errorf("slot %s: %w", k, err)
		}
		caps.formats[k] = format
	}

	return caps, nil
}

// parseExtendedCaps decodes DO C0. Byte 0 is the feature bitmap (bit
// 0x01 = extended length support); bytes 4-5 the maximum cardholder
// certificate length; bytes 6-7 and 8-9 the maximum command and
// response APDU lengths where the applet reports them.
func (c *Capabilities) parseExtendedCaps(blob []byte) error {
	// Conservative defaults: short APDUs only.
	c.maxCmdApduLen = 255
	c.maxRspApduLen = 256

	if len(blob) == 0 {
		return nil
	}

	c.features = blob[0]
	c.extendedLengthFlag = blob[0]&0x01 != 0

	if len(blob) >= 6 {
		c.maxCertLen = int(binary.BigEndian.Uint16(blob[4:6]))
	}
	if len(blob) >= 8 {
		if v := int(binary.BigEndian.Uint16(blob[6:8])); v > 0 {
			c.maxCmdApduLen = v
		}
	}
	if len(blob) >= 10 {
		if v := int(binary.BigEndian.Uint16(blob[8:10])); v > 0 {
			c.maxRspApduLen = v
		}
	}
	return nil
}

// parsePwStatus decodes DO C4: validity mode and the three retry
// counters.
func (c *Capabilities) parsePwStatus(blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	if len(blob) < 7 {
		return fmt.Errorf("%w: PW status %d bytes", ErrCapabilityParse, len(blob))
	}
	c.pw1ValidMultiple = blob[0] != 0
	for i := 0; i < 3; i++ {
		c.pinRetries[i] = int(blob[4+i])
	}
	return nil
}

// parseFingerprints decodes DO C5: 60 bytes, 20 per slot.
func (c *Capabilities) parseFingerprints(blob []byte) error {
	if len(blob) == 0 {
		return nil
	}
	if len(blob) != 3*fingerprintLen {
		return fmt.Errorf("%w: fingerprint DO is %d bytes", ErrCapabilityParse, len(blob))
	}
	for i, k := range AllKeyTypes {
		copy(c.fingerprints[k][:], blob[i*fingerprintLen:(i+1)*fingerprintLen])
	}
	return nil
}

// parseTimestamps decodes DO CD: 3 big-endian u32 generation times.
func (c *Capabilities) parseTimestamps(blob []byte) {
	if len(blob) < 12 {
		return
	}
	for i, k := range AllKeyTypes {
		c.timestamps[k] = binary.BigEndian.Uint32(blob[i*4 : i*4+4])
	}
}
