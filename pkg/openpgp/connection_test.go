package openpgp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/gregLibert/security-key/pkg/secret"
	"github.com/gregLibert/security-key/pkg/tlv"
	"github.com/gregLibert/security-key/pkg/transport"
)

func unsafeSecret(s string) *secret.ByteSecret {
	return secret.UnsafeFromString(s)
}

// simCard is a scriptable OpenPGP applet behind the Transport
// interface. It keeps just enough state (PIN verification, stored DOs,
// fingerprints) for the session and operation flows to run end to end.
type simCard struct {
	t        *testing.T
	extended bool

	// Applet state.
	fingerprints map[KeyType][]byte
	storedDOs    map[uint16][]byte
	pw1Verified  bool
	pw3Verified  bool
	pw1          string
	pw3          string
	pw1Retries   int
	terminated   bool

	// Response chaining script: when set, GET DATA 6E is served in
	// fragments of this size via 61xx continuations.
	fragmentSize int
	pendingData  []byte

	// Fault injection.
	dropSecurityStateOnce bool
	refuseTerminate       bool
	terminateNeedsBlock   bool

	// Introspection.
	apduLog []*iso7816.CommandAPDU
	chain   []byte // accumulating chained command data
}

func newSimCard(t *testing.T) *simCard {
	return &simCard{
		t:            t,
		extended:     true,
		fingerprints: map[KeyType][]byte{},
		storedDOs:    map[uint16][]byte{},
		pw1:          DefaultPin,
		pw3:          DefaultAdminPin,
		pw1Retries:   3,
	}
}

func (s *simCard) ExtendedLengthSupported() bool { return s.extended }
func (s *simCard) Ping() bool                    { return true }
func (s *simCard) Release()                      {}
func (s *simCard) Kind() transport.Kind          { return transport.KindUsbCcid }

func rsp(data []byte, sw iso7816.StatusWord) (*iso7816.ResponseAPDU, error) {
	return &iso7816.ResponseAPDU{Data: data, Status: sw}, nil
}

func (s *simCard) Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	s.apduLog = append(s.apduLog, cmd)

	// Command chaining: buffer chunks until the final APDU.
	if cmd.Class.IsChained {
		s.chain = append(s.chain, cmd.Data...)
		return rsp(nil, iso7816.SwNoError)
	}
	data := cmd.Data
	if len(s.chain) > 0 {
		data = append(s.chain, cmd.Data...)
		s.chain = nil
	}

	switch cmd.Instruction {
	case iso7816.InsSelect:
		if !bytes.Equal(data, openPgpAidBytes) {
			return rsp(nil, iso7816.SwFileNotFound)
		}
		return rsp(nil, iso7816.SwNoError)

	case iso7816.InsGetResponse:
		return s.continueResponse()

	case iso7816.InsGetData:
		return s.getData(uint16(cmd.P1)<<8 | uint16(cmd.P2))

	case iso7816.InsVerify:
		return s.verify(cmd.P2, data)

	case iso7816.InsChangeReferenceData:
		return s.changeReferenceData(cmd.P2, data)

	case iso7816.InsResetRetryCounter:
		if !s.pw3Verified {
			return rsp(nil, iso7816.SwSecurityStatusNotSatisfied)
		}
		s.pw1 = string(data)
		s.pw1Retries = 3
		return rsp(nil, iso7816.SwNoError)

	case iso7816.InsPutData:
		return s.putData(uint16(cmd.P1)<<8|uint16(cmd.P2), data)

	case iso7816.InsPutDataOdd:
		return s.importKey(data)

	case iso7816.InsTerminateDF:
		if s.refuseTerminate {
			return rsp(nil, iso7816.SwInsNotSupported)
		}
		if s.terminateNeedsBlock && s.pw1Retries > 0 {
			return rsp(nil, iso7816.SwConditionsNotSatisfied)
		}
		s.terminated = true
		s.fingerprints = map[KeyType][]byte{}
		s.pw1, s.pw3 = DefaultPin, DefaultAdminPin
		s.pw1Retries = 3
		s.pw1Verified, s.pw3Verified = false, false
		return rsp(nil, iso7816.SwNoError)

	case iso7816.InsActivateFile:
		s.terminated = false
		return rsp(nil, iso7816.SwNoError)

	case iso7816.InsGenerateAsymmetricKeyPair:
		return s.readPublicKey(data)

	default:
		return rsp(nil, iso7816.SwInsNotSupported)
	}
}

func (s *simCard) verify(mode byte, pin []byte) (*iso7816.ResponseAPDU, error) {
	var expected string
	switch mode {
	case 0x81, 0x82:
		expected = s.pw1
	case 0x83:
		expected = s.pw3
	default:
		return rsp(nil, iso7816.SwWrongP1P2)
	}

	if string(pin) != expected {
		if mode != 0x83 {
			s.pw1Retries--
			if s.pw1Retries <= 0 {
				return rsp(nil, iso7816.SwAuthMethodBlocked)
			}
			return rsp(nil, iso7816.NewStatusWord(0x63, 0xC0|byte(s.pw1Retries)))
		}
		return rsp(nil, iso7816.NewStatusWord(0x63, 0xC2))
	}

	if mode == 0x83 {
		s.pw3Verified = true
	} else {
		s.pw1Verified = true
	}
	return rsp(nil, iso7816.SwNoError)
}

func (s *simCard) changeReferenceData(mode byte, data []byte) (*iso7816.ResponseAPDU, error) {
	var current *string
	switch mode {
	case 0x81:
		current = &s.pw1
	case 0x83:
		current = &s.pw3
	default:
		return rsp(nil, iso7816.SwWrongP1P2)
	}

	if len(data) < len(*current) || string(data[:len(*current)]) != *current {
		return rsp(nil, iso7816.NewStatusWord(0x63, 0xC2))
	}
	*current = string(data[len(*current):])
	s.pw1Verified, s.pw3Verified = false, false
	return rsp(nil, iso7816.SwNoError)
}

func (s *simCard) putData(tag uint16, data []byte) (*iso7816.ResponseAPDU, error) {
	if !s.pw3Verified {
		return rsp(nil, iso7816.SwSecurityStatusNotSatisfied)
	}
	s.storedDOs[tag] = append([]byte(nil), data...)

	switch tag {
	case 0xC7:
		s.fingerprints[KeySign] = s.storedDOs[tag]
	case 0xC8:
		s.fingerprints[KeyEncrypt] = s.storedDOs[tag]
	case 0xC9:
		s.fingerprints[KeyAuth] = s.storedDOs[tag]
	}
	return rsp(nil, iso7816.SwNoError)
}

func (s *simCard) importKey(headerList []byte) (*iso7816.ResponseAPDU, error) {
	if s.dropSecurityStateOnce {
		s.dropSecurityStateOnce = false
		s.pw3Verified = false
	}
	if !s.pw3Verified {
		return rsp(nil, iso7816.SwSecurityStatusNotSatisfied)
	}
	node, err := tlv.ParseSingle(headerList, true)
	if err != nil || node.Tag != 0x4D {
		return rsp(nil, iso7816.SwIncorrectData)
	}
	s.storedDOs[0x4D] = append([]byte(nil), headerList...)
	return rsp(nil, iso7816.SwNoError)
}

func (s *simCard) readPublicKey(crt []byte) (*iso7816.ResponseAPDU, error) {
	if len(crt) != 2 {
		return rsp(nil, iso7816.SwIncorrectData)
	}
	// A fixed small RSA public key template.
	template := tlv.Encode(0x7F49, append(
		tlv.Encode(0x81, tlv.Hex("00 C0 0F FE E5")),
		tlv.Encode(0x82, tlv.Hex("01 00 01"))...))
	return rsp(template, iso7816.SwNoError)
}

func (s *simCard) getData(tag uint16) (*iso7816.ResponseAPDU, error) {
	if tag == 0x006E {
		blob := s.buildAppRelated()
		if s.fragmentSize > 0 {
			s.pendingData = blob
			return s.continueResponse()
		}
		return rsp(blob, iso7816.SwNoError)
	}
	if do, ok := s.storedDOs[tag]; ok {
		return rsp(do, iso7816.SwNoError)
	}
	return rsp(nil, iso7816.SwRefDataNotFound)
}

func (s *simCard) continueResponse() (*iso7816.ResponseAPDU, error) {
	if len(s.pendingData) == 0 {
		return rsp(nil, iso7816.SwRecordNotFound)
	}
	chunk := s.pendingData
	if len(chunk) > s.fragmentSize {
		chunk = chunk[:s.fragmentSize]
	}
	s.pendingData = s.pendingData[len(chunk):]

	if len(s.pendingData) == 0 {
		return rsp(chunk, iso7816.SwNoError)
	}
	next := len(s.pendingData)
	if next > 255 {
		next = 0 // 6100: more than 255 bytes follow
	}
	return rsp(chunk, iso7816.NewStatusWord(0x61, byte(next)))
}

func (s *simCard) fingerprintBlob() []byte {
	blob := make([]byte, 60)
	for i, k := range AllKeyTypes {
		copy(blob[i*20:], s.fingerprints[k])
	}
	return blob
}

func (s *simCard) buildAppRelated() []byte {
	aid := tlv.Hex("D2 76 00 01 24 01 03 04 00 06 01 02 03 04 00 00")

	// Extended caps: flags with extended-length bit, cert max 2048,
	// max cmd/rsp 2048/2048.
	extCaps := make([]byte, 10)
	extCaps[0] = 0x7D | 0x01
	binary.BigEndian.PutUint16(extCaps[4:6], 2048)
	binary.BigEndian.PutUint16(extCaps[6:8], 2048)
	binary.BigEndian.PutUint16(extCaps[8:10], 2048)

	attrs := tlv.Hex("01 08 00 00 11 03") // RSA-2048, e 17 bits

	pwStatus := []byte{0x00, 0x20, 0x20, 0x20, byte(s.pw1Retries), 0x00, 0x03}

	var disc []byte
	disc = append(disc, tlv.Encode(0xC0, extCaps)...)
	disc = append(disc, tlv.Encode(0xC1, attrs)...)
	disc = append(disc, tlv.Encode(0xC2, attrs)...)
	disc = append(disc, tlv.Encode(0xC3, attrs)...)
	disc = append(disc, tlv.Encode(0xC4, pwStatus)...)
	disc = append(disc, tlv.Encode(0xC5, s.fingerprintBlob())...)
	disc = append(disc, tlv.Encode(0xCD, make([]byte, 12))...)

	var inner []byte
	inner = append(inner, tlv.Encode(0x4F, aid)...)
	inner = append(inner, tlv.Encode(0x73, disc)...)
	return tlv.Encode(0x6E, inner)
}

func openTestConnection(t *testing.T, card *simCard) *AppletConnection {
	t.Helper()
	conn := NewAppletConnection(card)
	if err := conn.Open(); err != nil {
		t.Fatalf("Open: %v", err)
	}
	return conn
}

// Scenario: select and probe an empty card.
func TestOpenProbesCapabilities(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	caps := conn.Capabilities()
	if caps.HasEncryptKey() {
		t.Error("factory card must report no encryption key")
	}

	format, ok := caps.Format(KeyEncrypt).(RsaKeyFormat)
	if !ok {
		t.Fatalf("encrypt format: %T", caps.Format(KeyEncrypt))
	}
	if format.ModulusBits != 2048 || format.ExponentBits != 17 || format.ImportFormat != 3 {
		t.Errorf("parsed format %+v", format)
	}

	major, minor := caps.Version()
	if major != 3 || minor != 4 {
		t.Errorf("version %d.%d", major, minor)
	}
	if caps.Aid().Manufacturer() != "Yubico" {
		t.Errorf("manufacturer: %q", caps.Aid().Manufacturer())
	}
}

func TestOpenAppletNotPresent(t *testing.T) {
	card := newSimCard(t)
	// A card that knows no OpenPGP AID.
	conn := NewAppletConnection(&wrongAppletCard{card})
	if err := conn.Open(); !errors.Is(err, ErrAppletNotPresent) {
		t.Fatalf("got %v, expected ErrAppletNotPresent", err)
	}
}

type wrongAppletCard struct{ *simCard }

func (w *wrongAppletCard) Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	if cmd.Instruction == iso7816.InsSelect {
		return rsp(nil, iso7816.SwFileNotFound)
	}
	return w.simCard.Transceive(cmd)
}

// Scenario: wrong PIN surfaces retries from 63CX.
func TestVerifyPinIncorrect(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	wrong := unsafeSecret("654321")
	err := conn.VerifyPin(wrong, false)

	var pinErr *PinError
	if !errors.As(err, &pinErr) {
		t.Fatalf("got %v, expected PinError", err)
	}
	if pinErr.Retries != 2 {
		t.Errorf("retries: %d", pinErr.Retries)
	}
}

func TestVerifyPinBlockedAfterRetries(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	wrong := unsafeSecret("000000")
	for i := 0; i < 2; i++ {
		_ = conn.VerifyPin(wrong, false)
	}
	err := conn.VerifyPin(wrong, false)
	if !errors.Is(err, ErrPinBlocked) {
		t.Fatalf("got %v, expected ErrPinBlocked", err)
	}
}

// Incoming chaining: fragmented DO 6E arrives via 61xx continuations
// and reassembles transparently.
func TestResponseChaining(t *testing.T) {
	card := newSimCard(t)
	card.fragmentSize = 40
	conn := openTestConnection(t, card)

	caps := conn.Capabilities()
	if caps == nil || caps.MaxCmdApduLen() != 2048 {
		t.Fatal("capabilities did not survive fragmented transfer")
	}

	// The log must contain GET RESPONSE commands.
	sawGetResponse := false
	for _, cmd := range card.apduLog {
		if cmd.Instruction == iso7816.InsGetResponse {
			sawGetResponse = true
		}
	}
	if !sawGetResponse {
		t.Error("no GET RESPONSE issued for 61xx")
	}
}

// Outgoing chaining: oversized PUT DATA splits into ceil(L/M) chunks,
// all but the last flagged with CLA bit 0x10.
func TestCommandChaining(t *testing.T) {
	card := newSimCard(t)
	card.extended = false // force short APDUs: max 255 data bytes
	conn := openTestConnection(t, card)

	if err := conn.VerifyAdminPin(unsafeSecret(DefaultAdminPin)); err != nil {
		t.Fatal(err)
	}

	payload := make([]byte, 700)
	for i := range payload {
		payload[i] = byte(i)
	}
	mark := len(card.apduLog)
	if err := conn.PutData(0x7F21, payload); err != nil {
		t.Fatal(err)
	}

	var chunks []*iso7816.CommandAPDU
	for _, cmd := range card.apduLog[mark:] {
		if cmd.Instruction == iso7816.InsPutData {
			chunks = append(chunks, cmd)
		}
	}

	// ceil(700/255) = 3
	if len(chunks) != 3 {
		t.Fatalf("chunks: %d", len(chunks))
	}
	var rebuilt []byte
	for i, chunk := range chunks {
		wantChained := i < len(chunks)-1
		if chunk.Class.IsChained != wantChained {
			t.Errorf("chunk %d: chained=%v", i, chunk.Class.IsChained)
		}
		rebuilt = append(rebuilt, chunk.Data...)
	}
	if !bytes.Equal(rebuilt, payload) {
		t.Error("chunk concatenation does not rebuild payload")
	}
	if !bytes.Equal(card.storedDOs[0x7F21], payload) {
		t.Error("card did not store the full payload")
	}
}

// Extended length: with transport support and the applet flag set, a
// 700-byte command goes out as a single unchained APDU.
func TestExtendedLengthAvoidsChaining(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	if err := conn.VerifyAdminPin(unsafeSecret(DefaultAdminPin)); err != nil {
		t.Fatal(err)
	}

	mark := len(card.apduLog)
	if err := conn.PutData(0x7F21, make([]byte, 700)); err != nil {
		t.Fatal(err)
	}

	var putCount int
	for _, cmd := range card.apduLog[mark:] {
		if cmd.Instruction == iso7816.InsPutData {
			putCount++
			if cmd.Class.IsChained {
				t.Error("extended-length path must not chain")
			}
		}
	}
	if putCount != 1 {
		t.Errorf("extended-length PUT DATA count: %d", putCount)
	}
}

// A cached PIN is replayed once when the card answers 6982.
func TestAutoReverifyOnSecurityLoss(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	if err := conn.VerifyAdminPin(unsafeSecret(DefaultAdminPin)); err != nil {
		t.Fatal(err)
	}

	card.pw3Verified = false // applet forgot the verification
	if err := conn.PutData(0x7F21, []byte{0x01}); err != nil {
		t.Fatalf("should have re-verified from cache: %v", err)
	}
}

func TestNoReverifyWithoutCache(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	err := conn.PutData(0x7F21, []byte{0x01})
	if !errors.Is(err, ErrSecurityNotSatisfied) {
		t.Fatalf("got %v, expected ErrSecurityNotSatisfied", err)
	}
}

func TestReleaseWipesPinCache(t *testing.T) {
	card := newSimCard(t)
	conn := openTestConnection(t, card)

	if err := conn.VerifyAdminPin(unsafeSecret(DefaultAdminPin)); err != nil {
		t.Fatal(err)
	}
	conn.Release()

	conn2 := NewAppletConnection(card)
	if err := conn2.Open(); err != nil {
		t.Fatal(err)
	}
	card.pw3Verified = false
	err := conn2.PutData(0x7F21, []byte{0x01})
	if !errors.Is(err, ErrSecurityNotSatisfied) {
		t.Fatalf("fresh connection must not inherit a cache: %v", err)
	}
}
