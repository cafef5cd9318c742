package openpgp

import (
	"bytes"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/gregLibert/security-key/pkg/secret"
	"github.com/gregLibert/security-key/pkg/transport"
)

// PairedKey is the record a host persists to recognise a specific card
// later: the instance AID plus the fingerprints and public halves of
// the imported keys. Sign and auth entries are absent after an
// encryption-only setup.
type PairedKey struct {
	Aid []byte

	EncryptFingerprint []byte
	EncryptPublicKey   crypto.PublicKey

	SignFingerprint []byte
	SignPublicKey   crypto.PublicKey

	AuthFingerprint []byte
	AuthPublicKey   crypto.PublicKey
}

// SecurityKey is the top-level handle for one OpenPGP security key.
type SecurityKey struct {
	Connection *AppletConnection
}

// NewSecurityKey opens an applet connection over a live transport.
func NewSecurityKey(t transport.Transport) (*SecurityKey, error) {
	conn := NewAppletConnection(t)
	if err := conn.Open(); err != nil {
		return nil, err
	}
	return &SecurityKey{Connection: conn}, nil
}

// IsEmpty reports whether the key has never been set up (no encryption
// key on card).
func (s *SecurityKey) IsEmpty() bool {
	return !s.Connection.Capabilities().HasEncryptKey()
}

// Aid returns the applet instance AID.
func (s *SecurityKey) Aid() []byte {
	return s.Connection.Capabilities().Aid().Bytes()
}

// Name derives a display name from the card's manufacturer ID.
func (s *SecurityKey) Name() string {
	return s.Connection.Capabilities().Aid().SecurityKeyName()
}

// SerialNumber returns the card serial from the AID.
func (s *SecurityKey) SerialNumber() string {
	return s.Connection.Capabilities().Aid().SerialNumber()
}

// Matches reports whether this card is the one a PairedKey record was
// created from, by comparing encryption key fingerprints.
func (s *SecurityKey) Matches(paired *PairedKey) bool {
	if paired == nil || len(paired.EncryptFingerprint) == 0 {
		return false
	}
	return bytes.Equal(s.Connection.Capabilities().Fingerprint(KeyEncrypt), paired.EncryptFingerprint)
}

// ReadCertificateData reads the cardholder certificate DO (0x7F21).
func (s *SecurityKey) ReadCertificateData() ([]byte, error) {
	return s.Connection.GetData(0x7F21)
}

// PutCertificateData replaces the cardholder certificate DO. The
// applet's advertised maximum length is enforced host-side.
func (s *SecurityKey) PutCertificateData(data []byte) error {
	maxLen := s.Connection.Capabilities().MaxCardholderCertLen()
	if maxLen > 0 && len(data) > maxLen {
		return fmt.Errorf("%w: certificate is %d bytes, card accepts %d", ErrWrongData, len(data), maxLen)
	}
	return s.Connection.PutData(0x7F21, data)
}

// SetupPairedKey provisions the card from scratch:
//
//  1. An empty card (no encryption key) gets one attempt at the default
//     admin PIN; a card that refuses it — or any card that already has
//     keys — is factory reset first. Resetting a non-empty card is the
//     documented caller contract: setup always starts from a wiped key.
//  2. Fresh RSA-2048 key pairs are generated host-side and imported
//     into the encryption slot, and (unless encryptionOnly) the sign
//     and auth slots, sharing one creation timestamp.
//  3. PW1 and PW3 are changed from the factory defaults.
//  4. Capabilities are refreshed and the PairedKey record composed.
//
// On failure a *PairingError identifies the failing step. After a
// partial setup the card state is undefined; wipe and retry.
func (s *SecurityKey) SetupPairedKey(newPin, newAdminPin *secret.ByteSecret, encryptionOnly bool) (*PairedKey, error) {
	conn := s.Connection
	defaultAdmin := secret.UnsafeFromString(DefaultAdminPin)
	defer defaultAdmin.Wipe()

	needsWipe := true
	if !conn.Capabilities().HasEncryptKey() {
		if err := conn.VerifyAdminPin(defaultAdmin); err == nil {
			needsWipe = false
		}
	}
	if needsWipe {
		if err := conn.ResetAndWipe(); err != nil {
			return nil, pairingFailed(StepWipe, err)
		}
		if err := conn.VerifyAdminPin(defaultAdmin); err != nil {
			return nil, pairingFailed(StepAdminAuth, err)
		}
	}

	creationTime := uint32(time.Now().Unix())
	paired := &PairedKey{Aid: s.Aid()}

	slots := []KeyType{KeyEncrypt}
	if !encryptionOnly {
		slots = append(slots, KeySign, KeyAuth)
	}

	for _, slot := range slots {
		key, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			return nil, pairingFailed(StepKeygen, err)
		}
		fingerprint, err := conn.ChangeKeyRsa(slot, key, creationTime)
		if err != nil {
			return nil, pairingFailed(StepImport, fmt.Errorf("slot %s: %w", slot, err))
		}

		switch slot {
		case KeyEncrypt:
			paired.EncryptFingerprint = fingerprint
			paired.EncryptPublicKey = &key.PublicKey
		case KeySign:
			paired.SignFingerprint = fingerprint
			paired.SignPublicKey = &key.PublicKey
		case KeyAuth:
			paired.AuthFingerprint = fingerprint
			paired.AuthPublicKey = &key.PublicKey
		}
	}

	defaultPin := secret.UnsafeFromString(DefaultPin)
	defer defaultPin.Wipe()
	if err := conn.ChangePin(defaultPin, newPin); err != nil {
		return nil, pairingFailed(StepPinChange, fmt.Errorf("PW1: %w", err))
	}
	if err := conn.ChangeAdminPin(defaultAdmin, newAdminPin); err != nil {
		return nil, pairingFailed(StepPinChange, fmt.Errorf("PW3: %w", err))
	}

	if err := conn.RefreshCapabilities(); err != nil {
		return nil, pairingFailed(StepRefresh, err)
	}

	return paired, nil
}
