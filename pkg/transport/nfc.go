package transport

import (
	"fmt"
	"sync/atomic"

	"github.com/gregLibert/security-key/internal/hwlog"
	"github.com/gregLibert/security-key/pkg/iso7816"
	"go.uber.org/zap"
)

// IsoDepTag is the platform collaborator for an NFC tag in ISO-DEP
// (ISO 14443-4) mode.
type IsoDepTag interface {
	// Transceive sends raw APDU bytes and returns the tag's answer.
	Transceive(data []byte) ([]byte, error)
	// Close ends the tag session.
	Close() error
	// UID returns the tag's anticollision identifier.
	UID() []byte
}

// NfcTransport carries APDUs over an ISO-DEP tag session. It records
// the time of the last successful exchange so the liveness monitor can
// detect a removed tag without issuing traffic of its own.
type NfcTransport struct {
	guard
	tag      IsoDepTag
	clock    Clock
	lastRxMs atomic.Int64
	log      *zap.SugaredLogger
}

// NewNfcTransport builds a transport over a discovered ISO-DEP tag.
func NewNfcTransport(tag IsoDepTag, clock Clock) *NfcTransport {
	t := &NfcTransport{
		tag:   tag,
		clock: clock,
		log:   hwlog.Named("transport.nfc"),
	}
	t.lastRxMs.Store(clock.NowMillis())
	return t
}

// Transceive exchanges one APDU with the tag.
func (t *NfcTransport) Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	defer t.releaseLock()

	raw, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}
	reply, err := t.tag.Transceive(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrIO, err)
	}
	t.lastRxMs.Store(t.clock.NowMillis())
	return iso7816.ParseResponseAPDU(reply)
}

// ExtendedLengthSupported is true for ISO-DEP: block chaining at the
// 14443-4 layer carries arbitrary APDU sizes.
func (t *NfcTransport) ExtendedLengthSupported() bool {
	return true
}

// LastRxMillis returns the time of the last successful exchange.
func (t *NfcTransport) LastRxMillis() int64 {
	return t.lastRxMs.Load()
}

// Ping probes the tag with a harmless GET DATA for the AID data
// object. Any answer, including an error status, proves the tag is
// still in the field.
func (t *NfcTransport) Ping() bool {
	if err := t.acquire(); err != nil {
		return false
	}
	defer t.releaseLock()

	_, err := t.tag.Transceive([]byte{0x00, 0xCA, 0x00, 0x4F, 0x00})
	if err != nil {
		return false
	}
	t.lastRxMs.Store(t.clock.NowMillis())
	return true
}

// Release closes the tag session. Idempotent.
func (t *NfcTransport) Release() {
	if !t.markReleased() {
		return
	}
	t.log.Debug("nfc transport released")
	if err := t.tag.Close(); err != nil {
		t.log.Debugf("tag close failed: %v", err)
	}
}

// Kind returns KindNfcIsoDep.
func (t *NfcTransport) Kind() Kind {
	return KindNfcIsoDep
}
