// Package transport presents every physical link to a security key —
// USB CCID, USB U2F HID, NFC ISO-DEP, PC/SC — behind one uniform
// APDU-exchange interface.
//
// CONCURRENCY:
// A transport carries at most one APDU at a time. Exchanges serialise
// on a per-transport mutex; a second concurrent call fails fast with
// ErrBusy rather than queueing. Release is idempotent and causes every
// subsequent operation to fail with ErrReleased.
package transport

import (
	"errors"
	"sync"

	"github.com/gregLibert/security-key/pkg/iso7816"
)

// Kind identifies the link type behind a transport.
type Kind int

const (
	KindUsbCcid Kind = iota
	KindUsbU2fHid
	KindNfcIsoDep
	KindPcsc
)

func (k Kind) String() string {
	switch k {
	case KindUsbCcid:
		return "usb-ccid"
	case KindUsbU2fHid:
		return "usb-u2fhid"
	case KindNfcIsoDep:
		return "nfc-isodep"
	case KindPcsc:
		return "pcsc"
	default:
		return "unknown"
	}
}

// Transport errors.
var (
	// ErrReleased marks any operation on a released transport.
	ErrReleased = errors.New("transport: released")
	// ErrBusy marks a second concurrent exchange on one transport.
	ErrBusy = errors.New("transport: exchange already in flight")
	// ErrTimeout marks a link-level deadline expiry.
	ErrTimeout = errors.New("transport: timeout")
	// ErrIO wraps link-level read/write failures.
	ErrIO = errors.New("transport: i/o failure")
)

// Transport is one live link to a security key.
type Transport interface {
	// Transceive sends a command APDU and returns the response APDU.
	Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error)
	// ExtendedLengthSupported reports whether the link can carry
	// extended-length APDUs.
	ExtendedLengthSupported() bool
	// Ping cheaply verifies the key is still reachable.
	Ping() bool
	// Release tears the link down. Idempotent.
	Release()
	// Kind identifies the link type.
	Kind() Kind
}

// guard implements the shared release/busy discipline.
type guard struct {
	mu       sync.Mutex
	released bool
}

// acquire takes the exchange lock, failing fast when an exchange is in
// flight or the transport is gone.
func (g *guard) acquire() error {
	if !g.mu.TryLock() {
		return ErrBusy
	}
	if g.released {
		g.mu.Unlock()
		return ErrReleased
	}
	return nil
}

func (g *guard) releaseLock() {
	g.mu.Unlock()
}

// markReleased flips the released flag exactly once; it returns false
// when the transport was already released.
func (g *guard) markReleased() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.released {
		return false
	}
	g.released = true
	return true
}

func (g *guard) isReleased() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.released
}
