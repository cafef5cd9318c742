package transport

import (
	"fmt"
	"time"

	"github.com/gregLibert/security-key/internal/hwlog"
	"github.com/gregLibert/security-key/pkg/ccid"
	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/gregLibert/security-key/pkg/u2fhid"
	"go.uber.org/zap"
)

// UsbDevice is the platform collaborator that owns a claimed USB
// interface. Open hands out the endpoint pipes; Close releases the
// interface claim.
type UsbDevice interface {
	// Open claims the interface and returns its bulk endpoint pair.
	// Interrupt-endpoint HID devices are wrapped by the manager into a
	// u2fhid.ReportDevice instead.
	Open() (ccid.BulkPipe, error)
	Close() error
	// Identity returns a stable vendor:product:serial string.
	Identity() string
}

// CcidTransport speaks ISO 7816 over a CCID reader.
type CcidTransport struct {
	guard
	device   UsbDevice
	protocol ccid.Protocol
	extended bool
	deadline time.Duration
	log      *zap.SugaredLogger
}

// NewCcidTransport builds a transport over an opened CCID reader.
// protocol selects the reader's exchange level (short APDU, extended
// APDU, or TPDU/T=1); extendedLength mirrors the reader's descriptor
// capability for APDUs beyond short encoding. blockDeadline bounds one
// bulk transfer; zero selects the CCID default.
func NewCcidTransport(device UsbDevice, protocol ccid.Protocol, extendedLength bool, blockDeadline time.Duration) *CcidTransport {
	return &CcidTransport{
		device:   device,
		protocol: protocol,
		extended: extendedLength,
		deadline: blockDeadline,
		log:      hwlog.Named("transport.ccid"),
	}
}

// Connect powers the card on. Must be called once before Transceive.
func (t *CcidTransport) Connect() error {
	pipe, err := t.device.Open()
	if err != nil {
		return fmt.Errorf("%w: %v", ErrIO, err)
	}
	atr, err := t.protocol.Connect(ccid.NewTransceiver(pipe, t.deadline))
	if err != nil {
		return fmt.Errorf("ccid connect: %w", err)
	}
	t.log.Debugf("card powered, ATR %X", atr)
	return nil
}

// Transceive exchanges one APDU over the reader.
func (t *CcidTransport) Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	defer t.releaseLock()

	raw, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}
	reply, err := t.protocol.Transceive(raw)
	if err != nil {
		return nil, err
	}
	return iso7816.ParseResponseAPDU(reply)
}

// ExtendedLengthSupported reports the reader's descriptor capability.
func (t *CcidTransport) ExtendedLengthSupported() bool {
	return t.extended
}

// Ping reports whether the transport is still usable.
func (t *CcidTransport) Ping() bool {
	return !t.isReleased()
}

// Release powers the card off and releases the interface. Idempotent.
func (t *CcidTransport) Release() {
	if !t.markReleased() {
		return
	}
	t.log.Debug("ccid transport released")
	if err := t.device.Close(); err != nil {
		t.log.Warnf("interface release failed: %v", err)
	}
}

// Kind returns KindUsbCcid.
func (t *CcidTransport) Kind() Kind {
	return KindUsbCcid
}

// U2fHidTransport tunnels APDUs through the U2F HID CMD_MSG command.
type U2fHidTransport struct {
	guard
	protocol *u2fhid.Protocol
	closer   func() error
	log      *zap.SugaredLogger
}

// NewU2fHidTransport builds a transport over a raw HID report device.
// closer is invoked on Release to return the device to the platform.
func NewU2fHidTransport(device u2fhid.ReportDevice, closer func() error) *U2fHidTransport {
	return &U2fHidTransport{
		protocol: u2fhid.NewProtocol(device),
		closer:   closer,
		log:      hwlog.Named("transport.u2fhid"),
	}
}

// Connect allocates the HID channel.
func (t *U2fHidTransport) Connect() error {
	return t.protocol.Connect()
}

// SetTimeouts overrides the U2F HID command and user-presence
// deadlines. Zero values keep the current settings (the specification
// defaults unless overridden earlier).
func (t *U2fHidTransport) SetTimeouts(command, presence time.Duration) {
	t.protocol.SetTimeouts(command, presence)
}

// Transceive exchanges one APDU through CMD_MSG. Raw U2F messages are
// always encoded with extended length and a maximum Ne, per the U2F
// HID specification.
func (t *U2fHidTransport) Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	defer t.releaseLock()

	raw, err := cmd.WithNe(iso7816.MaxExtendedNe).Bytes()
	if err != nil {
		return nil, err
	}
	reply, err := t.protocol.TransceiveMsg(raw)
	if err != nil {
		return nil, err
	}
	return iso7816.ParseResponseAPDU(reply)
}

// ExtendedLengthSupported is always true for U2F HID framing.
func (t *U2fHidTransport) ExtendedLengthSupported() bool {
	return true
}

// Ping round-trips a CMD_PING through the device.
func (t *U2fHidTransport) Ping() bool {
	if err := t.acquire(); err != nil {
		return false
	}
	defer t.releaseLock()

	ok, err := t.protocol.Ping([]byte{0x70, 0x6E, 0x67, 0x00})
	return err == nil && ok
}

// Release closes the HID device. Idempotent.
func (t *U2fHidTransport) Release() {
	if !t.markReleased() {
		return
	}
	t.log.Debug("u2fhid transport released")
	if t.closer != nil {
		if err := t.closer(); err != nil {
			t.log.Warnf("device close failed: %v", err)
		}
	}
}

// Kind returns KindUsbU2fHid.
func (t *U2fHidTransport) Kind() Kind {
	return KindUsbU2fHid
}
