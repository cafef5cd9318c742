package openpgp

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gregLibert/security-key/internal/hwlog"
	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/gregLibert/security-key/pkg/secret"
	"github.com/gregLibert/security-key/pkg/transport"
	"go.uber.org/zap"
)

// PIN reference bytes for VERIFY / CHANGE REFERENCE DATA.
const (
	pw1ModeSignOnce byte = 0x81
	pw1ModeOther    byte = 0x82
	pw3Mode         byte = 0x83
)

var openPgpAidBytes = []byte{0xD2, 0x76, 0x00, 0x01, 0x24, 0x01}

// AppletConnection is a live session with the OpenPGP applet over one
// transport. It owns APDU chaining in both directions, the capability
// snapshot, and the PIN verification state.
//
// The connection MAY cache the last successfully verified PINs and
// transparently re-verify when the card answers 6982 (for example
// after an applet-side state reset). The cache is wiped on Release and
// on PIN change.
type AppletConnection struct {
	transport transport.Transport
	caps      atomic.Pointer[Capabilities]
	log       *zap.SugaredLogger

	mu             sync.Mutex
	cachedPw1      *secret.ByteSecret
	cachedPw1Mode  byte
	cachedPw3      *secret.ByteSecret
}

// NewAppletConnection wraps a live transport. Call Open before any
// operation.
func NewAppletConnection(t transport.Transport) *AppletConnection {
	return &AppletConnection{
		transport: t,
		log:       hwlog.Named("openpgp"),
	}
}

// Open selects the applet and probes its capabilities.
//
// A card whose application is in termination state is activated and
// selected again, matching the applet specification's recovery path.
func (c *AppletConnection) Open() error {
	err := c.selectApplet()
	if err != nil {
		sw, ok := iso7816.StatusOf(err)
		if !ok || sw != iso7816.SwTerminationState {
			return err
		}
		c.log.Info("applet in termination state, activating")
		if err := c.activate(); err != nil {
			return err
		}
		if err := c.selectApplet(); err != nil {
			return err
		}
	}
	return c.RefreshCapabilities()
}

func (c *AppletConnection) selectApplet() error {
	cls, _ := iso7816.NewClass(0x00)
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsSelect, 0x04, 0x00, openPgpAidBytes, 0)
	_, err := c.transceiveRaw(cmd)
	return err
}

func (c *AppletConnection) activate() error {
	cls, _ := iso7816.NewClass(0x00)
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsActivateFile, 0x00, 0x00, nil, 0)
	_, err := c.transceiveRaw(cmd)
	return err
}

// Capabilities returns the current immutable snapshot.
func (c *AppletConnection) Capabilities() *Capabilities {
	return c.caps.Load()
}

// RefreshCapabilities re-reads DO 6E and swaps in a fresh snapshot.
// Must be called after any destructive administrative operation.
func (c *AppletConnection) RefreshCapabilities() error {
	blob, err := c.GetData(0x006E)
	if err != nil {
		return fmt.Errorf("reading application related data: %w", err)
	}
	caps, err := ParseCapabilities(blob)
	if err != nil {
		return err
	}
	c.caps.Store(caps)

	major, minor := caps.Version()
	c.log.Debugf("capabilities: v%d.%d extended=%v maxCmd=%d maxRsp=%d",
		major, minor, c.useExtendedLength(), caps.MaxCmdApduLen(), caps.MaxRspApduLen())
	return nil
}

// useExtendedLength requires both the transport and the applet flag.
func (c *AppletConnection) useExtendedLength() bool {
	caps := c.caps.Load()
	return c.transport.ExtendedLengthSupported() && caps != nil && caps.ExtendedLengthFlag()
}

// maxCommandData bounds one command APDU's data field.
func (c *AppletConnection) maxCommandData() int {
	if c.useExtendedLength() {
		if caps := c.caps.Load(); caps != nil && caps.MaxCmdApduLen() > 0 {
			return caps.MaxCmdApduLen()
		}
		return iso7816.MaxExtendedNc
	}
	return iso7816.MaxShortNc
}

// responseNe is the Ne requested when a response is expected.
func (c *AppletConnection) responseNe() int {
	if c.useExtendedLength() {
		return iso7816.MaxExtendedNe
	}
	return iso7816.MaxShortNe
}

// Transceive sends one logical command, handling command chaining,
// response chaining, and a single automatic PIN re-verification when
// the card loses its security state (6982).
func (c *AppletConnection) Transceive(cmd *iso7816.CommandAPDU) ([]byte, error) {
	data, err := c.transceiveRaw(cmd)
	if err == nil || !errors.Is(err, ErrSecurityNotSatisfied) {
		return data, err
	}

	if !c.reverifyFromCache() {
		return nil, err
	}
	c.log.Debug("re-verified cached PIN after 6982, retrying command")
	return c.transceiveRaw(cmd)
}

// transceiveRaw runs the chaining loops without PIN recovery.
func (c *AppletConnection) transceiveRaw(cmd *iso7816.CommandAPDU) ([]byte, error) {
	rsp, err := c.sendChained(cmd)
	if err != nil {
		return nil, err
	}

	// Response chaining: collect 61xx continuations, retry on 6Cxx.
	var acc []byte
	current := cmd
	for {
		sw := rsp.Status
		switch {
		case sw == iso7816.SwNoError:
			return append(acc, rsp.Data...), nil

		case sw.HasMoreData():
			acc = append(acc, rsp.Data...)
			cls, _ := iso7816.NewClass(0x00)
			ne := int(sw.SW2())
			if ne == 0 {
				ne = iso7816.MaxShortNe
			}
			current = iso7816.NewCommandAPDU(cls, iso7816.InsGetResponse, 0x00, 0x00, nil, ne)
			rsp, err = c.transport.Transceive(current)
			if err != nil {
				return nil, err
			}

		case sw.IsWrongLe():
			current = current.WithNe(int(sw.SW2()))
			rsp, err = c.transport.Transceive(current)
			if err != nil {
				return nil, err
			}

		default:
			return nil, mapStatus(cmd.Instruction, sw)
		}
	}
}

// sendChained splits oversized command data into chained APDUs. All
// but the last chunk carry the CLA chaining bit and must be answered
// with 9000; a different status aborts the chain.
func (c *AppletConnection) sendChained(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	maxData := c.maxCommandData()
	if len(cmd.Data) <= maxData {
		return c.transport.Transceive(cmd)
	}

	data := cmd.Data
	for len(data) > maxData {
		chunk := cmd.WithData(data[:maxData]).WithChaining(true)
		chunk.Ne = 0
		rsp, err := c.transport.Transceive(chunk)
		if err != nil {
			return nil, err
		}
		if rsp.Status != iso7816.SwNoError {
			return nil, mapStatus(cmd.Instruction, rsp.Status)
		}
		data = data[maxData:]
	}

	return c.transport.Transceive(cmd.WithData(data))
}

// GetData reads a data object via GET DATA.
func (c *AppletConnection) GetData(tag uint16) ([]byte, error) {
	cls, _ := iso7816.NewClass(0x00)
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsGetData, byte(tag>>8), byte(tag), nil, c.responseNe())
	return c.Transceive(cmd)
}

// PutData writes a data object via PUT DATA.
func (c *AppletConnection) PutData(tag uint16, data []byte) error {
	cls, _ := iso7816.NewClass(0x00)
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsPutData, byte(tag>>8), byte(tag), data, 0)
	_, err := c.Transceive(cmd)
	return err
}

// putDataOdd writes through the odd PUT DATA instruction (DB 3FFF),
// used for the extended header list during key import.
func (c *AppletConnection) putDataOdd(data []byte) error {
	cls, _ := iso7816.NewClass(0x00)
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsPutDataOdd, 0x3F, 0xFF, data, 0)
	_, err := c.Transceive(cmd)
	return err
}

// VerifyPin verifies PW1. signOnly selects mode 0x81 (one signature)
// instead of 0x82. On success the PIN is cached for automatic
// re-verification.
func (c *AppletConnection) VerifyPin(pin *secret.ByteSecret, signOnly bool) error {
	mode := pw1ModeOther
	if signOnly {
		mode = pw1ModeSignOnce
	}
	if err := c.verify(mode, pin); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipePw1Locked()
	if dup, err := pin.Copy(); err == nil {
		c.cachedPw1 = dup
		c.cachedPw1Mode = mode
	}
	return nil
}

// VerifyAdminPin verifies PW3 and caches it on success.
func (c *AppletConnection) VerifyAdminPin(pin *secret.ByteSecret) error {
	if err := c.verify(pw3Mode, pin); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipePw3Locked()
	if dup, err := pin.Copy(); err == nil {
		c.cachedPw3 = dup
	}
	return nil
}

func (c *AppletConnection) verify(mode byte, pin *secret.ByteSecret) error {
	return pin.Expose(func(raw []byte) error {
		cls, _ := iso7816.NewClass(0x00)
		cmd := iso7816.NewCommandAPDU(cls, iso7816.InsVerify, 0x00, mode, raw, 0)
		// Bypass Transceive: a failed VERIFY must never trigger the
		// automatic re-verify path.
		_, err := c.transceiveRaw(cmd)
		return err
	})
}

// reverifyFromCache replays the cached verifications. Returns true if
// at least one cached PIN verified again.
func (c *AppletConnection) reverifyFromCache() bool {
	c.mu.Lock()
	pw1, mode, pw3 := c.cachedPw1, c.cachedPw1Mode, c.cachedPw3
	c.mu.Unlock()

	recovered := false
	if pw1 != nil && !pw1.IsWiped() {
		if err := c.verify(mode, pw1); err == nil {
			recovered = true
		}
	}
	if pw3 != nil && !pw3.IsWiped() {
		if err := c.verify(pw3Mode, pw3); err == nil {
			recovered = true
		}
	}
	return recovered
}

// ClearPinCache wipes both cached PINs.
func (c *AppletConnection) ClearPinCache() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.wipePw1Locked()
	c.wipePw3Locked()
}

func (c *AppletConnection) wipePw1Locked() {
	if c.cachedPw1 != nil {
		c.cachedPw1.Wipe()
		c.cachedPw1 = nil
	}
}

func (c *AppletConnection) wipePw3Locked() {
	if c.cachedPw3 != nil {
		c.cachedPw3.Wipe()
		c.cachedPw3 = nil
	}
}

// Transport exposes the underlying link (for liveness checks).
func (c *AppletConnection) Transport() transport.Transport {
	return c.transport
}

// Release wipes the PIN cache and releases the transport.
func (c *AppletConnection) Release() {
	c.ClearPinCache()
	c.transport.Release()
}
