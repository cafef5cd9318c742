// Package u2fhid implements the host side of the FIDO U2F HID
// transport: channel allocation via INIT on the broadcast channel,
// message framing across 64-byte reports, and keepalive/error handling.
//
// The OpenPGP bridge tunnels extended-length APDUs through CMD_MSG on
// the allocated channel; higher layers never see the framing.
package u2fhid

import (
	"bytes"
	"crypto/rand"
	"errors"
	"fmt"
	"time"

	"github.com/gregLibert/security-key/internal/hwlog"
	"go.uber.org/zap"
)

// Timeouts per the U2F HID specification: a transaction must complete
// within 3 s, extended to 30 s while the authenticator signals
// keepalive (e.g. waiting for user presence).
const (
	CommandTimeout      = 3 * time.Second
	UserPresenceTimeout = 30 * time.Second
)

// Device error codes carried in a CMD_ERROR response.
const (
	ErrCodeInvalidCmd     = 0x01
	ErrCodeInvalidPar     = 0x02
	ErrCodeInvalidLen     = 0x03
	ErrCodeInvalidSeq     = 0x04
	ErrCodeMessageTimeout = 0x05
	ErrCodeChannelBusy    = 0x06
	ErrCodeLockRequired   = 0x0A
	ErrCodeInvalidChannel = 0x0B
	ErrCodeOther          = 0x7F
)

// Protocol-level errors.
var (
	ErrBadInit     = errors.New("u2fhid: INIT response invalid")
	ErrChannelBusy = errors.New("u2fhid: channel busy")
	ErrTimeout     = errors.New("u2fhid: device response timeout")
	ErrClosed      = errors.New("u2fhid: device closed")
)

// DeviceError is an error status reported by the authenticator itself.
type DeviceError struct {
	Code byte
}

func (e *DeviceError) Error() string {
	return fmt.Sprintf("u2fhid: device error 0x%02X (%s)", e.Code, errCodeName(e.Code))
}

func errCodeName(code byte) string {
	switch code {
	case ErrCodeInvalidCmd:
		return "invalid command"
	case ErrCodeInvalidPar:
		return "invalid parameter"
	case ErrCodeInvalidLen:
		return "invalid length"
	case ErrCodeInvalidSeq:
		return "invalid sequence"
	case ErrCodeMessageTimeout:
		return "message timeout"
	case ErrCodeChannelBusy:
		return "channel busy"
	case ErrCodeLockRequired:
		return "lock required"
	case ErrCodeInvalidChannel:
		return "invalid channel"
	default:
		return "unspecified"
	}
}

// ReportDevice is a HID device exchanging fixed-size reports.
type ReportDevice interface {
	Write(p []byte) (int, error)
	Read(p []byte) (int, error)
}

// DeviceInfo is the version and capability block from an INIT response.
type DeviceInfo struct {
	ProtocolVersion byte
	VersionMajor    byte
	VersionMinor    byte
	VersionBuild    byte
	Capabilities    byte
}

// Protocol drives one U2F HID channel. One transaction may be in
// flight at a time; the owning transport serialises access.
type Protocol struct {
	device ReportDevice
	cid    uint32
	info   DeviceInfo

	commandTimeout  time.Duration
	presenceTimeout time.Duration

	readCh  chan []byte
	readErr chan error
	started bool
	log     *zap.SugaredLogger
}

// NewProtocol creates a protocol instance over device. Connect must be
// called before Transceive.
func NewProtocol(device ReportDevice) *Protocol {
	return &Protocol{
		device:          device,
		commandTimeout:  CommandTimeout,
		presenceTimeout: UserPresenceTimeout,
		log:             hwlog.Named("u2fhid"),
	}
}

// SetTimeouts overrides the command and user-presence deadlines. Zero
// values keep the current settings.
func (p *Protocol) SetTimeouts(command, presence time.Duration) {
	if command > 0 {
		p.commandTimeout = command
	}
	if presence > 0 {
		p.presenceTimeout = presence
	}
}

// Connect allocates a channel: CMD_INIT with a random 8-byte nonce on
// the broadcast CID. The response must echo the nonce and carries the
// allocated CID plus version/capability bytes.
func (p *Protocol) Connect() error {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("u2fhid: nonce generation failed: %w", err)
	}

	p.startReader()

	cmd, payload, err := p.exchange(BroadcastCID, CmdInit, nonce, p.commandTimeout)
	if err != nil {
		return err
	}
	if cmd != CmdInit || len(payload) < 17 {
		return fmt.Errorf("%w: cmd 0x%02X, %d bytes", ErrBadInit, cmd, len(payload))
	}
	if !bytes.Equal(payload[0:8], nonce) {
		return fmt.Errorf("%w: nonce mismatch", ErrBadInit)
	}

	p.cid = uint32(payload[8])<<24 | uint32(payload[9])<<16 | uint32(payload[10])<<8 | uint32(payload[11])
	p.info = DeviceInfo{
		ProtocolVersion: payload[12],
		VersionMajor:    payload[13],
		VersionMinor:    payload[14],
		VersionBuild:    payload[15],
		Capabilities:    payload[16],
	}

	p.log.Debugf("channel allocated: cid=%08X proto=%d", p.cid, p.info.ProtocolVersion)
	return nil
}

// Info returns the device block received during INIT.
func (p *Protocol) Info() DeviceInfo {
	return p.info
}

// ChannelID returns the allocated channel, 0 before Connect.
func (p *Protocol) ChannelID() uint32 {
	return p.cid
}

// TransceiveMsg wraps an encoded APDU in CMD_MSG and returns the raw
// response APDU.
func (p *Protocol) TransceiveMsg(apdu []byte) ([]byte, error) {
	_, payload, err := p.exchange(p.cid, CmdMsg, apdu, p.commandTimeout)
	return payload, err
}

// Ping round-trips arbitrary data through CMD_PING.
func (p *Protocol) Ping(data []byte) (bool, error) {
	_, payload, err := p.exchange(p.cid, CmdPing, data, p.commandTimeout)
	if err != nil {
		return false, err
	}
	return bytes.Equal(payload, data), nil
}

// exchange runs one framed transaction: write all frames, reassemble
// the reply, absorbing keepalives and translating device errors.
func (p *Protocol) exchange(cid uint32, cmd byte, payload []byte, timeout time.Duration) (byte, []byte, error) {
	frames, err := WrapMessage(cid, cmd, payload)
	if err != nil {
		return 0, nil, err
	}
	for _, frame := range frames {
		if _, err := p.device.Write(frame); err != nil {
			return 0, nil, fmt.Errorf("u2fhid: report write failed: %w", err)
		}
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	var asm assembler
	for {
		select {
		case frame, ok := <-p.readCh:
			if !ok {
				return 0, nil, ErrClosed
			}
			done, err := asm.feed(frame)
			if err != nil {
				return 0, nil, err
			}
			if !done {
				continue
			}

			switch asm.cmd {
			case CmdError:
				code := byte(ErrCodeOther)
				if len(asm.payload()) > 0 {
					code = asm.payload()[0]
				}
				if code == ErrCodeChannelBusy {
					return 0, nil, fmt.Errorf("%w: %v", ErrChannelBusy, &DeviceError{Code: code})
				}
				return 0, nil, &DeviceError{Code: code}
			case CmdKeepalive:
				// The authenticator is working (or waiting for the
				// user); allow the long deadline and keep listening.
				p.log.Debugf("keepalive, extending deadline")
				deadline.Reset(p.presenceTimeout)
				asm = assembler{}
				continue
			}

			out := append([]byte(nil), asm.payload()...)
			return asm.cmd, out, nil

		case err := <-p.readErr:
			return 0, nil, fmt.Errorf("u2fhid: report read failed: %w", err)

		case <-deadline.C:
			return 0, nil, ErrTimeout
		}
	}
}

// startReader spawns the goroutine that turns blocking report reads
// into a channel the exchange loop can select on with a deadline.
func (p *Protocol) startReader() {
	if p.started {
		return
	}
	p.started = true
	p.readCh = make(chan []byte, 8)
	p.readErr = make(chan error, 1)

	go func() {
		defer close(p.readCh)
		for {
			buf := make([]byte, ReportSize)
			n, err := p.device.Read(buf)
			if err != nil {
				p.readErr <- err
				return
			}
			p.readCh <- buf[:n]
		}
	}()
}
