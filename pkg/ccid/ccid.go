// Package ccid implements the host side of the USB CCID smartcard
// reader class (USB-IF CCID rev 1.1) for a single slot, together with
// the ISO 7816-3 T=1 block protocol that rides on it.
//
// MESSAGE FRAMING:
// Every command is a PC_to_RDR message on the bulk-out endpoint and
// every reply an RDR_to_PC message on bulk-in. Both share a 10-byte
// header:
//
//	offset 0: bMessageType
//	offset 1: dwLength (little-endian u32, length of the data field)
//	offset 5: bSlot
//	offset 6: bSeq
//	offset 7: three message-specific bytes
//
// The host increments bSeq per command; the reader echoes it back. A
// reply with the wrong sequence number is a hard protocol error.
//
// STATUS:
// RDR_to_PC replies carry bStatus at offset 7 and bError at offset 8.
// bStatus bits 7-6 (bmCommandStatus) distinguish success (0), failure
// (1) and time extension (2). On time extension the host simply reads
// again; on failure bError identifies the cause.
package ccid

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"

	"github.com/gregLibert/security-key/internal/hwlog"
	"go.uber.org/zap"
)

// PC_to_RDR message types.
const (
	msgIccPowerOn    = 0x62
	msgIccPowerOff   = 0x63
	msgGetParameters = 0x6C
	msgSetParameters = 0x61
	msgXfrBlock      = 0x6F
)

// RDR_to_PC message types.
const (
	msgDataBlock  = 0x80
	msgSlotStatus = 0x81
	msgParameters = 0x82
)

// wLevelParameter values for extended-APDU data block exchanges.
const (
	LevelSingle       = 0x0000
	LevelFirst        = 0x0001
	LevelLast         = 0x0002
	LevelMiddle       = 0x0003
	LevelContinuation = 0x0010
)

const headerLen = 10

// DefaultBlockDeadline bounds one bulk read.
const DefaultBlockDeadline = 2 * time.Second

// Errors raised by the transceiver.
var (
	ErrBadResponse = errors.New("ccid: malformed or unexpected response")
	ErrSeqMismatch = errors.New("ccid: response sequence number mismatch")
)

// HwError is a reader-reported command failure (bmCommandStatus=1); the
// code is the bError byte.
type HwError struct {
	Code byte
}

func (e *HwError) Error() string {
	return fmt.Sprintf("ccid: hardware error 0x%02X (%s)", e.Code, hwErrorName(e.Code))
}

func hwErrorName(code byte) string {
	switch code {
	case 0xFE:
		return "ICC mute"
	case 0xFC:
		return "XFR overrun"
	case 0xF8:
		return "bad ATR TS"
	case 0xF7:
		return "bad ATR TCK"
	case 0xF6:
		return "protocol not supported"
	case 0xF3:
		return "busy with auto sequence"
	case 0xEF:
		return "PIN cancelled"
	case 0x05:
		return "invalid slot"
	default:
		return "reader error"
	}
}

// BulkPipe is the pair of USB bulk endpoints a CCID reader exposes.
// Read returns a single complete bulk transfer; the timeout bounds the
// wait for the device.
type BulkPipe interface {
	WriteBulk(p []byte, timeout time.Duration) (int, error)
	ReadBulk(p []byte, timeout time.Duration) (int, error)
}

// DataBlock is an RDR_to_PC_DataBlock reply.
type DataBlock struct {
	Data           []byte
	ChainParameter uint16 // wLevelParameter echo for extended exchanges
}

// Transceiver drives a single CCID slot over a bulk pipe. Not safe for
// concurrent use; the owning transport serialises access.
type Transceiver struct {
	pipe     BulkPipe
	deadline time.Duration
	seq      byte
	log      *zap.SugaredLogger
}

// NewTransceiver creates a transceiver for slot 0 of the reader behind
// pipe. A zero deadline selects DefaultBlockDeadline.
func NewTransceiver(pipe BulkPipe, deadline time.Duration) *Transceiver {
	if deadline == 0 {
		deadline = DefaultBlockDeadline
	}
	return &Transceiver{
		pipe:     pipe,
		deadline: deadline,
		log:      hwlog.Named("ccid"),
	}
}

// IccPowerOn powers the card and returns its ATR.
func (t *Transceiver) IccPowerOn() ([]byte, error) {
	// bPowerSelect 0 = automatic voltage selection.
	reply, err := t.exchange(msgIccPowerOn, nil, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// IccPowerOff removes power from the card. The reader answers with a
// slot status message.
func (t *Transceiver) IccPowerOff() error {
	_, err := t.exchange(msgIccPowerOff, nil, 0, 0, 0)
	return err
}

// XfrBlock sends a block of protocol data and returns the reply block.
// level is the wLevelParameter for extended-APDU-level exchanges; pass
// LevelSingle for TPDU or short-APDU exchanges.
func (t *Transceiver) XfrBlock(data []byte, level uint16) (*DataBlock, error) {
	// bBWI 0: the reader's default block waiting timeout applies.
	return t.exchange(msgXfrBlock, data, 0, byte(level), byte(level>>8))
}

// GetParameters reads the reader's current protocol parameter block.
func (t *Transceiver) GetParameters() ([]byte, error) {
	reply, err := t.exchange(msgGetParameters, nil, 0, 0, 0)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// SetParameters pushes a T=1 protocol parameter block (abProtocolDataStructure).
func (t *Transceiver) SetParameters(protocolNum byte, params []byte) ([]byte, error) {
	reply, err := t.exchange(msgSetParameters, params, protocolNum, 0, 0)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// exchange performs one command/response round trip, checking sequence
// number and command status, looping on time extensions.
func (t *Transceiver) exchange(msgType byte, data []byte, p1, p2, p3 byte) (*DataBlock, error) {
	seq := t.seq
	t.seq++

	cmd := make([]byte, headerLen+len(data))
	cmd[0] = msgType
	binary.LittleEndian.PutUint32(cmd[1:5], uint32(len(data)))
	cmd[5] = 0 // slot
	cmd[6] = seq
	cmd[7] = p1
	cmd[8] = p2
	cmd[9] = p3
	copy(cmd[headerLen:], data)

	t.log.Debugf("=> %02X seq=%d len=%d", msgType, seq, len(data))
	if _, err := t.pipe.WriteBulk(cmd, t.deadline); err != nil {
		return nil, fmt.Errorf("ccid: bulk-out failed: %w", err)
	}

	for {
		buf := make([]byte, headerLen+65545)
		n, err := t.pipe.ReadBulk(buf, t.deadline)
		if err != nil {
			return nil, fmt.Errorf("ccid: bulk-in failed: %w", err)
		}
		if n < headerLen {
			return nil, fmt.Errorf("%w: %d byte reply", ErrBadResponse, n)
		}
		reply := buf[:n]

		if reply[6] != seq {
			return nil, fmt.Errorf("%w: sent %d, got %d", ErrSeqMismatch, seq, reply[6])
		}

		payloadLen := int(binary.LittleEndian.Uint32(reply[1:5]))
		if headerLen+payloadLen > n {
			return nil, fmt.Errorf("%w: dwLength %d exceeds transfer", ErrBadResponse, payloadLen)
		}

		status := reply[7]
		switch commandStatus := status >> 6; commandStatus {
		case 0: // success
		case 1:
			return nil, &HwError{Code: reply[8]}
		case 2:
			// Time extension requested; the reader sends the real
			// answer in a follow-up transfer with the same bSeq.
			t.log.Debugf("<= time extension, waiting")
			continue
		default:
			return nil, fmt.Errorf("%w: reserved command status", ErrBadResponse)
		}

		switch reply[0] {
		case msgDataBlock, msgParameters:
			chain := uint16(reply[9]) // bChainParameter low byte
			t.log.Debugf("<= %02X seq=%d len=%d", reply[0], seq, payloadLen)
			return &DataBlock{
				Data:           append([]byte(nil), reply[headerLen:headerLen+payloadLen]...),
				ChainParameter: chain,
			}, nil
		case msgSlotStatus:
			t.log.Debugf("<= slot status seq=%d", seq)
			return &DataBlock{}, nil
		default:
			return nil, fmt.Errorf("%w: message type 0x%02X", ErrBadResponse, reply[0])
		}
	}
}
