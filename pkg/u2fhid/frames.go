package u2fhid

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// FRAME LAYOUT (FIDO U2F HID Protocol v1.2 §2.4):
//
// Every report is exactly 64 bytes. A message starts with an
// initialisation frame and continues in sequence-numbered continuation
// frames:
//
//	Init: CID(4) | CMD|0x80 (1) | BCNT_HI (1) | BCNT_LO (1) | DATA[<=57]
//	Cont: CID(4) | SEQ (1, 0..0x7F) | DATA[<=59]
//
// Bit 8 of the command byte distinguishes an init frame (set) from a
// continuation frame (clear). BCNT is the total payload length across
// all frames; unused trailing bytes are zero-padded.

// ReportSize is the fixed HID report length.
const ReportSize = 64

const (
	initDataLen = ReportSize - 7
	contDataLen = ReportSize - 5
	maxSeq      = 0x7F

	// MaxPayload is the largest message the framing can carry:
	// one init frame plus 128 continuation frames.
	MaxPayload = initDataLen + (maxSeq+1)*contDataLen
)

// BroadcastCID addresses the channel allocator before INIT completes.
const BroadcastCID = 0xFFFFFFFF

// Commands used by the OpenPGP-over-U2FHID bridge.
const (
	CmdPing      = 0x81
	CmdKeepalive = 0x82 // aka WAIT
	CmdMsg       = 0x83
	CmdInit      = 0x86
	CmdError     = 0xBF
)

const frameTypeInit = 0x80

var (
	// ErrPayloadTooLarge marks a message that cannot be framed.
	ErrPayloadTooLarge = errors.New("u2fhid: payload exceeds framing capacity")
	// ErrFrameOrder marks a continuation frame arriving out of sequence.
	ErrFrameOrder = errors.New("u2fhid: continuation frame out of sequence")
)

// WrapMessage splits a payload into 64-byte frames: one init frame and
// as many continuation frames as the length requires.
func WrapMessage(cid uint32, cmd byte, payload []byte) ([][]byte, error) {
	if len(payload) > MaxPayload {
		return nil, fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	frames := make([][]byte, 0, 1+(len(payload)+contDataLen-1)/contDataLen)

	init := make([]byte, ReportSize)
	binary.BigEndian.PutUint32(init[0:4], cid)
	init[4] = cmd | frameTypeInit
	binary.BigEndian.PutUint16(init[5:7], uint16(len(payload)))
	n := copy(init[7:], payload)
	frames = append(frames, init)
	payload = payload[n:]

	for seq := byte(0); len(payload) > 0; seq++ {
		cont := make([]byte, ReportSize)
		binary.BigEndian.PutUint32(cont[0:4], cid)
		cont[4] = seq
		n := copy(cont[5:], payload)
		frames = append(frames, cont)
		payload = payload[n:]
	}

	return frames, nil
}

// assembler rebuilds a message from incoming frames.
type assembler struct {
	cid     uint32
	cmd     byte
	total   int
	buf     []byte
	nextSeq byte
	started bool
}

// feed consumes one frame. Frames for other channels are ignored.
// done reports when the full payload has arrived.
func (a *assembler) feed(frame []byte) (done bool, err error) {
	if len(frame) < 7 {
		return false, fmt.Errorf("u2fhid: short frame (%d bytes)", len(frame))
	}
	cid := binary.BigEndian.Uint32(frame[0:4])
	if a.started && cid != a.cid {
		return false, nil
	}

	if frame[4]&frameTypeInit != 0 {
		a.cid = cid
		a.cmd = frame[4]
		a.total = int(binary.BigEndian.Uint16(frame[5:7]))
		a.buf = a.buf[:0]
		a.nextSeq = 0
		a.started = true

		take := a.total
		if take > initDataLen {
			take = initDataLen
		}
		a.buf = append(a.buf, frame[7:7+take]...)
		return len(a.buf) >= a.total, nil
	}

	if !a.started {
		// Continuation without an init frame: stale traffic, drop it.
		return false, nil
	}
	if frame[4] != a.nextSeq {
		return false, fmt.Errorf("%w: got %d, expected %d", ErrFrameOrder, frame[4], a.nextSeq)
	}
	a.nextSeq++

	remaining := a.total - len(a.buf)
	if remaining > contDataLen {
		remaining = contDataLen
	}
	a.buf = append(a.buf, frame[5:5+remaining]...)
	return len(a.buf) >= a.total, nil
}

func (a *assembler) payload() []byte {
	return a.buf
}
