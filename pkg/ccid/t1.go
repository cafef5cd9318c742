package ccid

import (
	"errors"
	"fmt"

	"github.com/gregLibert/security-key/internal/hwlog"
	"github.com/gregLibert/security-key/pkg/bits"
	"go.uber.org/zap"
)

// T=1 BLOCK PROTOCOL (ISO/IEC 7816-3 §11):
//
// Block = NAD | PCB | LEN | INF[LEN] | EDC. NAD is 0x00 between the
// host and slot 0. The PCB distinguishes three block types:
//
//   - I-block (bit 8 = 0): carries INF payload. Bit 7 is the sender's
//     send-sequence number N(S), bit 6 the more-data bit M.
//   - R-block (bits 8-7 = 10): positive or negative acknowledgement.
//     Bit 5 is N(R), the sequence number expected next; bits 2-1 encode
//     the error (0 ok, 1 EDC/parity, 2 other).
//   - S-block (bits 8-7 = 11): control. Bit 6 marks a response; bits
//     5-1 select RESYNCH (0), IFS (1), ABORT (2) or WTX (3).
//
// EDC is a one-byte LRC (XOR over NAD..INF) by default, or a two-byte
// CRC when the card's ATR requests it.
//
// Payloads larger than the negotiated IFS are chained: every I-block
// but the last has M=1, and the receiver acknowledges each chunk with
// an R-block carrying the next expected N(S). Send-sequence numbers
// alternate 0,1,0,1 per sender; a retransmitted block keeps its N(S).

// T=1 protocol errors.
var (
	ErrT1Framing             = errors.New("t1: malformed block")
	ErrT1BadEdc              = errors.New("t1: EDC check failed")
	ErrT1RetransmitExhausted = errors.New("t1: retransmit limit exceeded")
	ErrT1Protocol            = errors.New("t1: protocol violation")
)

const (
	t1MaxRetransmits = 3
	t1DefaultIFS     = 32
	t1MaxIFS         = 254

	sTypeResynch = 0
	sTypeIFS     = 1
	sTypeAbort   = 2
	sTypeWTX     = 3
)

// block is one parsed T=1 block.
type block struct {
	nad byte
	pcb byte
	inf []byte
}

func (b *block) isI() bool { return !bits.IsSet(b.pcb, 8) }
func (b *block) isR() bool { return bits.IsSet(b.pcb, 8) && !bits.IsSet(b.pcb, 7) }
func (b *block) isS() bool { return bits.IsSet(b.pcb, 8) && bits.IsSet(b.pcb, 7) }

// I-block accessors.
func (b *block) seq() byte   { return bits.GetRange(b.pcb, 7, 7) }
func (b *block) more() bool  { return bits.IsSet(b.pcb, 6) }

// R-block accessors.
func (b *block) rSeq() byte    { return bits.GetRange(b.pcb, 5, 5) }
func (b *block) rError() byte  { return bits.GetRange(b.pcb, 2, 1) }

// S-block accessors.
func (b *block) sType() byte      { return bits.GetRange(b.pcb, 5, 1) }
func (b *block) sIsResponse() bool { return bits.IsSet(b.pcb, 6) }

func iBlockPCB(seq byte, more bool) byte {
	var pcb byte
	pcb = bits.SetRange(pcb, 7, 7, seq)
	if more {
		pcb = bits.Set(pcb, 6)
	}
	return pcb
}

func rBlockPCB(nextSeq byte, errCode byte) byte {
	pcb := bits.Set(0, 8)
	pcb = bits.SetRange(pcb, 5, 5, nextSeq)
	return bits.SetRange(pcb, 2, 1, errCode)
}

func sBlockPCB(sType byte, response bool) byte {
	pcb := bits.Set(bits.Set(0, 8), 7)
	if response {
		pcb = bits.Set(pcb, 6)
	}
	return bits.SetRange(pcb, 5, 1, sType)
}

// lrc computes the XOR checksum over a prologue+INF slice.
func lrc(data []byte) byte {
	var x byte
	for _, b := range data {
		x ^= b
	}
	return x
}

// crc16 computes the ISO 13239 CRC used by T=1 when the ATR selects
// CRC error detection (poly 0x1021, init 0xFFFF).
func crc16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		crc ^= uint16(b) << 8
		for i := 0; i < 8; i++ {
			if crc&0x8000 != 0 {
				crc = crc<<1 ^ 0x1021
			} else {
				crc <<= 1
			}
		}
	}
	return crc
}

// encodeBlock serialises a block with the selected EDC.
func encodeBlock(b *block, useCRC bool) []byte {
	out := make([]byte, 0, 3+len(b.inf)+2)
	out = append(out, b.nad, b.pcb, byte(len(b.inf)))
	out = append(out, b.inf...)
	if useCRC {
		crc := crc16(out)
		out = append(out, byte(crc>>8), byte(crc))
	} else {
		out = append(out, lrc(out))
	}
	return out
}

// decodeBlock parses and EDC-checks a raw block.
func decodeBlock(raw []byte, useCRC bool) (*block, error) {
	edcLen := 1
	if useCRC {
		edcLen = 2
	}
	if len(raw) < 3+edcLen {
		return nil, fmt.Errorf("%w: %d bytes", ErrT1Framing, len(raw))
	}

	infLen := int(raw[2])
	if len(raw) != 3+infLen+edcLen {
		return nil, fmt.Errorf("%w: LEN %d vs %d bytes", ErrT1Framing, infLen, len(raw))
	}

	body := raw[:3+infLen]
	if useCRC {
		want := uint16(raw[len(raw)-2])<<8 | uint16(raw[len(raw)-1])
		if crc16(body) != want {
			return nil, ErrT1BadEdc
		}
	} else {
		if lrc(body) != raw[len(raw)-1] {
			return nil, ErrT1BadEdc
		}
	}

	return &block{nad: raw[0], pcb: raw[1], inf: body[3:]}, nil
}

// TpduProtocol runs the full T=1 block protocol over a character/TPDU
// level reader.
type TpduProtocol struct {
	transceiver *Transceiver
	useCRC      bool
	ifsc        int  // card's receive buffer, bounds our I-block INF
	sendSeq     byte // our next N(S)
	recvSeq     byte // card's next expected N(S)
	log         *zap.SugaredLogger
}

// NewTpduProtocol creates the host-side T=1 state machine.
func NewTpduProtocol() *TpduProtocol {
	return &TpduProtocol{
		ifsc: t1DefaultIFS,
		log:  hwlog.Named("t1"),
	}
}

// Connect powers the card and derives EDC mode and initial IFSC from
// the ATR.
func (p *TpduProtocol) Connect(t *Transceiver) ([]byte, error) {
	p.transceiver = t
	atr, err := t.IccPowerOn()
	if err != nil {
		return nil, err
	}

	ifsc, crc := parseAtrT1Params(atr)
	if ifsc > 0 {
		p.ifsc = int(ifsc)
	}
	p.useCRC = crc
	p.sendSeq = 0
	p.recvSeq = 0

	// Push the T=1 parameter block so the reader's firmware agrees on
	// EDC mode and IFSC (abProtocolDataStructure, CCID rev 1.1 §6.1.7).
	params := []byte{
		0x11, // bmFindexDindex: Fi=372, Di=1
		0x10, // bmTCCKST1: T=1, LRC
		0x00, // bGuardTimeT1
		0x45, // bmWaitingIntegersT1: BWI=4, CWI=5
		0x00, // bClockStop: not allowed
		byte(p.ifsc),
		0x00, // bNadValue
	}
	if p.useCRC {
		params[1] |= 0x01
	}
	if _, err := t.SetParameters(1, params); err != nil {
		return nil, fmt.Errorf("t1: setting protocol parameters: %w", err)
	}

	p.log.Debugf("connected: ifsc=%d crc=%v atr=%X", p.ifsc, p.useCRC, atr)
	return atr, nil
}

// NegotiateIFS asks the card to accept larger host blocks by sending an
// IFS S-block. Values are clamped to the protocol maximum of 254.
func (p *TpduProtocol) NegotiateIFS(ifs int) error {
	if ifs > t1MaxIFS {
		ifs = t1MaxIFS
	}
	req := &block{pcb: sBlockPCB(sTypeIFS, false), inf: []byte{byte(ifs)}}
	reply, err := p.exchangeWithRetry(req)
	if err != nil {
		return err
	}
	if !reply.isS() || reply.sType() != sTypeIFS || !reply.sIsResponse() {
		return fmt.Errorf("%w: expected IFS response, got PCB %02X", ErrT1Protocol, reply.pcb)
	}
	p.ifsc = ifs
	return nil
}

// Transceive sends one APDU, chaining it across I-blocks at the current
// IFS, and reassembles the chained response.
func (p *TpduProtocol) Transceive(apdu []byte) ([]byte, error) {
	chunks := splitChunks(apdu, p.ifsc)

	var reply *block
	for i, chunk := range chunks {
		more := i < len(chunks)-1
		iBlock := &block{pcb: iBlockPCB(p.sendSeq, more), inf: chunk}

		r, err := p.exchangeWithRetry(iBlock)
		if err != nil {
			return nil, err
		}
		p.sendSeq ^= 1

		if more {
			// Intermediate chunks must be acknowledged by an R-block
			// asking for our next sequence number.
			if !r.isR() {
				return nil, fmt.Errorf("%w: expected R-block ack during chain, got PCB %02X", ErrT1Protocol, r.pcb)
			}
			if r.rSeq() != p.sendSeq {
				return nil, fmt.Errorf("%w: R-block acks N=%d, expected %d", ErrT1Protocol, r.rSeq(), p.sendSeq)
			}
			continue
		}
		reply = r
	}

	return p.receive(reply)
}

// receive assembles the card's response starting from the first reply
// block to our final I-block.
func (p *TpduProtocol) receive(reply *block) ([]byte, error) {
	var response []byte
	for {
		if !reply.isI() {
			return nil, fmt.Errorf("%w: expected I-block, got PCB %02X", ErrT1Protocol, reply.pcb)
		}
		if reply.seq() != p.recvSeq {
			return nil, fmt.Errorf("%w: I-block N=%d, expected %d", ErrT1Protocol, reply.seq(), p.recvSeq)
		}
		p.recvSeq ^= 1
		response = append(response, reply.inf...)

		if !reply.more() {
			return response, nil
		}

		// Acknowledge the chunk and wait for the next one.
		ack := &block{pcb: rBlockPCB(p.recvSeq, 0)}
		next, err := p.exchangeWithRetry(ack)
		if err != nil {
			return nil, err
		}
		reply = next
	}
}

// exchangeWithRetry sends a block and returns the card's next
// non-control block, answering WTX and IFS requests inline and
// retransmitting on EDC failures.
func (p *TpduProtocol) exchangeWithRetry(b *block) (*block, error) {
	outgoing := b
	for attempt := 0; ; attempt++ {
		reply, err := p.exchangeOnce(outgoing)
		if err == nil {
			if reply.isS() && !reply.sIsResponse() {
				resp, handleErr := p.handleSRequest(reply)
				if handleErr != nil {
					return nil, handleErr
				}
				// The answer to our S-response is the block we were
				// waiting for; keep listening without counting a retry.
				outgoing = resp
				attempt = 0
				continue
			}
			return reply, nil
		}

		if !errors.Is(err, ErrT1BadEdc) && !errors.Is(err, ErrT1Framing) {
			return nil, err
		}
		if attempt >= t1MaxRetransmits {
			return nil, fmt.Errorf("%w: after %d retransmits: %v", ErrT1RetransmitExhausted, t1MaxRetransmits, err)
		}
		p.log.Debugf("retransmit %d after %v", attempt+1, err)
		outgoing = b
	}
}

func (p *TpduProtocol) exchangeOnce(b *block) (*block, error) {
	raw := encodeBlock(b, p.useCRC)
	reply, err := p.transceiver.XfrBlock(raw, LevelSingle)
	if err != nil {
		return nil, err
	}
	return decodeBlock(reply.Data, p.useCRC)
}

// handleSRequest answers a card-initiated S-block request and returns
// the S-response block to transmit.
func (p *TpduProtocol) handleSRequest(req *block) (*block, error) {
	switch req.sType() {
	case sTypeWTX:
		// Waiting time extension: echo the multiplier back.
		return &block{pcb: sBlockPCB(sTypeWTX, true), inf: req.inf}, nil
	case sTypeIFS:
		if len(req.inf) != 1 {
			return nil, fmt.Errorf("%w: IFS request without value", ErrT1Protocol)
		}
		p.ifsc = int(req.inf[0])
		return &block{pcb: sBlockPCB(sTypeIFS, true), inf: req.inf}, nil
	case sTypeAbort:
		return nil, fmt.Errorf("%w: card aborted the chain", ErrT1Protocol)
	default:
		return nil, fmt.Errorf("%w: unsolicited S-block type %d", ErrT1Protocol, req.sType())
	}
}

func splitChunks(data []byte, size int) [][]byte {
	if len(data) == 0 {
		return [][]byte{nil}
	}
	var chunks [][]byte
	for len(data) > size {
		chunks = append(chunks, data[:size])
		data = data[size:]
	}
	return append(chunks, data)
}

// parseAtrT1Params walks the ATR interface-byte groups looking for the
// T=1 specific bytes: the TA following a TD that announced protocol 1
// is the card's IFSC, and bit 1 of the matching TC selects CRC error
// detection.
func parseAtrT1Params(atr []byte) (ifsc byte, crc bool) {
	if len(atr) < 2 {
		return 0, false
	}

	presence := bits.GetRange(atr[1], 8, 5) // Y1, from T0
	prevProtocol := byte(0)                 // protocol announced by the previous TD
	pos := 2

	for group := 1; ; group++ {
		var ta, tc byte
		var haveTA, haveTC bool

		if presence&0x1 != 0 { // TA
			if pos < len(atr) {
				ta, haveTA = atr[pos], true
			}
			pos++
		}
		if presence&0x2 != 0 { // TB
			pos++
		}
		if presence&0x4 != 0 { // TC
			if pos < len(atr) {
				tc, haveTC = atr[pos], true
			}
			pos++
		}

		if group >= 3 && prevProtocol == 1 {
			if haveTA {
				ifsc = ta
			}
			if haveTC {
				crc = bits.IsSet(tc, 1)
			}
			return ifsc, crc
		}

		if presence&0x8 == 0 || pos >= len(atr) { // no TD, chain ends
			return ifsc, crc
		}
		td := atr[pos]
		pos++
		prevProtocol = bits.GetRange(td, 4, 1)
		presence = bits.GetRange(td, 8, 5)
	}
}
