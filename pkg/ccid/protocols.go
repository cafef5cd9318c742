package ccid

import "fmt"

// EXCHANGE LEVELS:
// A CCID reader announces in its class descriptor how much of the
// ISO 7816-3 protocol it runs in firmware:
//
//   - Short APDU level: the host hands one complete APDU per XfrBlock
//     and the reader does all T=1 work.
//   - Extended APDU level: as above, but APDUs larger than the reader's
//     buffer are fed in multiple XfrBlock transfers tagged with
//     wLevelParameter (first/middle/last), and oversized responses are
//     pulled with continuation requests (0x10).
//   - TPDU/character level: the host builds raw T=1 blocks itself
//     (see t1.go).
//
// Each variant implements Protocol so the transport layer can treat
// them uniformly.

// Protocol is one ISO 7816-3 exchange discipline over a CCID transceiver.
type Protocol interface {
	// Connect powers the card and prepares the protocol. Returns the ATR.
	Connect(t *Transceiver) ([]byte, error)
	// Transceive sends one APDU and returns the raw response APDU.
	Transceive(apdu []byte) ([]byte, error)
}

// ShortApduProtocol hands complete APDUs to a short-APDU-level reader.
type ShortApduProtocol struct {
	transceiver *Transceiver
}

// NewShortApduProtocol creates the exchange discipline for readers at
// short APDU level.
func NewShortApduProtocol() *ShortApduProtocol {
	return &ShortApduProtocol{}
}

// Connect powers the card on.
func (p *ShortApduProtocol) Connect(t *Transceiver) ([]byte, error) {
	p.transceiver = t
	return t.IccPowerOn()
}

// Transceive exchanges one APDU in a single data block.
func (p *ShortApduProtocol) Transceive(apdu []byte) ([]byte, error) {
	reply, err := p.transceiver.XfrBlock(apdu, LevelSingle)
	if err != nil {
		return nil, err
	}
	return reply.Data, nil
}

// ExtendedApduProtocol feeds oversized APDUs to an extended-APDU-level
// reader in multiple transfers.
type ExtendedApduProtocol struct {
	transceiver *Transceiver
	maxTransfer int
}

// NewExtendedApduProtocol creates the exchange discipline for readers
// at extended APDU level. maxTransfer is the reader's dwMaxCCIDMessageLength
// minus the 10-byte header; it bounds one XfrBlock's data field.
func NewExtendedApduProtocol(maxTransfer int) *ExtendedApduProtocol {
	return &ExtendedApduProtocol{maxTransfer: maxTransfer}
}

// Connect powers the card on.
func (p *ExtendedApduProtocol) Connect(t *Transceiver) ([]byte, error) {
	p.transceiver = t
	return t.IccPowerOn()
}

// Transceive sends the APDU, splitting it across transfers when it
// exceeds the reader's buffer, then reassembles the response from
// continuation blocks.
func (p *ExtendedApduProtocol) Transceive(apdu []byte) ([]byte, error) {
	var reply *DataBlock
	var err error

	if len(apdu) <= p.maxTransfer {
		reply, err = p.transceiver.XfrBlock(apdu, LevelSingle)
	} else {
		reply, err = p.sendChunked(apdu)
	}
	if err != nil {
		return nil, err
	}

	// Pull response continuations until the reader marks the last block.
	response := append([]byte(nil), reply.Data...)
	for reply.ChainParameter == LevelFirst || reply.ChainParameter == LevelMiddle {
		reply, err = p.transceiver.XfrBlock(nil, LevelContinuation)
		if err != nil {
			return nil, err
		}
		response = append(response, reply.Data...)
	}
	return response, nil
}

func (p *ExtendedApduProtocol) sendChunked(apdu []byte) (*DataBlock, error) {
	offset := 0
	for {
		remaining := len(apdu) - offset
		chunk := remaining
		if chunk > p.maxTransfer {
			chunk = p.maxTransfer
		}

		var level uint16
		switch {
		case offset == 0:
			level = LevelFirst
		case remaining <= p.maxTransfer:
			level = LevelLast
		default:
			level = LevelMiddle
		}

		reply, err := p.transceiver.XfrBlock(apdu[offset:offset+chunk], level)
		if err != nil {
			return nil, err
		}
		offset += chunk

		if level == LevelLast {
			return reply, nil
		}
		if offset >= len(apdu) {
			return nil, fmt.Errorf("%w: ran out of data before last chunk", ErrBadResponse)
		}
	}
}
