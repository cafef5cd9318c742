package transport

import (
	"fmt"

	"github.com/ebfe/scard"
	"github.com/gregLibert/security-key/internal/hwlog"
	"github.com/gregLibert/security-key/pkg/iso7816"
	"go.uber.org/zap"
)

// PC/SC PATH:
// On hosts with a running PC/SC daemon the operating system already
// owns the CCID reader, so the raw USB path is unavailable. This
// transport rides the platform smartcard stack instead; the reader's
// driver performs the T=1 work and we exchange complete APDUs.

// PcscTransport drives a card through the platform PC/SC stack.
type PcscTransport struct {
	guard
	ctx  *scard.Context
	card *scard.Card
	name string
	log  *zap.SugaredLogger
}

// ConnectFirstPcscReader establishes a PC/SC context and connects to
// the first reader that holds a card.
func ConnectFirstPcscReader() (*PcscTransport, error) {
	ctx, err := scard.EstablishContext()
	if err != nil {
		return nil, fmt.Errorf("%w: establishing PC/SC context: %v", ErrIO, err)
	}

	readers, err := ctx.ListReaders()
	if err != nil || len(readers) == 0 {
		releaseContext(ctx)
		return nil, fmt.Errorf("%w: no smartcard reader found", ErrIO)
	}

	// Offer both protocols; the reader picks what the card supports.
	card, err := ctx.Connect(readers[0], scard.ShareShared, scard.ProtocolT0|scard.ProtocolT1)
	if err != nil {
		releaseContext(ctx)
		return nil, fmt.Errorf("%w: connecting to %s: %v", ErrIO, readers[0], err)
	}

	return &PcscTransport{
		ctx:  ctx,
		card: card,
		name: readers[0],
		log:  hwlog.Named("transport.pcsc"),
	}, nil
}

func releaseContext(ctx *scard.Context) {
	if err := ctx.Release(); err != nil {
		hwlog.Named("transport.pcsc").Warnf("context release failed: %v", err)
	}
}

// ReaderName returns the PC/SC reader this transport is bound to.
func (t *PcscTransport) ReaderName() string {
	return t.name
}

// Transceive exchanges one APDU through the PC/SC stack.
func (t *PcscTransport) Transceive(cmd *iso7816.CommandAPDU) (*iso7816.ResponseAPDU, error) {
	if err := t.acquire(); err != nil {
		return nil, err
	}
	defer t.releaseLock()

	raw, err := cmd.Bytes()
	if err != nil {
		return nil, err
	}
	reply, err := t.card.Transmit(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: transmit: %v", ErrIO, err)
	}
	return iso7816.ParseResponseAPDU(reply)
}

// ExtendedLengthSupported is conservative for PC/SC: many stacks
// truncate extended APDUs, so the applet layer falls back to command
// chaining and GET RESPONSE.
func (t *PcscTransport) ExtendedLengthSupported() bool {
	return false
}

// Ping queries the card status.
func (t *PcscTransport) Ping() bool {
	if err := t.acquire(); err != nil {
		return false
	}
	defer t.releaseLock()

	_, err := t.card.Status()
	return err == nil
}

// Release disconnects the card and tears down the context. Idempotent.
func (t *PcscTransport) Release() {
	if !t.markReleased() {
		return
	}
	t.log.Debug("pcsc transport released")
	if err := t.card.Disconnect(scard.LeaveCard); err != nil {
		t.log.Warnf("card disconnect failed: %v", err)
	}
	releaseContext(t.ctx)
}

// Kind returns KindPcsc.
func (t *PcscTransport) Kind() Kind {
	return KindPcsc
}
