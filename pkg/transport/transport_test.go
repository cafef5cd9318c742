package transport

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/stretchr/testify/require"
)

// fakeTag scripts an ISO-DEP tag.
type fakeTag struct {
	mu       sync.Mutex
	closed   bool
	closes   int
	respond  func(data []byte) ([]byte, error)
	inFlight chan struct{} // when set, Transceive blocks until signalled
}

func (f *fakeTag) Transceive(data []byte) ([]byte, error) {
	if f.inFlight != nil {
		<-f.inFlight
	}
	if f.respond != nil {
		return f.respond(data)
	}
	return []byte{0x90, 0x00}, nil
}

func (f *fakeTag) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	f.closes++
	return nil
}

func (f *fakeTag) UID() []byte { return []byte{0x04, 0xA2, 0x24} }

type fakeClock struct {
	mu sync.Mutex
	ms int64
}

func (c *fakeClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *fakeClock) advance(d int64) {
	c.mu.Lock()
	c.ms += d
	c.mu.Unlock()
}

func selectCmd() *iso7816.CommandAPDU {
	cls, _ := iso7816.NewClass(0x00)
	return iso7816.NewCommandAPDU(cls, iso7816.InsSelect, 0x04, 0x00, []byte{0xD2, 0x76}, 0)
}

func TestNfcTransceiveUpdatesLastRx(t *testing.T) {
	clock := &fakeClock{ms: 1000}
	tr := NewNfcTransport(&fakeTag{}, clock)
	require.Equal(t, int64(1000), tr.LastRxMillis())

	clock.advance(500)
	rsp, err := tr.Transceive(selectCmd())
	require.NoError(t, err)
	require.True(t, rsp.IsSuccess())
	require.Equal(t, int64(1500), tr.LastRxMillis())
}

func TestReleaseIsIdempotentAndFailsFurtherUse(t *testing.T) {
	tag := &fakeTag{}
	tr := NewNfcTransport(tag, &fakeClock{})

	tr.Release()
	tr.Release()
	require.Equal(t, 1, tag.closes, "underlying close must run once")

	_, err := tr.Transceive(selectCmd())
	require.ErrorIs(t, err, ErrReleased)
	require.False(t, tr.Ping())
}

func TestConcurrentTransceiveFailsFast(t *testing.T) {
	gate := make(chan struct{})
	tag := &fakeTag{inFlight: gate}
	tr := NewNfcTransport(tag, &fakeClock{})

	started := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		close(started)
		_, err := tr.Transceive(selectCmd())
		done <- err
	}()

	<-started
	// Give the first exchange time to take the lock and block in I/O.
	time.Sleep(20 * time.Millisecond)

	_, err := tr.Transceive(selectCmd())
	require.ErrorIs(t, err, ErrBusy)

	close(gate)
	require.NoError(t, <-done)
}

func TestNfcTransceiveWrapsIoErrors(t *testing.T) {
	tag := &fakeTag{respond: func([]byte) ([]byte, error) {
		return nil, errors.New("tag left the field")
	}}
	tr := NewNfcTransport(tag, &fakeClock{})

	_, err := tr.Transceive(selectCmd())
	require.ErrorIs(t, err, ErrIO)
}

func TestKindStrings(t *testing.T) {
	require.Equal(t, "usb-ccid", KindUsbCcid.String())
	require.Equal(t, "usb-u2fhid", KindUsbU2fHid.String())
	require.Equal(t, "nfc-isodep", KindNfcIsoDep.String())
	require.Equal(t, "pcsc", KindPcsc.String())
}
