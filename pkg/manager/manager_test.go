package manager

import (
	"sync"
	"testing"
	"time"

	"github.com/gregLibert/security-key/pkg/ccid"
	"github.com/gregLibert/security-key/pkg/config"
	"github.com/gregLibert/security-key/pkg/transport"
	"github.com/stretchr/testify/require"
)

type fakeTag struct {
	uid     []byte
	mu      sync.Mutex
	alive   bool
	pinged  int
	closed  bool
}

func newFakeTag(uid ...byte) *fakeTag {
	return &fakeTag{uid: uid, alive: true}
}

func (f *fakeTag) Transceive(data []byte) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pinged++
	if !f.alive {
		return nil, transport.ErrIO
	}
	return []byte{0x90, 0x00}, nil
}

func (f *fakeTag) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closed = true
	return nil
}

func (f *fakeTag) UID() []byte { return f.uid }

func (f *fakeTag) kill() {
	f.mu.Lock()
	f.alive = false
	f.mu.Unlock()
}

// recordingListener collects lifecycle events.
type recordingListener struct {
	mu         sync.Mutex
	discovered []transport.Transport
	lost       []transport.Transport
}

func (l *recordingListener) TransportDiscovered(t transport.Transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.discovered = append(l.discovered, t)
}

func (l *recordingListener) TransportLost(t transport.Transport) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lost = append(l.lost, t)
}

func (l *recordingListener) counts() (int, int) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.discovered), len(l.lost)
}

type testClock struct {
	mu sync.Mutex
	ms int64
}

func (c *testClock) NowMillis() int64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ms
}

func (c *testClock) advance(ms int64) {
	c.mu.Lock()
	c.ms += ms
	c.mu.Unlock()
}

func fastConfig() config.Config {
	cfg := config.Default()
	cfg.NfcMonitorInterval = 5 * time.Millisecond
	return cfg
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		if cond() {
			return
		}
		select {
		case <-deadline:
			t.Fatal("condition not reached in time")
		case <-time.After(2 * time.Millisecond):
		}
	}
}

func TestAttachNfcTagDedupes(t *testing.T) {
	listener := &recordingListener{}
	m := New(fastConfig(), listener, nil, &testClock{})

	tag := newFakeTag(0x04, 0xA2)
	require.True(t, m.AttachNfcTag(tag))
	require.False(t, m.AttachNfcTag(tag), "same UID must be ignored")
	require.Equal(t, 1, m.TokenCount())

	discovered, _ := listener.counts()
	require.Equal(t, 1, discovered)

	m.ReleaseAll()
}

func TestPassiveMonitorDeclaresLoss(t *testing.T) {
	listener := &recordingListener{}
	clock := &testClock{}
	m := New(fastConfig(), listener, nil, clock)

	tag := newFakeTag(0x01)
	require.True(t, m.AttachNfcTag(tag))

	// Quiet longer than the 1500 ms passive window.
	clock.advance(2000)

	waitFor(t, func() bool {
		_, lost := listener.counts()
		return lost == 1
	})
	require.Equal(t, 0, m.TokenCount())

	tag.mu.Lock()
	closed := tag.closed
	tag.mu.Unlock()
	require.True(t, closed, "loss must release the transport")
}

func TestActiveMonitorPingsBeforeLoss(t *testing.T) {
	listener := &recordingListener{}
	clock := &testClock{}
	cfg := fastConfig()
	cfg.NfcActiveMonitoring = true
	m := New(cfg, listener, nil, clock)

	tag := newFakeTag(0x02)
	require.True(t, m.AttachNfcTag(tag))

	// Quiet past the ping delay: the tag answers, so it stays managed.
	clock.advance(1000)
	waitFor(t, func() bool {
		tag.mu.Lock()
		defer tag.mu.Unlock()
		return tag.pinged > 0
	})
	require.Equal(t, 1, m.TokenCount())

	// Now the tag leaves the field; ping failures surface the loss.
	tag.kill()
	clock.advance(1000)
	waitFor(t, func() bool {
		_, lost := listener.counts()
		return lost == 1
	})
	require.Equal(t, 0, m.TokenCount())
}

func TestReleaseAllStopsMonitors(t *testing.T) {
	listener := &recordingListener{}
	m := New(fastConfig(), listener, nil, &testClock{})

	require.True(t, m.AttachNfcTag(newFakeTag(0x01)))
	require.True(t, m.AttachNfcTag(newFakeTag(0x02)))
	require.Equal(t, 2, m.TokenCount())

	m.ReleaseAll()
	require.Equal(t, 0, m.TokenCount())

	_, lost := listener.counts()
	require.Equal(t, 2, lost)
}

// fakeUsbDevice exposes a scripted CCID reader: power-on yields an
// ATR, every XfrBlock answers 9000.
type fakeUsbDevice struct {
	identity string
	closed   bool
	pending  [][]byte
}

func (f *fakeUsbDevice) Identity() string { return f.identity }
func (f *fakeUsbDevice) Close() error {
	f.closed = true
	return nil
}

func (f *fakeUsbDevice) Open() (ccid.BulkPipe, error) { return f, nil }

func (f *fakeUsbDevice) WriteBulk(p []byte, _ time.Duration) (int, error) {
	reply := make([]byte, 12)
	reply[0] = 0x80 // RDR_to_PC_DataBlock
	reply[1] = 2    // dwLength
	reply[6] = p[6] // echo bSeq
	reply[10], reply[11] = 0x90, 0x00
	f.pending = append(f.pending, reply)
	return len(p), nil
}

func (f *fakeUsbDevice) ReadBulk(p []byte, _ time.Duration) (int, error) {
	reply := f.pending[0]
	f.pending = f.pending[1:]
	return copy(p, reply), nil
}

func TestAttachUsbCcidDedupes(t *testing.T) {
	listener := &recordingListener{}
	m := New(fastConfig(), listener, nil, &testClock{})

	dev := &fakeUsbDevice{identity: "1050:0407:123"}
	ok, err := m.AttachUsbCcid(dev, ccid.NewShortApduProtocol(), false)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = m.AttachUsbCcid(&fakeUsbDevice{identity: "1050:0407:123"}, ccid.NewShortApduProtocol(), false)
	require.NoError(t, err)
	require.False(t, ok, "same identity must be ignored")

	discovered, _ := listener.counts()
	require.Equal(t, 1, discovered)

	m.ReleaseAll()
	require.True(t, dev.closed, "release must close the claimed interface")
}

// A tag rediscovered after loss attaches again: the registry key is
// freed when the monitor declares loss.
func TestRediscoveryAfterLoss(t *testing.T) {
	listener := &recordingListener{}
	clock := &testClock{}
	m := New(fastConfig(), listener, nil, clock)

	tag := newFakeTag(0x09)
	require.True(t, m.AttachNfcTag(tag))

	clock.advance(2000)
	waitFor(t, func() bool { return m.TokenCount() == 0 })

	require.True(t, m.AttachNfcTag(newFakeTag(0x09)))
	m.ReleaseAll()
}
