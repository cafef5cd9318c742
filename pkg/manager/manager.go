// Package manager discovers security keys on USB and NFC, owns the
// lifecycle of each managed token, and notifies a listener on a
// caller-supplied executor.
//
// LOCKING:
// The token registry is guarded by one mutex. Discovery and loss both
// mutate it; listener callbacks are posted to the executor after the
// lock is dropped, so a callback can safely call back into the
// manager.
package manager

import (
	"encoding/hex"
	"fmt"
	"sync"

	"github.com/gregLibert/security-key/internal/hwlog"
	"github.com/gregLibert/security-key/pkg/ccid"
	"github.com/gregLibert/security-key/pkg/config"
	"github.com/gregLibert/security-key/pkg/transport"
	"go.uber.org/zap"
)

// Listener receives transport lifecycle events. Both callbacks run on
// the manager's executor.
type Listener interface {
	TransportDiscovered(t transport.Transport)
	TransportLost(t transport.Transport)
}

// Executor runs callbacks on the caller's preferred context (an event
// loop, a worker pool, or inline).
type Executor interface {
	Post(fn func())
}

// DirectExecutor runs callbacks inline on the calling goroutine.
type DirectExecutor struct{}

// Post runs fn immediately.
func (DirectExecutor) Post(fn func()) { fn() }

// Manager tracks every discovered security key.
type Manager struct {
	cfg      config.Config
	listener Listener
	executor Executor
	clock    transport.Clock
	log      *zap.SugaredLogger

	mu     sync.Mutex
	tokens map[string]*managedToken
}

type managedToken struct {
	id        string
	transport transport.Transport
	stop      chan struct{}
}

// New creates a manager. A nil executor runs callbacks inline; a nil
// clock uses system time.
func New(cfg config.Config, listener Listener, executor Executor, clock transport.Clock) *Manager {
	if executor == nil {
		executor = DirectExecutor{}
	}
	if clock == nil {
		clock = transport.SystemClock{}
	}
	if cfg.DebugLogging {
		hwlog.EnableDebug()
	}
	return &Manager{
		cfg:      cfg,
		listener: listener,
		executor: executor,
		clock:    clock,
		log:      hwlog.Named("manager"),
		tokens:   map[string]*managedToken{},
	}
}

// TokenCount returns the number of currently managed tokens.
func (m *Manager) TokenCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.tokens)
}

// AttachNfcTag registers a discovered ISO-DEP tag, spawning a liveness
// monitor for it. Duplicate discoveries of a managed tag are ignored;
// the return value reports whether the tag was newly attached.
func (m *Manager) AttachNfcTag(tag transport.IsoDepTag) bool {
	id := "nfc:" + hex.EncodeToString(tag.UID())

	m.mu.Lock()
	if _, exists := m.tokens[id]; exists {
		m.mu.Unlock()
		m.log.Debugf("tag already managed, ignoring (%s)", id)
		return false
	}

	t := transport.NewNfcTransport(tag, m.clock)
	token := &managedToken{id: id, transport: t, stop: make(chan struct{})}
	m.tokens[id] = token
	m.mu.Unlock()

	m.log.Debugf("discovered NFC tag (%s)", id)
	go m.monitorNfc(token, t)
	m.executor.Post(func() { m.listener.TransportDiscovered(t) })
	return true
}

// AttachUsbCcid registers an opened CCID interface with the exchange
// protocol matching the reader's descriptor. Duplicate device
// identities are ignored.
func (m *Manager) AttachUsbCcid(dev transport.UsbDevice, protocol ccid.Protocol, extendedLength bool) (bool, error) {
	id := "usb:" + dev.Identity()

	m.mu.Lock()
	if _, exists := m.tokens[id]; exists {
		m.mu.Unlock()
		m.log.Debugf("device already managed, ignoring (%s)", id)
		return false, nil
	}
	m.mu.Unlock()

	// T=1 block exchanges get the longer budget; plain data blocks the
	// bulk-transfer default.
	deadline := m.cfg.CcidBlockTimeout
	if _, tpdu := protocol.(*ccid.TpduProtocol); tpdu {
		deadline = m.cfg.T1BlockTimeout
	}

	t := transport.NewCcidTransport(dev, protocol, extendedLength, deadline)
	if err := t.Connect(); err != nil {
		return false, fmt.Errorf("connecting %s: %w", id, err)
	}

	m.mu.Lock()
	if _, exists := m.tokens[id]; exists {
		// Lost a race with a concurrent attach of the same device.
		m.mu.Unlock()
		t.Release()
		return false, nil
	}
	m.tokens[id] = &managedToken{id: id, transport: t, stop: make(chan struct{})}
	m.mu.Unlock()

	m.log.Debugf("discovered CCID device (%s)", id)
	m.executor.Post(func() { m.listener.TransportDiscovered(t) })
	return true, nil
}

// ReleaseToken releases one managed token and emits the lost event.
func (m *Manager) ReleaseToken(t transport.Transport) {
	m.mu.Lock()
	var token *managedToken
	for id, candidate := range m.tokens {
		if candidate.transport == t {
			token = candidate
			delete(m.tokens, id)
			break
		}
	}
	m.mu.Unlock()

	if token != nil {
		m.dropToken(token)
	}
}

// ReleaseAll releases every managed token.
func (m *Manager) ReleaseAll() {
	m.mu.Lock()
	tokens := make([]*managedToken, 0, len(m.tokens))
	for _, token := range m.tokens {
		tokens = append(tokens, token)
	}
	m.tokens = map[string]*managedToken{}
	m.mu.Unlock()

	for _, token := range tokens {
		m.dropToken(token)
	}
}

// dropToken stops the monitor, releases the transport, and notifies
// the listener. Must be called without the registry lock held.
func (m *Manager) dropToken(token *managedToken) {
	select {
	case <-token.stop:
	default:
		close(token.stop)
	}
	token.transport.Release()
	m.executor.Post(func() { m.listener.TransportLost(token.transport) })
}

// onTokenLost handles a loss detected by a monitor.
func (m *Manager) onTokenLost(token *managedToken) {
	m.mu.Lock()
	current, exists := m.tokens[token.id]
	if !exists || current != token {
		m.mu.Unlock()
		m.log.Debugf("token was dropped before (%s)", token.id)
		return
	}
	delete(m.tokens, token.id)
	m.mu.Unlock()

	m.log.Debugf("lost token (%s)", token.id)
	token.transport.Release()
	m.executor.Post(func() { m.listener.TransportLost(token.transport) })
}
