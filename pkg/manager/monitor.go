package manager

import (
	"time"

	"github.com/gregLibert/security-key/pkg/transport"
)

// NFC LIVENESS:
// An NFC tag gives no removal signal; the only way to notice it left
// the field is to watch traffic. The monitor polls every
// NfcMonitorInterval:
//
//   - passive: the tag is alive while the last successful exchange is
//     younger than NfcTimeoutDelay.
//   - active: after NfcPingDelay of silence the monitor issues a ping
//     of its own, so removal is noticed quickly even on an idle
//     connection.
//
// On loss the monitor releases the transport and the manager emits the
// lost event. The sleep is interruptible so Release does not have to
// wait out a full interval.

func (m *Manager) monitorNfc(token *managedToken, t *transport.NfcTransport) {
	ticker := time.NewTicker(m.cfg.NfcMonitorInterval)
	defer ticker.Stop()

	for {
		select {
		case <-token.stop:
			return
		case <-ticker.C:
			if !m.nfcStillConnected(t) {
				m.onTokenLost(token)
				return
			}
		}
	}
}

func (m *Manager) nfcStillConnected(t *transport.NfcTransport) bool {
	quiet := m.clock.NowMillis() - t.LastRxMillis()

	if m.cfg.NfcActiveMonitoring {
		if quiet < m.cfg.NfcPingDelay.Milliseconds() {
			return true
		}
		return t.Ping()
	}
	return quiet < m.cfg.NfcTimeoutDelay.Milliseconds()
}
