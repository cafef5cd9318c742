package manager

import (
	"fmt"

	"github.com/gregLibert/security-key/pkg/transport"
	"github.com/zondax/hid"
)

// FIDO authenticators advertise usage page 0xF1D0, usage 0x01 in their
// HID report descriptor.
const fidoUsagePage = 0xF1D0

// PollUsbHid enumerates attached HID devices, opens every FIDO
// authenticator not yet managed, and attaches a U2F HID transport for
// each. Returns the number of newly attached devices.
func (m *Manager) PollUsbHid() (int, error) {
	attached := 0
	for _, info := range hid.Enumerate(0, 0) {
		if info.UsagePage != fidoUsagePage {
			continue
		}

		id := fmt.Sprintf("usb:%04x:%04x:%s", info.VendorID, info.ProductID, info.Serial)
		m.mu.Lock()
		_, exists := m.tokens[id]
		m.mu.Unlock()
		if exists {
			continue
		}

		device, err := info.Open()
		if err != nil {
			m.log.Warnf("opening HID device %s: %v", id, err)
			continue
		}

		t := transport.NewU2fHidTransport(device, device.Close)
		t.SetTimeouts(m.cfg.U2fCommandTimeout, m.cfg.U2fPresenceTimeout)
		if err := t.Connect(); err != nil {
			m.log.Warnf("U2FHID INIT failed for %s: %v", id, err)
			if closeErr := device.Close(); closeErr != nil {
				m.log.Debugf("closing %s: %v", id, closeErr)
			}
			continue
		}

		m.mu.Lock()
		if _, exists := m.tokens[id]; exists {
			m.mu.Unlock()
			t.Release()
			continue
		}
		m.tokens[id] = &managedToken{id: id, transport: t, stop: make(chan struct{})}
		m.mu.Unlock()

		m.log.Debugf("discovered FIDO HID device (%s)", id)
		m.executor.Post(func() { m.listener.TransportDiscovered(t) })
		attached++
	}
	return attached, nil
}
