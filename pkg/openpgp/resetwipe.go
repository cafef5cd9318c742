package openpgp

import (
	"errors"
	"fmt"

	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/gregLibert/security-key/pkg/secret"
)

// FACTORY RESET:
// TERMINATE DF (00 E6 00 00) followed by ACTIVATE FILE (00 44 00 00)
// wipes every key and restores the factory PINs (PW1 123456,
// PW3 12345678) with fresh retry counters.
//
// Many applets refuse TERMINATE DF unless PW1 and PW3 are blocked
// (conditions of use not satisfied). In that case the reset path burns
// the remaining retries with deliberately wrong verifications and
// terminates again.

// Factory default PINs after a reset.
var (
	DefaultPin      = "123456"
	DefaultAdminPin = "12345678"
)

// ResetAndWipe factory-resets the applet. All keys are destroyed. The
// capability snapshot is refreshed before returning.
func (c *AppletConnection) ResetAndWipe() error {
	err := c.terminate()
	if errors.Is(err, ErrConditionsNotSatisfied) {
		c.blockPins()
		err = c.terminate()
	}
	if err != nil {
		return fmt.Errorf("terminating applet: %w", err)
	}

	if err := c.activate(); err != nil {
		return fmt.Errorf("activating applet: %w", err)
	}

	// Select again: termination dropped the applet state.
	if err := c.selectApplet(); err != nil {
		return err
	}

	c.ClearPinCache()
	return c.RefreshCapabilities()
}

func (c *AppletConnection) terminate() error {
	cls, _ := iso7816.NewClass(0x00)
	cmd := iso7816.NewCommandAPDU(cls, iso7816.InsTerminateDF, 0x00, 0x00, nil, 0)
	_, err := c.transceiveRaw(cmd)
	return err
}

// blockPins exhausts the PW1 and PW3 retry counters with an
// intentionally invalid PIN so TERMINATE DF becomes permitted.
func (c *AppletConnection) blockPins() {
	invalid := secret.UnsafeFromString("\xFF\xFF\xFF\xFF\xFF\xFF\xFF\xFF")
	defer invalid.Wipe()

	for _, mode := range []byte{pw1ModeSignOnce, pw3Mode} {
		for attempt := 0; attempt < 4; attempt++ {
			err := c.verify(mode, invalid)
			if errors.Is(err, ErrPinBlocked) {
				break
			}
			var pinErr *PinError
			if errors.As(err, &pinErr) && pinErr.Retries == 0 {
				break
			}
			if err == nil {
				// An applet that accepts this PIN is misbehaving;
				// nothing more to block here.
				break
			}
		}
	}
}
