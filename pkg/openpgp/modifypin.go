package openpgp

import (
	"fmt"

	"github.com/gregLibert/security-key/pkg/iso7816"
	"github.com/gregLibert/security-key/pkg/secret"
)

// PIN MANAGEMENT:
//   - CHANGE REFERENCE DATA (00 24 00 81/83) replaces a PIN given its
//     current value; the data field is oldPIN || newPIN.
//   - RESET RETRY COUNTER (00 2C 02 81) sets a fresh PW1 in the
//     admin-authenticated state and restores its retry counter.
//
// Any successful change invalidates the connection's PIN cache.

// ChangePin replaces PW1. The card checks oldPin itself; failures
// surface as PinError with the remaining retries.
func (c *AppletConnection) ChangePin(oldPin, newPin *secret.ByteSecret) error {
	if err := c.changeReferenceData(pw1ModeSignOnce, oldPin, newPin); err != nil {
		return err
	}
	c.ClearPinCache()
	return nil
}

// ChangeAdminPin replaces PW3.
func (c *AppletConnection) ChangeAdminPin(oldPin, newPin *secret.ByteSecret) error {
	if err := c.changeReferenceData(pw3Mode, oldPin, newPin); err != nil {
		return err
	}
	c.ClearPinCache()
	return nil
}

// ResetPinWithAdmin sets a fresh PW1 and unblocks it. PW3 must already
// be verified on this connection.
func (c *AppletConnection) ResetPinWithAdmin(newPin *secret.ByteSecret) error {
	err := newPin.Expose(func(pin []byte) error {
		cls, _ := iso7816.NewClass(0x00)
		cmd := iso7816.NewCommandAPDU(cls, iso7816.InsResetRetryCounter, 0x02, 0x81, pin, 0)
		_, err := c.Transceive(cmd)
		return err
	})
	if err != nil {
		return fmt.Errorf("resetting PW1: %w", err)
	}
	c.ClearPinCache()
	return nil
}

func (c *AppletConnection) changeReferenceData(mode byte, oldPin, newPin *secret.ByteSecret) error {
	return oldPin.Expose(func(old []byte) error {
		return newPin.Expose(func(fresh []byte) error {
			payload := secret.FromBytes(append(append([]byte{}, old...), fresh...))
			defer payload.Wipe()

			return payload.Expose(func(data []byte) error {
				cls, _ := iso7816.NewClass(0x00)
				cmd := iso7816.NewCommandAPDU(cls, iso7816.InsChangeReferenceData, 0x00, mode, data, 0)
				// No auto re-verify: a stale cached PIN must not mask
				// the real result of a PIN change.
				_, err := c.transceiveRaw(cmd)
				return err
			})
		})
	})
}
