package openpgp

import (
	"errors"
	"fmt"

	"github.com/gregLibert/security-key/pkg/iso7816"
)

// Applet-level errors. Status words with a well-known meaning in the
// OpenPGP card application map to these; anything else surfaces as an
// iso7816.SWError carrying the raw status.
var (
	// ErrAppletNotPresent: SELECT answered 6A82.
	ErrAppletNotPresent = errors.New("openpgp: applet not present on card")
	// ErrPinBlocked: 6983, the retry counter is exhausted.
	ErrPinBlocked = errors.New("openpgp: PIN blocked")
	// ErrSecurityNotSatisfied: 6982, a required verification is missing.
	ErrSecurityNotSatisfied = errors.New("openpgp: security status not satisfied")
	// ErrConditionsNotSatisfied: 6985.
	ErrConditionsNotSatisfied = errors.New("openpgp: conditions of use not satisfied")
	// ErrWrongData: 6A80, the card rejected the data field.
	ErrWrongData = errors.New("openpgp: incorrect data field")
	// ErrRefNotFound: 6A88, referenced data object not found.
	ErrRefNotFound = errors.New("openpgp: referenced data not found")

	// ErrUnsupportedKeyFormat marks algorithm attributes or key
	// material this implementation cannot handle.
	ErrUnsupportedKeyFormat = errors.New("openpgp: unsupported key format")
	// ErrKeyImportRejected marks a PUT DATA key import the card refused.
	ErrKeyImportRejected = errors.New("openpgp: key import rejected")
	// ErrCapabilityParse marks an unparseable application related data DO.
	ErrCapabilityParse = errors.New("openpgp: cannot parse capabilities")
)

// PinError reports a failed PIN verification (63CX) together with the
// remaining retries.
type PinError struct {
	Retries int
}

func (e *PinError) Error() string {
	return fmt.Sprintf("openpgp: incorrect PIN, %d retries left", e.Retries)
}

// PairingStep identifies where a setup flow failed.
type PairingStep string

const (
	StepWipe      PairingStep = "wipe"
	StepAdminAuth PairingStep = "admin-auth"
	StepKeygen    PairingStep = "key-generation"
	StepImport    PairingStep = "key-import"
	StepPinChange PairingStep = "pin-change"
	StepRefresh   PairingStep = "capability-refresh"
)

// PairingError reports a failed SetupPairedKey run with its failing
// step and underlying cause. After a partial setup the card state is
// undefined; callers should wipe and retry.
type PairingError struct {
	Step  PairingStep
	Cause error
}

func (e *PairingError) Error() string {
	return fmt.Sprintf("openpgp: pairing aborted at %s: %v", e.Step, e.Cause)
}

func (e *PairingError) Unwrap() error {
	return e.Cause
}

func pairingFailed(step PairingStep, cause error) *PairingError {
	return &PairingError{Step: step, Cause: cause}
}

// mapStatus translates a non-9000 status word into the applet error
// taxonomy.
func mapStatus(ins iso7816.InsCode, sw iso7816.StatusWord) error {
	switch {
	case sw == iso7816.SwFileNotFound && ins == iso7816.InsSelect:
		return ErrAppletNotPresent
	case sw.IsRetryCounter():
		return &PinError{Retries: sw.RetryCount()}
	case sw == iso7816.SwAuthMethodBlocked:
		return ErrPinBlocked
	case sw == iso7816.SwSecurityStatusNotSatisfied:
		return ErrSecurityNotSatisfied
	case sw == iso7816.SwConditionsNotSatisfied:
		return ErrConditionsNotSatisfied
	case sw == iso7816.SwIncorrectData:
		return ErrWrongData
	case sw == iso7816.SwRefDataNotFound:
		return ErrRefNotFound
	default:
		return iso7816.NewSWError(ins, sw)
	}
}
