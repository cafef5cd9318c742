package iso7816

import (
	"errors"
	"fmt"
)

// ErrMalformed marks an APDU that could not be parsed or encoded.
var ErrMalformed = errors.New("iso7816: malformed APDU")

// SWError reports a command that completed on the card with a
// non-success status word. Layers above map well-known status words to
// their own richer error types; SWError is the fallback that always
// preserves the raw SW.
type SWError struct {
	Ins InsCode
	SW  StatusWord
}

func (e *SWError) Error() string {
	return fmt.Sprintf("%s failed: %s", e.Ins, e.SW.Verbose())
}

// NewSWError builds an SWError for the given instruction and status.
func NewSWError(ins InsCode, sw StatusWord) *SWError {
	return &SWError{Ins: ins, SW: sw}
}

// StatusOf extracts the status word from an error chain. ok is false if
// the error carries no SWError.
func StatusOf(err error) (StatusWord, bool) {
	var swErr *SWError
	if errors.As(err, &swErr) {
		return swErr.SW, true
	}
	return 0, false
}
