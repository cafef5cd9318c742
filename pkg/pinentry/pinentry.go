// Package pinentry prompts for PINs on an interactive terminal without
// echoing the input.
package pinentry

import (
	"fmt"
	"os"

	"github.com/gregLibert/security-key/pkg/secret"
	"golang.org/x/term"
)

// TerminalPinProvider reads PINs from the controlling terminal. It
// satisfies secret.PinProvider.
type TerminalPinProvider struct {
	// Prompt is shown before reading; %s receives the card serial
	// digits from the AID when available.
	Prompt string
}

// NewTerminalPinProvider creates a provider with a default prompt.
func NewTerminalPinProvider() *TerminalPinProvider {
	return &TerminalPinProvider{Prompt: "Enter PIN for security key %s: "}
}

// GetPin prompts on stderr and reads the PIN with echo disabled.
func (p *TerminalPinProvider) GetPin(aid []byte) (*secret.ByteSecret, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return nil, fmt.Errorf("pinentry: stdin is not a terminal")
	}

	serial := "????????"
	if len(aid) >= 14 {
		serial = fmt.Sprintf("%02X%02X%02X%02X", aid[10], aid[11], aid[12], aid[13])
	}
	fmt.Fprintf(os.Stderr, p.Prompt, serial)

	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return nil, fmt.Errorf("pinentry: reading PIN: %w", err)
	}
	return secret.FromBytes(raw), nil
}
