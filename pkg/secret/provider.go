package secret

// PinProvider supplies the user PIN for a security key identified by
// its applet AID. Implementations may prompt the user, consult an
// agent, or return a cached value. The returned secret is owned by the
// caller, which is expected to wipe it after use.
type PinProvider interface {
	GetPin(aid []byte) (*ByteSecret, error)
}

// StaticPinProvider returns the same PIN for every key.
type StaticPinProvider struct {
	pin *ByteSecret
}

// NewStaticPinProvider creates a provider around pin. Takes ownership
// of the passed secret.
func NewStaticPinProvider(pin *ByteSecret) *StaticPinProvider {
	return &StaticPinProvider{pin: pin}
}

// GetPin returns a copy of the static PIN regardless of aid.
func (p *StaticPinProvider) GetPin(_ []byte) (*ByteSecret, error) {
	return p.pin.Copy()
}

// Wipe destroys the held PIN. Subsequent GetPin calls fail with ErrWiped.
func (p *StaticPinProvider) Wipe() {
	p.pin.Wipe()
}
