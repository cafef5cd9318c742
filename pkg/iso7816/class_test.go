package iso7816

import (
	"errors"
	"testing"
)

func TestNewClass(t *testing.T) {
	tests := []struct {
		name    string
		raw     byte
		wantErr bool
		check   func(t *testing.T, c Class)
	}{
		{
			name: "plain first interindustry",
			raw:  0x00,
			check: func(t *testing.T, c Class) {
				if c.IsChained || c.IsProprietary || c.Channel != 0 {
					t.Errorf("unexpected decode: %+v", c)
				}
			},
		},
		{
			name: "chaining bit",
			raw:  0x10,
			check: func(t *testing.T, c Class) {
				if !c.IsChained {
					t.Error("bit 5 should decode as chaining")
				}
			},
		},
		{
			name: "logical channel 2",
			raw:  0x02,
			check: func(t *testing.T, c Class) {
				if c.Channel != 2 {
					t.Errorf("channel: got %d", c.Channel)
				}
			},
		},
		{
			name: "proprietary carried opaque",
			raw:  0x90,
			check: func(t *testing.T, c Class) {
				if !c.IsProprietary || c.Encode() != 0x90 {
					t.Errorf("proprietary CLA mangled: %+v", c)
				}
			},
		},
		{name: "reserved FF", raw: 0xFF, wantErr: true},
		{name: "further interindustry unsupported", raw: 0x40, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewClass(tt.raw)
			if tt.wantErr {
				if err == nil {
					t.Errorf("NewClass(0x%02X) should fail", tt.raw)
				}
				return
			}
			if err != nil {
				t.Fatalf("NewClass(0x%02X): %v", tt.raw, err)
			}
			if got := c.Encode(); got != tt.raw {
				t.Errorf("re-encode: got 0x%02X, expected 0x%02X", got, tt.raw)
			}
			if tt.check != nil {
				tt.check(t, c)
			}
		})
	}
}

func TestClassWithChaining(t *testing.T) {
	c, _ := NewClass(0x00)

	chained := c.WithChaining(true)
	if chained.Encode() != 0x10 {
		t.Errorf("chained encode: got 0x%02X", chained.Encode())
	}
	// Original unchanged (value semantics).
	if c.Encode() != 0x00 {
		t.Error("WithChaining mutated the receiver")
	}

	if back := chained.WithChaining(false); back.Encode() != 0x00 {
		t.Errorf("unchained encode: got 0x%02X", back.Encode())
	}
}

func TestNewInstruction(t *testing.T) {
	if _, err := NewInstruction(InsSelect); err != nil {
		t.Errorf("SELECT should be valid: %v", err)
	}
	for _, ins := range []InsCode{0x60, 0x6F, 0x90, 0x9F} {
		if _, err := NewInstruction(ins); err == nil {
			t.Errorf("INS 0x%02X should be rejected", byte(ins))
		}
	}
}

func TestSWErrorStatusOf(t *testing.T) {
	err := error(NewSWError(InsVerify, SwAuthMethodBlocked))
	wrapped := errors.Join(errors.New("outer"), err)

	sw, ok := StatusOf(wrapped)
	if !ok || sw != SwAuthMethodBlocked {
		t.Fatalf("StatusOf: got %04X, %v", uint16(sw), ok)
	}

	if _, ok := StatusOf(errors.New("plain")); ok {
		t.Error("plain error should carry no status")
	}
}
