package secret

import (
	"errors"
	"testing"
)

func TestWipeOverwritesBuffer(t *testing.T) {
	raw := []byte{0x31, 0x32, 0x33, 0x34, 0x35, 0x36}
	s := FromBytes(raw)

	s.Wipe()

	for i, b := range raw {
		if b != 0 {
			t.Fatalf("byte %d not zeroed: %02X", i, b)
		}
	}
	if !s.IsWiped() {
		t.Fatal("IsWiped should report true")
	}

	// Idempotent.
	s.Wipe()

	if err := s.Expose(func([]byte) error { return nil }); !errors.Is(err, ErrWiped) {
		t.Fatalf("Expose after wipe: got %v, expected ErrWiped", err)
	}
	if _, err := s.Copy(); !errors.Is(err, ErrWiped) {
		t.Fatalf("Copy after wipe: got %v, expected ErrWiped", err)
	}
}

func TestCopyIsIndependent(t *testing.T) {
	s := UnsafeFromString("123456")
	dup, err := s.Copy()
	if err != nil {
		t.Fatal(err)
	}

	s.Wipe()

	var got []byte
	if err := dup.Expose(func(b []byte) error {
		got = append(got, b...)
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	if string(got) != "123456" {
		t.Fatalf("copy affected by wipe of original: %q", got)
	}
}

func TestEqualConstantTime(t *testing.T) {
	a := UnsafeFromString("123456")
	b := UnsafeFromString("123456")
	c := UnsafeFromString("654321")

	if !EqualConstantTime(a, b) {
		t.Fatal("equal secrets reported unequal")
	}
	if EqualConstantTime(a, c) {
		t.Fatal("different secrets reported equal")
	}

	b.Wipe()
	if EqualConstantTime(a, b) {
		t.Fatal("wiped secret must never compare equal")
	}
}

func TestStaticPinProvider(t *testing.T) {
	p := NewStaticPinProvider(UnsafeFromString("123456"))

	pin1, err := p.GetPin([]byte{0xD2, 0x76})
	if err != nil {
		t.Fatal(err)
	}
	pin1.Wipe()

	// Wiping a handed-out copy must not affect the provider.
	pin2, err := p.GetPin(nil)
	if err != nil {
		t.Fatal(err)
	}
	if pin2.Len() != 6 {
		t.Fatalf("second GetPin returned %d bytes", pin2.Len())
	}
}
