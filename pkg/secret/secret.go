// Package secret holds short-lived sensitive byte material (PINs, PUKs)
// in buffers with guaranteed overwrite on release.
//
// OWNERSHIP MODEL:
// A ByteSecret owns exactly one buffer. Constructors take ownership of
// the slice passed in; callers must not retain references. Duplication
// is always explicit via Copy(). Wipe() overwrites the buffer with
// zeros and marks the secret unusable; it is idempotent.
//
// Equality checks are not constant-time unless EqualConstantTime is
// used explicitly.
package secret

import (
	"crypto/subtle"
	"errors"
)

// ErrWiped is returned when a wiped secret is accessed.
var ErrWiped = errors.New("secret: buffer has been wiped")

// ByteSecret is a fixed-length byte buffer that is overwritten on Wipe.
type ByteSecret struct {
	buf   []byte
	wiped bool
}

// FromBytes creates a ByteSecret, taking ownership of b.
func FromBytes(b []byte) *ByteSecret {
	return &ByteSecret{buf: b}
}

// UnsafeFromString creates a ByteSecret from a string literal.
//
// Strings are immutable in Go, so the original PIN characters stay in
// memory beyond the secret's lifetime. Acceptable for well-known
// defaults (factory PINs), not for user input.
func UnsafeFromString(s string) *ByteSecret {
	return &ByteSecret{buf: []byte(s)}
}

// Copy returns an independent duplicate of the secret.
func (s *ByteSecret) Copy() (*ByteSecret, error) {
	if s.wiped {
		return nil, ErrWiped
	}
	dup := make([]byte, len(s.buf))
	copy(dup, s.buf)
	return &ByteSecret{buf: dup}, nil
}

// Len returns the length of the secret in bytes, or 0 if wiped.
func (s *ByteSecret) Len() int {
	if s.wiped {
		return 0
	}
	return len(s.buf)
}

// Expose grants fn scoped read access to the raw buffer. The slice must
// not escape fn.
func (s *ByteSecret) Expose(fn func(b []byte) error) error {
	if s.wiped {
		return ErrWiped
	}
	return fn(s.buf)
}

// Wipe overwrites the buffer with zeros. Idempotent.
func (s *ByteSecret) Wipe() {
	if s.wiped {
		return
	}
	for i := range s.buf {
		s.buf[i] = 0
	}
	s.wiped = true
}

// IsWiped reports whether the secret has been wiped.
func (s *ByteSecret) IsWiped() bool {
	return s.wiped
}

// EqualConstantTime compares two secrets without leaking a timing
// signal about the position of the first difference. Length is not
// hidden.
func EqualConstantTime(a, b *ByteSecret) bool {
	if a.wiped || b.wiped {
		return false
	}
	if len(a.buf) != len(b.buf) {
		return false
	}
	return subtle.ConstantTimeCompare(a.buf, b.buf) == 1
}
