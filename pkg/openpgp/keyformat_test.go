package openpgp

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/gregLibert/security-key/pkg/tlv"
)

func TestParseKeyFormat(t *testing.T) {
	tests := []struct {
		name     string
		attrs    []byte
		expected KeyFormat
	}{
		{
			name:     "RSA-2048",
			attrs:    tlv.Hex("01 0800 0011 03"),
			expected: RsaKeyFormat{ModulusBits: 2048, ExponentBits: 17, ImportFormat: RsaImportCrtWithModulus},
		},
		{
			name:     "RSA-4096 std",
			attrs:    tlv.Hex("01 1000 0020 00"),
			expected: RsaKeyFormat{ModulusBits: 4096, ExponentBits: 32, ImportFormat: RsaImportStd},
		},
		{
			name:     "ECDSA P-256",
			attrs:    append([]byte{0x13}, oidNistP256...),
			expected: EcKeyFormat{Alg: AlgEcdsa, CurveOid: oidNistP256},
		},
		{
			name:     "ECDH with pubkey flag",
			attrs:    append(append([]byte{0x12}, oidNistP256...), 0xFF),
			expected: EcKeyFormat{Alg: AlgEcdh, CurveOid: oidNistP256, WithPubkey: true},
		},
		{
			name:     "EdDSA Ed25519",
			attrs:    append([]byte{0x16}, oidEd25519...),
			expected: EddsaKeyFormat{CurveOid: oidEd25519},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKeyFormat(tt.attrs)
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("mismatch (-expected +got):\n%s", diff)
			}
			// Re-encoding round-trips.
			if diff := cmp.Diff(tt.attrs, got.Attributes()); diff != "" {
				t.Errorf("attributes round trip:\n%s", diff)
			}
		})
	}
}

func TestParseKeyFormatErrors(t *testing.T) {
	cases := [][]byte{
		nil,
		{0x01, 0x08},       // RSA truncated
		{0x13},             // EC without OID
		{0x12, 0xFF},       // ECDH with only the pubkey marker
		{0x16},             // EdDSA without OID
		{0x63, 0x01, 0x02}, // unknown algorithm
	}
	for _, attrs := range cases {
		if _, err := ParseKeyFormat(attrs); !errors.Is(err, ErrUnsupportedKeyFormat) {
			t.Errorf("attrs % X: got %v", attrs, err)
		}
	}
}

func TestEqualFormats(t *testing.T) {
	a, _ := ParseKeyFormat(tlv.Hex("01 0800 0011 03"))
	b, _ := ParseKeyFormat(tlv.Hex("01 0800 0011 03"))
	c, _ := ParseKeyFormat(tlv.Hex("01 1000 0011 03"))

	if !equalFormats(a, b) {
		t.Error("identical formats must compare equal")
	}
	if equalFormats(a, c) {
		t.Error("different modulus sizes must differ")
	}
}

func TestAidParsing(t *testing.T) {
	aid, err := ParseAid(tlv.Hex("D2 76 00 01 24 01 02 01 00 05 00 00 12 34 00 00"))
	if err != nil {
		t.Fatal(err)
	}

	major, minor := aid.Version()
	if major != 2 || minor != 1 {
		t.Errorf("version %d.%d", major, minor)
	}
	if aid.Manufacturer() != "ZeitControl" {
		t.Errorf("manufacturer %q", aid.Manufacturer())
	}
	if aid.SerialNumber() != "00001234" {
		t.Errorf("serial %q", aid.SerialNumber())
	}
	if aid.SecurityKeyName() != "ZeitControl Security Key" {
		t.Errorf("name %q", aid.SecurityKeyName())
	}

	if _, err := ParseAid(tlv.Hex("A0 00 00 03 08 00 00 10 00 01 00 00 00 00 00 00")); err == nil {
		t.Error("PIV AID must be rejected")
	}
	if _, err := ParseAid(tlv.Hex("D2 76 00 01 24 01")); err == nil {
		t.Error("truncated AID must be rejected")
	}
}
