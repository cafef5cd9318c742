package tlv

import (
	"bytes"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		tag      uint16
		value    []byte
		expected []byte
	}{
		{
			name:     "single byte tag, short length",
			tag:      0x4F,
			value:    Hex("D2 76 00 01 24 01"),
			expected: Hex("4F 06 D2 76 00 01 24 01"),
		},
		{
			name:     "two byte tag",
			tag:      0x7F49,
			value:    Hex("81 01 AA"),
			expected: Hex("7F 49 03 81 01 AA"),
		},
		{
			name:     "long form 81",
			tag:      0xC5,
			value:    bytes.Repeat([]byte{0xAB}, 0x80),
			expected: append(Hex("C5 81 80"), bytes.Repeat([]byte{0xAB}, 0x80)...),
		},
		{
			name:     "long form 82",
			tag:      0x5F48,
			value:    bytes.Repeat([]byte{0xCD}, 0x0123),
			expected: append(Hex("5F 48 82 01 23"), bytes.Repeat([]byte{0xCD}, 0x0123)...),
		},
		{
			name:     "empty value",
			tag:      0xB6,
			value:    nil,
			expected: Hex("B6 00"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Encode(tt.tag, tt.value)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("Encode mismatch (-expected +got):\n%s", diff)
			}
		})
	}
}

func TestParseSingleRoundTrip(t *testing.T) {
	// Canonical encodings must survive parse -> re-encode untouched.
	inputs := [][]byte{
		Hex("4F 06 D2 76 00 01 24 01"),
		Hex("7F 49 05 81 03 01 00 01"),
		append(Hex("C5 81 80"), bytes.Repeat([]byte{0x11}, 0x80)...),
		append(Hex("53 82 01 00"), bytes.Repeat([]byte{0x22}, 0x100)...),
	}

	for _, in := range inputs {
		node, err := ParseSingle(in, true)
		if err != nil {
			t.Fatalf("parse %X: %v", in[:4], err)
		}
		if got := Encode(node.Tag, node.Value); !bytes.Equal(got, in) {
			t.Errorf("round trip broken for tag %04X", node.Tag)
		}
	}
}

func TestParseSingleStrictTrailing(t *testing.T) {
	data := Hex("4F 01 AA 00") // one trailing byte

	if _, err := ParseSingle(data, false); err != nil {
		t.Fatalf("lenient parse failed: %v", err)
	}
	if _, err := ParseSingle(data, true); !errors.Is(err, ErrBadLength) {
		t.Fatalf("strict parse: got %v, expected ErrBadLength", err)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		data     []byte
		expected error
	}{
		{"empty input", nil, ErrTruncated},
		{"tag only", Hex("4F"), ErrTruncated},
		{"value cut short", Hex("4F 06 D2 76"), ErrTruncated},
		{"long form cut short", Hex("4F 82 01"), ErrTruncated},
		{"indefinite length", Hex("4F 80 AA"), ErrBadLength},
		{"three byte length", Hex("4F 83 00 00 01 AA"), ErrBadLength},
		{"three byte tag", Hex("7F 81 49 01 AA"), ErrTagTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseSingle(tt.data, false); !errors.Is(err, tt.expected) {
				t.Errorf("got %v, expected %v", err, tt.expected)
			}
		})
	}
}

func TestFindRecursive(t *testing.T) {
	// 6E { 73 { C0 .. C1 .. } 4F .. }
	inner := append(Encode(0xC0, Hex("7D 00 0B FE 08 00 00 FF 00 00")), Encode(0xC1, Hex("01 08 00 00 11 03"))...)
	blob := Encode(0x6E, append(Encode(0x73, inner), Encode(0x4F, Hex("D2 76 00 01 24 01"))...))

	root, err := ParseSingle(blob, true)
	if err != nil {
		t.Fatal(err)
	}

	c1 := FindRecursive(&root, 0xC1)
	if c1 == nil {
		t.Fatal("C1 not found through two levels of nesting")
	}
	if diff := cmp.Diff(Hex("01 08 00 00 11 03"), c1.Value); diff != "" {
		t.Errorf("C1 value mismatch:\n%s", diff)
	}

	if FindRecursive(&root, 0xC7) != nil {
		t.Error("found a tag that is not present")
	}
}

func TestChildrenLazyParse(t *testing.T) {
	blob := Encode(0x73, Encode(0xC4, Hex("00 20 20 20 03 00 03")))
	root, err := ParseSingle(blob, true)
	if err != nil {
		t.Fatal(err)
	}

	if !root.Constructed() {
		t.Fatal("0x73 should be constructed")
	}

	kids, err := root.Children()
	if err != nil {
		t.Fatal(err)
	}
	if len(kids) != 1 || kids[0].Tag != 0xC4 {
		t.Fatalf("unexpected children: %+v", kids)
	}

	// Second call returns the same backing array (parsed once).
	again, _ := root.Children()
	if &again[0] != &kids[0] {
		t.Error("Children re-parsed on second call")
	}
}

func TestValueAliasesInput(t *testing.T) {
	buf := Encode(0x4F, Hex("AA BB"))
	node, err := ParseSingle(buf, true)
	if err != nil {
		t.Fatal(err)
	}

	buf[2] = 0xEE
	if node.Value[0] != 0xEE {
		t.Error("Value should alias the input buffer, not copy it")
	}
}
