// Package tlv provides BER-TLV primitives for ISO 7816 data objects: a
// wire-exact node codec (node.go) and a reflection-based mapper that
// fills Go structs from decoded TLV trees using `tlv:"TAG"` field tags.
package tlv

import (
	"encoding/hex"
	"fmt"
	"reflect"
	"strings"

	"github.com/moov-io/bertlv"
)

// Unmarshaler allows custom types to implement their own TLV parsing logic.
type Unmarshaler interface {
	UnmarshalTLV(data []byte) error
}

// Unmarshal parses raw BER-TLV data and maps it into a target Go struct.
// Struct fields select their source object via a `tlv:"TAG"` tag, where
// TAG is the hex tag string (e.g. `tlv:"C0"`, `tlv:"7F49"`).
func Unmarshal(data []byte, target interface{}) error {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return fmt.Errorf("bertlv decode failed: %w", err)
	}
	return UnmarshalFromPackets(packets, target)
}

// UnmarshalFromPackets maps a slice of pre-decoded bertlv.TLV objects to
// a target struct. A tag occurring multiple times maps repeatedly onto
// the same field; the last occurrence wins for scalar fields.
func UnmarshalFromPackets(packets []bertlv.TLV, target interface{}) error {
	v := reflect.ValueOf(target)
	if v.Kind() != reflect.Ptr || v.IsNil() {
		return fmt.Errorf("target must be a non-nil pointer")
	}
	v = v.Elem()
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		tagConfig := t.Field(i).Tag.Get("tlv")
		if tagConfig == "" {
			continue
		}

		tagHex := strings.ToUpper(strings.Split(tagConfig, ",")[0])

		for _, packet := range packets {
			if strings.ToUpper(packet.Tag) == tagHex {
				if err := decodeToValue(packet, field); err != nil {
					return err
				}
			}
		}
	}

	return nil
}

// decodeToValue handles the leaf-node decoding logic (custom
// Unmarshaler, byte slice, hex string, nested struct).
func decodeToValue(packet bertlv.TLV, field reflect.Value) error {
	if field.CanAddr() {
		if u, ok := field.Addr().Interface().(Unmarshaler); ok {
			return u.UnmarshalTLV(packetRawData(packet))
		}
	}

	if field.Kind() == reflect.Slice && field.Type().Elem().Kind() == reflect.Uint8 {
		field.SetBytes(packetRawData(packet))
		return nil
	}

	if field.Kind() == reflect.String {
		field.SetString(hex.EncodeToString(packet.Value))
		return nil
	}

	if field.Kind() == reflect.Struct {
		if len(packet.TLVs) > 0 {
			return UnmarshalFromPackets(packet.TLVs, field.Addr().Interface())
		}
		return Unmarshal(packet.Value, field.Addr().Interface())
	}

	return fmt.Errorf("tlv: unsupported target field kind %s for tag %s", field.Kind(), packet.Tag)
}

// packetRawData returns the value of a packet; constructed packets are
// re-encoded so custom unmarshalers see the full nested encoding.
func packetRawData(p bertlv.TLV) []byte {
	if len(p.TLVs) > 0 {
		if enc, err := bertlv.Encode(p.TLVs); err == nil {
			return enc
		}
	}
	return p.Value
}

// GetValue scans raw BER-TLV data for a specific tag and returns its
// payload.
func GetValue(data []byte, tag uint) ([]byte, error) {
	packets, err := bertlv.Decode(data)
	if err != nil {
		return nil, err
	}

	targetTag := strings.ToUpper(fmt.Sprintf("%X", tag))

	for _, p := range packets {
		if strings.ToUpper(p.Tag) == targetTag {
			if len(p.TLVs) > 0 {
				return bertlv.Encode(p.TLVs)
			}
			return p.Value, nil
		}
	}
	return nil, fmt.Errorf("tag %s not found", targetTag)
}
