package config

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestParseFillsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("nfc_active_monitoring: true\nt1_block_timeout: 10s\n"))
	if err != nil {
		t.Fatal(err)
	}

	expected := Default()
	expected.NfcActiveMonitoring = true
	expected.T1BlockTimeout = 10 * time.Second

	if diff := cmp.Diff(expected, cfg); diff != "" {
		t.Errorf("config mismatch (-expected +got):\n%s", diff)
	}
}

func TestParseEmptyIsDefault(t *testing.T) {
	cfg, err := Parse(nil)
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(Default(), cfg); diff != "" {
		t.Errorf("empty config should equal defaults:\n%s", diff)
	}
}

func TestParseRejectsGarbage(t *testing.T) {
	if _, err := Parse([]byte("\tnot yaml")); err == nil {
		t.Error("invalid YAML must fail")
	}
}
