// Package config carries the tunable knobs of the device manager and
// transports. Values load from YAML; zero fields fall back to the
// defaults the protocol specifications prescribe.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the library-wide tuning block.
type Config struct {
	// CcidBlockTimeout bounds one CCID bulk transfer.
	CcidBlockTimeout time.Duration `yaml:"ccid_block_timeout"`
	// T1BlockTimeout bounds one T=1 block exchange.
	T1BlockTimeout time.Duration `yaml:"t1_block_timeout"`
	// U2fCommandTimeout bounds a U2F HID transaction.
	U2fCommandTimeout time.Duration `yaml:"u2f_command_timeout"`
	// U2fPresenceTimeout applies while the device signals keepalive.
	U2fPresenceTimeout time.Duration `yaml:"u2f_presence_timeout"`

	// NfcMonitorInterval is the liveness poll period.
	NfcMonitorInterval time.Duration `yaml:"nfc_monitor_interval"`
	// NfcPingDelay is the quiet period after which the active monitor
	// pings the tag.
	NfcPingDelay time.Duration `yaml:"nfc_ping_delay"`
	// NfcTimeoutDelay is the quiet period after which the passive
	// monitor declares the tag lost.
	NfcTimeoutDelay time.Duration `yaml:"nfc_timeout_delay"`
	// NfcActiveMonitoring enables ping probes instead of pure
	// last-seen timing.
	NfcActiveMonitoring bool `yaml:"nfc_active_monitoring"`

	// DebugLogging hex-dumps frames at debug level.
	DebugLogging bool `yaml:"debug_logging"`
}

// Default returns the timeouts the CCID, ISO 7816-3 and U2F HID
// protocol documents prescribe.
func Default() Config {
	return Config{
		CcidBlockTimeout:    2 * time.Second,
		T1BlockTimeout:      5 * time.Second,
		U2fCommandTimeout:   3 * time.Second,
		U2fPresenceTimeout:  30 * time.Second,
		NfcMonitorInterval:  250 * time.Millisecond,
		NfcPingDelay:        750 * time.Millisecond,
		NfcTimeoutDelay:     1500 * time.Millisecond,
		NfcActiveMonitoring: false,
	}
}

// Load reads a YAML config file and fills unset fields with defaults.
func Load(path string) (Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}
	return Parse(raw)
}

// Parse decodes YAML bytes and fills unset fields with defaults.
func Parse(raw []byte) (Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := Default()
	if c.CcidBlockTimeout == 0 {
		c.CcidBlockTimeout = def.CcidBlockTimeout
	}
	if c.T1BlockTimeout == 0 {
		c.T1BlockTimeout = def.T1BlockTimeout
	}
	if c.U2fCommandTimeout == 0 {
		c.U2fCommandTimeout = def.U2fCommandTimeout
	}
	if c.U2fPresenceTimeout == 0 {
		c.U2fPresenceTimeout = def.U2fPresenceTimeout
	}
	if c.NfcMonitorInterval == 0 {
		c.NfcMonitorInterval = def.NfcMonitorInterval
	}
	if c.NfcPingDelay == 0 {
		c.NfcPingDelay = def.NfcPingDelay
	}
	if c.NfcTimeoutDelay == 0 {
		c.NfcTimeoutDelay = def.NfcTimeoutDelay
	}
}
