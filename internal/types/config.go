package types

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

// Defaults for WH23xx consoles. The USB IDs are those of the Silicon Labs
// HID bridge used by the Fine Offset WH2300/WH2301/WH4000 and Tycon TP2700.
const (
	DefaultVendorID      = 0x10c4
	DefaultProductID     = 0x8468
	DefaultUSBConfig     = 1
	DefaultTimeout       = time.Second
	DefaultPollInterval  = 15 * time.Second
	DefaultMaxTries      = 5
	DefaultRetryWait     = 10 * time.Second
	DefaultResetAttempts = 5
	DefaultResetWait     = 2 * time.Second
	DefaultModel         = "Tycon TP2700"
)

// Config is the base configuration object
type Config struct {
	Log     LogConfig      `yaml:"log,omitempty"`
	Devices []DeviceConfig `yaml:"devices"`
}

// LogConfig holds logging settings
type LogConfig struct {
	Debug      bool   `yaml:"debug,omitempty"`
	File       string `yaml:"file,omitempty"`
	MaxSizeMB  int    `yaml:"max-size-mb,omitempty"`
	MaxBackups int    `yaml:"max-backups,omitempty"`
}

// DeviceConfig holds configuration specific to a WH23xx console
type DeviceConfig struct {
	Name           string        `yaml:"name"`
	Type           string        `yaml:"type,omitempty"`
	Model          string        `yaml:"model,omitempty"`
	VendorID       uint16        `yaml:"vendor-id,omitempty"`
	ProductID      uint16        `yaml:"product-id,omitempty"`
	USBConfig      int           `yaml:"usb-config,omitempty"`
	Interface      int           `yaml:"interface,omitempty"`
	Timeout        time.Duration `yaml:"timeout,omitempty"`
	PollInterval   time.Duration `yaml:"poll-interval,omitempty"`
	MaxTries       int           `yaml:"max-tries,omitempty"`
	RetryWait      time.Duration `yaml:"retry-wait,omitempty"`
	ResetAttempts  int           `yaml:"reset-attempts,omitempty"`
	ResetWait      time.Duration `yaml:"reset-wait,omitempty"`
	StrictChecksum bool          `yaml:"strict-checksum,omitempty"`
	UVScaling      string        `yaml:"uv-scaling,omitempty"`
	Timezone       string        `yaml:"timezone,omitempty"`
}

// ApplyDefaults fills in any unset device settings
func (d *DeviceConfig) ApplyDefaults() {
	if d.Type == "" {
		d.Type = "wh23xx"
	}
	if d.Model == "" {
		d.Model = DefaultModel
	}
	if d.VendorID == 0 {
		d.VendorID = DefaultVendorID
	}
	if d.ProductID == 0 {
		d.ProductID = DefaultProductID
	}
	if d.USBConfig == 0 {
		d.USBConfig = DefaultUSBConfig
	}
	if d.Timeout == 0 {
		d.Timeout = DefaultTimeout
	}
	if d.PollInterval == 0 {
		d.PollInterval = DefaultPollInterval
	}
	if d.MaxTries == 0 {
		d.MaxTries = DefaultMaxTries
	}
	if d.RetryWait == 0 {
		d.RetryWait = DefaultRetryWait
	}
	if d.ResetAttempts == 0 {
		d.ResetAttempts = DefaultResetAttempts
	}
	if d.ResetWait == 0 {
		d.ResetWait = DefaultResetWait
	}
	if d.UVScaling == "" {
		d.UVScaling = "revised"
	}
}

// Validate checks a device config after defaults have been applied
func (d *DeviceConfig) Validate() error {
	if d.Name == "" {
		return fmt.Errorf("device must have a name")
	}
	if d.Type != "wh23xx" {
		return fmt.Errorf("device [%s]: unsupported type %q", d.Name, d.Type)
	}
	if d.MaxTries < 1 {
		return fmt.Errorf("device [%s]: max-tries must be positive", d.Name)
	}
	if d.RetryWait < 0 || d.ResetWait < 0 {
		return fmt.Errorf("device [%s]: wait durations must not be negative", d.Name)
	}
	if d.Timeout <= 0 {
		return fmt.Errorf("device [%s]: timeout must be positive", d.Name)
	}
	switch d.UVScaling {
	case "revised", "legacy":
	default:
		return fmt.Errorf("device [%s]: uv-scaling must be \"revised\" or \"legacy\", got %q", d.Name, d.UVScaling)
	}
	if d.Timezone != "" {
		if _, err := time.LoadLocation(d.Timezone); err != nil {
			return fmt.Errorf("device [%s]: bad timezone: %w", d.Name, err)
		}
	}
	return nil
}

// Device returns the named device, or the first device when name is empty.
func (c *Config) Device(name string) (DeviceConfig, error) {
	if len(c.Devices) == 0 {
		return DeviceConfig{}, fmt.Errorf("no devices configured")
	}
	if name == "" {
		return c.Devices[0], nil
	}
	for _, d := range c.Devices {
		if d.Name == name {
			return d, nil
		}
	}
	return DeviceConfig{}, fmt.Errorf("device %q not found in config", name)
}

// NewConfig creates a new config object from the given filename.
func NewConfig(filename string) (Config, error) {
	cfgFile, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, err
	}
	return ParseConfig(cfgFile)
}

// ParseConfig parses YAML config data, applies defaults and validates every device.
func ParseConfig(data []byte) (Config, error) {
	c := Config{}
	err := yaml.Unmarshal(data, &c)
	if err != nil {
		return Config{}, err
	}
	for i := range c.Devices {
		c.Devices[i].ApplyDefaults()
		if err := c.Devices[i].Validate(); err != nil {
			return Config{}, err
		}
	}
	return c, nil
}
