package emu

import (
	"io"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/go-faster/errors"
)

type Config struct {
	Clock ClockConfig `toml:"clock"`
	Bus   BusConfig   `toml:"bus"`
	Log   LogConfig   `toml:"log"`

	TraceOut io.Writer `toml:"-"`
}

type ClockConfig struct {
	// FreqMHz is the frequency of the clock driving the device.
	FreqMHz float64 `toml:"freq_mhz"`
	// ResetCycles is the number of cycles the clock runs after a reset,
	// before the device is accessed again.
	ResetCycles uint64 `toml:"reset_cycles"`
}

type BusConfig struct {
	// Kind is the bus binding used to access the registers: "mmio" or "spi".
	Kind string `toml:"kind"`
	// SPIHalfPeriod is the number of clock cycles SCLK stays at each level.
	SPIHalfPeriod uint64 `toml:"spi_half_period"`
}

type LogConfig struct {
	// Modules with debug logging enabled.
	Modules []string `toml:"modules"`
}

const (
	BusMMIO = "mmio"
	BusSPI  = "spi"
)

// BusKinds lists the supported bus bindings.
var BusKinds = []string{BusMMIO, BusSPI}

func DefaultConfig() Config {
	return Config{
		Clock: ClockConfig{
			FreqMHz:     10,
			ResetCycles: 5,
		},
		Bus: BusConfig{
			Kind:          BusMMIO,
			SPIHalfPeriod: 4,
		},
	}
}

// Check returns an error if the configuration can't be used to create a
// session.
func (cfg *Config) Check() error {
	if cfg.Clock.FreqMHz <= 0 {
		return errors.Errorf("clock.freq_mhz must be positive, got %v", cfg.Clock.FreqMHz)
	}
	switch cfg.Bus.Kind {
	case BusMMIO:
	case BusSPI:
		if cfg.Bus.SPIHalfPeriod < minSPIHalfPeriod {
			return errors.Errorf("bus.spi_half_period must be at least %d, got %d", minSPIHalfPeriod, cfg.Bus.SPIHalfPeriod)
		}
	default:
		return errors.Errorf("bus.kind: unknown bus %q (valid: %s)", cfg.Bus.Kind, strings.Join(BusKinds, ", "))
	}
	return nil
}

// LoadConfig reads a TOML configuration file. Settings missing from the file
// keep their default value.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, &cfg)
	if err != nil {
		return cfg, errors.Wrapf(err, "load config %s", path)
	}
	if undec := md.Undecoded(); len(undec) != 0 {
		return cfg, errors.Errorf("load config %s: unknown key %q", path, undec[0].String())
	}
	if err := cfg.Check(); err != nil {
		return cfg, errors.Wrapf(err, "load config %s", path)
	}
	return cfg, nil
}

// SaveConfig writes cfg as TOML into path.
func SaveConfig(path string, cfg Config) error {
	buf, err := toml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, buf, 0644)
}
