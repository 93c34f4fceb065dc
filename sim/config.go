package sim

import (
	"fmt"
	"os"
	"time"

	"github.com/distributed/periph/pad"
	"gopkg.in/yaml.v2"
)

// Config describes a machine. The zero value plus applyDefaults yields
// the reference board layout.
type Config struct {
	FlashSize int `yaml:"flash_size"`
	SRAMSize  int `yaml:"sram_size"`

	Sensor SensorSection `yaml:"sensor"`
	UART   DeviceSection `yaml:"uart"`
	GPIO   DeviceSection `yaml:"gpio"`
	Timer  DeviceSection `yaml:"timer"`
}

type DeviceSection struct {
	Base uint32 `yaml:"base"`
}

type SensorSection struct {
	Base uint32 `yaml:"base"`
	// Latency is a duration string ("100us", "5ms"). Empty means the
	// reference latency.
	Latency string `yaml:"latency"`
	// Retrigger is "coalesce" or "ignore".
	Retrigger string `yaml:"retrigger"`
	// Source overrides the generated-value source. Not settable from a
	// file; tests inject deterministic sources here.
	Source func() uint32 `yaml:"-"`
}

func LoadConfig(filename string) (cfg Config, err error) {
	b, err := os.ReadFile(filename)
	if err != nil {
		return
	}

	err = yaml.Unmarshal(b, &cfg)
	if err != nil {
		return
	}

	cfg.applyDefaults()
	err = cfg.validate()
	return
}

func (c *Config) applyDefaults() {
	if c.FlashSize == 0 {
		c.FlashSize = pad.FlashSize
	}
	if c.SRAMSize == 0 {
		c.SRAMSize = pad.SRAMSize
	}
	if c.Sensor.Base == 0 {
		c.Sensor.Base = pad.SensorBase
	}
	if c.Sensor.Retrigger == "" {
		c.Sensor.Retrigger = "coalesce"
	}
	if c.UART.Base == 0 {
		c.UART.Base = pad.UARTBase
	}
	if c.GPIO.Base == 0 {
		c.GPIO.Base = pad.GPIOBase
	}
	if c.Timer.Base == 0 {
		c.Timer.Base = pad.TimerBase
	}
}

func (c Config) validate() error {
	if c.FlashSize <= 0 {
		return fmt.Errorf("flash size must be > 0")
	}
	if c.SRAMSize <= 0 {
		return fmt.Errorf("sram size must be > 0")
	}

	if _, err := c.Sensor.sensorConfig(); err != nil {
		return err
	}

	devs := []struct {
		name string
		base uint32
	}{
		{"timer", c.Timer.Base},
		{"uart", c.UART.Base},
		{"sensor", c.Sensor.Base},
		{"gpio", c.GPIO.Base},
	}
	seen := map[uint32]string{}
	for _, d := range devs {
		if prev, ok := seen[d.base]; ok {
			return fmt.Errorf("%s and %s share base %#08x", prev, d.name, d.base)
		}
		seen[d.base] = d.name
	}

	return nil
}

func (s SensorSection) sensorConfig() (cfg SensorConfig, err error) {
	cfg.Source = s.Source
	if s.Latency != "" {
		cfg.Latency, err = time.ParseDuration(s.Latency)
		if err != nil {
			err = fmt.Errorf("sensor latency: %v", err)
			return
		}
		if cfg.Latency <= 0 {
			err = fmt.Errorf("sensor latency must be > 0, have %v", cfg.Latency)
			return
		}
	}

	switch s.Retrigger {
	case "", "coalesce":
		cfg.Policy = RetriggerCoalesce
	case "ignore":
		cfg.Policy = RetriggerIgnore
	default:
		err = fmt.Errorf("unknown retrigger policy %q", s.Retrigger)
	}

	return
}
