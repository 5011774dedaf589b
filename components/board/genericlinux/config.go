package genericlinux

import (
	"fmt"

	"github.com/edss/rocket-sensors/components/board"
)

const defaultGPIOChip = "/dev/gpiochip0"

// A Config describes the buses and GPIO backend of a Linux board.
type Config struct {
	I2Cs []board.I2CConfig `json:"i2cs,omitempty"`
	// UsePeriphGPIO selects periph.io pins by global name instead of character device lines.
	UsePeriphGPIO bool   `json:"use_periph_gpio,omitempty"`
	GPIOChip      string `json:"gpio_chip,omitempty"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	for idx, c := range conf.I2Cs {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "i2cs", idx)); err != nil {
			return nil, err
		}
	}
	return nil, nil
}

func (conf *Config) gpioChip() string {
	if conf.GPIOChip == "" {
		return defaultGPIOChip
	}
	return conf.GPIOChip
}
