package pi

import (
	"fmt"
	"strconv"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/resource"
)

// A Config describes the named I2C buses of a Pi.
type Config struct {
	I2Cs []board.I2CConfig `json:"i2cs,omitempty"`
}

// Validate ensures every bus is a bus number.
func (conf *Config) Validate(path string) ([]string, error) {
	for idx, c := range conf.I2Cs {
		busPath := fmt.Sprintf("%s.%s.%d", path, "i2cs", idx)
		if err := c.Validate(busPath); err != nil {
			return nil, err
		}
		if _, err := busNumber(c.Bus); err != nil {
			return nil, resource.NewConfigValidationError(busPath, err)
		}
	}
	return nil, nil
}

func busNumber(bus string) (byte, error) {
	n, err := strconv.ParseUint(bus, 10, 8)
	if err != nil {
		return 0, errors.Errorf("i2c bus %q is not a bus number", bus)
	}
	return byte(n), nil
}
