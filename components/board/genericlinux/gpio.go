//go:build linux

package genericlinux

import (
	"context"
	"sync"

	"github.com/mkch/gpio"
	"go.viam.com/utils"

	"github.com/edss/rocket-sensors/logging"
)

const consumer = "rocket-sensors"

// gpioPin is a single line of a GPIO character device. The line is requested on first use and
// re-requested whenever the direction changes.
type gpioPin struct {
	devicePath string
	offset     uint32
	logger     logging.Logger

	mu        sync.Mutex
	line      *gpio.Line
	direction gpio.LineFlag
}

func newGPIOPin(devicePath string, offset uint32, logger logging.Logger) *gpioPin {
	return &gpioPin{devicePath: devicePath, offset: offset, logger: logger}
}

// openLine must be called with the mutex held.
func (pin *gpioPin) openLine(direction gpio.LineFlag, value byte) error {
	if pin.line != nil && pin.direction == direction {
		return nil
	}
	if err := pin.closeLine(); err != nil {
		return err
	}

	chip, err := gpio.OpenChip(pin.devicePath)
	if err != nil {
		return err
	}
	defer utils.UncheckedErrorFunc(chip.Close)

	line, err := chip.OpenLine(pin.offset, value, direction, consumer)
	if err != nil {
		return err
	}
	pin.line = line
	pin.direction = direction
	return nil
}

func (pin *gpioPin) closeLine() error {
	if pin.line == nil {
		return nil
	}
	err := pin.line.Close()
	pin.line = nil
	return err
}

func (pin *gpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	var value byte
	if high {
		value = 1
	}
	if pin.line != nil && pin.direction == gpio.Output {
		return pin.line.SetValue(value)
	}
	// a freshly requested output line starts at value
	return pin.openLine(gpio.Output, value)
}

func (pin *gpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	pin.mu.Lock()
	defer pin.mu.Unlock()

	if err := pin.openLine(gpio.Input, 0); err != nil {
		return false, err
	}
	value, err := pin.line.Value()
	if err != nil {
		return false, err
	}
	// any non-zero value is high
	return value != 0, nil
}

// Close releases the line so file descriptors are not leaked.
func (pin *gpioPin) Close() error {
	pin.mu.Lock()
	defer pin.mu.Unlock()
	return pin.closeLine()
}
