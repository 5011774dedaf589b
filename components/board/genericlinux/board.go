// Package genericlinux implements a board for any Linux host. I2C buses are reached through
// periph.io and GPIO pins either through the GPIO character device (by way of mkch's gpio package)
// or through periph.io's pin registry.
package genericlinux

import (
	"context"
	"strconv"
	"sync"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"periph.io/x/conn/v3/gpio/gpioreg"
	"periph.io/x/host/v3"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
)

// Model is the generic Linux board model.
var Model = resource.DefaultModelFamily.WithModel("linux")

func init() {
	resource.RegisterComponent(
		board.API,
		Model,
		resource.Registration[board.Board, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (board.Board, error) {
				return NewBoard(ctx, conf, logger)
			},
		})
}

var (
	periphOnce sync.Once
	periphErr  error
)

// initPeriph loads the periph.io host drivers once per process.
func initPeriph() error {
	periphOnce.Do(func() {
		_, periphErr = host.Init()
	})
	return periphErr
}

// Board is a Linux board.
type Board struct {
	resource.Named

	mu            sync.Mutex
	logger        logging.Logger
	i2cs          []board.I2CConfig
	usePeriphGPIO bool
	gpioChip      string
	gpios         map[string]*gpioPin
}

// NewBoard returns a board configured by conf.
func NewBoard(ctx context.Context, conf resource.Config, logger logging.Logger) (*Board, error) {
	if err := initPeriph(); err != nil {
		return nil, errors.Wrap(err, "initializing periph.io host drivers")
	}
	b := &Board{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		gpios:  map[string]*gpioPin{},
	}
	if err := b.Reconfigure(ctx, nil, conf); err != nil {
		return nil, err
	}
	return b, nil
}

// Reconfigure replaces the bus names and GPIO backend. Open GPIO lines are released.
func (b *Board) Reconfigure(ctx context.Context, _ resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.closeGPIOs(); err != nil {
		b.logger.Warnw("error closing GPIO lines during reconfigure", "error", err)
	}
	b.i2cs = newConf.I2Cs
	b.usePeriphGPIO = newConf.UsePeriphGPIO
	b.gpioChip = newConf.gpioChip()
	return nil
}

// I2CByName returns the bus configured under name, or the host bus of that name or number.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	if name == "" {
		return nil, false
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return &i2cBus{name: board.I2CBusName(b.i2cs, name)}, true
}

// GPIOPinByName returns the pin with the given name. Character device pins are named by their
// line offset on the configured chip.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.usePeriphGPIO {
		pin := gpioreg.ByName(name)
		if pin == nil {
			return nil, errors.Errorf("no global pin found for %q", name)
		}
		return &periphGPIOPin{pin: pin}, nil
	}

	if pin, ok := b.gpios[name]; ok {
		return pin, nil
	}
	offset, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return nil, errors.Errorf("cannot find GPIO for unknown pin: %s", name)
	}
	pin := newGPIOPin(b.gpioChip, uint32(offset), b.logger)
	b.gpios[name] = pin
	return pin, nil
}

func (b *Board) closeGPIOs() error {
	var err error
	for _, pin := range b.gpios {
		err = multierr.Combine(err, pin.Close())
	}
	b.gpios = map[string]*gpioPin{}
	return err
}

// Close releases every open GPIO line.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closeGPIOs()
}
