//go:build linux

package pi

import (
	"context"
	"strconv"
	"sync"

	"github.com/kidoman/embd"
	// registers the Raspberry Pi host with embd.
	_ "github.com/kidoman/embd/host/rpi"
	"github.com/pkg/errors"
	"github.com/stianeikeland/go-rpio/v4"
	"go.uber.org/multierr"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
)

// Model is the Raspberry Pi board model.
var Model = resource.DefaultModelFamily.WithModel("pi")

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

// Board is a Raspberry Pi. The GPIO memory map and the I2C driver are opened on first use.
type Board struct {
	resource.Named

	mu       sync.Mutex
	logger   logging.Logger
	i2cs     []board.I2CConfig
	gpioOpen bool
	i2cOpen  bool
	pins     map[int]*gpioPin
}

// NewBoard returns a Pi board configured by conf.
func NewBoard(ctx context.Context, conf resource.Config, logger logging.Logger) (*Board, error) {
	b := &Board{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
		pins:   map[int]*gpioPin{},
	}
	if err := b.Reconfigure(ctx, nil, conf); err != nil {
		return nil, err
	}
	return b, nil
}

// Reconfigure replaces the bus names.
func (b *Board) Reconfigure(ctx context.Context, _ resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.i2cs = newConf.I2Cs
	return nil
}

// I2CByName returns the bus configured under name, or the bus with that number.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	n, err := busNumber(board.I2CBusName(b.i2cs, name))
	if err != nil {
		return nil, false
	}
	return &i2cBus{board: b, number: n}, true
}

func (b *Board) openI2C() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.i2cOpen {
		return nil
	}
	// embd panics on a failed implicit init, so initialize explicitly.
	if err := embd.InitI2C(); err != nil {
		return errors.Wrap(err, "initializing embd i2c driver")
	}
	b.i2cOpen = true
	return nil
}

// GPIOPinByName returns the pin with the given BCM number.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	bcm, err := strconv.Atoi(name)
	if err != nil || bcm < 0 || bcm > 27 {
		return nil, errors.Errorf("no BCM pin named %q", name)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.gpioOpen {
		if err := rpio.Open(); err != nil {
			return nil, errors.Wrap(err, "opening gpio memory")
		}
		b.gpioOpen = true
	}
	if pin, ok := b.pins[bcm]; ok {
		return pin, nil
	}
	pin := &gpioPin{pin: rpio.Pin(bcm)}
	b.pins[bcm] = pin
	return pin, nil
}

// Close unmaps the GPIO memory and closes the I2C driver if either was opened.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	var err error
	if b.gpioOpen {
		err = multierr.Combine(err, rpio.Close())
		b.gpioOpen = false
		b.pins = map[int]*gpioPin{}
	}
	if b.i2cOpen {
		err = multierr.Combine(err, embd.CloseI2C())
		b.i2cOpen = false
	}
	return err
}

// gpioPin tracks the direction so Set and Get only switch modes when needed.
type gpioPin struct {
	mu     sync.Mutex
	pin    rpio.Pin
	output bool
	input  bool
}

func (gp *gpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if !gp.output {
		gp.pin.Output()
		gp.output, gp.input = true, false
	}
	if high {
		gp.pin.High()
	} else {
		gp.pin.Low()
	}
	return nil
}

func (gp *gpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	if !gp.input {
		gp.pin.Input()
		gp.output, gp.input = false, true
	}
	return gp.pin.Read() == rpio.High, nil
}
