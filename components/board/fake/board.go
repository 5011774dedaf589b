// Package fake implements an in-memory board. GPIO pins hold the last level set on them and every
// I2C device is a 256 byte register file that tests can seed.
package fake

import (
	"context"
	"fmt"
	"sync"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
)

// A Config describes the configuration of a fake board.
type Config struct {
	I2Cs    []board.I2CConfig `json:"i2cs,omitempty"`
	FailNew bool              `json:"fail_new"`
}

// Validate ensures all parts of the config are valid.
func (conf *Config) Validate(path string) ([]string, error) {
	for idx, c := range conf.I2Cs {
		if err := c.Validate(fmt.Sprintf("%s.%s.%d", path, "i2cs", idx)); err != nil {
			return nil, err
		}
	}
	if conf.FailNew {
		return nil, errors.New("whoops")
	}
	return nil, nil
}

// Model is the fake board model.
var Model = resource.DefaultModelFamily.WithModel("fake")

func init() {
	resource.RegisterComponent(
		board.API,
		Model,
		resource.Registration[board.Board, *Config]{
			Constructor: func(
				ctx context.Context,
				_ resource.Dependencies,
				cfg resource.Config,
				logger logging.Logger,
			) (board.Board, error) {
				return NewBoard(ctx, cfg, logger)
			},
		})
}

// NewBoard returns a new fake board.
func NewBoard(ctx context.Context, conf resource.Config, logger logging.Logger) (*Board, error) {
	b := &Board{
		Named:    conf.ResourceName().AsNamed(),
		I2Cs:     map[string]*I2C{},
		GPIOPins: map[string]*GPIOPin{},
		logger:   logger,
	}
	if err := b.Reconfigure(ctx, nil, conf); err != nil {
		return nil, err
	}
	return b, nil
}

// A Board provides in-memory pins and buses.
type Board struct {
	resource.Named

	mu         sync.Mutex
	i2cNames   []board.I2CConfig
	I2Cs       map[string]*I2C
	GPIOPins   map[string]*GPIOPin
	logger     logging.Logger
	CloseCount int
}

// Reconfigure replaces the bus names. Bus contents and pin levels survive.
func (b *Board) Reconfigure(ctx context.Context, _ resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.i2cNames = newConf.I2Cs
	return nil
}

// I2CByName returns the bus for name, creating it on first use.
func (b *Board) I2CByName(name string) (board.I2C, bool) {
	if name == "" {
		return nil, false
	}
	return b.I2C(name), true
}

// I2C returns the in-memory bus that name resolves to.
func (b *Board) I2C(name string) *I2C {
	b.mu.Lock()
	defer b.mu.Unlock()
	bus := board.I2CBusName(b.i2cNames, name)
	i, ok := b.I2Cs[bus]
	if !ok {
		i = &I2C{devices: map[byte]*Device{}}
		b.I2Cs[bus] = i
	}
	return i
}

// GPIOPinByName returns the GPIO pin by the given name, creating it on first use.
func (b *Board) GPIOPinByName(name string) (board.GPIOPin, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	p, ok := b.GPIOPins[name]
	if !ok {
		p = &GPIOPin{}
		b.GPIOPins[name] = p
	}
	return p, nil
}

// Close counts closes.
func (b *Board) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.CloseCount++
	return nil
}

// A GPIOPin reads back the last level set on it.
type GPIOPin struct {
	mu   sync.Mutex
	high bool
}

// Set sets the level.
func (gp *GPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	gp.high = high
	return nil
}

// Get returns the last level set.
func (gp *GPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	gp.mu.Lock()
	defer gp.mu.Unlock()
	return gp.high, nil
}
