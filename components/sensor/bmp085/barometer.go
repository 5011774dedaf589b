// Package bmp085 implements a tare-compensated barometer on a Bosch BMP085 (or pin compatible
// BMP180) pressure and temperature sensor.
// datasheet: https://www.sparkfun.com/datasheets/Components/General/BST-BMP085-DS000-05.pdf
package bmp085

import (
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/units"
)

// Model is the barometer model triplet.
var Model = sensor.ModelFamily.WithModel("bmp-sensor")

const (
	defaultI2CAddress       = 0x77
	defaultI2CBus           = "1"
	defaultSeaLevelPressure = 101325.0
	defaultOversampling     = 1

	pressureOffset = "pressure"
	altitudeOffset = "altitude"
)

// Config is used for converting barometer attributes.
type Config struct {
	Board            string   `json:"board,omitempty"`
	I2CBus           string   `json:"i2c_bus,omitempty"`
	I2CAddress       *int     `json:"i2c_address,omitempty"`
	SeaLevelPressure *float64 `json:"sea_level_pressure,omitempty"`
	Units            *string  `json:"units,omitempty"`
	Oversampling     *int     `json:"oversampling,omitempty"`
}

type settings struct {
	board            string
	i2cBus           string
	i2cAddress       int
	seaLevelPressure float64
	units            units.System
	oversampling     int
}

// Validate stops at the first invalid attribute and returns the board as a dependency.
func (conf *Config) Validate(path string) ([]string, error) {
	s, err := conf.settings()
	if err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	return []string{s.board}, nil
}

func (conf *Config) settings() (settings, error) {
	s := settings{
		board:            conf.Board,
		i2cBus:           conf.I2CBus,
		i2cAddress:       defaultI2CAddress,
		seaLevelPressure: defaultSeaLevelPressure,
		oversampling:     defaultOversampling,
	}
	if s.board == "" {
		s.board = board.DefaultName
	}
	if s.i2cBus == "" {
		s.i2cBus = defaultI2CBus
	}
	if conf.SeaLevelPressure != nil {
		s.seaLevelPressure = *conf.SeaLevelPressure
		if s.seaLevelPressure <= 0 {
			return s, errors.New("sea_level_pressure must be a positive number")
		}
	}
	if conf.Units != nil {
		sys, err := units.ParseSystem(*conf.Units)
		if err != nil {
			return s, errors.New("units must be either 'metric' or 'imperial'")
		}
		s.units = sys
	}
	if conf.I2CAddress != nil {
		s.i2cAddress = *conf.I2CAddress
		if s.i2cAddress < 0x08 || s.i2cAddress > 0x77 {
			return s, errors.New("i2c_address must be a valid I2C address (0x08-0x77)")
		}
	}
	if conf.Oversampling != nil {
		s.oversampling = *conf.Oversampling
		if s.oversampling < 0 || s.oversampling > MaxOversampling {
			return s, errors.Errorf("oversampling must be between 0 and %d", MaxOversampling)
		}
	}
	return s, nil
}

func init() {
	resource.RegisterComponent(
		sensor.API,
		Model,
		resource.Registration[sensor.Sensor, *Config]{
			Constructor: func(
				ctx context.Context,
				deps resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (sensor.Sensor, error) {
				return NewBarometer(ctx, deps, conf, logger)
			},
		})
}

// Barometer reports temperature, pressure and altitude with tared pressure and altitude offsets.
type Barometer struct {
	resource.Named

	mu       sync.Mutex
	logger   logging.Logger
	settings settings
	handle   *sensor.Handle[*Driver]
	tare     *sensor.TareState
}

// NewBarometer returns a barometer whose chip is opened on first use.
func NewBarometer(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (*Barometer, error) {
	b := &Barometer{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
	}
	if err := b.Reconfigure(ctx, deps, conf); err != nil {
		return nil, err
	}
	return b, nil
}

// Reconfigure replaces the settings, drops the open device and zeroes the offsets.
func (b *Barometer) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	s, err := newConf.settings()
	if err != nil {
		return err
	}
	brd, err := board.FromDependencies(deps, s.board)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.handle != nil {
		if err := b.handle.Close(); err != nil {
			b.logger.Warnw("error closing barometer during reconfigure", "error", err)
		}
	}
	b.settings = s
	b.handle = sensor.NewHandle(b.opener(brd, s), b.logger)
	b.tare = sensor.NewTareState(pressureOffset, altitudeOffset)
	return nil
}

func (b *Barometer) opener(brd board.Board, s settings) sensor.Opener[*Driver] {
	return func(ctx context.Context) (*Driver, error) {
		bus, ok := brd.I2CByName(s.i2cBus)
		if !ok {
			return nil, errors.Errorf("can't find I2C bus %q for BMP085 sensor", s.i2cBus)
		}
		return NewDriver(ctx, bus, byte(s.i2cAddress), uint(s.oversampling), b.logger)
	}
}

// sample returns temperature in °C, pressure in Pa and altitude in m.
func (b *Barometer) sample(ctx context.Context) (float64, float64, float64, error) {
	var s Sample
	err := b.handle.Use(ctx, func(ctx context.Context, d *Driver) error {
		var err error
		s, err = d.Read(ctx)
		return err
	})
	if err != nil {
		return 0, 0, 0, err
	}
	return s.Temperature, s.Pressure, Altitude(s.Pressure, b.settings.seaLevelPressure), nil
}

// Readings returns temperature, tared pressure and altitude, and the raw values and offsets they
// were derived from, in the configured unit system.
func (b *Barometer) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	temp, rawPressure, rawAltitude, err := b.sample(ctx)
	if err != nil {
		b.logger.Errorw("error reading barometer", "error", err)
		return nil, err
	}
	pOffset, aOffset := b.tare.Get(pressureOffset), b.tare.Get(altitudeOffset)

	sys := b.settings.units
	readings := make(map[string]interface{}, 8)
	put := func(name string, q units.Quantity, metric float64) {
		v, _ := units.Convert(q, metric, sys)
		readings[units.Key(name, q, sys)] = v
	}
	put("temperature", units.Temperature, temp)
	put("pressure", units.Pressure, rawPressure-pOffset)
	put("altitude", units.Altitude, rawAltitude-aOffset)
	put("sea_level_pressure", units.Pressure, b.settings.seaLevelPressure)
	put("raw_pressure", units.Pressure, rawPressure)
	put("raw_altitude", units.Altitude, rawAltitude)
	put("pressure_offset", units.Pressure, pOffset)
	put("altitude_offset", units.Altitude, aOffset)
	return readings, nil
}

// Tare stores the current pressure and altitude as the offsets.
func (b *Barometer) Tare(ctx context.Context) (map[string]float64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	_, pressure, altitude, err := b.sample(ctx)
	if err != nil {
		b.logger.Errorw("error taring barometer", "error", err)
		return nil, err
	}
	b.tare.Set(map[string]float64{pressureOffset: pressure, altitudeOffset: altitude})
	b.logger.Infow("barometer tared", "pressure_baseline_pa", pressure, "altitude_baseline_m", altitude)
	return map[string]float64{
		"pressure_offset": pressure,
		"altitude_offset": altitude,
	}, nil
}

// ResetTare zeroes the offsets.
func (b *Barometer) ResetTare(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tare.Reset()
	b.logger.Info("barometer tare reset")
	return nil
}

// DoCommand runs tare and reset_tare.
func (b *Barometer) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return sensor.DoTareCommand(ctx, b, cmd)
}

// Close releases the bus.
func (b *Barometer) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.handle.Close()
}
