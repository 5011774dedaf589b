// Package hx711 implements a load cell read through an HX711 24-bit ADC over bit-banged GPIO.
// datasheet: https://cdn.sparkfun.com/datasheets/Sensors/ForceFlex/hx711_english.pdf
package hx711

import (
	"context"
	"strconv"
	"sync"

	"github.com/montanaflynn/stats"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/units"
)

// Model is the load cell model triplet.
var Model = sensor.ModelFamily.WithModel("loadcell")

const (
	defaultGain             = 64
	defaultDoutPin          = 5
	defaultSckPin           = 6
	defaultNumberOfReadings = 3

	minPin         = 1
	maxPin         = 40
	maxNumReadings = 100

	rawOffsetName = "raw"
)

// Config is used for converting load cell attributes. Unset fields take their defaults.
type Config struct {
	Board            string   `json:"board,omitempty"`
	Gain             *int     `json:"gain,omitempty"`
	DoutPin          *int     `json:"doutPin,omitempty"`
	SckPin           *int     `json:"sckPin,omitempty"`
	NumberOfReadings *int     `json:"numberOfReadings,omitempty"`
	TareOffset       *float64 `json:"tare_offset,omitempty"`
}

// settings is a Config with defaults applied.
type settings struct {
	board            string
	gain             int
	doutPin          int
	sckPin           int
	numberOfReadings int
	tareOffset       float64
}

func intOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}

func (conf *Config) settings() settings {
	s := settings{
		board:            conf.Board,
		gain:             intOr(conf.Gain, defaultGain),
		doutPin:          intOr(conf.DoutPin, defaultDoutPin),
		sckPin:           intOr(conf.SckPin, defaultSckPin),
		numberOfReadings: intOr(conf.NumberOfReadings, defaultNumberOfReadings),
	}
	if s.board == "" {
		s.board = board.DefaultName
	}
	if conf.TareOffset != nil {
		s.tareOffset = *conf.TareOffset
	}
	return s
}

// Validate reports every invalid attribute at once and returns the board as a dependency.
func (conf *Config) Validate(path string) ([]string, error) {
	s := conf.settings()
	var errs error
	if _, ok := gainPulses[s.gain]; !ok {
		errs = multierr.Append(errs, errors.New("Gain must be 32, 64, or 128."))
	}
	if s.doutPin < minPin || s.doutPin > maxPin {
		errs = multierr.Append(errs, errors.New("Data Out pin must be a valid GPIO pin number (1-40)."))
	}
	if s.sckPin < minPin || s.sckPin > maxPin {
		errs = multierr.Append(errs, errors.New("Clock pin must be a valid GPIO pin number (1-40)."))
	}
	if s.numberOfReadings < 1 || s.numberOfReadings >= maxNumReadings {
		errs = multierr.Append(errs, errors.New("Number of readings must be a positive integer less than 100."))
	}
	if s.tareOffset > 0 {
		errs = multierr.Append(errs, errors.New("Tare offset must be a non-positive floating point value (≤ 0.0)."))
	}
	if errs != nil {
		return nil, resource.NewConfigValidationError(path, errs)
	}
	return []string{s.board}, nil
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
				return NewLoadCell(ctx, deps, conf, logger)
			},
		})
}

// LoadCell reports weight in kilograms relative to a tared raw offset.
type LoadCell struct {
	resource.Named

	mu       sync.Mutex
	logger   logging.Logger
	settings settings
	handle   *sensor.Handle[*Driver]
	tare     *sensor.TareState
}

// NewLoadCell returns a load cell whose hardware is opened on first use.
func NewLoadCell(
	ctx context.Context,
	deps resource.Dependencies,
	conf resource.Config,
	logger logging.Logger,
) (*LoadCell, error) {
	lc := &LoadCell{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
	}
	if err := lc.Reconfigure(ctx, deps, conf); err != nil {
		return nil, err
	}
	return lc, nil
}

// Reconfigure replaces the settings, drops the open device and re-seeds the tare offset from
// tare_offset.
func (lc *LoadCell) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	s := newConf.settings()
	b, err := board.FromDependencies(deps, s.board)
	if err != nil {
		return err
	}

	lc.mu.Lock()
	defer lc.mu.Unlock()
	if lc.handle != nil {
		if err := lc.handle.Close(); err != nil {
			lc.logger.Warnw("error closing load cell during reconfigure", "error", err)
		}
	}
	lc.settings = s
	lc.handle = sensor.NewHandle(lc.opener(b, s), lc.logger)
	lc.tare = sensor.NewTareState(rawOffsetName)
	lc.tare.Set(map[string]float64{rawOffsetName: s.tareOffset})
	return nil
}

func (lc *LoadCell) opener(b board.Board, s settings) sensor.Opener[*Driver] {
	return func(ctx context.Context) (*Driver, error) {
		dout, err := b.GPIOPinByName(strconv.Itoa(s.doutPin))
		if err != nil {
			return nil, errors.Wrap(err, "data out pin")
		}
		sck, err := b.GPIOPinByName(strconv.Itoa(s.sckPin))
		if err != nil {
			return nil, errors.Wrap(err, "clock pin")
		}
		return NewDriver(ctx, dout, sck, s.gain, lc.logger)
	}
}

func (lc *LoadCell) sample(ctx context.Context) ([]float64, error) {
	var raw []float64
	err := lc.handle.Use(ctx, func(ctx context.Context, d *Driver) error {
		var err error
		raw, err = d.Sample(ctx, lc.settings.numberOfReadings)
		return err
	})
	return raw, err
}

// Readings returns the per-sample weights and their mean, in kilograms, along with the settings.
func (lc *LoadCell) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	raw, err := lc.sample(ctx)
	if err != nil {
		lc.logger.Errorw("error reading load cell", "error", err)
		return nil, err
	}
	offset := lc.tare.Get(rawOffsetName)
	measures := make([]float64, len(raw))
	for i, m := range raw {
		measures[i] = units.RawToKilograms(m - offset)
	}
	weight, err := stats.Mean(measures)
	if err != nil {
		return nil, err
	}

	return map[string]interface{}{
		"doutPin":          lc.settings.doutPin,
		"sckPin":           lc.settings.sckPin,
		"gain":             lc.settings.gain,
		"numberOfReadings": lc.settings.numberOfReadings,
		"tare_offset":      units.RawToKilograms(offset),
		"measures":         measures,
		"weight":           weight,
	}, nil
}

// Tare stores the mean of numberOfReadings raw samples as the offset.
func (lc *LoadCell) Tare(ctx context.Context) (map[string]float64, error) {
	lc.mu.Lock()
	defer lc.mu.Unlock()

	raw, err := lc.sample(ctx)
	if err != nil {
		lc.logger.Errorw("error taring load cell", "error", err)
		return nil, err
	}
	mean, err := stats.Mean(raw)
	if err != nil {
		return nil, err
	}
	lc.tare.Set(map[string]float64{rawOffsetName: mean})
	lc.logger.Infow("load cell tared", "raw_offset", mean)
	return map[string]float64{"tare_offset": units.RawToKilograms(mean)}, nil
}

// ResetTare zeroes the offset.
func (lc *LoadCell) ResetTare(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	lc.tare.Reset()
	lc.logger.Info("load cell tare reset")
	return nil
}

// DoCommand runs tare and reset_tare.
func (lc *LoadCell) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return sensor.DoTareCommand(ctx, lc, cmd)
}

// Close powers the chip down.
func (lc *LoadCell) Close(ctx context.Context) error {
	lc.mu.Lock()
	defer lc.mu.Unlock()
	return lc.handle.Close()
}
