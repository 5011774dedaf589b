// Package fake implements a fake tare-aware Sensor that reports a configured value.
package fake

import (
	"context"
	"sync"

	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
)

// Model is the model triplet of the fake sensor.
var Model = resource.DefaultModelFamily.WithModel("fake")

const defaultValue = 1.0

// Config describes the value the fake sensor reports.
type Config struct {
	Value *float64 `json:"value,omitempty"`
}

// Validate accepts any value.
func (conf *Config) Validate(path string) ([]string, error) {
	return nil, nil
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
				return NewSensor(ctx, deps, conf, logger)
			},
		})
}

// NewSensor returns a fake sensor.
func NewSensor(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (*Sensor, error) {
	s := &Sensor{Named: conf.ResourceName().AsNamed(), logger: logger}
	if err := s.Reconfigure(ctx, deps, conf); err != nil {
		return nil, err
	}
	return s, nil
}

// Sensor is a fake Sensor device that always returns the set value minus its tare offset.
type Sensor struct {
	resource.Named
	resource.TriviallyCloseable

	mu     sync.Mutex
	logger logging.Logger
	value  float64
	tare   *sensor.TareState
}

// Reconfigure replaces the reported value and zeroes the offset.
func (s *Sensor) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.value = defaultValue
	if newConf.Value != nil {
		s.value = *newConf.Value
	}
	s.tare = sensor.NewTareState("value")
	return nil
}

// Readings returns the value relative to the tare offset.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logger.CDebugw(ctx, "fake readings", "value", s.value)
	return map[string]interface{}{
		"value":        s.value - s.tare.Get("value"),
		"value_offset": s.tare.Get("value"),
	}, nil
}

// Tare stores the current value as the offset.
func (s *Sensor) Tare(ctx context.Context) (map[string]float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tare.Set(map[string]float64{"value": s.value})
	s.logger.Infow("tare set", "value_offset", s.value)
	return map[string]float64{"value_offset": s.value}, nil
}

// ResetTare zeroes the offset.
func (s *Sensor) ResetTare(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tare.Reset()
	return nil
}

// DoCommand runs tare commands.
func (s *Sensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return sensor.DoTareCommand(ctx, s, cmd)
}
