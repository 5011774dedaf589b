package inject

import (
	"context"

	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/resource"
)

// Sensor is an injected sensor.
type Sensor struct {
	sensor.Sensor
	name            resource.Name
	ReconfigureFunc func(ctx context.Context, deps resource.Dependencies, conf resource.Config) error
	DoFunc          func(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
	ReadingsFunc    func(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
	TareFunc        func(ctx context.Context) (map[string]float64, error)
	ResetTareFunc   func(ctx context.Context) error
	CloseFunc       func(ctx context.Context) error
}

// NewSensor returns a new injected sensor.
func NewSensor(name string) *Sensor {
	return &Sensor{name: sensor.Named(name)}
}

// Name returns the name of the resource.
func (s *Sensor) Name() resource.Name {
	return s.name
}

// Reconfigure calls the injected Reconfigure or accepts any config.
func (s *Sensor) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	if s.ReconfigureFunc == nil {
		return nil
	}
	return s.ReconfigureFunc(ctx, deps, conf)
}

// Readings calls the injected Readings or the real version.
func (s *Sensor) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	if s.ReadingsFunc == nil {
		return s.Sensor.Readings(ctx, extra)
	}
	return s.ReadingsFunc(ctx, extra)
}

// Tare calls the injected Tare.
func (s *Sensor) Tare(ctx context.Context) (map[string]float64, error) {
	if s.TareFunc == nil {
		return s.Sensor.(sensor.Tarer).Tare(ctx)
	}
	return s.TareFunc(ctx)
}

// ResetTare calls the injected ResetTare.
func (s *Sensor) ResetTare(ctx context.Context) error {
	if s.ResetTareFunc == nil {
		return s.Sensor.(sensor.Tarer).ResetTare(ctx)
	}
	return s.ResetTareFunc(ctx)
}

// DoCommand calls the injected DoCommand, or runs tare commands against the injected tare funcs.
func (s *Sensor) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	if s.DoFunc == nil {
		return sensor.DoTareCommand(ctx, s, cmd)
	}
	return s.DoFunc(ctx, cmd)
}

// Close calls the injected Close or returns nil.
func (s *Sensor) Close(ctx context.Context) error {
	if s.CloseFunc == nil {
		return nil
	}
	return s.CloseFunc(ctx)
}
