// Package robot defines the set of configured components a process serves, and helpers for
// finding sensors in it.
package robot

import (
	"context"
	"sort"

	"github.com/samber/lo"

	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/config"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/utils"
)

// A Robot holds the built resources of one config.
type Robot interface {
	// ResourceNames returns the names of every built resource.
	ResourceNames() []resource.Name

	// ResourceByName returns the built resource with the given name.
	ResourceByName(name resource.Name) (resource.Resource, error)

	// Reconfigure applies a new config: removed resources are closed, changed ones reconfigured in
	// place or rebuilt and new ones built.
	Reconfigure(ctx context.Context, cfg *config.Config) error

	// Config returns the config last applied.
	Config() *config.Config

	// Logger returns the logger the robot hands sublogs of to its resources.
	Logger() logging.Logger

	// Close closes every resource, dependents first.
	Close(ctx context.Context) error
}

// SensorNames returns the sorted short names of every sensor.
func SensorNames(r Robot) []string {
	names := lo.FilterMap(r.ResourceNames(), func(n resource.Name, _ int) (string, bool) {
		return n.ShortName(), n.API == sensor.API
	})
	sort.Strings(names)
	return names
}

// SensorByName returns the sensor with the given short name.
func SensorByName(r Robot, name string) (sensor.Sensor, error) {
	res, err := r.ResourceByName(sensor.Named(name))
	if err != nil {
		return nil, err
	}
	return utils.AssertType[sensor.Sensor](res)
}
