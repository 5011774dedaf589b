// Package sensor defines an abstract sensing device that can provide measurement readings, and the
// pieces shared by the tare-compensated sensor models: the hardware handle, tare offsets, commands
// and the hardware error taxonomy.
package sensor

import (
	"context"

	"github.com/edss/rocket-sensors/resource"
)

// SubtypeName is a constant that identifies the component resource API string "sensor".
const SubtypeName = "sensor"

// API is a variable that identifies the component resource API.
var API = resource.APIFromComponentSubtype(SubtypeName)

// ModelFamily is the family of the tare-compensated sensor models.
var ModelFamily = resource.NewModelFamily("edss", "rocket-sensors")

// Named is a helper for getting the named Sensor's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Sensor represents a general purpose sensors that can give arbitrary readings
// of some thing that it is sensing.
type Sensor interface {
	resource.Resource
	// Readings return data specific to the type of sensor and can be of any type.
	Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error)
}

// A Tarer is a sensor whose readings are reported relative to a stored baseline.
type Tarer interface {
	// Tare reads a fresh sample, stores it as the new baseline and returns the offsets in the
	// sensor's reporting form.
	Tare(ctx context.Context) (map[string]float64, error)
	// ResetTare zeroes every offset. It never touches the hardware.
	ResetTare(ctx context.Context) error
}

// FromDependencies is a helper for getting the named sensor from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Sensor, error) {
	return resource.FromDependencies[Sensor](deps, Named(name))
}
