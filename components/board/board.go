// Package board defines the interfaces to the buses and pins that sensor drivers talk through.
package board

import (
	"context"

	"github.com/edss/rocket-sensors/resource"
)

// SubtypeName is a constant that identifies the component resource API string "board".
const SubtypeName = "board"

// API is a variable that identifies the component resource API.
var API = resource.APIFromComponentSubtype(SubtypeName)

// DefaultName is the board sensors use when their config names none.
const DefaultName = "local"

// Named is a helper for getting the named board's typed resource name.
func Named(name string) resource.Name {
	return resource.NewName(API, name)
}

// A Board exposes the I2C buses and GPIO pins of a host.
type Board interface {
	resource.Resource

	// I2CByName returns the I2C bus with the given name, or false if there is none.
	I2CByName(name string) (I2C, bool)

	// GPIOPinByName returns a GPIOPin by name.
	GPIOPinByName(name string) (GPIOPin, error)
}

// A GPIOPin is a single digital line. Set drives it as an output and Get samples it as an input,
// switching the line's direction when needed; the HX711 driver clocks SCK with Set and polls DOUT
// with Get.
type GPIOPin interface {
	Set(ctx context.Context, high bool, extra map[string]interface{}) error
	Get(ctx context.Context, extra map[string]interface{}) (bool, error)
}

// FromDependencies is a helper for getting the named board from a collection of dependencies.
func FromDependencies(deps resource.Dependencies, name string) (Board, error) {
	return resource.FromDependencies[Board](deps, Named(name))
}
