//go:build !linux

package genericlinux

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/logging"
)

var errGPIOUnsupported = errors.New("GPIO character devices are only supported on Linux")

// gpioPin is a stand-in so the package builds on other platforms. Every operation fails.
type gpioPin struct{}

func newGPIOPin(devicePath string, offset uint32, logger logging.Logger) *gpioPin {
	return &gpioPin{}
}

func (pin *gpioPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	return errGPIOUnsupported
}

func (pin *gpioPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	return false, errGPIOUnsupported
}

func (pin *gpioPin) Close() error {
	return nil
}
