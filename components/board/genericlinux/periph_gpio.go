package genericlinux

import (
	"context"

	"periph.io/x/conn/v3/gpio"
)

type periphGPIOPin struct {
	pin gpio.PinIO
}

func (gp *periphGPIOPin) Set(ctx context.Context, high bool, extra map[string]interface{}) error {
	l := gpio.Low
	if high {
		l = gpio.High
	}
	return gp.pin.Out(l)
}

func (gp *periphGPIOPin) Get(ctx context.Context, extra map[string]interface{}) (bool, error) {
	if err := gp.pin.In(gpio.PullNoChange, gpio.NoEdge); err != nil {
		return false, err
	}
	return gp.pin.Read() == gpio.High, nil
}
