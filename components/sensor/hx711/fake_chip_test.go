package hx711

import (
	"context"
	"sync"

	"github.com/edss/rocket-sensors/testutils/inject"
)

// fakeChip simulates the HX711 serial protocol on two injected pins. A conversion starts when
// DOUT is sampled low and ends on the falling edge of the last gain pulse.
type fakeChip struct {
	mu sync.Mutex

	values     []int32
	gainPulses int
	notReady   bool
	getErr     error

	reading     bool
	rises       int
	sckHigh     bool
	conversions int
	strayRises  int
}

func newFakeChip(gain int, values ...int32) *fakeChip {
	return &fakeChip{values: values, gainPulses: gainPulses[gain]}
}

func (c *fakeChip) current() uint32 {
	return uint32(c.values[c.conversions%len(c.values)]) & 0xFFFFFF
}

func (c *fakeChip) dout() *inject.GPIOPin {
	return &inject.GPIOPin{
		GetFunc: func(ctx context.Context, extra map[string]interface{}) (bool, error) {
			c.mu.Lock()
			defer c.mu.Unlock()
			if c.getErr != nil {
				err := c.getErr
				c.getErr = nil
				return false, err
			}
			if !c.reading {
				if c.notReady {
					return true, nil
				}
				c.reading = true
				return false, nil
			}
			if c.rises < 1 || c.rises > dataBits {
				return true, nil
			}
			return (c.current()>>(dataBits-c.rises))&1 == 1, nil
		},
	}
}

func (c *fakeChip) sck() *inject.GPIOPin {
	return &inject.GPIOPin{
		SetFunc: func(ctx context.Context, high bool, extra map[string]interface{}) error {
			c.mu.Lock()
			defer c.mu.Unlock()
			switch {
			case high && !c.sckHigh:
				if c.reading {
					c.rises++
				} else {
					c.strayRises++
				}
			case !high && c.sckHigh && c.reading && c.rises == dataBits+c.gainPulses:
				c.reading = false
				c.rises = 0
				c.conversions++
			}
			c.sckHigh = high
			return nil
		},
	}
}
