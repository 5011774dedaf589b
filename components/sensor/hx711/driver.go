package hx711

import (
	"context"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/utils"
)

const (
	dataBits = 24

	// SCK held high this long powers the chip down.
	powerDownHold = 60 * time.Microsecond

	defaultReadyTimeout = time.Second
	readyPollInterval   = time.Millisecond
)

// gainPulses is the number of clock pulses after the 24 data bits that select channel A and the
// gain of the next conversion.
var gainPulses = map[int]int{
	128: 1,
	64:  3,
	32:  2,
}

// Driver talks to an HX711 over two GPIO pins: DOUT (data, input) and PD_SCK (clock, output).
type Driver struct {
	dout   board.GPIOPin
	sck    board.GPIOPin
	pulses int
	logger logging.Logger

	readyTimeout time.Duration
}

// NewDriver powers the chip up and performs one conversion so that the configured gain takes
// effect for every later read.
func NewDriver(ctx context.Context, dout, sck board.GPIOPin, gain int, logger logging.Logger) (*Driver, error) {
	pulses, ok := gainPulses[gain]
	if !ok {
		return nil, errors.Errorf("unsupported gain %d", gain)
	}
	d := &Driver{
		dout:         dout,
		sck:          sck,
		pulses:       pulses,
		logger:       logger,
		readyTimeout: defaultReadyTimeout,
	}
	if err := d.reset(ctx); err != nil {
		return nil, err
	}
	if _, err := d.ReadRaw(ctx); err != nil {
		return nil, errors.Wrap(err, "initial conversion")
	}
	return d, nil
}

func (d *Driver) reset(ctx context.Context) error {
	if err := d.sck.Set(ctx, true, nil); err != nil {
		return errors.Wrap(err, "powering down")
	}
	if !goutils.SelectContextOrWait(ctx, powerDownHold) {
		return ctx.Err()
	}
	return errors.Wrap(d.sck.Set(ctx, false, nil), "powering up")
}

// waitReady blocks until DOUT goes low, which signals that a conversion is ready.
func (d *Driver) waitReady(ctx context.Context) error {
	deadline := time.Now().Add(d.readyTimeout)
	for {
		high, err := d.dout.Get(ctx, nil)
		if err != nil {
			return errors.Wrap(err, "reading DOUT")
		}
		if !high {
			return nil
		}
		if time.Now().After(deadline) {
			return errors.Errorf("hx711 not ready after %v", d.readyTimeout)
		}
		if !goutils.SelectContextOrWait(ctx, readyPollInterval) {
			return ctx.Err()
		}
	}
}

func (d *Driver) pulse(ctx context.Context) error {
	if err := d.sck.Set(ctx, true, nil); err != nil {
		return err
	}
	return d.sck.Set(ctx, false, nil)
}

// ReadRaw clocks out one 24-bit two's complement conversion.
func (d *Driver) ReadRaw(ctx context.Context) (int32, error) {
	if err := d.waitReady(ctx); err != nil {
		return 0, err
	}
	var value uint32
	for i := 0; i < dataBits; i++ {
		if err := d.sck.Set(ctx, true, nil); err != nil {
			return 0, errors.Wrap(err, "clocking SCK")
		}
		bit, err := d.dout.Get(ctx, nil)
		if err != nil {
			return 0, errors.Wrap(err, "reading DOUT")
		}
		if err := d.sck.Set(ctx, false, nil); err != nil {
			return 0, errors.Wrap(err, "clocking SCK")
		}
		value <<= 1
		if bit {
			value |= 1
		}
	}
	for i := 0; i < d.pulses; i++ {
		if err := d.pulse(ctx); err != nil {
			return 0, errors.Wrap(err, "setting gain")
		}
	}
	return utils.SignExtend(value, dataBits), nil
}

// Sample reads n conversions.
func (d *Driver) Sample(ctx context.Context, n int) ([]float64, error) {
	out := make([]float64, 0, n)
	for i := 0; i < n; i++ {
		raw, err := d.ReadRaw(ctx)
		if err != nil {
			return nil, err
		}
		out = append(out, float64(raw))
	}
	d.logger.CDebugw(ctx, "hx711 samples", "raw", out)
	return out, nil
}

// Close powers the chip down.
func (d *Driver) Close() error {
	return d.sck.Set(context.Background(), true, nil)
}
