package mpu6050

import (
	"context"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/utils"
)

// Register map.
const (
	sampleRateDivReg = 0x19
	gyroConfigReg    = 0x1B
	accelConfigReg   = 0x1C
	dataStartReg     = 0x3B
	pwrMgmt1Reg      = 0x6B
	whoAmIReg        = 0x75
)

const (
	expectedWhoAmI = 0x68
	sleepBit       = 1 << 6

	// ±4 g and ±500 °/s full scale.
	accelRange4G    = 0x08
	gyroRange500DPS = 0x08
	accelLSBPerG    = 8192.0
	gyroLSBPerDPS   = 65.5

	standardGravity = 9.80665

	// Gyroscope output rate with the digital low pass filter off.
	gyroOutputRateHz = 8000
	dataBlockLen     = 14
)

// Sample is one conversion of all three sensors.
type Sample struct {
	// Acceleration in m/s².
	Acceleration r3.Vector
	// AngularVelocity in rad/s.
	AngularVelocity r3.Vector
	// Temperature in °C.
	Temperature float64
}

// Driver owns an open I2C handle to an MPU-6050.
type Driver struct {
	handle board.I2CHandle
	logger logging.Logger
}

// NewDriver opens a handle at addr, checks WHO_AM_I, wakes the chip and sets the ranges and the
// sample rate divider.
func NewDriver(ctx context.Context, bus board.I2C, addr byte, sampleRate int, logger logging.Logger) (*Driver, error) {
	handle, err := bus.OpenHandle(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening I2C address %#x", addr)
	}
	d := &Driver{handle: handle, logger: logger}
	if err := d.init(ctx, sampleRate); err != nil {
		return nil, multierr.Combine(err, handle.Close())
	}
	return d, nil
}

func (d *Driver) init(ctx context.Context, sampleRate int) error {
	whoAmI, err := d.handle.ReadByteData(ctx, whoAmIReg)
	if err != nil {
		return errors.Wrap(err, "reading WHO_AM_I")
	}
	if whoAmI != expectedWhoAmI {
		return errors.Errorf("unexpected non-MPU6050 device: WHO_AM_I is %#x", whoAmI)
	}
	for _, w := range []struct {
		reg, val byte
	}{
		{pwrMgmt1Reg, 0},
		{accelConfigReg, accelRange4G},
		{gyroConfigReg, gyroRange500DPS},
		{sampleRateDivReg, sampleRateDivider(sampleRate)},
	} {
		if err := d.handle.WriteByteData(ctx, w.reg, w.val); err != nil {
			return errors.Wrapf(err, "writing register %#x", w.reg)
		}
	}
	return nil
}

// sampleRateDivider returns SMPLRT_DIV for the requested rate, clamped to the register range.
func sampleRateDivider(rateHz int) byte {
	if rateHz <= 0 {
		return 0
	}
	div := gyroOutputRateHz/rateHz - 1
	switch {
	case div < 0:
		return 0
	case div > 0xFF:
		return 0xFF
	default:
		return byte(div)
	}
}

// Read reads the 14-byte accel, temperature and gyro block.
func (d *Driver) Read(ctx context.Context) (Sample, error) {
	data, err := d.handle.ReadBlockData(ctx, dataStartReg, dataBlockLen)
	if err != nil {
		return Sample{}, err
	}
	if len(data) != dataBlockLen {
		return Sample{}, errors.Errorf("expected %d bytes from MPU6050, got %d", dataBlockLen, len(data))
	}
	return decodeSample(data), nil
}

func decodeSample(data []byte) Sample {
	axis := func(i int) float64 {
		return float64(utils.Int16FromBytesBE(data[i : i+2]))
	}
	accel := func(i int) float64 {
		return axis(i) / accelLSBPerG * standardGravity
	}
	gyro := func(i int) float64 {
		return utils.DegToRad(axis(i) / gyroLSBPerDPS)
	}
	return Sample{
		Acceleration:    r3.Vector{X: accel(0), Y: accel(2), Z: accel(4)},
		Temperature:     axis(6)/340.0 + 36.53,
		AngularVelocity: r3.Vector{X: gyro(8), Y: gyro(10), Z: gyro(12)},
	}
}

// Close puts the chip to sleep and releases the bus.
func (d *Driver) Close() error {
	return multierr.Combine(
		d.handle.WriteByteData(context.Background(), pwrMgmt1Reg, sleepBit),
		d.handle.Close(),
	)
}
