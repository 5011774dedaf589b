package bmp085

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/testutils/inject"
	"github.com/edss/rocket-sensors/units"
	"github.com/edss/rocket-sensors/utils"
)

// The worked example from the datasheet.
var datasheetCalibration = Calibration{
	AC1: 408, AC2: -72, AC3: -14383,
	AC4: 32741, AC5: 32757, AC6: 23153,
	B1: 6190, B2: 4,
	MB: -32768, MC: -8711, MD: 2868,
}

const (
	datasheetUT = 27898
	datasheetUP = 23843
)

func calibrationBytes(c Calibration) []byte {
	out := make([]byte, 0, calibrationLen)
	for _, w := range []uint16{
		uint16(c.AC1), uint16(c.AC2), uint16(c.AC3),
		c.AC4, c.AC5, c.AC6,
		uint16(c.B1), uint16(c.B2),
		uint16(c.MB), uint16(c.MC), uint16(c.MD),
	} {
		out = binary.BigEndian.AppendUint16(out, w)
	}
	return out
}

type fakeBMP struct {
	chipID  byte
	cal     []byte
	ut, up  uint32
	control byte
	readErr error
	opens   int
	closes  int
}

func newFakeBMP() *fakeBMP {
	return &fakeBMP{
		chipID: expectedChipID,
		cal:    calibrationBytes(datasheetCalibration),
		ut:     datasheetUT,
		up:     datasheetUP,
	}
}

func (f *fakeBMP) board() *inject.Board {
	b := inject.NewBoard(board.DefaultName)
	b.I2CByNameFunc = func(name string) (board.I2C, bool) {
		return &inject.I2C{OpenHandleFunc: func(addr byte) (board.I2CHandle, error) {
			if addr != defaultI2CAddress {
				return nil, errors.Errorf("nothing at %#x", addr)
			}
			f.opens++
			return &inject.I2CHandle{
				ReadByteDataFunc: func(ctx context.Context, register byte) (byte, error) {
					return f.chipID, nil
				},
				WriteByteDataFunc: func(ctx context.Context, register, data byte) error {
					f.control = data
					return nil
				},
				ReadBlockDataFunc: func(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
					if f.readErr != nil {
						err := f.readErr
						f.readErr = nil
						return nil, err
					}
					switch {
					case register == calibrationReg:
						return f.cal, nil
					case f.control == readTemperatureCmd:
						return binary.BigEndian.AppendUint16(nil, uint16(f.ut)), nil
					default:
						oss := uint(f.control-readPressureCmd) >> 6
						v := f.up << (8 - oss)
						return []byte{byte(v >> 16), byte(v >> 8), byte(v)}, nil
					}
				},
				CloseFunc: func() error {
					f.closes++
					return nil
				},
			}, nil
		}}, true
	}
	return b
}

func newTestBarometer(t *testing.T, f *fakeBMP, attrs utils.AttributeMap) *Barometer {
	t.Helper()
	conf := resource.Config{Name: "baro", API: sensor.API, Model: Model, Attributes: attrs}
	_, err := conf.Validate("components.2")
	test.That(t, err, test.ShouldBeNil)
	b, err := NewBarometer(context.Background(), resource.Dependencies{board.Named(board.DefaultName): f.board()},
		conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return b
}

func TestCompensateDatasheetExample(t *testing.T) {
	cal, err := ParseCalibration(calibrationBytes(datasheetCalibration))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cal, test.ShouldResemble, datasheetCalibration)

	temp, p, err := cal.Compensate(datasheetUT, datasheetUP, 0)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, temp, test.ShouldEqual, int32(150))
	test.That(t, p, test.ShouldEqual, int32(69964))

	_, err = ParseCalibration(make([]byte, calibrationLen))
	test.That(t, err, test.ShouldNotBeNil)
	_, err = ParseCalibration(make([]byte, 4))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestAltitude(t *testing.T) {
	test.That(t, Altitude(101325, 101325), test.ShouldEqual, 0.0)
	// roughly 8.3 m per hPa near sea level
	test.That(t, Altitude(101325-1200, 101325), test.ShouldAlmostEqual, 100.0, 1.0)
	test.That(t, Altitude(90000, 101325), test.ShouldBeGreaterThan, Altitude(95000, 101325))
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		attrs    utils.AttributeMap
		expected string
	}{
		{utils.AttributeMap{"sea_level_pressure": 0.0}, "sea_level_pressure must be a positive number"},
		{utils.AttributeMap{"sea_level_pressure": -5.0, "units": "kelvin"}, "sea_level_pressure must be a positive number"},
		{utils.AttributeMap{"units": "kelvin"}, "units must be either 'metric' or 'imperial'"},
		{utils.AttributeMap{"oversampling": 4}, "oversampling must be between 0 and 3"},
		{utils.AttributeMap{"sea_level_pressure": "high"}, "sea_level_pressure"},
	} {
		conf := resource.Config{Name: "baro", API: sensor.API, Model: Model, Attributes: tc.attrs}
		_, err := conf.Validate("components.2")
		test.That(t, resource.IsConfigValidationError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
	}

	deps, err := (&Config{Board: "pi"}).Validate("path")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"pi"})
}

func TestReadings(t *testing.T) {
	ctx := context.Background()
	altitude := Altitude(69964, defaultSeaLevelPressure)

	t.Run("metric", func(t *testing.T) {
		f := newFakeBMP()
		b := newTestBarometer(t, f, utils.AttributeMap{"oversampling": 0})
		readings, err := b.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, readings, test.ShouldResemble, map[string]interface{}{
			"temperature - C":         15.0,
			"pressure - Pa":           69964.0,
			"altitude - m":            altitude,
			"sea_level_pressure - Pa": 101325.0,
			"raw_pressure - Pa":       69964.0,
			"raw_altitude - m":        altitude,
			"pressure_offset - Pa":    0.0,
			"altitude_offset - m":     0.0,
		})
		test.That(t, f.control, test.ShouldEqual, byte(readPressureCmd))
	})

	t.Run("imperial", func(t *testing.T) {
		f := newFakeBMP()
		b := newTestBarometer(t, f, utils.AttributeMap{"oversampling": 0, "units": "Imperial"})
		readings, err := b.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, readings, test.ShouldHaveLength, 8)
		test.That(t, readings["temperature - F"], test.ShouldAlmostEqual, 59.0)
		test.That(t, readings["pressure - inHg"], test.ShouldAlmostEqual, 69964*units.PaToInHg)
		test.That(t, readings["sea_level_pressure - inHg"], test.ShouldAlmostEqual, 29.92, 0.01)
		test.That(t, readings["altitude - ft"], test.ShouldAlmostEqual, altitude*units.MetersToFeet)
	})

	t.Run("oversampling", func(t *testing.T) {
		f := newFakeBMP()
		b := newTestBarometer(t, f, utils.AttributeMap{"oversampling": 3})
		_, err := b.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.control, test.ShouldEqual, byte(readPressureCmd+3<<6))
	})
}

func TestTare(t *testing.T) {
	ctx := context.Background()
	f := newFakeBMP()
	b := newTestBarometer(t, f, utils.AttributeMap{"oversampling": 0})

	offsets, err := b.Tare(ctx)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, offsets["pressure_offset"], test.ShouldEqual, 69964.0)
	test.That(t, offsets["altitude_offset"], test.ShouldAlmostEqual, Altitude(69964, defaultSeaLevelPressure))

	readings, err := b.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["pressure - Pa"], test.ShouldAlmostEqual, 0.0)
	test.That(t, readings["altitude - m"], test.ShouldAlmostEqual, 0.0)
	test.That(t, readings["pressure_offset - Pa"], test.ShouldEqual, 69964.0)
	test.That(t, readings["temperature - C"], test.ShouldEqual, 15.0)

	resp, err := b.DoCommand(ctx, map[string]interface{}{"reset_tare": true, "zero": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["reset_tare"], test.ShouldEqual, true)
	test.That(t, resp["zero"], test.ShouldResemble, map[string]interface{}{
		"error":              "Unknown command: zero",
		"available_commands": []interface{}{"tare", "reset_tare"},
	})
	test.That(t, f.opens, test.ShouldEqual, 1)

	readings, err = b.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["pressure - Pa"], test.ShouldEqual, 69964.0)
}

func TestFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong chip", func(t *testing.T) {
		f := newFakeBMP()
		f.chipID = 0x58
		b := newTestBarometer(t, f, nil)
		_, err := b.Readings(ctx, nil)
		var initErr *sensor.HardwareInitError
		test.That(t, errors.As(err, &initErr), test.ShouldBeTrue)
		test.That(t, f.closes, test.ShouldEqual, 1)
	})

	t.Run("nothing at address", func(t *testing.T) {
		f := newFakeBMP()
		b := newTestBarometer(t, f, utils.AttributeMap{"i2c_address": 0x76})
		_, err := b.Readings(ctx, nil)
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "nothing at 0x76")
	})

	t.Run("read failure reopens once", func(t *testing.T) {
		f := newFakeBMP()
		b := newTestBarometer(t, f, nil)
		_, err := b.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)

		f.readErr = errors.New("bus timeout")
		_, err = b.Tare(ctx)
		test.That(t, sensor.IsHardwareError(err), test.ShouldBeTrue)
		test.That(t, b.tare.Get(pressureOffset), test.ShouldEqual, 0.0)
		test.That(t, f.closes, test.ShouldEqual, 1)

		_, err = b.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.opens, test.ShouldEqual, 2)
		test.That(t, b.handle.Opens(), test.ShouldEqual, 2)
	})

	t.Run("temperature that divides by zero", func(t *testing.T) {
		// x1 + MD == 0 for the datasheet calibration
		_, _, err := datasheetCalibration.Compensate(20285, datasheetUP, 0)
		test.That(t, err, test.ShouldNotBeNil)

		f := newFakeBMP()
		b := newTestBarometer(t, f, nil)
		f.ut = 20285
		readings, err := b.Readings(ctx, nil)
		test.That(t, readings, test.ShouldBeNil)
		var readErr *sensor.HardwareReadError
		test.That(t, errors.As(err, &readErr), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "cannot be compensated")
		test.That(t, b.handle.IsOpen(), test.ShouldBeFalse)
		test.That(t, f.closes, test.ShouldEqual, 1)

		f.ut = datasheetUT
		_, err = b.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.opens, test.ShouldEqual, 2)
	})

	t.Run("canceled context", func(t *testing.T) {
		f := newFakeBMP()
		b := newTestBarometer(t, f, nil)
		cancelCtx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := b.Readings(cancelCtx, nil)
		test.That(t, errors.Is(err, context.Canceled), test.ShouldBeTrue)
		test.That(t, f.opens, test.ShouldEqual, 0)
	})
}
