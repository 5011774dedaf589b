package mpu6050

import (
	"context"
	"encoding/binary"
	"testing"

	"github.com/golang/geo/r3"
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

type fakeMPU struct {
	whoAmI   byte
	regs     map[byte]byte
	block    []byte
	readErr  error
	addrs    []byte
	closes   int
	busNames []string
}

func newFakeMPU() *fakeMPU {
	return &fakeMPU{whoAmI: expectedWhoAmI, regs: map[byte]byte{}, block: make([]byte, dataBlockLen)}
}

// setRaw stores the raw accel, temperature and gyro words the chip reports.
func (f *fakeMPU) setRaw(ax, ay, az, temp, gx, gy, gz int16) {
	for i, v := range []int16{ax, ay, az, temp, gx, gy, gz} {
		binary.BigEndian.PutUint16(f.block[2*i:], uint16(v))
	}
}

func (f *fakeMPU) board() *inject.Board {
	b := inject.NewBoard(board.DefaultName)
	b.I2CByNameFunc = func(name string) (board.I2C, bool) {
		f.busNames = append(f.busNames, name)
		if name != "1" {
			return nil, false
		}
		return &inject.I2C{OpenHandleFunc: func(addr byte) (board.I2CHandle, error) {
			f.addrs = append(f.addrs, addr)
			return &inject.I2CHandle{
				ReadByteDataFunc: func(ctx context.Context, register byte) (byte, error) {
					if register == whoAmIReg {
						return f.whoAmI, nil
					}
					return f.regs[register], nil
				},
				WriteByteDataFunc: func(ctx context.Context, register, data byte) error {
					f.regs[register] = data
					return nil
				},
				ReadBlockDataFunc: func(ctx context.Context, register byte, numBytes uint8) ([]byte, error) {
					if f.readErr != nil {
						err := f.readErr
						f.readErr = nil
						return nil, err
					}
					if register != dataStartReg || int(numBytes) != dataBlockLen {
						return nil, errors.Errorf("unexpected block read %#x/%d", register, numBytes)
					}
					return append([]byte(nil), f.block...), nil
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

func newTestIMU(t *testing.T, f *fakeMPU, attrs utils.AttributeMap) *IMU {
	t.Helper()
	conf := resource.Config{Name: "imu", API: sensor.API, Model: Model, Attributes: attrs}
	deps, err := conf.Validate("components.1")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{board.DefaultName})

	imu, err := NewIMU(context.Background(), resource.Dependencies{board.Named(board.DefaultName): f.board()},
		conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	return imu
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		attrs    utils.AttributeMap
		expected string
	}{
		{utils.AttributeMap{"i2c_address": 0x07}, "i2c_address must be a valid I2C address (0x08-0x77)"},
		{utils.AttributeMap{"i2c_address": 0x78}, "i2c_address must be a valid I2C address (0x08-0x77)"},
		{utils.AttributeMap{"units": "kelvin"}, "units must be either 'metric' or 'imperial'"},
		{utils.AttributeMap{"sample_rate": 0}, "sample_rate must be a positive number"},
		// the first violation wins
		{utils.AttributeMap{"units": "kelvin", "sample_rate": -1}, "units must be either 'metric' or 'imperial'"},
		{utils.AttributeMap{"i2c_address": "0x68"}, "i2c_address"},
	} {
		conf := resource.Config{Name: "imu", API: sensor.API, Model: Model, Attributes: tc.attrs}
		_, err := conf.Validate("components.1")
		test.That(t, resource.IsConfigValidationError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
	}

	imperial := "IMPERIAL"
	addr, rate := 0x69, 50
	s, err := (&Config{Units: &imperial, I2CAddress: &addr, SampleRate: &rate}).settings()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, s, test.ShouldResemble, settings{
		board: "local", i2cBus: "1", i2cAddress: 0x69, units: units.Imperial, sampleRate: 50,
	})
}

func TestDecodeSample(t *testing.T) {
	f := newFakeMPU()
	f.setRaw(8192, -8192, 0, 0, 655, -655, 0)
	s := decodeSample(f.block)
	test.That(t, s.Acceleration.X, test.ShouldAlmostEqual, standardGravity)
	test.That(t, s.Acceleration.Y, test.ShouldAlmostEqual, -standardGravity)
	test.That(t, s.Acceleration.Z, test.ShouldEqual, 0.0)
	test.That(t, s.Temperature, test.ShouldAlmostEqual, 36.53)
	test.That(t, s.AngularVelocity.X, test.ShouldAlmostEqual, utils.DegToRad(10))
	test.That(t, s.AngularVelocity.Y, test.ShouldAlmostEqual, utils.DegToRad(-10))

	test.That(t, sampleRateDivider(100), test.ShouldEqual, byte(79))
	test.That(t, sampleRateDivider(8000), test.ShouldEqual, byte(0))
	test.That(t, sampleRateDivider(1), test.ShouldEqual, byte(0xFF))
}

func TestReadings(t *testing.T) {
	ctx := context.Background()
	f := newFakeMPU()
	// 25 °C is raw -3920 to within a tenth of a degree
	f.setRaw(84, 0, 8192, -3920, 655, 0, 0)
	expected := decodeSample(f.block)

	t.Run("metric", func(t *testing.T) {
		imu := newTestIMU(t, f, nil)
		readings, err := imu.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, readings, test.ShouldHaveLength, 7)
		test.That(t, readings["acceleration_x - m/s²"], test.ShouldEqual, expected.Acceleration.X)
		test.That(t, readings["acceleration_z - m/s²"], test.ShouldAlmostEqual, standardGravity)
		test.That(t, readings["gyro_x - rad/s"], test.ShouldEqual, expected.AngularVelocity.X)
		test.That(t, readings["temperature - C"], test.ShouldAlmostEqual, 25.0, 0.01)

		test.That(t, f.regs[pwrMgmt1Reg], test.ShouldEqual, byte(0))
		test.That(t, f.regs[accelConfigReg], test.ShouldEqual, byte(accelRange4G))
		test.That(t, f.regs[gyroConfigReg], test.ShouldEqual, byte(gyroRange500DPS))
		test.That(t, f.regs[sampleRateDivReg], test.ShouldEqual, byte(79))
		test.That(t, f.addrs, test.ShouldResemble, []byte{0x68})
	})

	t.Run("imperial", func(t *testing.T) {
		imu := newTestIMU(t, f, utils.AttributeMap{"units": "imperial", "i2c_address": 0x69})
		readings, err := imu.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, readings["acceleration_x - ft/s²"], test.ShouldAlmostEqual, expected.Acceleration.X*3.28084)
		test.That(t, readings["gyro_x - deg/s"], test.ShouldAlmostEqual, expected.AngularVelocity.X*57.2958)
		test.That(t, readings["temperature - F"], test.ShouldAlmostEqual, 77.0, 0.02)
		_, hasMetric := readings["acceleration_x - m/s²"]
		test.That(t, hasMetric, test.ShouldBeFalse)
		test.That(t, f.addrs[len(f.addrs)-1], test.ShouldEqual, byte(0x69))
	})
}

func TestTare(t *testing.T) {
	ctx := context.Background()
	f := newFakeMPU()
	f.setRaw(100, -200, 8192, 0, 30, -40, 50)
	imu := newTestIMU(t, f, nil)
	expected := decodeSample(f.block)

	resp, err := imu.DoCommand(ctx, map[string]interface{}{"tare": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp["tare"], test.ShouldResemble, map[string]interface{}{
		"accel_x_offset": expected.Acceleration.X,
		"accel_y_offset": expected.Acceleration.Y,
		"accel_z_offset": expected.Acceleration.Z,
		"gyro_x_offset":  expected.AngularVelocity.X,
		"gyro_y_offset":  expected.AngularVelocity.Y,
		"gyro_z_offset":  expected.AngularVelocity.Z,
	})

	readings, err := imu.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	for _, key := range []string{
		"acceleration_x - m/s²", "acceleration_y - m/s²", "acceleration_z - m/s²",
		"gyro_x - rad/s", "gyro_y - rad/s", "gyro_z - rad/s",
	} {
		test.That(t, readings[key], test.ShouldAlmostEqual, 0.0)
	}
	// temperature is never tared
	test.That(t, readings["temperature - C"], test.ShouldAlmostEqual, 36.53)

	opens := imu.handle.Opens()
	test.That(t, imu.ResetTare(ctx), test.ShouldBeNil)
	test.That(t, imu.handle.Opens(), test.ShouldEqual, opens)
	accelOffset, gyroOffset := imu.offsets()
	test.That(t, accelOffset, test.ShouldResemble, r3.Vector{})
	test.That(t, gyroOffset, test.ShouldResemble, r3.Vector{})
}

func TestFailures(t *testing.T) {
	ctx := context.Background()

	t.Run("wrong chip", func(t *testing.T) {
		f := newFakeMPU()
		f.whoAmI = 0x70
		imu := newTestIMU(t, f, nil)
		_, err := imu.Readings(ctx, nil)
		var initErr *sensor.HardwareInitError
		test.That(t, errors.As(err, &initErr), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "WHO_AM_I")
		test.That(t, f.closes, test.ShouldEqual, 1)
	})

	t.Run("missing bus", func(t *testing.T) {
		f := newFakeMPU()
		imu := newTestIMU(t, f, utils.AttributeMap{"i2c_bus": "7"})
		_, err := imu.Tare(ctx)
		test.That(t, sensor.IsHardwareError(err), test.ShouldBeTrue)
		test.That(t, f.busNames, test.ShouldResemble, []string{"7"})
	})

	t.Run("read failure reopens once", func(t *testing.T) {
		f := newFakeMPU()
		imu := newTestIMU(t, f, nil)
		_, err := imu.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)

		f.readErr = errors.New("i2c nack")
		_, err = imu.Tare(ctx)
		var readErr *sensor.HardwareReadError
		test.That(t, errors.As(err, &readErr), test.ShouldBeTrue)
		test.That(t, f.closes, test.ShouldEqual, 1)
		// the failed tare left the offsets alone
		test.That(t, imu.tare.Snapshot()[accelX], test.ShouldEqual, 0.0)

		_, err = imu.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, imu.handle.Opens(), test.ShouldEqual, 2)
		test.That(t, len(f.addrs), test.ShouldEqual, 2)
	})

	t.Run("close puts the chip to sleep", func(t *testing.T) {
		f := newFakeMPU()
		imu := newTestIMU(t, f, nil)
		_, err := imu.Readings(ctx, nil)
		test.That(t, err, test.ShouldBeNil)
		test.That(t, imu.Close(ctx), test.ShouldBeNil)
		test.That(t, f.regs[pwrMgmt1Reg], test.ShouldEqual, byte(sleepBit))
		_, err = imu.Readings(ctx, nil)
		test.That(t, err, test.ShouldEqual, sensor.ErrHandleClosed)
	})
}
