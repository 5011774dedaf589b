// Package mpu6050 implements a tare-compensated IMU on an MPU-6050 6-axis accelerometer and
// gyroscope. The register map is at
// https://invensense.tdk.com/wp-content/uploads/2015/02/MPU-6000-Register-Map1.pdf
//
// The chip answers on 0x68, or on 0x69 when AD0 is wired high.
package mpu6050

import (
	"context"
	"sync"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/units"
)

// Model is the IMU model triplet.
var Model = sensor.ModelFamily.WithModel("mpu-sensor")

const (
	defaultI2CAddress = 0x68
	defaultI2CBus     = "1"
	defaultSampleRate = 100

	minI2CAddress = 0x08
	maxI2CAddress = 0x77
)

// Offset names.
const (
	accelX = "accel_x"
	accelY = "accel_y"
	accelZ = "accel_z"
	gyroX  = "gyro_x"
	gyroY  = "gyro_y"
	gyroZ  = "gyro_z"
)

// Config is used for converting IMU attributes.
type Config struct {
	Board      string  `json:"board,omitempty"`
	I2CBus     string  `json:"i2c_bus,omitempty"`
	I2CAddress *int    `json:"i2c_address,omitempty"`
	Units      *string `json:"units,omitempty"`
	SampleRate *int    `json:"sample_rate,omitempty"`
}

type settings struct {
	board      string
	i2cBus     string
	i2cAddress int
	units      units.System
	sampleRate int
}

// Validate stops at the first invalid attribute and returns the board as a dependency.
func (conf *Config) Validate(path string) ([]string, error) {
	s, err := conf.settings()
	if err != nil {
		return nil, resource.NewConfigValidationError(path, err)
	}
	return []string{s.board}, nil
}

func (conf *Config) settings() (settings, error) {
	s := settings{
		board:      conf.Board,
		i2cBus:     conf.I2CBus,
		i2cAddress: defaultI2CAddress,
		sampleRate: defaultSampleRate,
	}
	if s.board == "" {
		s.board = board.DefaultName
	}
	if s.i2cBus == "" {
		s.i2cBus = defaultI2CBus
	}
	if conf.I2CAddress != nil {
		s.i2cAddress = *conf.I2CAddress
		if s.i2cAddress < minI2CAddress || s.i2cAddress > maxI2CAddress {
			return s, errors.New("i2c_address must be a valid I2C address (0x08-0x77)")
		}
	}
	if conf.Units != nil {
		sys, err := units.ParseSystem(*conf.Units)
		if err != nil {
			return s, errors.New("units must be either 'metric' or 'imperial'")
		}
		s.units = sys
	}
	if conf.SampleRate != nil {
		s.sampleRate = *conf.SampleRate
		if s.sampleRate <= 0 {
			return s, errors.New("sample_rate must be a positive number")
		}
	}
	return s, nil
}

func init() {
	resource.RegisterComponent(
		sensor.API,
		Model,
		resource.Registration[sensor.Sensor, *Config]{
			Constructor: func(
				ctx context.Context,
				deps resource.Dependencies,
				conf resource.Config,
				logger logging.Logger,
			) (sensor.Sensor, error) {
				return NewIMU(ctx, deps, conf, logger)
			},
		})
}

// IMU reports acceleration, angular rate and temperature with tared acceleration and gyro offsets.
type IMU struct {
	resource.Named

	mu       sync.Mutex
	logger   logging.Logger
	settings settings
	handle   *sensor.Handle[*Driver]
	tare     *sensor.TareState
}

// NewIMU returns an IMU whose chip is opened on first use.
func NewIMU(ctx context.Context, deps resource.Dependencies, conf resource.Config, logger logging.Logger) (*IMU, error) {
	imu := &IMU{
		Named:  conf.ResourceName().AsNamed(),
		logger: logger,
	}
	if err := imu.Reconfigure(ctx, deps, conf); err != nil {
		return nil, err
	}
	return imu, nil
}

// Reconfigure replaces the settings, drops the open device and zeroes the offsets.
func (imu *IMU) Reconfigure(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
	newConf, err := resource.NativeConfig[*Config](conf)
	if err != nil {
		return err
	}
	s, err := newConf.settings()
	if err != nil {
		return err
	}
	b, err := board.FromDependencies(deps, s.board)
	if err != nil {
		return err
	}

	imu.mu.Lock()
	defer imu.mu.Unlock()
	if imu.handle != nil {
		if err := imu.handle.Close(); err != nil {
			imu.logger.Warnw("error closing IMU during reconfigure", "error", err)
		}
	}
	imu.settings = s
	imu.handle = sensor.NewHandle(imu.opener(b, s), imu.logger)
	imu.tare = sensor.NewTareState(accelX, accelY, accelZ, gyroX, gyroY, gyroZ)
	return nil
}

func (imu *IMU) opener(b board.Board, s settings) sensor.Opener[*Driver] {
	return func(ctx context.Context) (*Driver, error) {
		bus, ok := b.I2CByName(s.i2cBus)
		if !ok {
			return nil, errors.Errorf("can't find I2C bus %q for MPU6050 sensor", s.i2cBus)
		}
		imu.logger.CDebugw(ctx, "opening MPU6050", "bus", s.i2cBus, "address", s.i2cAddress)
		return NewDriver(ctx, bus, byte(s.i2cAddress), s.sampleRate, imu.logger)
	}
}

func (imu *IMU) read(ctx context.Context) (Sample, error) {
	var sample Sample
	err := imu.handle.Use(ctx, func(ctx context.Context, d *Driver) error {
		var err error
		sample, err = d.Read(ctx)
		return err
	})
	return sample, err
}

func (imu *IMU) offsets() (r3.Vector, r3.Vector) {
	return r3.Vector{X: imu.tare.Get(accelX), Y: imu.tare.Get(accelY), Z: imu.tare.Get(accelZ)},
		r3.Vector{X: imu.tare.Get(gyroX), Y: imu.tare.Get(gyroY), Z: imu.tare.Get(gyroZ)}
}

// Readings returns the tared acceleration and angular rate and the temperature in the configured
// unit system.
func (imu *IMU) Readings(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
	imu.mu.Lock()
	defer imu.mu.Unlock()

	sample, err := imu.read(ctx)
	if err != nil {
		imu.logger.Errorw("error reading IMU", "error", err)
		return nil, err
	}
	accelOffset, gyroOffset := imu.offsets()
	accel := sample.Acceleration.Sub(accelOffset)
	gyro := sample.AngularVelocity.Sub(gyroOffset)

	sys := imu.settings.units
	readings := make(map[string]interface{}, 7)
	put := func(name string, q units.Quantity, metric float64) {
		v, _ := units.Convert(q, metric, sys)
		readings[units.Key(name, q, sys)] = v
	}
	put("acceleration_x", units.Acceleration, accel.X)
	put("acceleration_y", units.Acceleration, accel.Y)
	put("acceleration_z", units.Acceleration, accel.Z)
	put("gyro_x", units.AngularRate, gyro.X)
	put("gyro_y", units.AngularRate, gyro.Y)
	put("gyro_z", units.AngularRate, gyro.Z)
	put("temperature", units.Temperature, sample.Temperature)
	return readings, nil
}

// Tare stores the current acceleration and angular rate as the offsets.
func (imu *IMU) Tare(ctx context.Context) (map[string]float64, error) {
	imu.mu.Lock()
	defer imu.mu.Unlock()

	sample, err := imu.read(ctx)
	if err != nil {
		imu.logger.Errorw("error taring IMU", "error", err)
		return nil, err
	}
	a, g := sample.Acceleration, sample.AngularVelocity
	imu.tare.Set(map[string]float64{
		accelX: a.X, accelY: a.Y, accelZ: a.Z,
		gyroX: g.X, gyroY: g.Y, gyroZ: g.Z,
	})
	imu.logger.Infow("IMU tared", "accel_baseline", a, "gyro_baseline", g)

	offsets := make(map[string]float64, 6)
	for name, v := range imu.tare.Snapshot() {
		offsets[name+"_offset"] = v
	}
	return offsets, nil
}

// ResetTare zeroes the offsets.
func (imu *IMU) ResetTare(ctx context.Context) error {
	imu.mu.Lock()
	defer imu.mu.Unlock()
	imu.tare.Reset()
	imu.logger.Info("IMU tare reset")
	return nil
}

// DoCommand runs tare and reset_tare.
func (imu *IMU) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return sensor.DoTareCommand(ctx, imu, cmd)
}

// Close puts the chip to sleep.
func (imu *IMU) Close(ctx context.Context) error {
	imu.mu.Lock()
	defer imu.mu.Unlock()
	return imu.handle.Close()
}
