package bmp085

import (
	"context"
	"math"
	"time"

	"github.com/pkg/errors"
	goutils "go.viam.com/utils"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/utils"
)

// Register map.
const (
	calibrationReg = 0xAA
	chipIDReg      = 0xD0
	controlReg     = 0xF4
	dataReg        = 0xF6
)

const (
	expectedChipID = 0x55

	readTemperatureCmd = 0x2E
	readPressureCmd    = 0x34

	calibrationLen = 22

	// MaxOversampling is the highest oversampling setting, 8 samples per pressure conversion.
	MaxOversampling = 3

	temperatureWait = 4500 * time.Microsecond
)

// pressureWait is the conversion time for each oversampling setting.
var pressureWait = [MaxOversampling + 1]time.Duration{
	4500 * time.Microsecond,
	7500 * time.Microsecond,
	13500 * time.Microsecond,
	25500 * time.Microsecond,
}

// Calibration holds the factory coefficients stored in the chip's EEPROM.
type Calibration struct {
	AC1, AC2, AC3 int16
	AC4, AC5, AC6 uint16
	B1, B2        int16
	MB, MC, MD    int16
}

// ParseCalibration decodes the 22 big-endian calibration bytes starting at 0xAA.
func ParseCalibration(data []byte) (Calibration, error) {
	if len(data) != calibrationLen {
		return Calibration{}, errors.Errorf("expected %d calibration bytes, got %d", calibrationLen, len(data))
	}
	s := func(i int) int16 { return utils.Int16FromBytesBE(data[i : i+2]) }
	u := func(i int) uint16 { return utils.Uint16FromBytesBE(data[i : i+2]) }
	c := Calibration{
		AC1: s(0), AC2: s(2), AC3: s(4),
		AC4: u(6), AC5: u(8), AC6: u(10),
		B1: s(12), B2: s(14),
		MB: s(16), MC: s(18), MD: s(20),
	}
	for i := 0; i < calibrationLen; i += 2 {
		if w := u(i); w == 0 || w == 0xFFFF {
			return Calibration{}, errors.Errorf("invalid calibration word %#x at %#x", w, calibrationReg+i)
		}
	}
	return c, nil
}

// Compensate converts an uncompensated temperature and pressure into 0.1 °C and Pa using the
// integer algorithm from the datasheet. Raw values that would divide by zero are an error.
func (c Calibration) Compensate(ut, up int32, oss uint) (int32, int32, error) {
	x1 := (int64(ut) - int64(c.AC6)) * int64(c.AC5) >> 15
	if x1+int64(c.MD) == 0 {
		return 0, 0, errors.Errorf("uncompensated temperature %d cannot be compensated", ut)
	}
	x2 := (int64(c.MC) << 11) / (x1 + int64(c.MD))
	b5 := x1 + x2
	temp := (b5 + 8) >> 4

	b6 := b5 - 4000
	x1 = (int64(c.B2) * (b6 * b6 >> 12)) >> 11
	x2 = int64(c.AC2) * b6 >> 11
	x3 := x1 + x2
	b3 := ((int64(c.AC1)*4+x3)<<oss + 2) / 4
	x1 = int64(c.AC3) * b6 >> 13
	x2 = (int64(c.B1) * (b6 * b6 >> 12)) >> 16
	x3 = (x1 + x2 + 2) >> 2
	b4 := uint32(c.AC4) * uint32(x3+32768) >> 15
	if b4 == 0 {
		return 0, 0, errors.Errorf("uncompensated pressure %d cannot be compensated at temperature %d", up, ut)
	}
	b7 := (uint32(up) - uint32(b3)) * (50000 >> oss)

	var p int64
	if b7 < 0x80000000 {
		p = int64(b7 * 2 / b4)
	} else {
		p = int64(b7 / b4 * 2)
	}
	x1 = (p >> 8) * (p >> 8)
	x1 = (x1 * 3038) >> 16
	x2 = (-7357 * p) >> 16
	p += (x1 + x2 + 3791) >> 4
	return int32(temp), int32(p), nil
}

// Altitude returns the height in meters at which the barometric formula gives pressure, for the
// given sea level pressure. Both pressures are in Pa.
func Altitude(pressure, seaLevel float64) float64 {
	return 44330 * (1 - math.Pow(pressure/seaLevel, 1/5.255))
}

// Sample is one compensated temperature and pressure conversion.
type Sample struct {
	// Temperature in °C.
	Temperature float64
	// Pressure in Pa.
	Pressure float64
}

// Driver owns an open I2C handle to a BMP085 and its calibration.
type Driver struct {
	handle board.I2CHandle
	cal    Calibration
	oss    uint
	logger logging.Logger
}

// NewDriver opens a handle at addr, checks the chip id and reads the calibration.
func NewDriver(ctx context.Context, bus board.I2C, addr byte, oss uint, logger logging.Logger) (*Driver, error) {
	if oss > MaxOversampling {
		return nil, errors.Errorf("oversampling must be between 0 and %d", MaxOversampling)
	}
	handle, err := bus.OpenHandle(addr)
	if err != nil {
		return nil, errors.Wrapf(err, "opening I2C address %#x", addr)
	}
	d := &Driver{handle: handle, oss: oss, logger: logger}
	if err := d.init(ctx); err != nil {
		if closeErr := handle.Close(); closeErr != nil {
			logger.Warnw("error closing BMP085 handle", "error", closeErr)
		}
		return nil, err
	}
	return d, nil
}

func (d *Driver) init(ctx context.Context) error {
	id, err := d.handle.ReadByteData(ctx, chipIDReg)
	if err != nil {
		return errors.Wrap(err, "reading chip id")
	}
	if id != expectedChipID {
		return errors.Errorf("unexpected non-BMP085 device: chip id is %#x", id)
	}
	data, err := d.handle.ReadBlockData(ctx, calibrationReg, calibrationLen)
	if err != nil {
		return errors.Wrap(err, "reading calibration")
	}
	d.cal, err = ParseCalibration(data)
	if err != nil {
		return err
	}
	d.logger.CDebugw(ctx, "BMP085 calibration", "calibration", d.cal)
	return nil
}

func (d *Driver) convert(ctx context.Context, cmd byte, wait time.Duration, n uint8) ([]byte, error) {
	if err := d.handle.WriteByteData(ctx, controlReg, cmd); err != nil {
		return nil, err
	}
	if !goutils.SelectContextOrWait(ctx, wait) {
		return nil, ctx.Err()
	}
	data, err := d.handle.ReadBlockData(ctx, dataReg, n)
	if err != nil {
		return nil, err
	}
	if len(data) != int(n) {
		return nil, errors.Errorf("expected %d bytes from BMP085, got %d", n, len(data))
	}
	return data, nil
}

// ReadRaw returns the uncompensated temperature and pressure.
func (d *Driver) ReadRaw(ctx context.Context) (int32, int32, error) {
	data, err := d.convert(ctx, readTemperatureCmd, temperatureWait, 2)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading temperature")
	}
	ut := int32(utils.Uint16FromBytesBE(data))

	data, err = d.convert(ctx, readPressureCmd+byte(d.oss<<6), pressureWait[d.oss], 3)
	if err != nil {
		return 0, 0, errors.Wrap(err, "reading pressure")
	}
	up := int32(utils.Uint24FromBytesBE(data) >> (8 - d.oss))
	return ut, up, nil
}

// Read returns a compensated sample.
func (d *Driver) Read(ctx context.Context) (Sample, error) {
	ut, up, err := d.ReadRaw(ctx)
	if err != nil {
		return Sample{}, err
	}
	temp, p, err := d.cal.Compensate(ut, up, d.oss)
	if err != nil {
		return Sample{}, err
	}
	return Sample{Temperature: float64(temp) / 10, Pressure: float64(p)}, nil
}

// Close releases the bus.
func (d *Driver) Close() error {
	return d.handle.Close()
}
