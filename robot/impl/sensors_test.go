package robotimpl

import (
	"context"
	"testing"

	"go.viam.com/test"

	"github.com/edss/rocket-sensors/components/board"
	fakeboard "github.com/edss/rocket-sensors/components/board/fake"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/components/sensor/mpu6050"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/robot"
	"github.com/edss/rocket-sensors/utils"
)

func TestIMUOnFakeBoard(t *testing.T) {
	ctx := context.Background()
	r, err := New(ctx, ensured(t,
		resource.Config{
			Name: "imu", API: sensor.API, Model: mpu6050.Model,
			Attributes: utils.AttributeMap{"i2c_bus": "sensors"},
		},
		resource.Config{
			Name: "local", API: board.API, Model: fakeboard.Model,
			Attributes: utils.AttributeMap{
				"i2cs": []interface{}{map[string]interface{}{"name": "sensors", "bus": "1"}},
			},
		},
	), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	res, err := r.ResourceByName(board.Named("local"))
	test.That(t, err, test.ShouldBeNil)
	chip := res.(*fakeboard.Board).I2C("1").Device(0x68)
	chip.SetRegisters(0x75, 0x68)
	// one g on x, zero temperature count
	chip.SetRegisters(0x3B, 0x20, 0x00)

	imu, err := robot.SensorByName(r, "imu")
	test.That(t, err, test.ShouldBeNil)
	readings, err := imu.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["acceleration_x - m/s²"], test.ShouldAlmostEqual, 9.80665)
	test.That(t, readings["temperature - C"], test.ShouldAlmostEqual, 36.53)

	out, err := imu.DoCommand(ctx, map[string]interface{}{"tare": true})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, out["tare"].(map[string]interface{})["acceleration_x_offset"], test.ShouldAlmostEqual, 9.80665)

	readings, err = imu.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings["acceleration_x - m/s²"], test.ShouldAlmostEqual, 0)

	test.That(t, r.Close(ctx), test.ShouldBeNil)
	test.That(t, chip.Register(0x6B)&0x40, test.ShouldEqual, byte(0x40))
	test.That(t, res.(*fakeboard.Board).I2C("1").OpenHandles(), test.ShouldEqual, 0)
}
