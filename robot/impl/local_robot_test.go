package robotimpl

import (
	"context"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/edss/rocket-sensors/components/board"
	"github.com/edss/rocket-sensors/components/sensor"
	"github.com/edss/rocket-sensors/config"
	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/resource"
	"github.com/edss/rocket-sensors/robot"
	"github.com/edss/rocket-sensors/testutils/inject"
	"github.com/edss/rocket-sensors/utils"
)

var injectedModel = resource.NewModel("test", "robot", "injected")

type injectedConfig struct {
	Board   string `json:"board"`
	Rebuild bool   `json:"rebuild"`
	FailNew bool   `json:"fail_new"`
}

func (conf *injectedConfig) Validate(path string) ([]string, error) {
	if conf.Board == "" {
		return nil, nil
	}
	return []string{conf.Board}, nil
}

// lifecycle records what happened to injected resources, in order.
type lifecycle struct {
	mu     sync.Mutex
	events []string
}

func (l *lifecycle) record(event string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, event)
}

func (l *lifecycle) take() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := l.events
	l.events = nil
	return out
}

var events = &lifecycle{}

func init() {
	resource.RegisterComponent(board.API, injectedModel, resource.Registration[board.Board, *injectedConfig]{
		Constructor: func(ctx context.Context, _ resource.Dependencies, conf resource.Config, _ logging.Logger) (board.Board, error) {
			events.record("build " + conf.Name)
			b := inject.NewBoard(conf.Name)
			b.CloseFunc = func(ctx context.Context) error {
				events.record("close " + conf.Name)
				return nil
			}
			return b, nil
		},
	})
	resource.RegisterComponent(sensor.API, injectedModel, resource.Registration[sensor.Sensor, *injectedConfig]{
		Constructor: func(ctx context.Context, deps resource.Dependencies, conf resource.Config, _ logging.Logger) (sensor.Sensor, error) {
			native, err := resource.NativeConfig[*injectedConfig](conf)
			if err != nil {
				return nil, err
			}
			if native.FailNew {
				return nil, errors.New("whoops")
			}
			if native.Board != "" {
				if _, err := board.FromDependencies(deps, native.Board); err != nil {
					return nil, err
				}
			}
			events.record("build " + conf.Name)
			s := inject.NewSensor(conf.Name)
			s.ReconfigureFunc = func(ctx context.Context, deps resource.Dependencies, conf resource.Config) error {
				native, err := resource.NativeConfig[*injectedConfig](conf)
				if err != nil {
					return err
				}
				if native.Rebuild {
					return resource.NewMustRebuildError(conf.ResourceName())
				}
				events.record("reconfigure " + conf.Name)
				return nil
			}
			s.ReadingsFunc = func(ctx context.Context, extra map[string]interface{}) (map[string]interface{}, error) {
				return map[string]interface{}{"value": 1.0}, nil
			}
			s.CloseFunc = func(ctx context.Context) error {
				events.record("close " + conf.Name)
				return nil
			}
			return s, nil
		},
	})
}

func boardConf(name string) resource.Config {
	return resource.Config{Name: name, API: board.API, Model: injectedModel}
}

func sensorConf(name string, attrs utils.AttributeMap) resource.Config {
	return resource.Config{Name: name, API: sensor.API, Model: injectedModel, Attributes: attrs}
}

func ensured(t *testing.T, components ...resource.Config) *config.Config {
	t.Helper()
	cfg := &config.Config{Components: components}
	test.That(t, cfg.Ensure(), test.ShouldBeNil)
	return cfg
}

func TestRobotLifecycle(t *testing.T) {
	ctx := context.Background()
	logger := logging.NewTestLogger(t)
	events.take()

	r, err := New(ctx, ensured(t,
		sensorConf("scale", utils.AttributeMap{"board": "local"}),
		boardConf("local"),
		sensorConf("imu", nil),
	), logger)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, events.take(), test.ShouldResemble, []string{"build local", "build imu", "build scale"})
	test.That(t, robot.SensorNames(r), test.ShouldResemble, []string{"imu", "scale"})
	test.That(t, r.ResourceNames(), test.ShouldHaveLength, 3)

	s, err := robot.SensorByName(r, "scale")
	test.That(t, err, test.ShouldBeNil)
	readings, err := s.Readings(ctx, nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, readings, test.ShouldResemble, map[string]interface{}{"value": 1.0})

	_, err = robot.SensorByName(r, "local")
	test.That(t, err, test.ShouldBeError, `resource "rdk:component:sensor/local" not found`)

	t.Run("unchanged config touches nothing", func(t *testing.T) {
		test.That(t, r.Reconfigure(ctx, ensured(t,
			boardConf("local"),
			sensorConf("scale", utils.AttributeMap{"board": "local"}),
			sensorConf("imu", nil),
		)), test.ShouldBeNil)
		test.That(t, events.take(), test.ShouldBeEmpty)
	})

	t.Run("changed attributes reconfigure in place", func(t *testing.T) {
		test.That(t, r.Reconfigure(ctx, ensured(t,
			boardConf("local"),
			sensorConf("scale", utils.AttributeMap{"board": "local", "fail_new": false}),
			sensorConf("imu", nil),
		)), test.ShouldBeNil)
		test.That(t, events.take(), test.ShouldResemble, []string{"reconfigure scale"})
	})

	t.Run("must rebuild closes and builds", func(t *testing.T) {
		cfg := ensured(t,
			boardConf("local"),
			sensorConf("scale", utils.AttributeMap{"board": "local", "rebuild": true}),
			sensorConf("imu", nil),
		)
		test.That(t, r.Reconfigure(ctx, cfg), test.ShouldBeNil)
		test.That(t, events.take(), test.ShouldResemble, []string{"close scale", "build scale"})
		test.That(t, r.Config(), test.ShouldEqual, cfg)
	})

	t.Run("removed resources are closed", func(t *testing.T) {
		test.That(t, r.Reconfigure(ctx, ensured(t,
			boardConf("local"),
			sensorConf("scale", utils.AttributeMap{"board": "local", "rebuild": true}),
		)), test.ShouldBeNil)
		test.That(t, events.take(), test.ShouldResemble, []string{"close imu"})
		test.That(t, robot.SensorNames(r), test.ShouldResemble, []string{"scale"})
	})

	t.Run("a failing component leaves the rest running", func(t *testing.T) {
		err := r.Reconfigure(ctx, ensured(t,
			boardConf("local"),
			sensorConf("scale", utils.AttributeMap{"board": "local", "rebuild": true}),
			sensorConf("broken", utils.AttributeMap{"fail_new": true}),
		))
		test.That(t, err, test.ShouldNotBeNil)
		test.That(t, err.Error(), test.ShouldContainSubstring, "whoops")
		test.That(t, events.take(), test.ShouldBeEmpty)
		test.That(t, robot.SensorNames(r), test.ShouldResemble, []string{"scale"})
	})

	test.That(t, r.Close(ctx), test.ShouldBeNil)
	test.That(t, events.take(), test.ShouldResemble, []string{"close scale", "close local"})
}

func TestNewClosesOnFailure(t *testing.T) {
	ctx := context.Background()
	events.take()
	_, err := New(ctx, ensured(t,
		boardConf("local"),
		sensorConf("broken", utils.AttributeMap{"board": "local", "fail_new": true}),
	), logging.NewTestLogger(t))
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, events.take(), test.ShouldResemble, []string{"build local", "close local"})
}
