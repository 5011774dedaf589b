package resource

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"go.viam.com/test"

	"github.com/edss/rocket-sensors/logging"
	"github.com/edss/rocket-sensors/utils"
)

type testConfig struct {
	Board string   `json:"board"`
	Gain  *int     `json:"gain"`
	Scale *float64 `json:"scale"`
	Units string   `json:"units"`
}

func (c *testConfig) Validate(path string) ([]string, error) {
	if c.Gain != nil && *c.Gain < 0 {
		return nil, errors.New("gain must be positive")
	}
	if c.Board == "" {
		return nil, nil
	}
	return []string{c.Board}, nil
}

type testResource struct {
	Named
	TriviallyCloseable
	AlwaysRebuild
}

func TestTransformAttributeMap(t *testing.T) {
	conf, err := TransformAttributeMap[*testConfig](utils.AttributeMap{
		"gain":    64.0,
		"scale":   2,
		"units":   "imperial",
		"unknown": "ignored",
	})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, *conf.Gain, test.ShouldEqual, 64)
	test.That(t, *conf.Scale, test.ShouldEqual, 2.0)
	test.That(t, conf.Units, test.ShouldEqual, "imperial")

	conf, err = TransformAttributeMap[*testConfig](nil)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, conf.Gain, test.ShouldBeNil)

	_, err = TransformAttributeMap[*testConfig](utils.AttributeMap{"gain": "64"})
	test.That(t, err, test.ShouldNotBeNil)

	_, err = TransformAttributeMap[*testConfig](utils.AttributeMap{"gain": 64.5})
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "expected an integer")

	_, err = TransformAttributeMap[*testConfig](utils.AttributeMap{"units": 3})
	test.That(t, err, test.ShouldNotBeNil)
}

func TestConfigValidate(t *testing.T) {
	api := APIFromComponentSubtype("sensor")
	model := NewModel("test", "resource", "validate")
	RegisterComponent(api, model, Registration[*testResource, *testConfig]{
		Constructor: func(ctx context.Context, deps Dependencies, conf Config, logger logging.Logger) (*testResource, error) {
			return &testResource{Named: conf.ResourceName().AsNamed()}, nil
		},
	})
	defer Deregister(api, model)

	conf := Config{Name: "thing", API: api, Model: model, Attributes: utils.AttributeMap{"board": "local"}}
	deps, err := conf.Validate("components.0")
	test.That(t, err, test.ShouldBeNil)
	test.That(t, deps, test.ShouldResemble, []string{"local"})
	test.That(t, conf.Dependencies(), test.ShouldResemble, []string{"local"})

	native, err := NativeConfig[*testConfig](conf)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, native.Board, test.ShouldEqual, "local")

	reg, ok := LookupRegistration(api, model)
	test.That(t, ok, test.ShouldBeTrue)
	res, err := reg.Constructor(context.Background(), nil, conf, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, res.Name(), test.ShouldResemble, NewName(api, "thing"))

	err = res.Reconfigure(context.Background(), nil, conf)
	var rebuild *MustRebuildError
	test.That(t, errors.As(err, &rebuild), test.ShouldBeTrue)

	_, err = res.DoCommand(context.Background(), nil)
	test.That(t, errors.Is(err, ErrDoUnimplemented), test.ShouldBeTrue)

	t.Run("missing name", func(t *testing.T) {
		conf := Config{API: api, Model: model}
		_, err := conf.Validate("components.1")
		test.That(t, IsConfigValidationError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, `"name" is required`)
	})

	t.Run("bad attributes", func(t *testing.T) {
		conf := Config{Name: "thing", API: api, Model: model, Attributes: utils.AttributeMap{"gain": -1}}
		_, err := conf.Validate("components.2")
		var cve *ConfigValidationError
		test.That(t, errors.As(err, &cve), test.ShouldBeTrue)
		test.That(t, cve.Path, test.ShouldEqual, "components.2")
		test.That(t, err.Error(), test.ShouldContainSubstring, "gain must be positive")
	})

	t.Run("unregistered model", func(t *testing.T) {
		conf := Config{Name: "thing", API: api, Model: NewModel("test", "resource", "nope")}
		_, err := conf.Validate("components.3")
		test.That(t, IsConfigValidationError(err), test.ShouldBeTrue)
		test.That(t, err.Error(), test.ShouldContainSubstring, "no model")
	})
}

func TestConfigEquals(t *testing.T) {
	api := APIFromComponentSubtype("sensor")
	a := Config{Name: "baro", API: api, Model: NewModel("edss", "rocket-sensors", "bmp-sensor"),
		Attributes: utils.AttributeMap{"units": "metric"}}
	b := a
	b.ConvertedAttributes = NoNativeConfig{}
	test.That(t, a.Equals(b), test.ShouldBeTrue)

	b.Attributes = utils.AttributeMap{"units": "imperial"}
	test.That(t, a.Equals(b), test.ShouldBeFalse)
}
