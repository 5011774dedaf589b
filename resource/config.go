package resource

import (
	"fmt"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/utils"
)

// A Config describes the configuration of a resource.
type Config struct {
	Name       string             `json:"name"`
	API        API                `json:"api"`
	Model      Model              `json:"model"`
	DependsOn  []string           `json:"depends_on,omitempty"`
	Attributes utils.AttributeMap `json:"attributes,omitempty"`

	ConvertedAttributes ConfigValidator `json:"-"`
	ImplicitDependsOn   []string        `json:"-"`
}

// A ConfigValidator validates a configuration and also
// returns dependencies that were implicitly discovered.
type ConfigValidator interface {
	Validate(path string) ([]string, error)
}

// NoNativeConfig is used by models that take no attributes.
type NoNativeConfig struct{}

// Validate accepts any attributes.
func (NoNativeConfig) Validate(path string) ([]string, error) {
	return nil, nil
}

// NativeConfig returns the native config from the given config via its
// converted attributes.
func NativeConfig[T any](conf Config) (T, error) {
	return utils.AssertType[T](conf.ConvertedAttributes)
}

// ResourceName returns the Name of the configured resource.
func (conf *Config) ResourceName() Name {
	return NewName(conf.API, conf.Name)
}

// String returns a short representation of the config.
func (conf *Config) String() string {
	return fmt.Sprintf("%s (%s)", conf.ResourceName(), conf.Model)
}

// Equals reports whether two configs describe the same resource with the same attributes.
func (conf Config) Equals(other Config) bool {
	return cmp.Equal(conf, other,
		cmpopts.IgnoreFields(Config{}, "ConvertedAttributes", "ImplicitDependsOn"),
		cmpopts.EquateEmpty())
}

// Dependencies returns the deduplicated union of user-defined and implicit dependencies.
func (conf *Config) Dependencies() []string {
	result := make([]string, 0, len(conf.DependsOn)+len(conf.ImplicitDependsOn))
	seen := make(map[string]struct{})
	appendUniq := func(dep string) {
		if _, ok := seen[dep]; !ok {
			seen[dep] = struct{}{}
			result = append(result, dep)
		}
	}
	for _, dep := range conf.DependsOn {
		appendUniq(dep)
	}
	for _, dep := range conf.ImplicitDependsOn {
		appendUniq(dep)
	}
	return result
}

// Validate ensures all parts of the config are valid, converts the attributes to the model's native
// config and records the dependencies it implies. All failures are *ConfigValidationError.
func (conf *Config) Validate(path string) ([]string, error) {
	if conf.Name == "" {
		return nil, NewConfigValidationFieldRequiredError(path, "name")
	}
	if err := conf.API.Validate(); err != nil {
		return nil, NewConfigValidationError(path, err)
	}
	if err := conf.Model.Validate(); err != nil {
		return nil, NewConfigValidationError(path, err)
	}

	if conf.ConvertedAttributes == nil {
		reg, ok := LookupRegistration(conf.API, conf.Model)
		if !ok {
			return nil, NewConfigValidationError(path,
				errors.Errorf("no model %q registered for api %q", conf.Model, conf.API))
		}
		if reg.AttributeMapConverter != nil {
			converted, err := reg.AttributeMapConverter(conf.Attributes)
			if err != nil {
				return nil, NewConfigValidationError(path, errors.Wrap(err, "error converting attributes"))
			}
			conf.ConvertedAttributes = converted
		}
	}
	if conf.ConvertedAttributes == nil {
		return nil, nil
	}

	deps, err := conf.ConvertedAttributes.Validate(path)
	if err != nil {
		if !IsConfigValidationError(err) {
			err = NewConfigValidationError(path, err)
		}
		return nil, err
	}
	conf.ImplicitDependsOn = deps
	return deps, nil
}
