package resource

import (
	"context"

	"github.com/pkg/errors"

	"github.com/edss/rocket-sensors/utils"
)

// A Resource is a configured component that can be reconfigured in place, sent arbitrary commands
// and closed.
type Resource interface {
	Name() Name
	Reconfigure(ctx context.Context, deps Dependencies, conf Config) error
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
	Close(ctx context.Context) error
}

// Dependencies are the resources a resource depends on, keyed by name.
type Dependencies map[Name]Resource

// FromDependencies returns the named dependency asserted to T.
func FromDependencies[T Resource](deps Dependencies, name Name) (T, error) {
	var zero T
	res, ok := deps[name]
	if !ok {
		return zero, utils.DependencyNotFoundError(name.Name)
	}
	typed, ok := res.(T)
	if !ok {
		return zero, utils.DependencyTypeError[T](name.Name, res)
	}
	return typed, nil
}

// Named is embedded by resources to implement Name.
type Named interface {
	Name() Name
	DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error)
}

type selfNamed struct {
	name Name
}

// AsNamed returns a Named for the given name. Its DoCommand reports that no commands are supported.
func (n Name) AsNamed() Named {
	return selfNamed{n}
}

func (n selfNamed) Name() Name {
	return n.name
}

func (n selfNamed) DoCommand(ctx context.Context, cmd map[string]interface{}) (map[string]interface{}, error) {
	return nil, errors.Wrapf(ErrDoUnimplemented, "%q", n.name)
}

// ErrDoUnimplemented is returned when DoCommand is not supported by a resource.
var ErrDoUnimplemented = errors.New("DoCommand unimplemented")

// AlwaysRebuild is embedded by resources that are rebuilt on every config change.
type AlwaysRebuild struct{}

// Reconfigure always returns a MustRebuildError.
func (AlwaysRebuild) Reconfigure(ctx context.Context, deps Dependencies, conf Config) error {
	return NewMustRebuildError(conf.ResourceName())
}

// TriviallyCloseable is embedded by resources with nothing to release.
type TriviallyCloseable struct{}

// Close does nothing.
func (TriviallyCloseable) Close(ctx context.Context) error {
	return nil
}
