// Package utils contains small helpers shared by the rocket-sensors packages: attribute maps, byte
// decoding and type assertion errors.
package utils

import (
	"reflect"

	"github.com/pkg/errors"
)

// NewUnexpectedTypeError is used when there is a type mismatch.
func NewUnexpectedTypeError[ExpectedT any](actual interface{}) error {
	return errors.Errorf("expected %s but got %T", typeName[ExpectedT](), actual)
}

// NewUnimplementedInterfaceError is used when there is a failed interface check.
func NewUnimplementedInterfaceError[ExpectedT any](actual interface{}) error {
	return errors.Errorf("expected implementation of %s but got %T", typeName[ExpectedT](), actual)
}

// DependencyTypeError is used when a resolved dependency does not implement the expected API.
func DependencyTypeError[ExpectedT any](name string, actual interface{}) error {
	return errors.Errorf("dependency %q should be an implementation of %s but it was a %T",
		name, typeName[ExpectedT](), actual)
}

// DependencyNotFoundError is used when a dependency named by a config is missing.
func DependencyNotFoundError(name string) error {
	return errors.Errorf("dependency %q not found; it may be missing from the config or failed to build", name)
}

func typeName[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}
