package resource

import (
	"fmt"

	"github.com/pkg/errors"
)

// ConfigValidationError is returned when a configuration is rejected before it takes effect. Path
// names the offending config entry, e.g. "components.1" or "components.1.attributes.gain".
type ConfigValidationError struct {
	Path string
	Err  error
}

// NewConfigValidationError wraps err as a validation failure at path.
func NewConfigValidationError(path string, err error) error {
	return &ConfigValidationError{Path: path, Err: err}
}

// NewConfigValidationFieldRequiredError is used when a required field is missing.
func NewConfigValidationFieldRequiredError(path, field string) error {
	return NewConfigValidationError(path, errors.Errorf("%q is required", field))
}

func (e *ConfigValidationError) Error() string {
	return fmt.Sprintf("error validating %q: %v", e.Path, e.Err)
}

func (e *ConfigValidationError) Unwrap() error {
	return e.Err
}

// IsConfigValidationError returns whether err is or wraps a *ConfigValidationError.
func IsConfigValidationError(err error) bool {
	var target *ConfigValidationError
	return errors.As(err, &target)
}

// MustRebuildError is returned by Reconfigure when the resource cannot apply a new config in place
// and must be closed and constructed again.
type MustRebuildError struct {
	Name Name
}

// NewMustRebuildError returns a MustRebuildError for the given resource.
func NewMustRebuildError(name Name) error {
	return &MustRebuildError{Name: name}
}

func (e *MustRebuildError) Error() string {
	return fmt.Sprintf("cannot reconfigure %q; must rebuild", e.Name)
}

// NewNotFoundError is used when a resource is not found.
func NewNotFoundError(name Name) error {
	return errors.Errorf("resource %q not found", name)
}
