package resource

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

var (
	// DefaultModelFamily is the family of models built into this repository.
	DefaultModelFamily = NewModelFamily(APINamespaceRDK, "builtin")

	modelRegexValidator      = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)
	shortModelRegexValidator = regexp.MustCompile(`^([\w-]+)$`)
)

// ModelFamily is a family of related models.
type ModelFamily struct {
	Namespace string
	Name      string
}

// NewModelFamily creates a new ModelFamily based on parameters passed in.
func NewModelFamily(namespace, family string) ModelFamily {
	return ModelFamily{namespace, family}
}

// WithModel returns a model in this family.
func (f ModelFamily) WithModel(name string) Model {
	return Model{Family: f, Name: name}
}

// String returns the model family string for the resource.
func (f ModelFamily) String() string {
	return fmt.Sprintf("%s:%s", f.Namespace, f.Name)
}

// Model represents an individual model within a family.
type Model struct {
	Family ModelFamily
	Name   string
}

// NewModel creates a new Model based on parameters passed in.
func NewModel(namespace, family, name string) Model {
	return NewModelFamily(namespace, family).WithModel(name)
}

// NewModelFromString parses "namespace:family:name". A bare name is placed in the builtin family.
func NewModelFromString(modelStr string) (Model, error) {
	if matches := modelRegexValidator.FindStringSubmatch(modelStr); matches != nil {
		return NewModel(matches[1], matches[2], matches[3]), nil
	}
	if shortModelRegexValidator.MatchString(modelStr) {
		return DefaultModelFamily.WithModel(modelStr), nil
	}
	return Model{}, errors.Errorf("string %q is not a valid model name", modelStr)
}

// Validate ensures that important fields exist and are valid.
func (m Model) Validate() error {
	if m.Family.Namespace == "" {
		return errors.New("model namespace field for resource missing")
	}
	if m.Family.Name == "" {
		return errors.New("model family field for resource missing")
	}
	if m.Name == "" {
		return errors.New("model name field for resource missing")
	}
	return nil
}

// String returns the resource model string for the component.
func (m Model) String() string {
	return fmt.Sprintf("%s:%s", m.Family, m.Name)
}

// MarshalText encodes the model in its string form.
func (m Model) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText decodes a model from its string form.
func (m *Model) UnmarshalText(text []byte) error {
	parsed, err := NewModelFromString(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
