// Package resource contains the naming, configuration and registration types shared by every
// board and sensor model.
package resource

import (
	"fmt"
	"regexp"

	"github.com/pkg/errors"
)

const (
	// APINamespaceRDK is the namespace of the built-in APIs.
	APINamespaceRDK = "rdk"
	// APITypeComponentName is the type of every hardware component API.
	APITypeComponentName = "component"
)

var apiRegexValidator = regexp.MustCompile(`^([\w-]+):([\w-]+):([\w-]+)$`)

// API is the triplet that names what a resource can do, e.g. "rdk:component:sensor".
type API struct {
	Namespace   string
	Type        string
	SubtypeName string
}

// NewAPI returns an API from its parts.
func NewAPI(namespace, typeName, subtypeName string) API {
	return API{Namespace: namespace, Type: typeName, SubtypeName: subtypeName}
}

// APIFromComponentSubtype returns the built-in component API with the given subtype.
func APIFromComponentSubtype(subtypeName string) API {
	return NewAPI(APINamespaceRDK, APITypeComponentName, subtypeName)
}

// NewAPIFromString parses "namespace:type:subtype".
func NewAPIFromString(apiStr string) (API, error) {
	matches := apiRegexValidator.FindStringSubmatch(apiStr)
	if matches == nil {
		return API{}, errors.Errorf("string %q is not a valid api name", apiStr)
	}
	return NewAPI(matches[1], matches[2], matches[3]), nil
}

// IsComponent returns whether the API is a component API.
func (a API) IsComponent() bool {
	return a.Type == APITypeComponentName
}

// Validate ensures that all parts of the API are set.
func (a API) Validate() error {
	if a.Namespace == "" {
		return errors.New("namespace field for api missing")
	}
	if a.Type == "" {
		return errors.New("type field for api missing")
	}
	if a.SubtypeName == "" {
		return errors.New("subtype field for api missing")
	}
	return nil
}

func (a API) String() string {
	return fmt.Sprintf("%s:%s:%s", a.Namespace, a.Type, a.SubtypeName)
}

// MarshalText encodes the API in its string form.
func (a API) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

// UnmarshalText decodes an API from its string form.
func (a *API) UnmarshalText(text []byte) error {
	parsed, err := NewAPIFromString(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// Name identifies one configured resource of an API.
type Name struct {
	API  API
	Name string
}

// NewName returns a name for a resource of the given API.
func NewName(api API, name string) Name {
	return Name{API: api, Name: name}
}

// String returns the fully qualified name, e.g. "rdk:component:sensor/scale".
func (n Name) String() string {
	return fmt.Sprintf("%s/%s", n.API, n.Name)
}

// ShortName returns the configured name without its API.
func (n Name) ShortName() string {
	return n.Name
}
