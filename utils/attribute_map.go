package utils

import (
	"google.golang.org/protobuf/types/known/structpb"
)

// AttributeMap is a convenience wrapper for pulling out typed information from a map of attributes.
// JSON numbers decode as float64, so numeric getters accept both float64 and int.
type AttributeMap map[string]interface{}

// AttributeMapFromStruct converts the protobuf wire form of an attribute map.
func AttributeMapFromStruct(s *structpb.Struct) AttributeMap {
	if s == nil {
		return AttributeMap{}
	}
	return AttributeMap(s.AsMap())
}

// ToStruct converts the attribute map to its protobuf wire form.
func (am AttributeMap) ToStruct() (*structpb.Struct, error) {
	return structpb.NewStruct(am)
}

// Has returns whether the given attribute exists.
func (am AttributeMap) Has(name string) bool {
	_, has := am[name]
	return has
}

// String attempts to return a string present in the map with the given name; returns an empty
// string otherwise.
func (am AttributeMap) String(name string) (string, bool) {
	if am == nil {
		return "", false
	}
	s, ok := am[name].(string)
	return s, ok
}

// Float64 attempts to return a float64 present in the map with the given name; returns the given
// default otherwise.
func (am AttributeMap) Float64(name string, def float64) float64 {
	switch v := am[name].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	default:
		return def
	}
}

// Int attempts to return an int present in the map with the given name; returns the given default
// otherwise.
func (am AttributeMap) Int(name string, def int) int {
	switch v := am[name].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return def
	}
}

// Bool attempts to return a boolean present in the map with the given name; returns the given
// default otherwise.
func (am AttributeMap) Bool(name string, def bool) bool {
	if v, ok := am[name].(bool); ok {
		return v
	}
	return def
}
