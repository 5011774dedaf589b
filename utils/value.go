package utils

// AssertType returns from as a T, or an unexpected-type error naming T when it is not one.
func AssertType[T any](from interface{}) (T, error) {
	if asserted, ok := from.(T); ok {
		return asserted, nil
	}
	var zero T
	return zero, NewUnexpectedTypeError[T](from)
}
