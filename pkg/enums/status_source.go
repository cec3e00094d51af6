package enums

import "fmt"

// StatusSource records where a payment status update originated.
// Provider-sourced updates are authoritative; locally inferred expiry is
// provisional and may be overridden by a later provider signal.
type StatusSource string

const (
	StatusSourceProvider StatusSource = "provider"
	StatusSourceLocal    StatusSource = "local"
)

var validStatusSources = []StatusSource{
	StatusSourceProvider,
	StatusSourceLocal,
}

// String implements fmt.Stringer.
func (s StatusSource) String() string {
	return string(s)
}

// IsValid reports whether the value is a known StatusSource.
func (s StatusSource) IsValid() bool {
	for _, candidate := range validStatusSources {
		if candidate == s {
			return true
		}
	}
	return false
}

// ParseStatusSource converts raw input into a StatusSource.
func ParseStatusSource(value string) (StatusSource, error) {
	for _, candidate := range validStatusSources {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid status source %q", value)
}
