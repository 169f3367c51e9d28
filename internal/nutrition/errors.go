package nutrition

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidProfile is returned when a profile is outside the supported physiological range.
	ErrInvalidProfile = errors.New("invalid profile")
	// ErrInvalidDateRange is returned for malformed aggregation requests.
	ErrInvalidDateRange = errors.New("invalid date range")
)

// ProfileError names the profile field that failed validation.
type ProfileError struct {
	Field  string
	Reason string
}

func (e *ProfileError) Error() string {
	return fmt.Sprintf("invalid profile: %s %s", e.Field, e.Reason)
}

func (e *ProfileError) Unwrap() error {
	return ErrInvalidProfile
}
