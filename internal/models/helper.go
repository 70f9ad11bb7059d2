package models

import "errors"

var ErrInvalidTransition = errors.New("invalid attempt status transition")

// Ptr returns a pointer to a copy of v.
func Ptr[T any](v T) *T {
	return &v
}
