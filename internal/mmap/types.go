package mmap

import "errors"

var (
	// ErrInvalidSize is returned when a reservation size is zero or negative.
	ErrInvalidSize = errors.New("mmap: invalid size")
)
