package repository

import "errors"

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrCacheMiss is returned by the directory store when a key is absent or expired.
	ErrCacheMiss = errors.New("cache miss")
)
