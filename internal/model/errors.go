package model

import "errors"

var (
	// ErrInvalidInput is returned for empty queries, urls, texts or entry lists.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotInitialized is returned when searching before any index was built.
	ErrNotInitialized = errors.New("index not initialized")
	// ErrModelUnavailable is returned when an embedding or generation provider fails.
	ErrModelUnavailable = errors.New("model unavailable")
)
