package catalog

import "errors"

var (
	ErrNotFound        = errors.New("part not found")
	ErrSessionNotFound = errors.New("session not found")
)
