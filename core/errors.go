package core

import "errors"

var (
	ErrNotFound       = errors.New("not found")
	ErrConflict       = errors.New("already exists")
	ErrForbidden      = errors.New("forbidden")
	ErrInvalidElement = errors.New("invalid element")
)
