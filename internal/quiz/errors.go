package quiz

import "errors"

var (
	ErrNotFound         = errors.New("not found")
	ErrForbidden        = errors.New("forbidden")
	ErrAlreadyCompleted = errors.New("attempt already completed")
	ErrValidation       = errors.New("validation failed")
)
