package apperr

import "errors"

var (
	// ErrValidation marks rejected input (empty source text, bad enum values, out-of-range counts).
	ErrValidation = errors.New("validation error")
	// ErrProvider marks a network/auth/quota failure from an external provider.
	ErrProvider = errors.New("provider error")
	// ErrParse marks malformed structured output from the language model.
	ErrParse = errors.New("parse error")
	// ErrNotFound marks a missing referenced entity.
	ErrNotFound = errors.New("not found")
	// ErrConcurrencyGuard marks a duplicate processing attempt on the same document.
	ErrConcurrencyGuard = errors.New("already processing")
)
