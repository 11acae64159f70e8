package errs

import (
	"errors"
)

var (
	ErrNotConfigured = errors.New("service is not configured")
	ErrAlreadyExists = errors.New("record already exists")
)
