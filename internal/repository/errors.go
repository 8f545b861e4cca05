package repository

import "errors"

// ErrDuplicateEmail is returned when a unique email constraint is violated.
var ErrDuplicateEmail = errors.New("repository: duplicate email")
