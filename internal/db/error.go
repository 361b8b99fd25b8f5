package db

import "errors"

// DuplicateKeyError is an error type for duplicate key errors
type DuplicateKeyError struct {
	Key     string
	Message string
}

func (e *DuplicateKeyError) Error() string {
	return e.Message
}

func (e *DuplicateKeyError) Is(target error) bool {
	var t *DuplicateKeyError
	return errors.As(target, &t)
}

func IsDuplicateKeyError(err error) bool {
	return errors.Is(err, &DuplicateKeyError{})
}

// Not found Error
type NotFoundError struct {
	Key     string
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

func (e *NotFoundError) Is(target error) bool {
	var t *NotFoundError
	return errors.As(target, &t)
}

func IsNotFoundError(err error) bool {
	return errors.Is(err, &NotFoundError{})
}
