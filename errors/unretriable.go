package errors

import "errors"

type unretriableError struct{ error }

// Unretriable wraps an error to mark it as non-retriable. The worker treats
// these as terminal and converts them straight into failed statuses.
func Unretriable(err error) error {
	return unretriableError{err}
}

func (e unretriableError) Unwrap() error {
	return e.error
}

// IsUnretriable reports whether any error in err's chain is unretriable.
func IsUnretriable(err error) bool {
	return errors.As(err, &unretriableError{})
}
