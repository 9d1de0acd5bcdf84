package service

import "errors"

var (
	// ErrUnauthenticated is returned when the caller identity has no email.
	ErrUnauthenticated = errors.New("user not authenticated")
	// ErrChallengerNotFound means the authenticated caller has no user row.
	ErrChallengerNotFound = errors.New("challenger user not found")
)

// PersistenceError wraps any failure of the underlying store.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}

func persistence(op string, err error) error {
	var pe *PersistenceError
	if errors.As(err, &pe) {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
