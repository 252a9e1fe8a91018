package queue

import (
	"errors"
	"fmt"
)

var (
	ErrJobNotFound     = errors.New("job not found")
	ErrNoProcessor     = errors.New("no processor registered")
	ErrDuplicateQueue  = errors.New("queue already registered")
	ErrUnknownJobName  = errors.New("unknown job name")
	ErrInvalidMaxTries = errors.New("max attempts must be at least 1")
	ErrLeaseLost       = errors.New("job lease lost")
)

// UnrecoverableError marks a failure that no retry can fix. The job is
// dead-lettered immediately.
type UnrecoverableError struct {
	Err error
}

func (e *UnrecoverableError) Error() string { return "unrecoverable: " + e.Err.Error() }
func (e *UnrecoverableError) Unwrap() error { return e.Err }

// TransientError marks a failure expected to clear up, such as a timeout or
// a 5xx answer. It is retried under the queue's backoff policy, which is
// also what happens to an unclassified error.
type TransientError struct {
	Err error
}

func (e *TransientError) Error() string { return "transient: " + e.Err.Error() }
func (e *TransientError) Unwrap() error { return e.Err }

func Unrecoverable(err error) error {
	if err == nil {
		return nil
	}
	return &UnrecoverableError{Err: err}
}

func Unrecoverablef(format string, args ...any) error {
	return &UnrecoverableError{Err: fmt.Errorf(format, args...)}
}

func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &TransientError{Err: err}
}

func IsUnrecoverable(err error) bool {
	var u *UnrecoverableError
	return errors.As(err, &u)
}

func IsTransient(err error) bool {
	var t *TransientError
	return errors.As(err, &t)
}
