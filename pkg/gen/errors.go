package gen

import "fmt"

// ClassifiedError ties a backend error to one of the taxonomy
// sentinels so errors.Is works against both.
type ClassifiedError struct {
	// Sentinel is ErrTransient or ErrFatal
	Sentinel error

	// Err is the underlying backend error
	Err error
}

func (e *ClassifiedError) Error() string {
	return fmt.Sprintf("%v: %v", e.Sentinel, e.Err)
}

func (e *ClassifiedError) Unwrap() []error {
	return []error{e.Sentinel, e.Err}
}

// Transient wraps err as a retryable failure.
func Transient(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Sentinel: ErrTransient, Err: err}
}

// Fatal wraps err as a non-retryable failure.
func Fatal(err error) error {
	if err == nil {
		return nil
	}
	return &ClassifiedError{Sentinel: ErrFatal, Err: err}
}
