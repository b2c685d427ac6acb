package acquire

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

// ErrNoStreamFound matches (errors.Is) every *NoStreamFoundError.
var ErrNoStreamFound = errors.New("no progressive stream found")

// ErrInvalidLocator is the cause of an AcquisitionError for malformed locators.
var ErrInvalidLocator = errors.New("locator must be an absolute http(s) URL")

// NoStreamFoundError reports that a locator offers no eligible stream.
// It is not retryable without changing the container constraint.
type NoStreamFoundError struct {
	Locator   string
	Container string
}

func (e *NoStreamFoundError) Error() string {
	return fmt.Sprintf("acquire %s: no progressive %s stream found", e.Locator, e.Container)
}

func (e *NoStreamFoundError) Is(target error) bool { return target == ErrNoStreamFound }

func (e *NoStreamFoundError) Kind() failure.Kind { return failure.NoStreamFound }

// AcquisitionError reports a resolution or transfer failure. Err holds the
// underlying cause.
type AcquisitionError struct {
	Locator string
	Err     error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Locator, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

func (e *AcquisitionError) Kind() failure.Kind { return failure.AcquisitionError }
