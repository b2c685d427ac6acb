// Package failure names the kinds of failure the dataset tooling reports, so
// callers can branch on a kind instead of matching messages.
package failure

import "github.com/pkg/errors"

// Kind classifies a failure.
type Kind string

const (
	Unknown          Kind = "Unknown"
	NoStreamFound    Kind = "NoStreamFound"    // no eligible stream for the locator
	AcquisitionError Kind = "AcquisitionError" // resolution or transfer failure
	SourceNotFound   Kind = "SourceNotFound"   // an input path does not exist
	TranscodeError   Kind = "TranscodeError"   // the frame extraction backend failed
	InvalidArgument  Kind = "InvalidArgument"
	PublishError     Kind = "PublishError"
	DetectorError    Kind = "DetectorError"
)

// Kinder is implemented by errors that know their kind.
type Kinder interface {
	Kind() Kind
}

// KindOf returns the kind of the first error in err's chain that reports one.
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var k Kinder
	if errors.As(err, &k) {
		return k.Kind()
	}
	return Unknown
}

// Retryable reports whether retrying without changing the input can succeed.
func Retryable(k Kind) bool {
	switch k {
	case AcquisitionError, TranscodeError, PublishError, DetectorError:
		return true
	default:
		return false
	}
}

// kindError attaches a kind to a plain error.
type kindError struct {
	kind Kind
	err  error
}

func (e *kindError) Error() string { return e.err.Error() }
func (e *kindError) Unwrap() error { return e.err }
func (e *kindError) Kind() Kind    { return e.kind }

// New returns an error of the given kind.
func New(kind Kind, msg string) error {
	return &kindError{kind: kind, err: errors.New(msg)}
}

// Errorf returns an error of the given kind with a formatted message.
func Errorf(kind Kind, format string, args ...interface{}) error {
	return &kindError{kind: kind, err: errors.Errorf(format, args...)}
}

// Wrap annotates err with msg and tags it with kind. Wrap(nil) is nil.
func Wrap(kind Kind, err error, msg string) error {
	if err == nil {
		return nil
	}
	return &kindError{kind: kind, err: errors.Wrap(err, msg)}
}
