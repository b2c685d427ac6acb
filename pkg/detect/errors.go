package detect

import (
	"fmt"

	"github.com/chenBenjamin97/agrisentry/pkg/failure"
)

// DetectorError reports a failed detector run. Output holds the last lines the
// detector printed.
type DetectorError struct {
	Mode   string
	Output string
	Err    error
}

func (e *DetectorError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("detector %s: %v", e.Mode, e.Err)
	}
	return fmt.Sprintf("detector %s: %v\n%s", e.Mode, e.Err, e.Output)
}

func (e *DetectorError) Unwrap() error { return e.Err }

func (e *DetectorError) Kind() failure.Kind { return failure.DetectorError }
