package transcode

import "fmt"

// PermanentError marks failures that retrying cannot fix, like a file
// with no video stream. The task handler turns these into an immediate
// terminal failure instead of burning retries.
type PermanentError struct {
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("permanent transcode failure: %s", e.Reason)
}

// NewPermanentError builds a PermanentError with a formatted reason.
func NewPermanentError(format string, args ...any) *PermanentError {
	return &PermanentError{Reason: fmt.Sprintf(format, args...)}
}
