package domain

import (
	"errors"
	"fmt"
)

var (
	ErrPermissionDenied  = errors.New("permission denied")
	ErrSourceUnavailable = errors.New("capture source unavailable")
	ErrAlreadyRecording  = errors.New("a recording is already in progress")
	ErrNotRecording      = errors.New("no recording in progress")
	ErrNoSources         = errors.New("at least one of screen, webcam or microphone must be selected")
	ErrInvalidConfig     = errors.New("invalid recording configuration")
	ErrRecordingNotFound = errors.New("recording not found")
	ErrInvalidEdit       = errors.New("invalid edit parameters")
)

// AcquisitionError reports which capture source failed to open.
type AcquisitionError struct {
	Source SourceKind
	Err    error
}

func (e *AcquisitionError) Error() string {
	return fmt.Sprintf("acquire %s: %v", e.Source, e.Err)
}

func (e *AcquisitionError) Unwrap() error { return e.Err }

// IsAcquisitionError reports whether err came from opening capture sources.
func IsAcquisitionError(err error) bool {
	var acqErr *AcquisitionError
	return errors.As(err, &acqErr)
}
