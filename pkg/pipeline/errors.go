package pipeline

import (
	"errors"
	"fmt"
)

var (
	// ErrAssetNotFound is returned when a stage input (image, video,
	// audio track) does not exist on disk.
	ErrAssetNotFound = errors.New("asset not found")

	// ErrInvalidDuration is returned when a probed media duration is
	// zero or negative and a stage needs it for repeat math.
	ErrInvalidDuration = errors.New("invalid media duration")
)

// EncodingError carries the stage name and the encoder's diagnostic
// output so failures are debuggable from logs alone.
type EncodingError struct {
	Stage  string
	Output string
	Err    error
}

func (e *EncodingError) Error() string {
	if e.Output != "" {
		return fmt.Sprintf("%s encoding failed: %v: %s", e.Stage, e.Err, e.Output)
	}
	return fmt.Sprintf("%s encoding failed: %v", e.Stage, e.Err)
}

func (e *EncodingError) Unwrap() error {
	return e.Err
}
