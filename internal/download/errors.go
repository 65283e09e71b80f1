package download

import (
	"errors"
	"fmt"

	"github.com/handiism/playlist-sync/internal/audio"
)

var (
	// ErrResolutionFailed means no streamable source could be found.
	ErrResolutionFailed = errors.New("could not resolve a streamable source")

	// ErrUnsupportedConversion means the format pair cannot be transcoded.
	ErrUnsupportedConversion = audio.ErrUnsupportedConversion

	// ErrSourceMissing means the file to convert does not exist.
	ErrSourceMissing = errors.New("source file does not exist")

	// ErrDuplicateItem is returned by Manager.Enqueue for a track that is
	// already pending or active.
	ErrDuplicateItem = errors.New("track is already queued")

	// ErrNilItem is returned by Manager.Enqueue for a nil item.
	ErrNilItem = errors.New("nil work item")
)

// Stage names the step of a work item that failed.
type Stage string

const (
	StageResolve  Stage = "resolve"
	StageTransfer Stage = "transfer"
	StageConvert  Stage = "convert"
	StageFinalize Stage = "finalize"
)

// ItemError is a stage-aware failure of one work item.
type ItemError struct {
	Stage   Stage
	TrackID string
	Err     error
}

// Error formats the failure for logs and UI.
func (e *ItemError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s %s: %v", e.Stage, e.TrackID, e.Err)
}

// Unwrap exposes the underlying error for errors.Is / errors.As.
func (e *ItemError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func failure(stage Stage, trackID string, err error) Completion {
	return Completion{Err: &ItemError{Stage: stage, TrackID: trackID, Err: err}}
}
