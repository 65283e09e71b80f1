package model

// DownloadState describes where a track stands relative to its local file.
//
// The first three states are derived from the file system; the others are
// runtime states set while a sync is working on the track.
type DownloadState int

const (
	// StateNotDownloaded means no file for the track exists.
	StateNotDownloaded DownloadState = iota

	// StateDownloaded means a file in the target format exists.
	StateDownloaded

	// StateNeedsConversion means a file exists, but in another known format.
	StateNeedsConversion

	// StateQueued means a work item is waiting for a free slot.
	StateQueued

	// StateDownloading means audio is being transferred.
	StateDownloading

	// StateConverting means the transcoder is running.
	StateConverting

	// StateFailed means the last attempt ended with an error.
	StateFailed
)

var stateNames = map[DownloadState]string{
	StateNotDownloaded:   "not downloaded",
	StateDownloaded:      "downloaded",
	StateNeedsConversion: "needs conversion",
	StateQueued:          "queued",
	StateDownloading:     "downloading",
	StateConverting:      "converting",
	StateFailed:          "failed",
}

// String implements fmt.Stringer.
func (s DownloadState) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// IsActive reports whether a work item currently owns the track.
func (s DownloadState) IsActive() bool {
	return s == StateQueued || s == StateDownloading || s == StateConverting
}
