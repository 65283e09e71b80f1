package model

import (
	"path/filepath"
	"strings"
	"time"

	ioutils "github.com/handiism/playlist-sync/internal/io"
)

// Track is a reference to one entry of a remote playlist.
//
// The ID is the opaque identity supplied by the playlist service and never
// changes. Title and the other fields may be refreshed from the remote side.
// A Track is persisted in the workspace settings; downloads only ever hold a
// copy of it.
//
// Example:
//
//	track := NewTrack("dQw4w9WgXcQ", "Artist - Song", thumbURL)
//	path := track.Path("/music/Workout", FormatMP3)
//	// path = "/music/Workout/Artist - Song.mp3"
type Track struct {
	// ID identifies the track in the remote playlist.
	ID string `json:"id" yaml:"id"`

	// Title is the display title, already stripped of path characters.
	Title string `json:"title" yaml:"title"`

	// ThumbnailURL points at the cover image used for tagging.
	// Empty when the service provides none.
	ThumbnailURL string `json:"thumbnailUrl,omitempty" yaml:"thumbnailUrl,omitempty"`

	// AutoDownload marks the track as eligible for batch synchronization.
	AutoDownload bool `json:"autoDownload" yaml:"autoDownload"`

	// DownloadDate is when the file was last written successfully.
	DownloadDate time.Time `json:"downloadDate,omitzero" yaml:"downloadDate,omitempty"`
}

// NewTrack creates a Track with AutoDownload enabled.
//
// The title is cleaned with CleanTitle so that it can be used as a file name.
func NewTrack(id, title, thumbnailURL string) Track {
	return Track{
		ID:           id,
		Title:        CleanTitle(title),
		ThumbnailURL: thumbnailURL,
		AutoDownload: true,
	}
}

// FileName returns the file name of the track for the given format.
//
// Tracks without a usable title fall back to their ID.
func (t Track) FileName(f Format) string {
	name := ioutils.SanitizeFileName(t.Title)
	if name == "" {
		name = ioutils.SanitizeFileName(t.ID)
	}
	return name + f.Extension()
}

// Path joins dir with the track file name for the given format.
func (t Track) Path(dir string, f Format) string {
	return filepath.Join(dir, t.FileName(f))
}

// Equal reports whether both references point at the same remote entry.
func (t Track) Equal(other Track) bool {
	return t.ID == other.ID
}

var titleReplacer = strings.NewReplacer(
	`\`, "", "/", "", "<", "", ">", "", "|", "", ":", "", `"`, "", "*", "", "?", "",
)

// CleanTitle removes the characters \ / < > | : " * ? from a remote title
// and trims surrounding whitespace.
//
// Example:
//
//	CleanTitle(`AC/DC - "Back In Black"`) // "ACDC - Back In Black"
func CleanTitle(title string) string {
	return strings.TrimSpace(titleReplacer.Replace(title))
}
