package workspace

import (
	"github.com/handiism/playlist-sync/internal/audio"
	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/samber/lo"
)

// Inspect derives the file-system state of track and the file it refers
// to: the target path when the track is downloaded or missing, or the
// existing file in another format when it needs conversion.
func (w *Workspace) Inspect(track model.Track) (model.DownloadState, string) {
	target := w.Format()
	path := track.Path(w.dir, target)
	if ioutils.Exists(path) {
		return model.StateDownloaded, path
	}

	for _, f := range model.KnownFormats {
		if f == target || !audio.SupportsConversion(f, target) {
			continue
		}
		if other := track.Path(w.dir, f); ioutils.Exists(other) {
			return model.StateNeedsConversion, other
		}
	}
	return model.StateNotDownloaded, path
}

// Counts returns how many tracks are downloaded, out of all tracks.
func (w *Workspace) Counts() (downloaded, total int) {
	tracks := w.Tracks()
	downloaded = lo.CountBy(tracks, func(t model.Track) bool {
		state, _ := w.Inspect(t)
		return state == model.StateDownloaded
	})
	return downloaded, len(tracks)
}
