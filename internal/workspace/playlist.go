package workspace

import (
	"context"
	"path/filepath"

	"github.com/handiism/playlist-sync/internal/audio"
	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/model"
)

var playlistFormats = []audio.PlaylistFormat{audio.FormatM3U, audio.FormatPLS, audio.FormatWPL, audio.FormatZPL}

func (w *Workspace) playlistFileName(f audio.PlaylistFormat) string {
	return ioutils.SanitizeFileName(w.name) + f.Extension()
}

// WritePlaylist writes a playlist file named after the workspace listing
// every downloaded track in playlist order. It returns the file path.
func (w *Workspace) WritePlaylist(ctx context.Context, creator *audio.PlaylistCreator) (string, error) {
	format := w.Format()

	var entries []audio.PlaylistEntry
	for _, t := range w.Tracks() {
		if state, _ := w.Inspect(t); state != model.StateDownloaded {
			continue
		}
		info := audio.InfoFromTrack(t, w.name)
		entries = append(entries, audio.PlaylistEntry{
			FileName: t.FileName(format),
			Artist:   info.Artist,
			Title:    info.Title,
		})
	}

	path := filepath.Join(w.dir, w.playlistFileName(creator.Format()))
	content := creator.CreatePlaylist(w.name, entries)
	if err := ioutils.WriteFile(ctx, path, []byte(content)); err != nil {
		return "", err
	}
	w.log.Debug().Str("path", path).Int("entries", len(entries)).Msg("playlist written")
	return path, nil
}
