package workspace

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote"
	"github.com/samber/lo"
)

// RefreshResult summarises a playlist refresh.
type RefreshResult struct {
	Added   int
	Removed int
	Total   int
}

// Merge reconciles the stored tracks with a freshly fetched listing.
//
// The result follows the remote order. Tracks already known keep their
// stored entry, including AutoDownload and DownloadDate; a missing
// thumbnail is filled in from the remote side. Tracks no longer listed
// are dropped.
func Merge(existing, fetched []model.Track) []model.Track {
	known := lo.KeyBy(existing, func(t model.Track) string { return t.ID })
	fetched = lo.UniqBy(fetched, func(t model.Track) string { return t.ID })

	return lo.Map(fetched, func(fresh model.Track, _ int) model.Track {
		stored, ok := known[fresh.ID]
		if !ok {
			return fresh
		}
		if stored.ThumbnailURL == "" {
			stored.ThumbnailURL = fresh.ThumbnailURL
		}
		return stored
	})
}

// Refresh fetches the playlist, merges it into the settings and saves
// them.
func (w *Workspace) Refresh(ctx context.Context, svc remote.PlaylistService) (RefreshResult, error) {
	id := w.PlaylistID()
	if id == "" {
		return RefreshResult{}, remote.ErrNoPlaylistID
	}

	fetched, err := svc.Tracks(ctx, id)
	if err != nil {
		return RefreshResult{}, fmt.Errorf("fetch playlist %s: %w", id, err)
	}

	var res RefreshResult
	err = w.Update(func(s *Settings) {
		before := lo.Map(s.Items, func(t model.Track, _ int) string { return t.ID })
		s.Items = Merge(s.Items, fetched)
		after := lo.Map(s.Items, func(t model.Track, _ int) string { return t.ID })

		removed, added := lo.Difference(before, after)
		res = RefreshResult{Added: len(added), Removed: len(removed), Total: len(s.Items)}
	})
	if err != nil {
		return res, err
	}

	w.log.Info().Int("added", res.Added).Int("removed", res.Removed).Int("total", res.Total).Msg("playlist refreshed")
	return res, nil
}

// Cleanup deletes files in the workspace folder that are not the audio
// file of a current track or a playlist file of the workspace. It does nothing unless DeleteNotSyncedItems is
// set and at least one track is known. Hidden files and directories are
// never touched. It returns the deleted paths; individual failures are
// logged and skipped.
func (w *Workspace) Cleanup() ([]string, error) {
	settings := w.Settings()
	if !settings.DeleteNotSyncedItems || len(settings.Items) == 0 {
		return nil, nil
	}

	keep := make(map[string]struct{})
	for _, t := range settings.Items {
		for _, f := range model.KnownFormats {
			keep[t.FileName(f)] = struct{}{}
		}
	}
	for _, f := range playlistFormats {
		keep[w.playlistFileName(f)] = struct{}{}
	}

	entries, err := os.ReadDir(w.dir)
	if err != nil {
		return nil, fmt.Errorf("list workspace: %w", err)
	}

	var deleted []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if _, ok := keep[name]; ok {
			continue
		}

		path := filepath.Join(w.dir, name)
		if err := os.Remove(path); err != nil {
			w.log.Warn().Err(err).Str("path", path).Msg("cleanup: could not delete file")
			continue
		}
		w.log.Debug().Str("path", path).Msg("cleanup: deleted file")
		deleted = append(deleted, path)
	}
	return deleted, nil
}
