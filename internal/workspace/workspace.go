package workspace

import (
	"fmt"
	"path/filepath"
	"slices"
	"sync"
	"time"

	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote"
	"github.com/rs/zerolog"
)

const (
	// MetaDir is the hidden directory holding workspace metadata.
	MetaDir = ".workspace"

	// SettingsFile is the settings file name inside MetaDir.
	SettingsFile = ".workspace.json"
)

// Workspace is a local folder mirroring one remote playlist.
type Workspace struct {
	dir   string
	name  string
	store Store
	log   zerolog.Logger

	mu         sync.RWMutex
	settings   Settings
	playlistID string
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithStore replaces the default JSON store in MetaDir.
func WithStore(store Store) Option {
	return func(w *Workspace) { w.store = store }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger zerolog.Logger) Option {
	return func(w *Workspace) { w.log = logger }
}

// Open opens the workspace in dir, creating the folder and its metadata
// directory when missing.
func Open(dir string, opts ...Option) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}

	w := &Workspace{
		dir:  abs,
		name: filepath.Base(abs),
		log:  zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(w)
	}
	w.log = w.log.With().Str("workspace", w.name).Logger()

	if err := ioutils.EnsureDir(filepath.Join(abs, MetaDir)); err != nil {
		return nil, fmt.Errorf("create workspace: %w", err)
	}
	if w.store == nil {
		w.store = NewJSONStore(filepath.Join(abs, MetaDir, SettingsFile))
	}

	settings, err := w.store.Load()
	if err != nil {
		return nil, fmt.Errorf("read workspace settings: %w", err)
	}
	settings.normalize()
	w.settings = settings
	w.playlistID, _ = remote.PlaylistID(settings.PlaylistURL)

	w.log.Debug().Str("path", abs).Int("tracks", len(settings.Items)).Msg("workspace opened")
	return w, nil
}

// Dir returns the absolute workspace folder.
func (w *Workspace) Dir() string { return w.dir }

// Name returns the folder name.
func (w *Workspace) Name() string { return w.name }

// String implements fmt.Stringer.
func (w *Workspace) String() string { return w.name }

// PlaylistID returns the list parameter of the playlist URL, or "".
func (w *Workspace) PlaylistID() string {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.playlistID
}

// Settings returns a copy of the current settings.
func (w *Workspace) Settings() Settings {
	w.mu.RLock()
	defer w.mu.RUnlock()
	s := w.settings
	s.Items = slices.Clone(s.Items)
	return s
}

// Format returns the download format.
func (w *Workspace) Format() model.Format {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.settings.DownloadFormat
}

// Tracks returns the playlist tracks in remote order.
func (w *Workspace) Tracks() []model.Track {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return slices.Clone(w.settings.Items)
}

// Track looks a track up by ID.
func (w *Workspace) Track(id string) (model.Track, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	i := slices.IndexFunc(w.settings.Items, func(t model.Track) bool { return t.ID == id })
	if i < 0 {
		return model.Track{}, false
	}
	return w.settings.Items[i], true
}

// TrackPath returns where track is stored in the download format.
func (w *Workspace) TrackPath(track model.Track) string {
	return track.Path(w.dir, w.Format())
}

// SetPlaylistURL points the workspace at another playlist. Changing the
// URL drops the known tracks; they are fetched again by Refresh.
func (w *Workspace) SetPlaylistURL(url string) error {
	if _, err := remote.PlaylistID(url); err != nil {
		return err
	}
	return w.Update(func(s *Settings) {
		if s.PlaylistURL != url {
			s.Items = nil
		}
		s.PlaylistURL = url
	})
}

// Update applies fn to the settings and saves them.
func (w *Workspace) Update(fn func(*Settings)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	fn(&w.settings)
	w.settings.normalize()
	w.playlistID, _ = remote.PlaylistID(w.settings.PlaylistURL)
	return w.saveLocked()
}

// Save persists the current settings.
func (w *Workspace) Save() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.saveLocked()
}

func (w *Workspace) saveLocked() error {
	if err := w.store.Save(w.settings); err != nil {
		w.log.Error().Err(err).Msg("saving workspace settings failed")
		return fmt.Errorf("save workspace settings: %w", err)
	}
	return nil
}

// markDownloaded stamps the DownloadDate of a track in memory.
func (w *Workspace) markDownloaded(id string, at time.Time) {
	w.mu.Lock()
	defer w.mu.Unlock()
	for i := range w.settings.Items {
		if w.settings.Items[i].ID == id {
			w.settings.Items[i].DownloadDate = at
			return
		}
	}
}
