package workspace

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/handiism/playlist-sync/internal/model"
)

// Settings is the persisted state of one workspace.
type Settings struct {
	// PlaylistURL is the remote playlist the workspace mirrors.
	PlaylistURL string `json:"playlistUrl"`

	// Items are the playlist tracks in remote order.
	Items []model.Track `json:"items"`

	// ItemsPerPage is the page size used by listings.
	ItemsPerPage int `json:"itemsPerPage"`

	// DeleteNotSyncedItems enables Cleanup after a refresh.
	DeleteNotSyncedItems bool `json:"deleteNotSyncedItems"`

	// DownloadFormat is the target format for every track.
	DownloadFormat model.Format `json:"downloadFormat"`

	// CreatePlaylist writes a playlist file after each sync.
	CreatePlaylist bool `json:"createPlaylist"`

	// AutoSync starts a refresh and sync when the workspace is opened
	// interactively.
	AutoSync bool `json:"autoSync"`

	// LastSync is when a batch sync last drained.
	LastSync time.Time `json:"lastSync,omitzero"`
}

// DefaultSettings returns the settings of a new workspace.
func DefaultSettings() Settings {
	return Settings{
		ItemsPerPage:   10,
		DownloadFormat: model.FormatMP3,
	}
}

// normalize repairs values a hand-edited file may carry.
func (s *Settings) normalize() {
	if s.ItemsPerPage <= 0 {
		s.ItemsPerPage = 10
	}
	if !s.DownloadFormat.IsTarget() {
		s.DownloadFormat = model.FormatMP3
	}
}

// Store defines persistence operations for workspace settings.
type Store interface {
	Load() (Settings, error)
	Save(Settings) error
}

// JSONStore persists settings in a single JSON file on disk.
type JSONStore struct {
	path string
}

// NewJSONStore creates a JSON-backed settings store.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the settings file location.
func (s *JSONStore) Path() string { return s.path }

// Load reads settings from disk or returns defaults when the file is
// missing or empty.
func (s *JSONStore) Load() (Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return Settings{}, err
	}
	if len(data) == 0 {
		return DefaultSettings(), nil
	}

	cfg := DefaultSettings()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("parse %s: %w", s.path, err)
	}
	cfg.normalize()
	return cfg, nil
}

// Save writes settings as indented JSON and creates parent directories.
// The file is replaced atomically.
func (s *JSONStore) Save(cfg Settings) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
