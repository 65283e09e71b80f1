package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/handiism/playlist-sync/internal/audio"
	"github.com/handiism/playlist-sync/internal/model"
	"gopkg.in/yaml.v2"
)

// Settings holds all configuration options.
type Settings struct {
	// Download settings
	ParallelDownloads int    `json:"parallel_downloads" yaml:"parallel_downloads"`
	DownloadFormat    string `json:"download_format" yaml:"download_format"` // mp3, m4a
	HTTPTimeout       int    `json:"http_timeout_seconds" yaml:"http_timeout_seconds"`
	UserAgent         string `json:"user_agent" yaml:"user_agent"`

	// Remote services
	ResolverURL            string `json:"resolver_url" yaml:"resolver_url"`
	PlaylistAPIURL         string `json:"playlist_api_url" yaml:"playlist_api_url"`
	PlaylistAPIKey         string `json:"playlist_api_key" yaml:"playlist_api_key"`
	PlaylistPageSize       int    `json:"playlist_page_size" yaml:"playlist_page_size"`
	PlaylistReceiveMaximum int    `json:"playlist_receive_maximum" yaml:"playlist_receive_maximum"`

	// Transcoder settings
	FFmpegPath string `json:"ffmpeg_path" yaml:"ffmpeg_path"`
	Bitrate    int    `json:"bitrate_kbps" yaml:"bitrate_kbps"`

	// Cover art settings
	SaveCoverArtInTags bool `json:"save_cover_art_in_tags" yaml:"save_cover_art_in_tags"`
	CoverArtMaxSize    int  `json:"cover_art_max_size" yaml:"cover_art_max_size"`

	// Tag settings
	ModifyTags bool `json:"modify_tags" yaml:"modify_tags"`

	// Playlist settings
	PlaylistFormat string `json:"playlist_format" yaml:"playlist_format"` // m3u, pls, wpl, zpl
	M3UExtended    bool   `json:"m3u_extended" yaml:"m3u_extended"`

	// Logging
	LogLevel string `json:"log_level" yaml:"log_level"` // debug, info, warn, error
	LogFile  string `json:"log_file" yaml:"log_file"`
}

// DefaultSettings returns settings with default values.
func DefaultSettings() *Settings {
	return &Settings{
		ParallelDownloads: 3,
		DownloadFormat:    string(model.FormatMP3),
		HTTPTimeout:       60,
		UserAgent:         "playlist-sync",

		ResolverURL:            "http://127.0.0.1:8090",
		PlaylistAPIURL:         "https://www.googleapis.com/youtube/v3",
		PlaylistPageSize:       50,
		PlaylistReceiveMaximum: 5000,

		FFmpegPath: "ffmpeg",
		Bitrate:    192,

		SaveCoverArtInTags: true,
		CoverArtMaxSize:    1000,

		ModifyTags: true,

		PlaylistFormat: "m3u",
		M3UExtended:    true,

		LogLevel: "info",
	}
}

// DefaultPath returns the settings file in the user configuration directory.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		dir = "."
	}
	return filepath.Join(dir, "playlist-sync", "config.json")
}

// isYAML reports whether path should be read and written as YAML.
func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// Load reads settings from a JSON or YAML file, chosen by extension.
// A missing file yields the defaults; fields absent from the file keep
// their default values.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return DefaultSettings(), nil
		}
		return nil, err
	}

	settings := DefaultSettings()
	if isYAML(path) {
		err = yaml.Unmarshal(data, settings)
	} else {
		err = json.Unmarshal(data, settings)
	}
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	if err := settings.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return settings, nil
}

// Save writes settings to a JSON or YAML file, chosen by extension.
func (s *Settings) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(s)
	} else {
		data, err = json.MarshalIndent(s, "", "  ")
	}
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate checks values that cannot be repaired silently.
func (s *Settings) Validate() error {
	f, err := model.ParseFormat(s.DownloadFormat)
	if err != nil {
		return err
	}
	if !f.IsTarget() {
		return fmt.Errorf("download format %s cannot be a target", f)
	}
	if s.ParallelDownloads < 1 {
		return fmt.Errorf("parallel downloads must be at least 1, got %d", s.ParallelDownloads)
	}
	return nil
}

// Format returns the download format, defaulting to MP3.
func (s *Settings) Format() model.Format {
	f, err := model.ParseFormat(s.DownloadFormat)
	if err != nil || !f.IsTarget() {
		return model.FormatMP3
	}
	return f
}

// Timeout returns the HTTP timeout.
func (s *Settings) Timeout() time.Duration {
	if s.HTTPTimeout <= 0 {
		return 60 * time.Second
	}
	return time.Duration(s.HTTPTimeout) * time.Second
}

// ToTagConfig converts settings to an audio.TagConfig.
func (s *Settings) ToTagConfig() *audio.TagConfig {
	cfg := audio.DefaultTagConfig()
	cfg.ModifyTags = s.ModifyTags
	return cfg
}

// ToPlaylistCreator returns a creator for the configured playlist format.
func (s *Settings) ToPlaylistCreator() *audio.PlaylistCreator {
	return audio.NewPlaylistCreator(audio.ParsePlaylistFormat(s.PlaylistFormat), s.M3UExtended)
}
