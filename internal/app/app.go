// Package app wires settings, remote services and the download pipeline
// into workspace sessions used by the commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/handiism/playlist-sync/internal/audio"
	"github.com/handiism/playlist-sync/internal/config"
	"github.com/handiism/playlist-sync/internal/download"
	"github.com/handiism/playlist-sync/internal/http"
	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/remote"
	"github.com/handiism/playlist-sync/internal/workspace"
	"github.com/rs/zerolog"
)

// App holds the collaborators shared by all sessions of a process.
type App struct {
	Settings  *config.Settings
	Log       zerolog.Logger
	Client    *http.Client
	Playlists remote.PlaylistService
	Factory   *download.Factory
}

// Option configures an App.
type Option func(*App, *download.Deps)

// WithResolver replaces the HTTP resolver.
func WithResolver(r remote.Resolver) Option {
	return func(_ *App, deps *download.Deps) { deps.Resolver = r }
}

// WithPlaylistService replaces the HTTP playlist service.
func WithPlaylistService(svc remote.PlaylistService) Option {
	return func(a *App, _ *download.Deps) { a.Playlists = svc }
}

// WithTranscoder replaces ffmpeg.
func WithTranscoder(t download.Transcoder) Option {
	return func(_ *App, deps *download.Deps) { deps.Transcoder = t }
}

// New builds the application from settings.
func New(settings *config.Settings, log zerolog.Logger, opts ...Option) *App {
	client := http.NewClient(
		http.WithTimeout(settings.Timeout()),
		http.WithUserAgent(settings.UserAgent),
	)

	playlists := remote.NewAPIPlaylistService(client, settings.PlaylistAPIURL,
		remote.WithAPIKey(settings.PlaylistAPIKey),
		remote.WithPageSize(settings.PlaylistPageSize),
		remote.WithMaximum(settings.PlaylistReceiveMaximum),
	)

	a := &App{
		Settings:  settings,
		Log:       log,
		Client:    client,
		Playlists: playlists,
	}

	deps := download.Deps{
		Resolver:   remote.NewAPIResolver(client, settings.ResolverURL),
		Streamer:   client,
		Transcoder: audio.NewFFmpeg(settings.FFmpegPath, settings.Bitrate),
		Tagger:     audio.NewTagger(settings.ToTagConfig()),
		Logger:     log,
	}
	if settings.SaveCoverArtInTags {
		deps.Artwork = download.NewCovers(client, ioutils.NewCoverProcessor(settings.CoverArtMaxSize))
	}
	for _, opt := range opts {
		opt(a, &deps)
	}
	deps.Resolver = remote.Shared(deps.Resolver)

	a.Factory = download.NewFactory(deps)
	return a
}

// Session is one opened workspace with its own scheduler.
type Session struct {
	Workspace *workspace.Workspace
	Manager   *download.Manager
	Syncer    *workspace.Syncer

	app *App
}

// Open opens the workspace in dir. A non-empty playlistURL replaces the
// stored one. New workspaces take the configured download format.
func (a *App) Open(dir, playlistURL string) (*Session, error) {
	ws, err := workspace.Open(dir, workspace.WithLogger(a.Log))
	if err != nil {
		return nil, err
	}

	if ws.Settings().PlaylistURL == "" {
		if err := ws.Update(func(s *workspace.Settings) { s.DownloadFormat = a.Settings.Format() }); err != nil {
			return nil, err
		}
	}
	if playlistURL != "" {
		if err := ws.SetPlaylistURL(playlistURL); err != nil {
			return nil, fmt.Errorf("playlist url: %w", err)
		}
	}

	manager := download.NewManager(a.Settings.ParallelDownloads, download.WithLogger(a.Log))
	syncer := workspace.NewSyncer(ws, a.Factory, manager,
		workspace.WithSyncLogger(a.Log),
		workspace.WithPlaylistCreator(a.Settings.ToPlaylistCreator()),
	)

	return &Session{Workspace: ws, Manager: manager, Syncer: syncer, app: a}, nil
}

// Refresh fetches the playlist and, when the workspace asks for it,
// deletes files that are no longer part of it.
func (s *Session) Refresh(ctx context.Context) (workspace.RefreshResult, []string, error) {
	res, err := s.Workspace.Refresh(ctx, s.app.Playlists)
	if err != nil {
		return res, nil, err
	}
	deleted, err := s.Workspace.Cleanup()
	return res, deleted, err
}

// Sync runs a batch and waits for it. Cancelling ctx cancels the batch;
// the drained result is returned together with ctx's error.
func (s *Session) Sync(ctx context.Context) (workspace.Result, error) {
	if _, err := s.Syncer.SyncAll(); err != nil {
		return workspace.Result{}, err
	}

	res, err := s.Syncer.Wait(ctx)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded) {
		return res, err
	}

	s.Syncer.Cancel()
	res, _ = s.Syncer.Wait(context.Background())
	return res, err
}
