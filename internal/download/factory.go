package download

import (
	"context"
	"errors"

	"github.com/handiism/playlist-sync/internal/http"
	ioutils "github.com/handiism/playlist-sync/internal/io"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote"
	"github.com/rs/zerolog"
)

// Deps are the collaborators work items use.
//
// Resolver, Streamer and Transcoder are required for downloads; Transcoder
// is required for conversions. Tagger and Artwork are optional.
type Deps struct {
	Resolver   remote.Resolver
	Streamer   Streamer
	Transcoder Transcoder
	Tagger     Tagger
	Artwork    ArtworkFetcher
	Logger     zerolog.Logger
}

// Factory creates work items that share one set of Deps.
type Factory struct {
	deps Deps
}

// NewFactory creates a Factory.
func NewFactory(deps Deps) *Factory {
	return &Factory{deps: deps}
}

// Fetch creates a download of track into dest.
func (f *Factory) Fetch(track model.Track, dest string, opts FetchOptions) Item {
	return NewFetchItem(track, dest, opts, f.deps)
}

// Convert creates a conversion of src into dst.
func (f *Factory) Convert(track model.Track, src, dst string) Item {
	return NewConversionItem(track, src, dst, f.deps)
}

var errNoThumbnail = errors.New("track has no thumbnail")

// Covers downloads thumbnails and turns them into cover art.
type Covers struct {
	client    *http.Client
	processor *ioutils.CoverProcessor
}

// NewCovers creates an ArtworkFetcher.
func NewCovers(client *http.Client, processor *ioutils.CoverProcessor) *Covers {
	return &Covers{client: client, processor: processor}
}

// Artwork implements ArtworkFetcher.
func (c *Covers) Artwork(ctx context.Context, track model.Track) ([]byte, error) {
	if track.ThumbnailURL == "" {
		return nil, errNoThumbnail
	}
	data, err := c.client.DownloadBytes(ctx, track.ThumbnailURL)
	if err != nil {
		return nil, err
	}
	return c.processor.Prepare(ctx, data)
}
