package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path"

	"github.com/handiism/playlist-sync/internal/http"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote/dto"
	"golang.org/x/sync/singleflight"
)

// ErrNoAudio is returned when a track has no streamable audio.
var ErrNoAudio = errors.New("no audio stream available")

// Source is a resolved, directly streamable audio location.
type Source struct {
	// URL is fetched with a plain GET.
	URL string

	// Container is the format of the bytes behind URL.
	Container model.Format

	// Size is the declared size in bytes, or 0 when unknown.
	Size int64
}

// Resolver turns a track reference into a streamable source.
type Resolver interface {
	Resolve(ctx context.Context, track model.Track) (Source, error)
}

// APIResolver resolves tracks through an HTTP endpoint of the form
//
//	GET {baseURL}/audio?id={trackID}
//
// which answers with a dto.JSONAudioSource.
type APIResolver struct {
	client  *http.Client
	baseURL string
}

// NewAPIResolver creates a resolver for the service at baseURL.
func NewAPIResolver(client *http.Client, baseURL string) *APIResolver {
	return &APIResolver{client: client, baseURL: baseURL}
}

// Resolve implements Resolver.
func (r *APIResolver) Resolve(ctx context.Context, track model.Track) (Source, error) {
	endpoint, err := url.JoinPath(r.baseURL, "audio")
	if err != nil {
		return Source{}, err
	}
	endpoint += "?" + url.Values{"id": {track.ID}}.Encode()

	var resp dto.JSONAudioSource
	if err := r.client.GetJSON(ctx, endpoint, &resp); err != nil {
		return Source{}, fmt.Errorf("resolve %s: %w", track.ID, err)
	}
	if resp.URL == "" {
		return Source{}, fmt.Errorf("resolve %s: %w", track.ID, ErrNoAudio)
	}

	return Source{
		URL:       resp.URL,
		Container: containerOf(resp.Container, resp.URL),
		Size:      resp.Size,
	}, nil
}

// containerOf picks the declared container, then the URL extension, then m4a.
func containerOf(declared, rawURL string) model.Format {
	if f, err := model.ParseFormat(declared); err == nil {
		return f
	}
	if u, err := url.Parse(rawURL); err == nil {
		if f, ok := model.FormatOf(path.Base(u.Path)); ok {
			return f
		}
	}
	return model.FormatM4A
}

// SharedResolver collapses concurrent resolutions of the same track into a
// single call to the wrapped Resolver.
type SharedResolver struct {
	next  Resolver
	group singleflight.Group
}

// Shared wraps next in a SharedResolver.
func Shared(next Resolver) *SharedResolver {
	return &SharedResolver{next: next}
}

// Resolve implements Resolver.
func (s *SharedResolver) Resolve(ctx context.Context, track model.Track) (Source, error) {
	ch := s.group.DoChan(track.ID, func() (any, error) {
		return s.next.Resolve(context.WithoutCancel(ctx), track)
	})
	select {
	case <-ctx.Done():
		return Source{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Source{}, res.Err
		}
		return res.Val.(Source), nil
	}
}
