package remote

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"

	"github.com/handiism/playlist-sync/internal/http"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote/dto"
)

// ErrNoPlaylistID is returned when a playlist URL carries no list parameter.
var ErrNoPlaylistID = errors.New("playlist url has no list parameter")

// PlaylistID extracts the playlist identifier from the "list" query
// parameter of a playlist URL.
//
//	PlaylistID("https://www.youtube.com/playlist?list=PL123") // "PL123"
func PlaylistID(playlistURL string) (string, error) {
	u, err := url.Parse(playlistURL)
	if err != nil {
		return "", err
	}
	id := u.Query().Get("list")
	if id == "" {
		return "", ErrNoPlaylistID
	}
	return id, nil
}

// PlaylistService lists the tracks of a remote playlist in playlist order.
type PlaylistService interface {
	Tracks(ctx context.Context, playlistID string) ([]model.Track, error)
}

// APIPlaylistService pages through an HTTP endpoint of the form
//
//	GET {baseURL}/playlistItems?part=snippet&playlistId=..&maxResults=..&pageToken=..[&key=..]
//
// following nextPageToken until it is empty or the maximum is reached.
type APIPlaylistService struct {
	client   *http.Client
	baseURL  string
	apiKey   string
	pageSize int
	maximum  int
	onPage   func(received, total int)
}

// PlaylistOption configures an APIPlaylistService.
type PlaylistOption func(*APIPlaylistService)

// WithAPIKey adds a key parameter to every request.
func WithAPIKey(key string) PlaylistOption {
	return func(s *APIPlaylistService) { s.apiKey = key }
}

// WithPageSize sets maxResults per request.
func WithPageSize(n int) PlaylistOption {
	return func(s *APIPlaylistService) {
		if n > 0 {
			s.pageSize = n
		}
	}
}

// WithMaximum caps the number of tracks fetched. Zero means no cap.
func WithMaximum(n int) PlaylistOption {
	return func(s *APIPlaylistService) {
		if n >= 0 {
			s.maximum = n
		}
	}
}

// WithPageCallback is called after each page with the tracks received so far
// and the total announced by the service.
func WithPageCallback(fn func(received, total int)) PlaylistOption {
	return func(s *APIPlaylistService) { s.onPage = fn }
}

// NewAPIPlaylistService creates a playlist service for baseURL.
//
// Defaults: 50 items per page, at most 5000 tracks.
func NewAPIPlaylistService(client *http.Client, baseURL string, opts ...PlaylistOption) *APIPlaylistService {
	s := &APIPlaylistService{
		client:   client,
		baseURL:  baseURL,
		pageSize: 50,
		maximum:  5000,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Tracks implements PlaylistService.
func (s *APIPlaylistService) Tracks(ctx context.Context, playlistID string) ([]model.Track, error) {
	endpoint, err := url.JoinPath(s.baseURL, "playlistItems")
	if err != nil {
		return nil, err
	}

	var (
		tracks []model.Track
		token  string
	)
	for {
		params := url.Values{
			"part":       {"snippet"},
			"playlistId": {playlistID},
			"maxResults": {strconv.Itoa(s.pageSize)},
		}
		if token != "" {
			params.Set("pageToken", token)
		}
		if s.apiKey != "" {
			params.Set("key", s.apiKey)
		}

		var page dto.JSONPlaylistPage
		if err := s.client.GetJSON(ctx, endpoint+"?"+params.Encode(), &page); err != nil {
			return nil, fmt.Errorf("fetch playlist %s: %w", playlistID, err)
		}

		for _, item := range page.Items {
			if track, ok := item.ToTrack(); ok {
				tracks = append(tracks, track)
			}
			if s.maximum > 0 && len(tracks) >= s.maximum {
				break
			}
		}

		if s.onPage != nil {
			s.onPage(len(tracks), page.PageInfo.TotalResults)
		}

		token = page.NextPageToken
		if token == "" || (s.maximum > 0 && len(tracks) >= s.maximum) {
			return tracks, nil
		}
	}
}
