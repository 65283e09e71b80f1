package remote

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	client "github.com/handiism/playlist-sync/internal/http"
	"github.com/handiism/playlist-sync/internal/model"
)

func TestPlaylistID(t *testing.T) {
	tests := []struct {
		url     string
		want    string
		wantErr bool
	}{
		{"https://www.youtube.com/playlist?list=PL123", "PL123", false},
		{"https://www.youtube.com/watch?v=abc&list=PL456&index=2", "PL456", false},
		{"https://www.youtube.com/watch?v=abc", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			got, err := PlaylistID(tt.url)
			if (err != nil) != tt.wantErr {
				t.Fatalf("PlaylistID error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("PlaylistID = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestContainerOf(t *testing.T) {
	tests := []struct {
		declared string
		url      string
		want     model.Format
	}{
		{"webm", "https://cdn/a", model.FormatWebM},
		{"", "https://cdn/audio.mp3?sig=1", model.FormatMP3},
		{"", "https://cdn/videoplayback", model.FormatM4A},
		{"flac", "https://cdn/x.webm", model.FormatWebM},
	}

	for _, tt := range tests {
		if got := containerOf(tt.declared, tt.url); got != tt.want {
			t.Errorf("containerOf(%q, %q) = %q, want %q", tt.declared, tt.url, got, tt.want)
		}
	}
}

func TestAPIResolver_Resolve(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio" {
			http.NotFound(w, r)
			return
		}
		switch r.URL.Query().Get("id") {
		case "ok":
			fmt.Fprint(w, `{"id":"ok","url":"https://cdn/ok","container":"webm","size":42}`)
		default:
			fmt.Fprint(w, `{"id":"none","url":""}`)
		}
	}))
	defer srv.Close()

	resolver := NewAPIResolver(client.NewClient(), srv.URL)

	src, err := resolver.Resolve(context.Background(), model.Track{ID: "ok"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if src.URL != "https://cdn/ok" || src.Container != model.FormatWebM || src.Size != 42 {
		t.Errorf("unexpected source %+v", src)
	}

	_, err = resolver.Resolve(context.Background(), model.Track{ID: "none"})
	if !errors.Is(err, ErrNoAudio) {
		t.Errorf("error = %v, want ErrNoAudio", err)
	}
}

// countingResolver blocks until released and counts calls.
type countingResolver struct {
	calls   atomic.Int32
	release chan struct{}
}

func (c *countingResolver) Resolve(ctx context.Context, track model.Track) (Source, error) {
	c.calls.Add(1)
	<-c.release
	return Source{URL: "https://cdn/" + track.ID, Container: model.FormatM4A}, nil
}

func TestSharedResolver_CollapsesConcurrentCalls(t *testing.T) {
	inner := &countingResolver{release: make(chan struct{})}
	shared := Shared(inner)

	var wg sync.WaitGroup
	results := make(chan Source, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			src, err := shared.Resolve(context.Background(), model.Track{ID: "same"})
			if err != nil {
				t.Errorf("Resolve: %v", err)
			}
			results <- src
		}()
	}

	time.Sleep(50 * time.Millisecond)
	close(inner.release)
	wg.Wait()
	close(results)

	if got := inner.calls.Load(); got != 1 {
		t.Errorf("inner calls = %d, want 1", got)
	}
	for src := range results {
		if src.URL != "https://cdn/same" {
			t.Errorf("URL = %q", src.URL)
		}
	}
}

func TestSharedResolver_CallerCancel(t *testing.T) {
	inner := &countingResolver{release: make(chan struct{})}
	defer close(inner.release)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Shared(inner).Resolve(ctx, model.Track{ID: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAPIPlaylistService_Paging(t *testing.T) {
	pages := map[string]string{
		"": `{"nextPageToken":"p2","pageInfo":{"totalResults":4},"items":[
			{"snippet":{"title":"One: \"live\"","thumbnails":{"default":{"url":"d1"},"medium":{"url":"m1"}},"resourceId":{"videoId":"v1"}}},
			{"snippet":{"title":"Deleted video","resourceId":{"videoId":""}}}]}`,
		"p2": `{"nextPageToken":"","pageInfo":{"totalResults":4},"items":[
			{"snippet":{"title":"Two","resourceId":{"videoId":"v2"}}},
			{"snippet":{"title":"Three","resourceId":{"videoId":"v3"}}}]}`,
	}

	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		q := r.URL.Query()
		if q.Get("playlistId") != "PL1" || q.Get("key") != "secret" {
			t.Errorf("unexpected query %v", q)
		}
		fmt.Fprint(w, pages[q.Get("pageToken")])
	}))
	defer srv.Close()

	var lastReceived int
	svc := NewAPIPlaylistService(client.NewClient(), srv.URL,
		WithAPIKey("secret"),
		WithPageCallback(func(received, total int) { lastReceived = received }),
	)

	tracks, err := svc.Tracks(context.Background(), "PL1")
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}

	if len(tracks) != 3 {
		t.Fatalf("len(tracks) = %d, want 3", len(tracks))
	}
	if tracks[0].ID != "v1" || tracks[0].Title != "One live" || tracks[0].ThumbnailURL != "m1" {
		t.Errorf("unexpected first track %+v", tracks[0])
	}
	if tracks[2].ID != "v3" {
		t.Errorf("order not preserved: %+v", tracks)
	}
	if requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", requests.Load())
	}
	if lastReceived != 3 {
		t.Errorf("page callback received = %d, want 3", lastReceived)
	}
}

func TestAPIPlaylistService_Maximum(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := requests.Add(1)
		fmt.Fprintf(w, `{"nextPageToken":"more","items":[
			{"snippet":{"title":"a","resourceId":{"videoId":"a%d"}}},
			{"snippet":{"title":"b","resourceId":{"videoId":"b%d"}}}]}`, n, n)
	}))
	defer srv.Close()

	svc := NewAPIPlaylistService(client.NewClient(), srv.URL, WithMaximum(3))
	tracks, err := svc.Tracks(context.Background(), "PL1")
	if err != nil {
		t.Fatalf("Tracks: %v", err)
	}
	if len(tracks) != 3 {
		t.Errorf("len(tracks) = %d, want 3", len(tracks))
	}
	if requests.Load() != 2 {
		t.Errorf("requests = %d, want 2", requests.Load())
	}
}
