package workspace

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/handiism/playlist-sync/internal/download"
	client "github.com/handiism/playlist-sync/internal/http"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/handiism/playlist-sync/internal/remote"
)

// stubResolver serves every track from one URL, failing the listed IDs.
// With block set, it waits for release or cancellation first.
type stubResolver struct {
	url     string
	fail    map[string]bool
	block   chan struct{}
	entered atomic.Int32
}

func (r *stubResolver) Resolve(ctx context.Context, track model.Track) (remote.Source, error) {
	r.entered.Add(1)
	if r.block != nil {
		select {
		case <-r.block:
		case <-ctx.Done():
			return remote.Source{}, ctx.Err()
		}
	}
	if r.fail[track.ID] {
		return remote.Source{}, remote.ErrNoAudio
	}
	return remote.Source{URL: r.url, Container: model.FormatM4A}, nil
}

// copyTranscoder writes the source bytes to the destination.
type copyTranscoder struct{}

func (copyTranscoder) Supports(from, to model.Format) bool { return from != to }

func (copyTranscoder) TranscodeFrom(ctx context.Context, from model.Format, src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

type syncFixture struct {
	ws       *Workspace
	syncer   *Syncer
	manager  *download.Manager
	resolver *stubResolver
}

func newSyncFixture(t *testing.T, parallelism int, tracks []model.Track) *syncFixture {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("m4a-audio"))
	}))
	t.Cleanup(srv.Close)

	ws := openTemp(t, tracks...)
	if err := ws.Update(func(s *Settings) { s.DownloadFormat = model.FormatM4A }); err != nil {
		t.Fatal(err)
	}

	resolver := &stubResolver{url: srv.URL, fail: map[string]bool{}}
	factory := download.NewFactory(download.Deps{
		Resolver:   resolver,
		Streamer:   client.NewClient(),
		Transcoder: copyTranscoder{},
	})
	manager := download.NewManager(parallelism)

	return &syncFixture{
		ws:       ws,
		syncer:   NewSyncer(ws, factory, manager),
		manager:  manager,
		resolver: resolver,
	}
}

func numberedTracks(n int) []model.Track {
	tracks := make([]model.Track, n)
	for i := range tracks {
		tracks[i] = model.NewTrack(fmt.Sprintf("id%02d", i), fmt.Sprintf("Track %02d", i), "")
	}
	return tracks
}

func waitResult(t *testing.T, s *Syncer) Result {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	res, err := s.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait() error = %v", err)
	}
	return res
}

// TestSyncer_SyncAllCountsFailures checks the aggregate of a batch with failures.
func TestSyncer_SyncAllCountsFailures(t *testing.T) {
	f := newSyncFixture(t, 3, numberedTracks(10))
	f.resolver.fail = map[string]bool{"id02": true, "id05": true, "id09": true}

	var (
		mu        sync.Mutex
		completed int
		early     []string
	)
	f.syncer.OnEvent(func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		switch ev.Kind {
		case EventCompleted:
			completed++
			if !f.syncer.InProgress() {
				early = append(early, ev.Track.ID)
			}
		case EventSyncFinished:
			if completed != 10 {
				early = append(early, fmt.Sprintf("finished after %d", completed))
			}
		}
	})

	submitted, err := f.syncer.SyncAll()
	if err != nil {
		t.Fatalf("SyncAll() error = %v", err)
	}
	if submitted.Total != 10 || submitted.RunID == "" {
		t.Errorf("submitted = %+v", submitted)
	}

	res := waitResult(t, f.syncer)
	if res.Total != 10 || res.Failed != 3 || res.Succeeded != 7 || res.Cancelled != 0 {
		t.Errorf("result = %+v", res)
	}
	if res.OK() {
		t.Error("OK() = true with failures")
	}
	for id := range f.resolver.fail {
		if !errors.Is(res.Errors[id], download.ErrResolutionFailed) {
			t.Errorf("error for %s = %v", id, res.Errors[id])
		}
	}
	if err := res.Err(); err == nil || !strings.Contains(err.Error(), "id05") {
		t.Errorf("Err() = %v", err)
	}

	if f.syncer.InProgress() {
		t.Error("InProgress() after Wait")
	}
	mu.Lock()
	if len(early) > 0 {
		t.Errorf("sync reported done too early: %v", early)
	}
	mu.Unlock()

	for _, tr := range f.ws.Tracks() {
		state := f.syncer.State(tr)
		want := model.StateDownloaded
		if f.resolver.fail[tr.ID] {
			want = model.StateFailed
		}
		if state != want {
			t.Errorf("State(%s) = %v, want %v", tr.ID, state, want)
		}
		if want == model.StateDownloaded && tr.DownloadDate.IsZero() {
			t.Errorf("DownloadDate of %s not set", tr.ID)
		}
	}

	again, err := Open(f.ws.Dir())
	if err != nil {
		t.Fatal(err)
	}
	if again.Settings().LastSync.IsZero() {
		t.Error("LastSync not persisted")
	}
}

// TestSyncer_SyncAllSelection checks which tracks become work items.
func TestSyncer_SyncAllSelection(t *testing.T) {
	tracks := numberedTracks(4)
	tracks[1].AutoDownload = false
	f := newSyncFixture(t, 2, tracks)

	touch(t, tracks[0].Path(f.ws.Dir(), model.FormatM4A))
	touch(t, tracks[2].Path(f.ws.Dir(), model.FormatMP3))

	submitted, err := f.syncer.SyncAll()
	if err != nil {
		t.Fatal(err)
	}
	if submitted.Total != 2 {
		t.Errorf("Total = %d, want 2", submitted.Total)
	}

	res := waitResult(t, f.syncer)
	if res.Succeeded != 2 {
		t.Errorf("result = %+v", res)
	}
	if f.resolver.entered.Load() != 1 {
		t.Errorf("resolutions = %d, want 1", f.resolver.entered.Load())
	}
	if _, err := os.Stat(tracks[2].Path(f.ws.Dir(), model.FormatMP3)); !os.IsNotExist(err) {
		t.Error("converted source must be removed")
	}
	if state := f.syncer.State(tracks[1]); state != model.StateNotDownloaded {
		t.Errorf("manual track state = %v", state)
	}
}

// TestSyncer_SyncAllNothingToDo checks that an empty batch drains at once.
func TestSyncer_SyncAllNothingToDo(t *testing.T) {
	f := newSyncFixture(t, 1, nil)

	var finished atomic.Int32
	f.syncer.OnEvent(func(ev Event) {
		if ev.Kind == EventSyncFinished {
			finished.Add(1)
		}
	})

	if _, err := f.syncer.SyncAll(); err != nil {
		t.Fatal(err)
	}
	res := waitResult(t, f.syncer)
	if res.Total != 0 || f.syncer.InProgress() || finished.Load() != 1 {
		t.Errorf("result = %+v, in progress = %v, finished events = %d", res, f.syncer.InProgress(), finished.Load())
	}
}

// TestSyncer_SyncAllRejectsSecondBatch checks ErrSyncInProgress.
func TestSyncer_SyncAllRejectsSecondBatch(t *testing.T) {
	f := newSyncFixture(t, 1, numberedTracks(2))
	f.resolver.block = make(chan struct{})

	if _, err := f.syncer.SyncAll(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.syncer.SyncAll(); !errors.Is(err, ErrSyncInProgress) {
		t.Errorf("error = %v, want ErrSyncInProgress", err)
	}

	close(f.resolver.block)
	if res := waitResult(t, f.syncer); res.Succeeded != 2 {
		t.Errorf("result = %+v", res)
	}
}

// TestSyncer_Cancel checks that Cancel drains the batch as cancelled.
func TestSyncer_Cancel(t *testing.T) {
	f := newSyncFixture(t, 1, numberedTracks(4))
	f.resolver.block = make(chan struct{})
	defer close(f.resolver.block)

	if _, err := f.syncer.SyncAll(); err != nil {
		t.Fatal(err)
	}

	waitEntered(t, f.resolver, 1)

	f.syncer.Cancel()
	res := waitResult(t, f.syncer)

	if res.Cancelled != 4 || res.Failed != 0 || res.Succeeded != 0 {
		t.Errorf("result = %+v, want 4 cancelled", res)
	}
	if f.resolver.entered.Load() != 1 {
		t.Errorf("resolutions = %d, held items must not start", f.resolver.entered.Load())
	}
	if !f.manager.Stats().Idle() {
		t.Errorf("manager stats = %+v", f.manager.Stats())
	}
	if got, _ := f.ws.Counts(); got != 0 {
		t.Errorf("%d files downloaded after cancel", got)
	}
}

// TestSyncer_Download checks single-track downloads outside a batch.
func TestSyncer_Download(t *testing.T) {
	tracks := numberedTracks(2)
	f := newSyncFixture(t, 1, tracks)
	path := tracks[0].Path(f.ws.Dir(), model.FormatM4A)

	if _, err := f.syncer.Download("nope", false); !errors.Is(err, ErrUnknownTrack) {
		t.Errorf("error = %v, want ErrUnknownTrack", err)
	}

	item, err := f.syncer.Download(tracks[0].ID, false)
	if err != nil {
		t.Fatal(err)
	}
	if f.syncer.InProgress() {
		t.Error("single downloads are not a batch")
	}
	select {
	case <-item.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("download did not finish")
	}
	if c, _ := item.Result(); !c.Succeeded() {
		t.Fatalf("completion = %+v", c)
	}
	if data, _ := os.ReadFile(path); string(data) != "m4a-audio" {
		t.Errorf("file = %q", data)
	}

	os.WriteFile(path, []byte("stale"), 0644)
	item, err = f.syncer.Download(tracks[0].ID, true)
	if err != nil {
		t.Fatal(err)
	}
	<-item.Done()
	if data, _ := os.ReadFile(path); string(data) != "m4a-audio" {
		t.Errorf("overwrite left %q", data)
	}
	if _, err := os.Stat(filepath.Join(f.ws.Dir(), MetaDir, SettingsFile)); err != nil {
		t.Error(err)
	}
}

// TestSyncer_DisposeDuringBatch checks that disposing an item the batch is
// counting still drains the batch and frees the scheduler slot.
func TestSyncer_DisposeDuringBatch(t *testing.T) {
	tracks := numberedTracks(3)
	f := newSyncFixture(t, 1, tracks)
	f.resolver.block = make(chan struct{})

	if _, err := f.syncer.SyncAll(); err != nil {
		t.Fatal(err)
	}
	waitEntered(t, f.resolver, 1)

	f.syncer.mu.Lock()
	item := f.syncer.items[tracks[0].ID]
	f.syncer.mu.Unlock()
	if item == nil {
		t.Fatal("first track is not tracked")
	}

	item.Dispose()
	<-item.Done()
	close(f.resolver.block)

	res := waitResult(t, f.syncer)
	if res.Cancelled != 1 || res.Succeeded != 2 || res.Failed != 0 {
		t.Errorf("result = %+v, want 1 cancelled and 2 succeeded", res)
	}
	if f.syncer.InProgress() {
		t.Error("batch still in progress after Wait")
	}
	if !f.manager.Stats().Idle() {
		t.Errorf("manager stats = %+v, want idle", f.manager.Stats())
	}
}

// TestSyncer_DisposeDownload checks that a caller disposing a single
// download leaves the Syncer and scheduler ready for the next one.
func TestSyncer_DisposeDownload(t *testing.T) {
	tracks := numberedTracks(1)
	f := newSyncFixture(t, 1, tracks)
	f.resolver.block = make(chan struct{})

	item, err := f.syncer.Download(tracks[0].ID, false)
	if err != nil {
		t.Fatal(err)
	}
	waitEntered(t, f.resolver, 1)

	item.Dispose()
	select {
	case <-item.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("disposed item did not finish")
	}
	if c, _ := item.Result(); !c.Cancelled {
		t.Errorf("completion = %+v, want cancelled", c)
	}
	if state := f.syncer.State(tracks[0]); state != model.StateNotDownloaded {
		t.Errorf("state = %v, want not downloaded", state)
	}

	close(f.resolver.block)
	again, err := f.syncer.Download(tracks[0].ID, false)
	if err != nil {
		t.Fatalf("Download after Dispose: %v", err)
	}
	select {
	case <-again.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("second download was never admitted")
	}
	if c, _ := again.Result(); !c.Succeeded() {
		t.Errorf("completion = %+v, want success", c)
	}
}

func waitEntered(t *testing.T, r *stubResolver, n int32) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for r.entered.Load() < n {
		if time.Now().After(deadline) {
			t.Fatalf("resolver entered %d times, want %d", r.entered.Load(), n)
		}
		time.Sleep(time.Millisecond)
	}
}
