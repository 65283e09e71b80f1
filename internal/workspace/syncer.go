package workspace

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/handiism/playlist-sync/internal/audio"
	"github.com/handiism/playlist-sync/internal/download"
	"github.com/handiism/playlist-sync/internal/model"
	"github.com/rs/zerolog"
	"github.com/samber/lo"
)

var (
	// ErrSyncInProgress is returned by SyncAll while a batch is running.
	ErrSyncInProgress = errors.New("a sync is already running")

	// ErrUnknownTrack is returned by Download for an ID not in the playlist.
	ErrUnknownTrack = errors.New("track is not part of the workspace")
)

// ItemFactory creates work items for tracks.
type ItemFactory interface {
	Fetch(track model.Track, dest string, opts download.FetchOptions) download.Item
	Convert(track model.Track, src, dst string) download.Item
}

// Scheduler runs work items with bounded parallelism.
type Scheduler interface {
	Enqueue(item download.Item) error
	Abort()
}

// EventKind identifies a sync event.
type EventKind int

const (
	EventSyncStarted EventKind = iota
	EventQueued
	EventPhase
	EventProgress
	EventCompleted
	EventSyncFinished
)

// Event reports a change during synchronization. Track events carry the
// track and its state; sync events carry the batch Result.
type Event struct {
	Kind       EventKind
	Track      model.Track
	State      model.DownloadState
	Progress   download.Progress
	Completion download.Completion
	Result     Result
}

// Result aggregates one batch sync.
type Result struct {
	RunID     string
	Total     int
	Succeeded int
	Failed    int
	Cancelled int

	// Errors maps track IDs to their failure.
	Errors map[string]error

	Started  time.Time
	Finished time.Time
}

// Completed returns how many items of the batch have finished.
func (r Result) Completed() int {
	return r.Succeeded + r.Failed + r.Cancelled
}

// OK reports whether no item failed.
func (r Result) OK() bool { return r.Failed == 0 }

// Err joins the item errors in track ID order, or returns nil.
func (r Result) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	ids := lo.Keys(r.Errors)
	sort.Strings(ids)
	return errors.Join(lo.Map(ids, func(id string, _ int) error { return r.Errors[id] })...)
}

// SyncerOption configures a Syncer.
type SyncerOption func(*Syncer)

// WithSyncLogger sets the logger. The default discards everything.
func WithSyncLogger(logger zerolog.Logger) SyncerOption {
	return func(s *Syncer) { s.log = logger }
}

// WithPlaylistCreator writes a playlist file after each batch when the
// workspace has CreatePlaylist set.
func WithPlaylistCreator(creator *audio.PlaylistCreator) SyncerOption {
	return func(s *Syncer) { s.playlist = creator }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) SyncerOption {
	return func(s *Syncer) { s.now = now }
}

type batch struct {
	result    Result
	remaining int
	cancelled bool
	done      chan struct{}
}

// Syncer downloads the tracks of a workspace that are missing locally.
//
// SyncAll submits one work item per eligible track and returns at once;
// the batch is complete when every item has delivered its completion.
// Event listeners are called from item goroutines and must not block.
type Syncer struct {
	ws       *Workspace
	factory  ItemFactory
	sched    Scheduler
	log      zerolog.Logger
	now      func() time.Time
	playlist *audio.PlaylistCreator

	mu     sync.Mutex
	items  map[string]download.Item
	states map[string]model.DownloadState
	batch  *batch
	last   Result

	lmu       sync.Mutex
	nextID    int
	listeners map[int]func(Event)
}

// NewSyncer creates a Syncer for ws.
func NewSyncer(ws *Workspace, factory ItemFactory, sched Scheduler, opts ...SyncerOption) *Syncer {
	s := &Syncer{
		ws:        ws,
		factory:   factory,
		sched:     sched,
		log:       zerolog.Nop(),
		now:       time.Now,
		items:     make(map[string]download.Item),
		states:    make(map[string]model.DownloadState),
		listeners: make(map[int]func(Event)),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With().Str("workspace", ws.Name()).Logger()
	return s
}

// OnEvent subscribes to sync events.
func (s *Syncer) OnEvent(fn func(Event)) (unsubscribe func()) {
	s.lmu.Lock()
	defer s.lmu.Unlock()
	s.nextID++
	id := s.nextID
	s.listeners[id] = fn
	return func() {
		s.lmu.Lock()
		delete(s.listeners, id)
		s.lmu.Unlock()
	}
}

func (s *Syncer) emit(ev Event) {
	s.lmu.Lock()
	ids := lo.Keys(s.listeners)
	sort.Ints(ids)
	fns := lo.Map(ids, func(id int, _ int) func(Event) { return s.listeners[id] })
	s.lmu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}

// InProgress reports whether a batch is running.
func (s *Syncer) InProgress() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.batch != nil
}

// State returns the runtime state of a track while an item owns it, the
// failure state of its last attempt, or else its file-system state.
func (s *Syncer) State(track model.Track) model.DownloadState {
	s.mu.Lock()
	state, ok := s.states[track.ID]
	s.mu.Unlock()
	if ok {
		return state
	}
	state, _ = s.ws.Inspect(track)
	return state
}

// SyncAll starts a batch for every track that has AutoDownload set and is
// not downloaded. Tracks with a file in another format are converted
// instead of downloaded. It returns the batch as submitted.
func (s *Syncer) SyncAll() (Result, error) {
	s.mu.Lock()
	if s.batch != nil {
		s.mu.Unlock()
		return Result{}, ErrSyncInProgress
	}
	b := &batch{
		result: Result{
			RunID:   uuid.NewString(),
			Errors:  make(map[string]error),
			Started: s.now(),
		},
		remaining: 1, // released after submission
		done:      make(chan struct{}),
	}
	s.batch = b
	s.mu.Unlock()

	log := s.log.With().Str("run", b.result.RunID).Logger()
	s.emit(Event{Kind: EventSyncStarted, Result: s.snapshot(b)})

	for _, track := range s.ws.Tracks() {
		if !track.AutoDownload {
			continue
		}
		if s.isCancelled(b) {
			break
		}
		state, path := s.ws.Inspect(track)
		if state == model.StateDownloaded {
			continue
		}

		item := s.newItem(track, state, path, false)
		if err := s.submit(item, b); err != nil {
			log.Debug().Err(err).Str("track", track.ID).Msg("not submitted")
		}
	}

	submitted := s.snapshot(b)
	log.Info().Int("total", submitted.Total).Msg("sync started")
	s.settle(b)
	return submitted, nil
}

// Download submits a single track outside any batch. With overwrite an
// existing file is downloaded again; otherwise a file in another format is
// converted and an existing file leaves the track untouched.
func (s *Syncer) Download(id string, overwrite bool) (download.Item, error) {
	track, ok := s.ws.Track(id)
	if !ok {
		return nil, ErrUnknownTrack
	}
	state, path := s.ws.Inspect(track)
	item := s.newItem(track, state, path, overwrite)
	if err := s.submit(item, nil); err != nil {
		return nil, err
	}
	return item, nil
}

// Cancel aborts the scheduler and stops every item the Syncer tracks.
// A running batch drains with the stopped items counted as cancelled.
func (s *Syncer) Cancel() {
	s.mu.Lock()
	if s.batch != nil {
		s.batch.cancelled = true
	}
	items := lo.Values(s.items)
	s.mu.Unlock()

	s.sched.Abort()
	for _, item := range items {
		item.Stop()
	}
	s.log.Info().Int("items", len(items)).Msg("sync cancelled")
}

// Wait blocks until the running batch drains and returns its result, or
// the result of the last batch when none is running.
func (s *Syncer) Wait(ctx context.Context) (Result, error) {
	s.mu.Lock()
	b := s.batch
	last := s.last
	s.mu.Unlock()
	if b == nil {
		return last, nil
	}

	select {
	case <-b.done:
		return b.result, nil
	case <-ctx.Done():
		return s.snapshot(b), ctx.Err()
	}
}

func (s *Syncer) newItem(track model.Track, state model.DownloadState, path string, overwrite bool) download.Item {
	dest := s.ws.TrackPath(track)
	if state == model.StateNeedsConversion && !overwrite {
		return s.factory.Convert(track, path, dest)
	}
	return s.factory.Fetch(track, dest, download.FetchOptions{Overwrite: overwrite, Album: s.ws.Name()})
}

// submit registers item with the Syncer and the scheduler. b is nil for
// downloads outside a batch.
func (s *Syncer) submit(item download.Item, b *batch) error {
	key := item.Key()
	track := item.Track()

	s.mu.Lock()
	if _, busy := s.items[key]; busy {
		s.mu.Unlock()
		item.Dispose()
		return download.ErrDuplicateItem
	}
	s.items[key] = item
	s.states[key] = model.StateQueued
	if b != nil {
		b.remaining++
		b.result.Total++
	}
	s.mu.Unlock()

	item.OnPhase(s.onPhase)
	item.OnProgress(func(it download.Item, p download.Progress) {
		s.emit(Event{Kind: EventProgress, Track: it.Track(), State: model.StateDownloading, Progress: p})
	})
	unsubscribe := item.OnCompletion(func(it download.Item, c download.Completion) {
		s.onCompletion(it, c, b)
	})
	s.emit(Event{Kind: EventQueued, Track: track, State: model.StateQueued})

	if err := s.sched.Enqueue(item); err != nil {
		unsubscribe()
		s.mu.Lock()
		if s.items[key] == item {
			delete(s.items, key)
			delete(s.states, key)
			if b != nil {
				b.remaining--
				b.result.Total--
			}
		}
		s.mu.Unlock()
		item.Dispose()
		return err
	}
	return nil
}

func (s *Syncer) onPhase(item download.Item, p download.Phase) {
	var state model.DownloadState
	switch p {
	case download.PhaseStarted:
		state = model.StateDownloading
	case download.PhaseConverting:
		state = model.StateConverting
	default:
		return
	}

	s.mu.Lock()
	if s.items[item.Key()] == item {
		s.states[item.Key()] = state
	}
	s.mu.Unlock()
	s.emit(Event{Kind: EventPhase, Track: item.Track(), State: state})
}

func (s *Syncer) onCompletion(item download.Item, c download.Completion, b *batch) {
	key := item.Key()
	track := item.Track()

	state, _ := s.ws.Inspect(track)
	if c.Err != nil {
		state = model.StateFailed
	}
	if c.Succeeded() {
		s.ws.markDownloaded(key, s.now())
	}

	s.mu.Lock()
	if s.items[key] == item {
		delete(s.items, key)
		if state == model.StateFailed {
			s.states[key] = state
		} else {
			delete(s.states, key)
		}
	}
	if b != nil {
		switch {
		case c.Err != nil:
			b.result.Failed++
			b.result.Errors[key] = c.Err
		case c.Cancelled:
			b.result.Cancelled++
		default:
			b.result.Succeeded++
		}
	}
	s.mu.Unlock()

	if c.Err != nil {
		s.log.Warn().Err(c.Err).Str("track", key).Msg("track failed")
	}
	s.emit(Event{Kind: EventCompleted, Track: track, State: state, Completion: c})
	item.Dispose()

	if b != nil {
		s.settle(b)
	} else if c.Succeeded() {
		s.ws.Save()
	}
}

// settle counts one finished member of b and completes the batch when
// none remain.
func (s *Syncer) settle(b *batch) {
	s.mu.Lock()
	b.remaining--
	if b.remaining > 0 {
		s.mu.Unlock()
		return
	}
	b.result.Finished = s.now()
	res := b.result
	s.mu.Unlock()

	s.ws.Update(func(st *Settings) { st.LastSync = res.Finished })
	if s.playlist != nil && s.ws.Settings().CreatePlaylist {
		if _, err := s.ws.WritePlaylist(context.Background(), s.playlist); err != nil {
			s.log.Warn().Err(err).Msg("writing playlist failed")
		}
	}

	s.log.Info().
		Str("run", res.RunID).
		Int("total", res.Total).
		Int("succeeded", res.Succeeded).
		Int("failed", res.Failed).
		Int("cancelled", res.Cancelled).
		Dur("took", res.Finished.Sub(res.Started)).
		Msg("sync finished")

	s.mu.Lock()
	s.batch = nil
	s.last = res
	s.mu.Unlock()

	s.emit(Event{Kind: EventSyncFinished, Result: res})
	close(b.done)
}

func (s *Syncer) snapshot(b *batch) Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	res := b.result
	res.Errors = make(map[string]error, len(b.result.Errors))
	for k, v := range b.result.Errors {
		res.Errors[k] = v
	}
	return res
}

func (s *Syncer) isCancelled(b *batch) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return b.cancelled
}
