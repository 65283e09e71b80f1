package download

import (
	"context"
	"errors"
	"sync"

	"github.com/handiism/playlist-sync/internal/model"
	"github.com/rs/zerolog"
)

// Phase is the lifecycle phase of a work item.
type Phase int

const (
	// PhasePending means the item has not been started.
	PhasePending Phase = iota

	// PhaseStarted means the item is resolving or transferring audio.
	PhaseStarted

	// PhaseConverting means the transcoder is running.
	PhaseConverting

	// PhaseCompleted means the destination file is in place.
	PhaseCompleted

	// PhaseCancelled means the item was stopped or skipped.
	PhaseCancelled

	// PhaseFailed means the item ended with an error.
	PhaseFailed
)

var phaseNames = [...]string{"pending", "started", "converting", "completed", "cancelled", "failed"}

// String implements fmt.Stringer.
func (p Phase) String() string {
	if int(p) < len(phaseNames) {
		return phaseNames[p]
	}
	return "unknown"
}

// IsTerminal reports whether no further events follow this phase.
func (p Phase) IsTerminal() bool {
	return p == PhaseCompleted || p == PhaseCancelled || p == PhaseFailed
}

// Progress reports how much of a transfer has been received.
//
// Total is -1 when the length is unknown; Percent is then 0 until the
// transfer completes.
type Progress struct {
	Percent  int
	Received int64
	Total    int64
}

// Completion is the terminal event of a work item.
//
// An item either succeeded (neither flag set) or it did not. Cancelled is
// set for stops and for skips of existing files; Err carries the cause of
// a failure.
type Completion struct {
	Cancelled bool
	Err       error
}

// Succeeded reports whether the destination is in place.
func (c Completion) Succeeded() bool {
	return !c.Cancelled && c.Err == nil
}

func (c Completion) phase() Phase {
	switch {
	case c.Err != nil:
		return PhaseFailed
	case c.Cancelled:
		return PhaseCancelled
	default:
		return PhaseCompleted
	}
}

// Item is one unit of asynchronous work for a single track.
//
// Start runs the work on its own goroutine. Every item emits exactly one
// Completion; Progress and phase events only ever precede it. Stop may be
// called at any time and is a no-op once the item has completed. All
// subscriptions are dropped once the item completes.
type Item interface {
	// Track returns the track the item works on.
	Track() model.Track

	// Key identifies the item for de-duplication. It is the track ID.
	Key() string

	// Phase returns the current lifecycle phase.
	Phase() Phase

	// Start begins the work. Calls after the first are ignored.
	Start()

	// Stop cancels the work cooperatively.
	Stop()

	// Dispose stops the work and drops progress and phase subscribers.
	// Completion subscribers registered earlier still receive the terminal
	// event, so schedulers holding the item release it. It is idempotent.
	Dispose()

	// OnProgress subscribes to transfer progress.
	OnProgress(fn func(Item, Progress)) (unsubscribe func())

	// OnPhase subscribes to phase changes.
	OnPhase(fn func(Item, Phase)) (unsubscribe func())

	// OnCompletion subscribes to the terminal event. Subscribing after the
	// item completed invokes fn immediately with the stored result.
	OnCompletion(fn func(Item, Completion)) (unsubscribe func())

	// Done is closed after the completion has been delivered.
	Done() <-chan struct{}

	// Result returns the completion once the item has finished.
	Result() (Completion, bool)
}

// listeners is an ordered subscriber list.
type listeners[T any] struct {
	next    int
	entries []listener[T]
}

type listener[T any] struct {
	id int
	fn T
}

func (l *listeners[T]) add(fn T) int {
	l.next++
	l.entries = append(l.entries, listener[T]{id: l.next, fn: fn})
	return l.next
}

func (l *listeners[T]) remove(id int) {
	for i, e := range l.entries {
		if e.id == id {
			l.entries = append(l.entries[:i:i], l.entries[i+1:]...)
			return
		}
	}
}

func (l *listeners[T]) snapshot() []T {
	fns := make([]T, len(l.entries))
	for i, e := range l.entries {
		fns[i] = e.fn
	}
	return fns
}

func (l *listeners[T]) clear() {
	l.entries = nil
}

// progressStep is the byte interval between progress events for transfers
// of unknown length.
const progressStep = 1 << 20

// lifecycle implements the event and cancellation plumbing shared by all
// work items. Concrete items embed it and call start with their work.
type lifecycle struct {
	self  Item
	track model.Track
	log   zerolog.Logger

	mu       sync.Mutex
	phase    Phase
	started  bool
	finished bool
	disposed bool
	result   Completion

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}

	progress  listeners[func(Item, Progress)]
	phases    listeners[func(Item, Phase)]
	completed listeners[func(Item, Completion)]

	lastPercent  int
	lastReceived int64
}

func (l *lifecycle) init(self Item, track model.Track, log zerolog.Logger) {
	l.self = self
	l.track = track
	l.log = log.With().Str("track", track.ID).Logger()
	l.ctx, l.cancel = context.WithCancel(context.Background())
	l.done = make(chan struct{})
	l.lastPercent = -1
}

// Track implements Item.
func (l *lifecycle) Track() model.Track { return l.track }

// Key implements Item.
func (l *lifecycle) Key() string { return l.track.ID }

// Phase implements Item.
func (l *lifecycle) Phase() Phase {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.phase
}

// Done implements Item.
func (l *lifecycle) Done() <-chan struct{} { return l.done }

// Result implements Item.
func (l *lifecycle) Result() (Completion, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.result, l.finished
}

// start runs work on a new goroutine unless the item already started,
// finished or was disposed.
func (l *lifecycle) start(work func(ctx context.Context) Completion) {
	l.mu.Lock()
	if l.started || l.finished || l.disposed {
		l.mu.Unlock()
		return
	}
	l.started = true
	ctx := l.ctx
	l.mu.Unlock()

	go func() {
		c := work(ctx)
		if c.Err != nil && ctx.Err() != nil && errors.Is(c.Err, context.Canceled) {
			c = Completion{Cancelled: true}
		}
		l.finish(c)
	}()
}

// Stop implements Item.
func (l *lifecycle) Stop() {
	l.mu.Lock()
	if l.finished {
		l.mu.Unlock()
		return
	}
	if !l.started {
		l.started = true
		l.mu.Unlock()
		l.finish(Completion{Cancelled: true})
		return
	}
	l.mu.Unlock()
	l.cancel()
}

// Dispose implements Item.
func (l *lifecycle) Dispose() {
	l.mu.Lock()
	if l.disposed {
		l.mu.Unlock()
		return
	}
	l.disposed = true
	l.progress.clear()
	l.phases.clear()
	idle := !l.started && !l.finished
	l.started = true
	l.mu.Unlock()

	l.cancel()
	if idle {
		l.finish(Completion{Cancelled: true})
	}
}

// OnProgress implements Item.
func (l *lifecycle) OnProgress(fn func(Item, Progress)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished || l.disposed {
		return func() {}
	}
	id := l.progress.add(fn)
	return func() {
		l.mu.Lock()
		l.progress.remove(id)
		l.mu.Unlock()
	}
}

// OnPhase implements Item.
func (l *lifecycle) OnPhase(fn func(Item, Phase)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.finished || l.disposed {
		return func() {}
	}
	id := l.phases.add(fn)
	return func() {
		l.mu.Lock()
		l.phases.remove(id)
		l.mu.Unlock()
	}
}

// OnCompletion implements Item.
func (l *lifecycle) OnCompletion(fn func(Item, Completion)) func() {
	l.mu.Lock()
	if l.finished {
		c := l.result
		l.mu.Unlock()
		fn(l.self, c)
		return func() {}
	}
	if l.disposed {
		l.mu.Unlock()
		return func() {}
	}
	id := l.completed.add(fn)
	l.mu.Unlock()
	return func() {
		l.mu.Lock()
		l.completed.remove(id)
		l.mu.Unlock()
	}
}

// setPhase records p and notifies phase subscribers.
func (l *lifecycle) setPhase(p Phase) {
	l.mu.Lock()
	if l.finished || l.phase == p {
		l.mu.Unlock()
		return
	}
	l.phase = p
	fns := l.phases.snapshot()
	l.mu.Unlock()

	for _, fn := range fns {
		fn(l.self, p)
	}
}

// emitProgress notifies progress subscribers when the percentage changed,
// or every progressStep bytes when the total is unknown.
func (l *lifecycle) emitProgress(received, total int64) {
	percent := 0
	if total > 0 {
		percent = int(min(max(received*100/total, 0), 100))
	}

	l.mu.Lock()
	if l.finished {
		l.mu.Unlock()
		return
	}
	if total > 0 && percent == l.lastPercent {
		l.mu.Unlock()
		return
	}
	if total <= 0 && l.lastPercent >= 0 && received-l.lastReceived < progressStep {
		l.mu.Unlock()
		return
	}
	l.lastPercent = percent
	l.lastReceived = received
	fns := l.progress.snapshot()
	l.mu.Unlock()

	p := Progress{Percent: percent, Received: received, Total: total}
	for _, fn := range fns {
		fn(l.self, p)
	}
}

// finish records the completion once, delivers it and closes Done.
func (l *lifecycle) finish(c Completion) {
	l.mu.Lock()
	if l.finished {
		l.mu.Unlock()
		return
	}
	l.finished = true
	l.result = c
	l.phase = c.phase()
	phase := l.phase
	phaseFns := l.phases.snapshot()
	doneFns := l.completed.snapshot()
	l.progress.clear()
	l.phases.clear()
	l.completed.clear()
	l.mu.Unlock()

	l.cancel()

	for _, fn := range phaseFns {
		fn(l.self, phase)
	}
	for _, fn := range doneFns {
		fn(l.self, c)
	}
	close(l.done)
}
