package download

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/handiism/playlist-sync/internal/model"
	"github.com/rs/zerolog"
)

// fakeItem runs an injected function through the shared lifecycle.
type fakeItem struct {
	lifecycle
	work func(ctx context.Context) Completion
	runs atomic.Int32
}

func newFakeItem(id string, work func(ctx context.Context) Completion) *fakeItem {
	f := &fakeItem{work: work}
	f.init(f, model.Track{ID: id, Title: id}, zerolog.Nop())
	return f
}

// Start implements Item.
func (f *fakeItem) Start() {
	f.start(func(ctx context.Context) Completion {
		f.runs.Add(1)
		if f.work == nil {
			return Completion{}
		}
		return f.work(ctx)
	})
}

func waitDone(t *testing.T, items ...Item) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for _, it := range items {
		select {
		case <-it.Done():
		case <-deadline:
			t.Fatalf("item %s did not complete", it.Key())
		}
	}
}

// TestItem_ExactlyOneCompletion checks that stops after completion are ignored.
func TestItem_ExactlyOneCompletion(t *testing.T) {
	item := newFakeItem("a", nil)

	var count atomic.Int32
	item.OnCompletion(func(_ Item, c Completion) {
		count.Add(1)
		if !c.Succeeded() {
			t.Errorf("completion = %+v, want success", c)
		}
	})

	item.Start()
	waitDone(t, item)
	item.Stop()
	item.Stop()
	item.Start()

	if got := count.Load(); got != 1 {
		t.Errorf("completions = %d, want 1", got)
	}
	if got := item.runs.Load(); got != 1 {
		t.Errorf("runs = %d, want 1", got)
	}
	if item.Phase() != PhaseCompleted {
		t.Errorf("phase = %v, want completed", item.Phase())
	}
}

// TestItem_StopBeforeStart checks the immediate cancelled completion.
func TestItem_StopBeforeStart(t *testing.T) {
	item := newFakeItem("a", nil)

	var got Completion
	item.OnCompletion(func(_ Item, c Completion) { got = c })

	item.Stop()
	waitDone(t, item)
	item.Start()

	if !got.Cancelled || got.Err != nil {
		t.Errorf("completion = %+v, want cancelled", got)
	}
	if item.runs.Load() != 0 {
		t.Error("a stopped item must not run")
	}
	if item.Phase() != PhaseCancelled {
		t.Errorf("phase = %v, want cancelled", item.Phase())
	}
}

// TestItem_StopWhileRunning checks cooperative cancellation.
func TestItem_StopWhileRunning(t *testing.T) {
	running := make(chan struct{})
	item := newFakeItem("a", func(ctx context.Context) Completion {
		close(running)
		<-ctx.Done()
		return Completion{Err: ctx.Err()}
	})

	var got Completion
	item.OnCompletion(func(_ Item, c Completion) { got = c })

	item.Start()
	<-running
	item.Stop()
	waitDone(t, item)

	if !got.Cancelled || got.Err != nil {
		t.Errorf("completion = %+v, want cancelled without error", got)
	}
}

// TestItem_LateSubscriber checks that a subscriber added after completion
// still receives the result.
func TestItem_LateSubscriber(t *testing.T) {
	boom := errors.New("boom")
	item := newFakeItem("a", func(ctx context.Context) Completion {
		return Completion{Err: boom}
	})
	item.Start()
	waitDone(t, item)

	var got Completion
	called := 0
	item.OnCompletion(func(_ Item, c Completion) {
		called++
		got = c
	})

	if called != 1 || !errors.Is(got.Err, boom) {
		t.Errorf("late subscriber called %d times with %+v", called, got)
	}
	if c, ok := item.Result(); !ok || !errors.Is(c.Err, boom) {
		t.Errorf("Result() = %+v, %v", c, ok)
	}
}

// TestItem_EventOrder checks that progress and phases precede completion.
func TestItem_EventOrder(t *testing.T) {
	var item *fakeItem
	item = newFakeItem("a", func(ctx context.Context) Completion {
		item.setPhase(PhaseStarted)
		for i := int64(0); i <= 10; i++ {
			item.emitProgress(i*10, 100)
		}
		item.setPhase(PhaseConverting)
		return Completion{}
	})

	var (
		mu     sync.Mutex
		events []string
	)
	record := func(s string) {
		mu.Lock()
		events = append(events, s)
		mu.Unlock()
	}
	var percents []int
	item.OnProgress(func(_ Item, p Progress) {
		percents = append(percents, p.Percent)
		record("progress")
	})
	item.OnPhase(func(_ Item, p Phase) { record(p.String()) })
	item.OnCompletion(func(_ Item, c Completion) { record("done") })

	item.Start()
	waitDone(t, item)

	mu.Lock()
	defer mu.Unlock()
	if events[0] != "started" {
		t.Errorf("first event = %q, want started", events[0])
	}
	if events[len(events)-1] != "done" || events[len(events)-2] != "completed" {
		t.Errorf("last events = %v", events[len(events)-2:])
	}
	if len(percents) != 11 || percents[10] != 100 {
		t.Errorf("percents = %v", percents)
	}
	for i := 1; i < len(percents); i++ {
		if percents[i] < percents[i-1] {
			t.Errorf("progress went backwards: %v", percents)
		}
	}
}

// TestItem_ProgressUnknownLength checks throttling without a total.
func TestItem_ProgressUnknownLength(t *testing.T) {
	var item *fakeItem
	item = newFakeItem("a", func(ctx context.Context) Completion {
		for i := int64(1); i <= 40; i++ {
			item.emitProgress(i*testChunk, -1)
		}
		return Completion{}
	})

	var events []Progress
	item.OnProgress(func(_ Item, p Progress) { events = append(events, p) })
	item.Start()
	waitDone(t, item)

	if len(events) == 0 || len(events) >= 40 {
		t.Fatalf("progress events = %d, want throttled", len(events))
	}
	for _, p := range events {
		if p.Percent != 0 || p.Total != -1 {
			t.Errorf("unexpected progress %+v", p)
		}
	}
}

// testChunk mirrors the HTTP read buffer size.
const testChunk = 81920

// TestItem_Dispose checks that disposing an idle item completes it as
// cancelled for existing subscribers and is idempotent.
func TestItem_Dispose(t *testing.T) {
	item := newFakeItem("a", nil)

	var calls atomic.Int32
	item.OnCompletion(func(_ Item, c Completion) {
		calls.Add(1)
		if !c.Cancelled {
			t.Errorf("completion = %+v, want cancelled", c)
		}
	})

	item.Dispose()
	item.Dispose()
	waitDone(t, item)
	item.Start()

	if got := calls.Load(); got != 1 {
		t.Errorf("completion delivered %d times, want 1", got)
	}
	if item.runs.Load() != 0 {
		t.Error("disposed item must not run")
	}
}

// TestItem_DisposeWhileRunning checks that a running item stops, still
// completes for its completion subscribers and drops progress subscribers.
func TestItem_DisposeWhileRunning(t *testing.T) {
	started := make(chan struct{})
	item := newFakeItem("a", func(ctx context.Context) Completion {
		close(started)
		<-ctx.Done()
		return Completion{Cancelled: true}
	})

	var (
		completions atomic.Int32
		progress    atomic.Int32
	)
	item.OnCompletion(func(_ Item, c Completion) { completions.Add(1) })
	item.OnProgress(func(_ Item, p Progress) { progress.Add(1) })

	item.Start()
	<-started
	item.Dispose()
	item.emitProgress(1, 2)
	waitDone(t, item)

	if got := completions.Load(); got != 1 {
		t.Errorf("completion delivered %d times, want 1", got)
	}
	if got := progress.Load(); got != 0 {
		t.Errorf("progress delivered %d times after Dispose, want 0", got)
	}
	if c, _ := item.Result(); !c.Cancelled {
		t.Errorf("result = %+v, want cancelled", c)
	}
}

// TestItem_Unsubscribe checks the returned unsubscribe functions.
func TestItem_Unsubscribe(t *testing.T) {
	item := newFakeItem("a", nil)

	called := false
	unsubscribe := item.OnCompletion(func(_ Item, c Completion) { called = true })
	unsubscribe()

	item.Start()
	waitDone(t, item)

	if called {
		t.Error("unsubscribed handler must not be called")
	}
}
