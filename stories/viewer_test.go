package stories

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/plateful/plateful/auth"
	"github.com/plateful/plateful/errs"
	"github.com/plateful/plateful/model"
	"github.com/plateful/plateful/store"
)

// fakeClock hands out timers that only fire when the test says so.
type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	ch chan time.Time
	d  time.Duration
}

func (t *fakeTimer) C() <-chan time.Time { return t.ch }

func (t *fakeTimer) Stop() bool { return true }

func newFakeClock() *fakeClock {
	return &fakeClock{now: baseTime}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) NewTimer(d time.Duration) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{ch: make(chan time.Time, 1), d: d}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fire delivers an expiry on the i-th timer ever armed.
func (c *fakeClock) fire(i int) {
	c.mu.Lock()
	t := c.timers[i]
	now := c.now
	c.mu.Unlock()
	t.ch <- now
}

func (c *fakeClock) timerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.timers)
}

func (c *fakeClock) lastTimerDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.timers[len(c.timers)-1].d
}

// markRecorder collects seen marks in the order they were issued.
type markRecorder struct {
	mu  sync.Mutex
	ids []string
}

func (r *markRecorder) record(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ids = append(r.ids, id)
}

func (r *markRecorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.ids))
	copy(out, r.ids)
	return out
}

func threeStories() []model.Story {
	return []model.Story{
		{Id: "a", UserID: "alice", CreatedAt: baseTime},
		{Id: "b", UserID: "alice", CreatedAt: baseTime.Add(time.Minute)},
		{Id: "c", UserID: "alice", CreatedAt: baseTime.Add(2 * time.Minute)},
	}
}

func TestSessionMarksFirstItemOnOpen(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	assert.Equal(t, []string{"a"}, rec.all())
	assert.Equal(t, PhasePlaying, s.Phase())
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, "a", s.Current().Id)
}

func TestSessionNaturalPlaybackToExhaustion(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)

	clock.fire(0)
	require.Eventually(t, func() bool { return s.Index() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.all())

	clock.fire(1)
	require.Eventually(t, func() bool { return s.Index() == 2 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b", "c"}, rec.all())

	clock.fire(2)
	require.Eventually(t, func() bool { return s.Phase() == PhaseExhausted }, time.Second, 5*time.Millisecond)

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed after exhaustion")
	}
	assert.Equal(t, float64(1), s.Progress())
	// Three items, three marks, no duplicates.
	assert.Equal(t, []string{"a", "b", "c"}, rec.all())
}

func TestSessionNextAdvancesImmediately(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	s.Next()
	assert.Equal(t, 1, s.Index())
	assert.Equal(t, []string{"a", "b"}, rec.all())

	s.Next()
	s.Next()
	assert.Equal(t, PhaseExhausted, s.Phase())
	assert.Equal(t, []string{"a", "b", "c"}, rec.all())
}

func TestSessionPrevDoesNotRemark(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	s.Next()
	require.Equal(t, 1, s.Index())

	s.Prev()
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, PhasePlaying, s.Phase())
	// Going back replays an already-marked item.
	assert.Equal(t, []string{"a", "b"}, rec.all())
}

func TestSessionPrevOnFirstItemIsNoop(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	armed := clock.timerCount()
	s.Prev()
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, PhasePlaying, s.Phase())
	// No fresh timer either, the current window keeps running.
	assert.Equal(t, armed, clock.timerCount())
}

func TestSessionPrevRestartsWindow(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	s.Next()
	clock.advance(3 * time.Second)
	s.Prev()

	assert.Equal(t, float64(0), s.Progress())
	assert.Equal(t, ItemDuration, clock.lastTimerDuration())
}

func TestSessionPauseFreezesProgress(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	clock.advance(2500 * time.Millisecond)
	s.Pause()
	assert.Equal(t, PhasePaused, s.Phase())
	assert.Equal(t, 0.5, s.Progress())

	// Time passing while paused changes nothing.
	clock.advance(time.Hour)
	assert.Equal(t, 0.5, s.Progress())
	assert.Equal(t, 0, s.Index())
}

func TestSessionPausedTimerFireIsDropped(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	s.Pause()
	// The timer armed before the pause expires anyway; the session must not
	// advance off a stale fire.
	clock.fire(0)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, PhasePaused, s.Phase())
	assert.Equal(t, []string{"a"}, rec.all())
}

func TestSessionResumePlaysRemainder(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	clock.advance(2 * time.Second)
	s.Pause()
	s.Resume()

	assert.Equal(t, PhasePlaying, s.Phase())
	// The resumed window covers only the unplayed 3 seconds.
	assert.Equal(t, 3*time.Second, clock.lastTimerDuration())

	clock.fire(clock.timerCount() - 1)
	require.Eventually(t, func() bool { return s.Index() == 1 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a", "b"}, rec.all())
}

func TestSessionResumeWithoutPauseIsNoop(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	defer s.Exit()

	armed := clock.timerCount()
	s.Resume()
	assert.Equal(t, PhasePlaying, s.Phase())
	assert.Equal(t, armed, clock.timerCount())
}

func TestSessionExitStopsPlayback(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories(), rec.record, clock)
	s.Exit()

	select {
	case <-s.Done():
	default:
		t.Fatal("done channel should be closed after exit")
	}

	// Inputs after exit are ignored.
	s.Next()
	s.Prev()
	s.Pause()
	s.Resume()
	assert.Equal(t, 0, s.Index())
	assert.Equal(t, []string{"a"}, rec.all())
}

func TestSessionSingleItemExhaustsOnFire(t *testing.T) {
	clock := newFakeClock()
	rec := &markRecorder{}

	s := NewSession(threeStories()[:1], rec.record, clock)

	clock.fire(0)
	require.Eventually(t, func() bool { return s.Phase() == PhaseExhausted }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"a"}, rec.all())
}

func TestOpenViewerPlaying(t *testing.T) {
	fakeStories := store.NewFakeStoryStore()
	m := NewManager(fakeStories, store.NewFakeRelationStore(), nil)
	clock := newFakeClock()

	seedStory(t, fakeStories, "a1", "alice", baseTime.Add(-time.Hour))

	s, outcome := m.OpenViewer(context.Background(), auth.Session{UserID: "viewer"}, "alice", clock)
	require.Equal(t, OutcomePlaying, outcome)
	require.NotNil(t, s)
	defer s.Exit()

	// Opening already marked the first item for the viewer.
	assert.Equal(t, 1, fakeStories.SeenCount("a1", "viewer"))
}

func TestOpenViewerEmptySelf(t *testing.T) {
	fakeStories := store.NewFakeStoryStore()
	m := NewManager(fakeStories, store.NewFakeRelationStore(), nil)

	s, outcome := m.OpenViewer(context.Background(), auth.Session{UserID: "alice"}, "alice", newFakeClock())
	assert.Nil(t, s)
	assert.Equal(t, OutcomeEmptySelf, outcome)
}

func TestOpenViewerEmptyOther(t *testing.T) {
	fakeStories := store.NewFakeStoryStore()
	m := NewManager(fakeStories, store.NewFakeRelationStore(), nil)

	s, outcome := m.OpenViewer(context.Background(), auth.Session{UserID: "viewer"}, "alice", newFakeClock())
	assert.Nil(t, s)
	assert.Equal(t, OutcomeEmptyOther, outcome)
}

func TestOpenViewerLoadFailureTreatedAsEmpty(t *testing.T) {
	fakeStories := store.NewFakeStoryStore()
	m := NewManager(fakeStories, store.NewFakeRelationStore(), nil)

	fakeStories.ListErr = errs.Network("db down")

	s, outcome := m.OpenViewer(context.Background(), auth.Session{UserID: "viewer"}, "alice", newFakeClock())
	assert.Nil(t, s)
	assert.Equal(t, OutcomeEmptyOther, outcome)
}
