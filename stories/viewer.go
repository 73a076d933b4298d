package stories

import (
	"context"
	"sync"
	"time"

	"github.com/plateful/plateful/auth"
	"github.com/plateful/plateful/model"
	Logger "github.com/plateful/plateful/utils/log"
)

// ItemDuration is the fixed display window of one story item.
const ItemDuration = 5000 * time.Millisecond

type Phase int

const (
	PhasePlaying Phase = iota
	PhasePaused
	PhaseExhausted
)

func (p Phase) String() string {
	switch p {
	case PhasePlaying:
		return "playing"
	case PhasePaused:
		return "paused"
	default:
		return "exhausted"
	}
}

// Clock abstracts time so the viewer can be driven by a manual clock in
// tests.
type Clock interface {
	Now() time.Time
	NewTimer(d time.Duration) Timer
}

type Timer interface {
	C() <-chan time.Time
	Stop() bool
}

type systemClock struct{}

func SystemClock() Clock { return systemClock{} }

func (systemClock) Now() time.Time { return time.Now() }

func (systemClock) NewTimer(d time.Duration) Timer { return sysTimer{time.NewTimer(d)} }

type sysTimer struct{ t *time.Timer }

func (t sysTimer) C() <-chan time.Time { return t.t.C }

func (t sysTimer) Stop() bool { return t.t.Stop() }

// MarkSeenFunc records that playback reached a story. Implementations must
// swallow their own failures; the session never inspects an outcome.
type MarkSeenFunc func(storyID string)

/*

Session plays one author's visible stories back in order.

States: Playing(index, progress), Paused(index, progress), Exhausted.
Progress runs 0 to 1 over ItemDuration. Reaching 1 (or a right-half tap)
advances to the next item and marks it seen, or exhausts the session after
the last one. A left-half tap goes back one item with a fresh timer and no
new seen mark; on the first item it is a no-op. Exhausted is terminal, the
session is discarded, never reused.

All transitions are strictly sequential: the timer of item i is stopped
before the timer of item i+1 starts, stale timer fires are dropped by a
generation counter.
*/
type Session struct {
	mu      sync.Mutex
	clock   Clock
	mark    MarkSeenFunc
	stories []model.Story

	phase     Phase
	idx       int
	elapsed   time.Duration // play time accumulated before the last (re)start
	startedAt time.Time     // when the current playing window started
	gen       int           // timer generation, stale fires are dropped
	timer     Timer

	closed bool
	done   chan struct{}
}

// NewSession starts playback at the first item and marks it seen. The
// stories slice must be non-empty and ordered by creation time ascending.
func NewSession(items []model.Story, mark MarkSeenFunc, clock Clock) *Session {
	s := &Session{
		clock:   clock,
		mark:    mark,
		stories: items,
		phase:   PhasePlaying,
		done:    make(chan struct{}),
	}
	s.mu.Lock()
	s.startedAt = clock.Now()
	s.armLocked(ItemDuration)
	s.mu.Unlock()

	// First reach of item 0.
	s.markItem(items[0].Id)
	return s
}

func (s *Session) markItem(id string) {
	if s.mark != nil {
		s.mark(id)
	}
}

// armLocked replaces the active timer with a fresh one for d.
func (s *Session) armLocked(d time.Duration) {
	if s.timer != nil {
		s.timer.Stop()
	}
	s.gen++
	gen := s.gen
	t := s.clock.NewTimer(d)
	s.timer = t
	go func() {
		select {
		case <-t.C():
			s.timerFired(gen)
		case <-s.done:
			t.Stop()
		}
	}()
}

func (s *Session) timerFired(gen int) {
	s.mu.Lock()
	if gen != s.gen || s.phase != PhasePlaying || s.closed {
		s.mu.Unlock()
		return
	}
	markID := s.advanceLocked()
	s.mu.Unlock()
	if markID != "" {
		s.markItem(markID)
	}
}

// advanceLocked moves to the next item or exhausts after the last one.
// Returns the id of the newly current item, empty on exhaustion.
func (s *Session) advanceLocked() string {
	if s.idx == len(s.stories)-1 {
		s.phase = PhaseExhausted
		s.closeLocked()
		return ""
	}
	s.idx++
	s.elapsed = 0
	s.startedAt = s.clock.Now()
	s.phase = PhasePlaying
	s.armLocked(ItemDuration)
	return s.stories[s.idx].Id
}

func (s *Session) closeLocked() {
	if s.closed {
		return
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	close(s.done)
}

// Next handles a tap on the right half: identical to natural timer expiry.
func (s *Session) Next() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	markID := s.advanceLocked()
	s.mu.Unlock()
	if markID != "" {
		s.markItem(markID)
	}
}

// Prev handles a tap on the left half: back one item with a fresh timer. The
// item was already marked during forward playback so no new mark is issued.
// On the first item this is a no-op.
func (s *Session) Prev() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.idx == 0 {
		return
	}
	s.idx--
	s.elapsed = 0
	s.startedAt = s.clock.Now()
	s.phase = PhasePlaying
	s.armLocked(ItemDuration)
}

func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhasePlaying {
		return
	}
	s.elapsed += s.clock.Now().Sub(s.startedAt)
	if s.elapsed > ItemDuration {
		s.elapsed = ItemDuration
	}
	s.phase = PhasePaused
	// Invalidate the armed timer instead of racing its fire.
	s.gen++
	if s.timer != nil {
		s.timer.Stop()
	}
}

func (s *Session) Resume() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed || s.phase != PhasePaused {
		return
	}
	s.phase = PhasePlaying
	s.startedAt = s.clock.Now()
	s.armLocked(ItemDuration - s.elapsed)
}

// Exit tears the session down, stopping the playback timer. In-flight seen
// marks are left to settle on their own and their results discarded.
func (s *Session) Exit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeLocked()
}

// Done is closed when the session exhausts or exits.
func (s *Session) Done() <-chan struct{} { return s.done }

func (s *Session) Phase() Phase {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.phase
}

func (s *Session) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.idx
}

func (s *Session) Current() model.Story {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stories[s.idx]
}

func (s *Session) Len() int { return len(s.stories) }

// Progress is the fraction of the current item's window already played, in
// [0, 1].
func (s *Session) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.phase {
	case PhaseExhausted:
		return 1
	case PhasePaused:
		return float64(s.elapsed) / float64(ItemDuration)
	default:
		p := float64(s.elapsed+s.clock.Now().Sub(s.startedAt)) / float64(ItemDuration)
		if p > 1 {
			p = 1
		}
		return p
	}
}

// OpenOutcome tells the caller how to route after opening a viewer.
type OpenOutcome int

const (
	// OutcomePlaying: a session is running.
	OutcomePlaying OpenOutcome = iota
	// OutcomeEmptySelf: the viewer opened their own empty story set, route
	// to the creation flow.
	OutcomeEmptySelf
	// OutcomeEmptyOther: someone else's story set is empty or failed to
	// load, abandon the view.
	OutcomeEmptyOther
)

// OpenViewer fetches the author's visible stories and starts a session. A
// load failure degrades to the empty outcome instead of surfacing; the
// story-viewing path deliberately has no error dialog.
func (m *Manager) OpenViewer(ctx context.Context, viewer auth.Session, authorID string, clock Clock) (*Session, OpenOutcome) {
	items, err := m.ListActiveForAuthor(ctx, authorID, clock.Now())
	if err != nil {
		Logger.Log.Warn("fail to load stories for viewer, treating as empty: ", err)
		items = nil
	}
	if len(items) == 0 {
		if viewer.UserID == authorID {
			return nil, OutcomeEmptySelf
		}
		return nil, OutcomeEmptyOther
	}

	mark := func(storyID string) {
		// Detached from the request context: the mark may settle after the
		// viewer has moved on.
		m.MarkSeen(context.Background(), storyID, viewer.UserID)
	}
	return NewSession(items, mark, clock), OutcomePlaying
}
