package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/plateful/plateful/errs"
	"github.com/plateful/plateful/model"
)

// FakeRelationStore is an in-memory RelationStore for tests. Error fields,
// when set, are returned by the corresponding operation; Gate, when set,
// blocks Insert/Delete until it is closed, which lets tests hold a request
// in flight.
type FakeRelationStore struct {
	mu   sync.Mutex
	rows map[Relation]bool

	InsertErr error
	DeleteErr error
	ExistsErr error
	CountErr  error
	Gate      chan struct{}

	InsertCalls int
	DeleteCalls int
}

func NewFakeRelationStore() *FakeRelationStore {
	return &FakeRelationStore{rows: make(map[Relation]bool)}
}

func (f *FakeRelationStore) Insert(ctx context.Context, rel Relation) error {
	f.mu.Lock()
	gate := f.Gate
	f.InsertCalls++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.rows[rel] = true
	return nil
}

func (f *FakeRelationStore) Delete(ctx context.Context, rel Relation) error {
	f.mu.Lock()
	gate := f.Gate
	f.DeleteCalls++
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	delete(f.rows, rel)
	return nil
}

func (f *FakeRelationStore) Exists(ctx context.Context, rel Relation) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ExistsErr != nil {
		return false, f.ExistsErr
	}
	return f.rows[rel], nil
}

func (f *FakeRelationStore) Count(ctx context.Context, kind RelationKind, objectID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CountErr != nil {
		return 0, f.CountErr
	}
	var count int64
	for rel := range f.rows {
		if rel.Kind == kind && rel.ObjectID == objectID {
			count++
		}
	}
	return count, nil
}

func (f *FakeRelationStore) FollowedIDs(ctx context.Context, subjectID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var ids []string
	for rel := range f.rows {
		if rel.Kind == KindFollow && rel.SubjectID == subjectID {
			ids = append(ids, rel.ObjectID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Calls reports how many Insert and Delete requests were issued so far.
func (f *FakeRelationStore) Calls() (inserts, deletes int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.InsertCalls, f.DeleteCalls
}

// Has reports the current row state without going through the interface.
func (f *FakeRelationStore) Has(rel Relation) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.rows[rel]
}

// Seed activates a relation directly.
func (f *FakeRelationStore) Seed(rel Relation) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[rel] = true
}

// FakeStoryStore is an in-memory StoryStore for tests.
type FakeStoryStore struct {
	mu      sync.Mutex
	stories map[string]model.Story
	// seen marks per viewer, plus the order they were first created in so
	// tests can assert mark ordering.
	seen      map[string]map[string]bool
	seenOrder map[string][]string

	ListErr   error
	SeenErr   error
	UpsertErr error
	InsertErr error

	UpsertCalls int
}

func NewFakeStoryStore() *FakeStoryStore {
	return &FakeStoryStore{
		stories:   make(map[string]model.Story),
		seen:      make(map[string]map[string]bool),
		seenOrder: make(map[string][]string),
	}
}

func (f *FakeStoryStore) ActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]model.Story, error) {
	return f.ActiveByAuthors(ctx, []string{authorID}, now)
}

func (f *FakeStoryStore) ActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]model.Story, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []model.Story
	for _, s := range f.stories {
		if !s.Visible(now) {
			continue
		}
		for _, id := range authorIDs {
			if s.UserID == id {
				out = append(out, s)
				break
			}
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (f *FakeStoryStore) SeenStoryIDs(ctx context.Context, viewerID string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SeenErr != nil {
		return nil, f.SeenErr
	}
	var ids []string
	for id := range f.seen[viewerID] {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (f *FakeStoryStore) UpsertSeen(ctx context.Context, storyID, viewerID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.UpsertCalls++
	if f.UpsertErr != nil {
		return f.UpsertErr
	}
	if f.seen[viewerID] == nil {
		f.seen[viewerID] = make(map[string]bool)
	}
	if !f.seen[viewerID][storyID] {
		f.seen[viewerID][storyID] = true
		f.seenOrder[viewerID] = append(f.seenOrder[viewerID], storyID)
	}
	return nil
}

func (f *FakeStoryStore) Insert(ctx context.Context, story *model.Story) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.InsertErr != nil {
		return f.InsertErr
	}
	f.stories[story.Id] = *story
	return nil
}

func (f *FakeStoryStore) Deactivate(ctx context.Context, storyID, authorID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.stories[storyID]
	if !ok || s.UserID != authorID {
		return errs.NotFound("story not found for author")
	}
	s.IsActive = false
	f.stories[storyID] = s
	return nil
}

// SeenMarks returns the viewer's marks in the order they were created.
func (f *FakeStoryStore) SeenMarks(viewerID string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.seenOrder[viewerID]))
	copy(out, f.seenOrder[viewerID])
	return out
}

// SeenCount returns the number of marks for the (story, viewer) pair, which
// is never more than one.
func (f *FakeStoryStore) SeenCount(storyID, viewerID string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.seen[viewerID][storyID] {
		return 1
	}
	return 0
}
