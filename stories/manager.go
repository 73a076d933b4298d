// Package stories implements the ephemeral content lifecycle: what is
// visible, who has seen what, and the sequential viewer that plays an
// author's items back.
package stories

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/plateful/plateful/model"
	"github.com/plateful/plateful/store"
	Logger "github.com/plateful/plateful/utils/log"
)

// StoryTTL is the fixed visibility window of a story.
const StoryTTL = 24 * time.Hour

// SeenCache is a best-effort read cache over seen marks. Marks are never
// deleted so a cached true is always trustworthy; anything else falls back
// to the story store.
type SeenCache interface {
	GetSeenStatus(storyIDs []string, viewerID string) ([]bool, error)
	MarkSeen(storyIDs []string, viewerID string) error
}

// FollowSource yields the ids a user follows. Satisfied by
// store.RelationStore.
type FollowSource interface {
	FollowedIDs(ctx context.Context, subjectID string) ([]string, error)
}

// Manager decides story visibility and tracks per-viewer consumption. It
// never enforces authorization beyond author-scoping deletes; that is the
// collaborator layer's job.
type Manager struct {
	stories store.StoryStore
	follows FollowSource
	cache   SeenCache
}

// NewManager builds a Manager. cache may be nil, every read then goes to the
// story store.
func NewManager(stories store.StoryStore, follows FollowSource, cache SeenCache) *Manager {
	return &Manager{
		stories: stories,
		follows: follows,
		cache:   cache,
	}
}

// ListActiveForAuthor returns the author's visible stories ordered by
// creation time ascending.
func (m *Manager) ListActiveForAuthor(ctx context.Context, authorID string, now time.Time) ([]model.Story, error) {
	stories, err := m.stories.ActiveByAuthor(ctx, authorID, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active stories for author "+authorID)
	}
	return stories, nil
}

// AuthorStories is one tray entry: every author with at least one visible
// story contributes exactly one entry no matter how many items they have.
type AuthorStories struct {
	AuthorID string
	Stories  []model.Story
}

// ListActiveForFollowedAuthors builds the story tray for a viewer. Entries
// are ordered by each author's newest story, most recent first.
func (m *Manager) ListActiveForFollowedAuthors(ctx context.Context, viewerID string, now time.Time) ([]AuthorStories, error) {
	followed, err := m.follows.FollowedIDs(ctx, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "list followed authors for viewer "+viewerID)
	}
	active, err := m.stories.ActiveByAuthors(ctx, followed, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active stories for followed authors")
	}

	byAuthor := make(map[string]int)
	var tray []AuthorStories
	for _, s := range active {
		idx, ok := byAuthor[s.UserID]
		if !ok {
			byAuthor[s.UserID] = len(tray)
			tray = append(tray, AuthorStories{AuthorID: s.UserID})
			idx = len(tray) - 1
		}
		tray[idx].Stories = append(tray[idx].Stories, s)
	}

	// Stories arrive ordered ascending, so the last item of each entry is the
	// author's newest. Sort tray entries newest-first.
	sortTrayByNewest(tray)
	return tray, nil
}

// ComputeUnseenAuthors returns the set of followed authors that have at
// least one visible story without a seen mark for the viewer. Recomputed
// from scratch on every call; there is no incremental unseen index.
func (m *Manager) ComputeUnseenAuthors(ctx context.Context, viewerID string, now time.Time) (map[string]bool, error) {
	followed, err := m.follows.FollowedIDs(ctx, viewerID)
	if err != nil {
		return nil, errors.Wrap(err, "list followed authors for viewer "+viewerID)
	}
	active, err := m.stories.ActiveByAuthors(ctx, followed, now)
	if err != nil {
		return nil, errors.Wrap(err, "list active stories for followed authors")
	}
	if len(active) == 0 {
		return map[string]bool{}, nil
	}

	seen := make(map[string]bool)

	ids := make([]string, 0, len(active))
	for _, s := range active {
		ids = append(ids, s.Id)
	}
	if m.cache != nil {
		flags, err := m.cache.GetSeenStatus(ids, viewerID)
		if err != nil {
			Logger.Log.Warn("seen cache read failed, falling back to store: ", err)
		} else {
			for i, flag := range flags {
				if flag {
					seen[ids[i]] = true
				}
			}
		}
	}

	// A cache miss only means unknown, confirm against the store unless the
	// cache already covered every active id.
	if len(seen) < len(ids) {
		marked, err := m.stories.SeenStoryIDs(ctx, viewerID)
		if err != nil {
			return nil, errors.Wrap(err, "list seen marks for viewer "+viewerID)
		}
		for _, id := range marked {
			seen[id] = true
		}
	}

	unseen := make(map[string]bool)
	for _, s := range active {
		if !seen[s.Id] {
			unseen[s.UserID] = true
		}
	}
	return unseen, nil
}

// MarkSeen records that the viewer's playback reached the story. Seen
// tracking is best-effort: failures are logged and swallowed, playback must
// never notice. The cache is only written once the mark is durable,
// otherwise a cached true could outlive a row that was never inserted.
func (m *Manager) MarkSeen(ctx context.Context, storyID, viewerID string) {
	if err := m.stories.UpsertSeen(ctx, storyID, viewerID); err != nil {
		Logger.Log.Warn("fail to mark story seen: ", storyID, " viewer: ", viewerID, " err: ", err)
		return
	}
	if m.cache != nil {
		if err := m.cache.MarkSeen([]string{storyID}, viewerID); err != nil {
			Logger.Log.Warn("fail to cache seen mark: ", err)
		}
	}
}

// CreateStory inserts a new active story expiring StoryTTL from now.
func (m *Manager) CreateStory(ctx context.Context, authorID, mediaUrl string, now time.Time) (model.Story, error) {
	story := model.Story{
		Id:        uuid.New().String(),
		CreatedAt: now,
		UserID:    authorID,
		ImageUrl:  mediaUrl,
		ExpiresAt: now.Add(StoryTTL),
		IsActive:  true,
	}
	if err := m.stories.Insert(ctx, &story); err != nil {
		return model.Story{}, errors.Wrap(err, "create story for author "+authorID)
	}
	return story, nil
}

// DeleteStory soft-deletes the author's own story. Deleting someone else's
// story surfaces as not found.
func (m *Manager) DeleteStory(ctx context.Context, storyID, authorID string) error {
	if err := m.stories.Deactivate(ctx, storyID, authorID); err != nil {
		return errors.Wrap(err, "delete story "+storyID)
	}
	return nil
}

func sortTrayByNewest(tray []AuthorStories) {
	sort.SliceStable(tray, func(i, j int) bool {
		return newestOf(tray[i]).After(newestOf(tray[j]))
	})
}

func newestOf(entry AuthorStories) time.Time {
	return entry.Stories[len(entry.Stories)-1].CreatedAt
}
