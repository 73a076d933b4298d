// Package store is the persistence collaborator boundary. Business logic
// only sees the interfaces here; the gorm implementation and the in-memory
// fakes are interchangeable behind them.
package store

import (
	"context"
	"time"

	"github.com/plateful/plateful/model"
)

// RelationKind identifies one of the binary per-user relation tables.
type RelationKind string

const (
	KindLike     RelationKind = "like"
	KindBookmark RelationKind = "bookmark"
	KindFollow   RelationKind = "follow"
)

// Relation addresses a single row in one of the relation tables.
// SubjectID is the acting user, ObjectID the post or restaurant acted on.
type Relation struct {
	Kind      RelationKind
	SubjectID string
	ObjectID  string
}

// RelationStore mutates and queries the binary relation tables. Insert and
// Delete are atomic row operations from the caller's point of view; errors
// carry errs taxonomy codes.
type RelationStore interface {
	// Insert activates the relation. Inserting an already active relation
	// returns a CONFLICT error.
	Insert(ctx context.Context, rel Relation) error

	// Delete deactivates the relation. Deleting an inactive relation returns
	// a CONFLICT error.
	Delete(ctx context.Context, rel Relation) error

	// Exists reports whether the relation is currently active.
	Exists(ctx context.Context, rel Relation) (bool, error)

	// Count returns the number of active relations of the given kind pointing
	// at the object. The relation table is the ground truth for counters.
	Count(ctx context.Context, kind RelationKind, objectID string) (int64, error)

	// FollowedIDs returns every object id the subject follows.
	FollowedIDs(ctx context.Context, subjectID string) ([]string, error)
}

// StoryStore persists stories and seen marks.
type StoryStore interface {
	// ActiveByAuthor returns the author's visible stories ordered by
	// CreatedAt ascending.
	ActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]model.Story, error)

	// ActiveByAuthors returns visible stories of all listed authors, ordered
	// by CreatedAt ascending.
	ActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]model.Story, error)

	// SeenStoryIDs returns ids of every story the viewer has a seen mark for.
	SeenStoryIDs(ctx context.Context, viewerID string) ([]string, error)

	// UpsertSeen records that the viewer reached the story. Idempotent, a
	// second call for the same pair succeeds without creating another row.
	UpsertSeen(ctx context.Context, storyID, viewerID string) error

	// Insert persists a new story.
	Insert(ctx context.Context, story *model.Story) error

	// Deactivate soft-deletes the story, scoped to its author. Returns a
	// NOT_FOUND error when the story doesn't exist or belongs to someone
	// else.
	Deactivate(ctx context.Context, storyID, authorID string) error
}
