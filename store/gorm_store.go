package store

import (
	"context"
	"net"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/plateful/plateful/errs"
	"github.com/plateful/plateful/model"
)

// GormRelationStore implements RelationStore on top of the postgres relation
// tables.
type GormRelationStore struct {
	DB *gorm.DB
}

func NewGormRelationStore(db *gorm.DB) *GormRelationStore {
	return &GormRelationStore{DB: db}
}

func (s *GormRelationStore) Insert(ctx context.Context, rel Relation) error {
	var res *gorm.DB
	now := time.Now()
	switch rel.Kind {
	case KindLike:
		res = s.DB.WithContext(ctx).Create(&model.UserPostLike{UserID: rel.SubjectID, PostID: rel.ObjectID, CreatedAt: now})
	case KindBookmark:
		res = s.DB.WithContext(ctx).Create(&model.UserPostBookmark{UserID: rel.SubjectID, PostID: rel.ObjectID, CreatedAt: now})
	case KindFollow:
		res = s.DB.WithContext(ctx).Create(&model.UserFollow{UserID: rel.SubjectID, TargetID: rel.ObjectID, CreatedAt: now})
	default:
		return errs.Internal("unknown relation kind: " + string(rel.Kind))
	}
	return classify(res.Error)
}

func (s *GormRelationStore) Delete(ctx context.Context, rel Relation) error {
	var res *gorm.DB
	switch rel.Kind {
	case KindLike:
		res = s.DB.WithContext(ctx).
			Where("user_id = ? AND post_id = ?", rel.SubjectID, rel.ObjectID).
			Delete(&model.UserPostLike{})
	case KindBookmark:
		res = s.DB.WithContext(ctx).
			Where("user_id = ? AND post_id = ?", rel.SubjectID, rel.ObjectID).
			Delete(&model.UserPostBookmark{})
	case KindFollow:
		res = s.DB.WithContext(ctx).
			Where("user_id = ? AND target_id = ?", rel.SubjectID, rel.ObjectID).
			Delete(&model.UserFollow{})
	default:
		return errs.Internal("unknown relation kind: " + string(rel.Kind))
	}
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		// The row is already gone, the end state matches intent.
		return errs.Conflict("relation already inactive")
	}
	return nil
}

func (s *GormRelationStore) Exists(ctx context.Context, rel Relation) (bool, error) {
	var count int64
	res := s.relationQuery(ctx, rel.Kind).
		Where(s.subjectObjectClause(rel.Kind), rel.SubjectID, rel.ObjectID).
		Count(&count)
	if res.Error != nil {
		return false, classify(res.Error)
	}
	return count > 0, nil
}

func (s *GormRelationStore) Count(ctx context.Context, kind RelationKind, objectID string) (int64, error) {
	var count int64
	res := s.relationQuery(ctx, kind).
		Where(s.objectClause(kind), objectID).
		Count(&count)
	if res.Error != nil {
		return 0, classify(res.Error)
	}
	return count, nil
}

func (s *GormRelationStore) FollowedIDs(ctx context.Context, subjectID string) ([]string, error) {
	var ids []string
	res := s.DB.WithContext(ctx).
		Model(&model.UserFollow{}).
		Where("user_id = ?", subjectID).
		Pluck("target_id", &ids)
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	return ids, nil
}

func (s *GormRelationStore) relationQuery(ctx context.Context, kind RelationKind) *gorm.DB {
	switch kind {
	case KindLike:
		return s.DB.WithContext(ctx).Model(&model.UserPostLike{})
	case KindBookmark:
		return s.DB.WithContext(ctx).Model(&model.UserPostBookmark{})
	default:
		return s.DB.WithContext(ctx).Model(&model.UserFollow{})
	}
}

func (s *GormRelationStore) subjectObjectClause(kind RelationKind) string {
	if kind == KindFollow {
		return "user_id = ? AND target_id = ?"
	}
	return "user_id = ? AND post_id = ?"
}

func (s *GormRelationStore) objectClause(kind RelationKind) string {
	if kind == KindFollow {
		return "target_id = ?"
	}
	return "post_id = ?"
}

// GormStoryStore implements StoryStore on top of the stories and seen_stories
// tables.
type GormStoryStore struct {
	DB *gorm.DB
}

func NewGormStoryStore(db *gorm.DB) *GormStoryStore {
	return &GormStoryStore{DB: db}
}

func (s *GormStoryStore) ActiveByAuthor(ctx context.Context, authorID string, now time.Time) ([]model.Story, error) {
	var stories []model.Story
	res := s.DB.WithContext(ctx).
		Where("user_id = ? AND is_active = ? AND expires_at > ?", authorID, true, now).
		Order("created_at asc").
		Find(&stories)
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	return stories, nil
}

func (s *GormStoryStore) ActiveByAuthors(ctx context.Context, authorIDs []string, now time.Time) ([]model.Story, error) {
	if len(authorIDs) == 0 {
		return []model.Story{}, nil
	}
	var stories []model.Story
	res := s.DB.WithContext(ctx).
		Where("user_id IN ? AND is_active = ? AND expires_at > ?", authorIDs, true, now).
		Order("created_at asc").
		Find(&stories)
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	return stories, nil
}

func (s *GormStoryStore) SeenStoryIDs(ctx context.Context, viewerID string) ([]string, error) {
	var ids []string
	res := s.DB.WithContext(ctx).
		Model(&model.SeenStory{}).
		Where("user_id = ?", viewerID).
		Pluck("story_id", &ids)
	if res.Error != nil {
		return nil, classify(res.Error)
	}
	return ids, nil
}

func (s *GormStoryStore) UpsertSeen(ctx context.Context, storyID, viewerID string) error {
	res := s.DB.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(&model.SeenStory{StoryID: storyID, UserID: viewerID, CreatedAt: time.Now()})
	return classify(res.Error)
}

func (s *GormStoryStore) Insert(ctx context.Context, story *model.Story) error {
	return classify(s.DB.WithContext(ctx).Create(story).Error)
}

func (s *GormStoryStore) Deactivate(ctx context.Context, storyID, authorID string) error {
	res := s.DB.WithContext(ctx).
		Model(&model.Story{}).
		Where("id = ? AND user_id = ?", storyID, authorID).
		Update("is_active", false)
	if res.Error != nil {
		return classify(res.Error)
	}
	if res.RowsAffected == 0 {
		return errs.NotFound("story not found for author")
	}
	return nil
}

// classify maps driver errors onto the errs taxonomy so nothing above this
// layer branches on error strings.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return errs.Wrap(errs.CodeNotFound, "record not found", err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return errs.Wrap(errs.CodeNetwork, "database unreachable", err)
	}
	msg := err.Error()
	if strings.Contains(msg, "SQLSTATE 23505") || strings.Contains(msg, "duplicate key") {
		return errs.Wrap(errs.CodeConflict, "row already exists", err)
	}
	if strings.Contains(msg, "connection refused") || strings.Contains(msg, "broken pipe") {
		return errs.Wrap(errs.CodeNetwork, "database unreachable", err)
	}
	return errs.Wrap(errs.CodeInternal, "database error", err)
}
