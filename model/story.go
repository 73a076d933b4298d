package model

import "time"

/*

Story is an ephemeral media item with a fixed 24 hour visibility window

Id: primary key
UserID: authoring user
ImageUrl: resolved public location of the media
CreatedAt: time when entity is created
ExpiresAt: CreatedAt + 24h, beyond this instant the story is excluded from
		every active query no matter what IsActive says
IsActive: set true at creation, set false on explicit deletion (soft delete)

A story is visible iff IsActive && now < ExpiresAt. Expiry is computed at
query time, nothing mutates the row when the window closes.
*/

type Story struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	UserID    string `gorm:"index"`
	User      User
	ImageUrl  string
	ExpiresAt time.Time `gorm:"index"`
	IsActive  bool
}

// Visible reports whether the story should appear in active queries at the
// given instant.
func (s *Story) Visible(now time.Time) bool {
	return s.IsActive && now.Before(s.ExpiresAt)
}

/*

SeenStory is a "many-to-many" relation marking that a viewer's playback
reached a story

StoryID: story id
UserID: viewing user id
CreatedAt: time when relation is created

At most one row exists per (story, viewer) pair, writes are idempotent
upserts. Rows are never deleted.
*/

type SeenStory struct {
	StoryID   string `gorm:"primaryKey"`
	UserID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}
