package model

import "time"

/*

UserPostLike / UserPostBookmark / UserFollow are binary "many-to-many"
relations. Existence of the row means the relation is active, absence means
inactive, there is no separate status column.

UserID: the acting user (subject)
PostID / TargetID: the entity acted on (object)
CreatedAt: time when relation is created

UserFollow targets are restaurant ids for restaurant follows and user ids
for author follows, the story tray derives its authors from the latter.
*/

type UserPostLike struct {
	UserID    string `gorm:"primaryKey"`
	PostID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type UserPostBookmark struct {
	UserID    string `gorm:"primaryKey"`
	PostID    string `gorm:"primaryKey"`
	CreatedAt time.Time
}

type UserFollow struct {
	UserID    string `gorm:"primaryKey"`
	TargetID  string `gorm:"primaryKey"`
	CreatedAt time.Time
}
