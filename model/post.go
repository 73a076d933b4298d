package model

import (
	"time"

	"gorm.io/gorm"
)

/*

Post is a review a user published about a restaurant

Id: primary key
CreatedAt: time when entity is created
DeletedAt: time when entity is deleted

UserID:
User: authoring user, "belongs-to" relation
RestaurantID:
Restaurant: restaurant the post reviews, "belongs-to" relation

Caption: review text in plain text
ImageUrl: resolved public location of the post photo
Rating: 1-5 star rating the author gave the restaurant

Cursor: The auto-inc global-unique index to keep the relative order of posts

Like and bookmark relations live in their own join rows (UserPostLike,
UserPostBookmark). Counts are always derived by counting rows, the relation
tables are the ground truth.
*/

type Post struct {
	Id           string `gorm:"primaryKey"`
	CreatedAt    time.Time
	DeletedAt    gorm.DeletedAt
	UserID       string `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	User         User
	RestaurantID string `gorm:"constraint:OnUpdate:CASCADE,OnDelete:SET NULL;"`
	Restaurant   Restaurant
	Caption      string
	ImageUrl     string
	Rating       int
	Cursor       int32 `gorm:"autoIncrement"`
}
