package model

import (
	"time"

	"gorm.io/gorm"
)

type Comment struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
	PostID    string `gorm:"index"`
	UserID    string
	User      User
	Content   string
}
