package model

import (
	"time"

	"gorm.io/gorm"
)

type Restaurant struct {
	Id        string `gorm:"primaryKey"`
	CreatedAt time.Time
	DeletedAt gorm.DeletedAt
	Name      string
	Address   string
	Cuisine   string
	ImageUrl  string
}
