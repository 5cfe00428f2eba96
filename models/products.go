package models

import (
	"time"
)

type Product struct {
	ID        string    `gorm:"primaryKey;->" json:"id"`
	Name      string    `gorm:"->" json:"name"`
	Active    bool      `gorm:"->" json:"active"`
	CreatedAt time.Time `gorm:"->" json:"created_at"`
	UpdatedAt time.Time `gorm:"->" json:"updated_at"`
}
