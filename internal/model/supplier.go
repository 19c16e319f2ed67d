package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Supplier struct {
	ID        uuid.UUID `gorm:"type:char(36);primaryKey"`
	Name      string    `gorm:"type:varchar(150);not null"`
	Email     string    `gorm:"type:varchar(150);uniqueIndex;not null"`
	Phone     *string   `gorm:"type:varchar(30)"`
	Address   *string
	Notes     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (s *Supplier) BeforeCreate(*gorm.DB) error {
	ensureID(&s.ID)
	return nil
}
