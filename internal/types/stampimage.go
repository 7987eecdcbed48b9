package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type StampImage struct {
  ID                  string                    `gorm:"type:varchar(36);primaryKey" json:"id"`
  Name                string                    `gorm:"type:varchar(255);not null" json:"name"`
  ImageURL            string                    `gorm:"type:varchar(1024);not null;column:image_url" json:"image_url"`
  CreatedBy           string                    `gorm:"type:varchar(128);not null;index" json:"created_by"`
  Creator             *User                     `gorm:"constraint:OnDelete:CASCADE;foreignKey:CreatedBy;references:ID" json:"-"`
  IsActive            bool                      `gorm:"not null" json:"is_active"`

  CreatedAt           time.Time                 `gorm:"not null;index" json:"created_at"`
}

func (StampImage) TableName() string {
  return "stamp_images"
}

func (s *StampImage) BeforeCreate(tx *gorm.DB) error {
  if s.ID == "" {
    s.ID = uuid.NewString()
  }
  return nil
}
