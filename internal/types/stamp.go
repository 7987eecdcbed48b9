package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type Stamp struct {
  ID                  string                    `gorm:"type:varchar(36);primaryKey" json:"id"`
  CardID              string                    `gorm:"type:varchar(36);not null;uniqueIndex:idx_stamps_card_position" json:"card_id"`
  StampImageID        string                    `gorm:"type:varchar(36);not null;index" json:"stamp_image_id"`
  StampImage          *StampImage               `gorm:"constraint:OnDelete:CASCADE;foreignKey:StampImageID;references:ID" json:"-"`
  Position            int                       `gorm:"not null;uniqueIndex:idx_stamps_card_position" json:"position"`
  IssuedBy            string                    `gorm:"type:varchar(128);not null" json:"issued_by"`

  CreatedAt           time.Time                 `gorm:"not null" json:"created_at"`
}

func (Stamp) TableName() string {
  return "stamps"
}

func (s *Stamp) BeforeCreate(tx *gorm.DB) error {
  if s.ID == "" {
    s.ID = uuid.NewString()
  }
  return nil
}
