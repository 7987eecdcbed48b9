package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

const MaxStampsPerCard = 3

// StampCard holds up to MaxStampsPerCard stamps. A student has at most one
// card with IsCompleted=false.
type StampCard struct {
  ID                  string                    `gorm:"type:varchar(36);primaryKey" json:"id"`
  StudentID           string                    `gorm:"type:varchar(128);not null;index" json:"student_id"`
  Student             *User                     `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"-"`
  IsCompleted         bool                      `gorm:"not null" json:"is_completed"`
  CompletedAt         *time.Time                `json:"completed_at"`
  IsExchanged         bool                      `gorm:"not null" json:"is_exchanged"`
  ExchangedAt         *time.Time                `json:"exchanged_at"`
  Stamps              []Stamp                   `gorm:"constraint:OnDelete:CASCADE;foreignKey:CardID;references:ID" json:"stamps,omitempty"`

  CreatedAt           time.Time                 `gorm:"not null;index" json:"created_at"`
}

func (StampCard) TableName() string {
  return "stamp_cards"
}

func (c *StampCard) BeforeCreate(tx *gorm.DB) error {
  if c.ID == "" {
    c.ID = uuid.NewString()
  }
  return nil
}
