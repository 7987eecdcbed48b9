package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/datatypes"
  "gorm.io/gorm"
)

// GiftExchange is append-only. StampSnapshot records the stamps on the card
// at the moment it was exchanged.
type GiftExchange struct {
  ID                  string                    `gorm:"type:varchar(36);primaryKey" json:"id"`
  StudentID           string                    `gorm:"type:varchar(128);not null;index" json:"student_id"`
  Student             *User                     `gorm:"constraint:OnDelete:CASCADE;foreignKey:StudentID;references:ID" json:"-"`
  CardID              string                    `gorm:"type:varchar(36);not null;index" json:"card_id"`
  Card                *StampCard                `gorm:"constraint:OnDelete:CASCADE;foreignKey:CardID;references:ID" json:"-"`
  GiftName            string                    `gorm:"type:varchar(255);not null" json:"gift_name"`
  ExchangeCode        string                    `gorm:"type:varchar(16);not null" json:"exchange_code"`
  StampSnapshot       datatypes.JSON            `json:"stamp_snapshot,omitempty"`

  ExchangedAt         time.Time                 `gorm:"not null;index" json:"exchanged_at"`
}

func (GiftExchange) TableName() string {
  return "gift_exchanges"
}

func (g *GiftExchange) BeforeCreate(tx *gorm.DB) error {
  if g.ID == "" {
    g.ID = uuid.NewString()
  }
  return nil
}
