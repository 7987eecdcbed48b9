package types

import (
  "time"

  "github.com/google/uuid"
  "gorm.io/gorm"
)

type CodeType string

const (
  CodeTypeStamp CodeType = "stamp"
  CodeTypeGift  CodeType = "gift"
)

func (t CodeType) Valid() bool {
  return t == CodeTypeStamp || t == CodeTypeGift
}

type OneTimeCode struct {
  ID                  string                    `gorm:"type:varchar(36);primaryKey" json:"id"`
  Code                string                    `gorm:"type:varchar(16);uniqueIndex;not null;column:code" json:"code"`
  Type                CodeType                  `gorm:"type:varchar(16);not null" json:"type"`
  StampImageID        *string                   `gorm:"type:varchar(36);index" json:"stamp_image_id"`
  StampImage          *StampImage               `gorm:"constraint:OnDelete:CASCADE;foreignKey:StampImageID;references:ID" json:"-"`
  CreatedBy           string                    `gorm:"type:varchar(128);not null;index" json:"created_by"`
  Creator             *User                     `gorm:"constraint:OnDelete:CASCADE;foreignKey:CreatedBy;references:ID" json:"-"`
  UsedBy              *string                   `gorm:"type:varchar(128)" json:"used_by"`
  UsedAt              *time.Time                `json:"used_at"`
  ExpiresAt           time.Time                 `gorm:"not null;column:expires_at" json:"expires_at"`

  CreatedAt           time.Time                 `gorm:"not null;index" json:"created_at"`
}

func (OneTimeCode) TableName() string {
  return "one_time_codes"
}

func (c *OneTimeCode) BeforeCreate(tx *gorm.DB) error {
  if c.ID == "" {
    c.ID = uuid.NewString()
  }
  return nil
}

func (c *OneTimeCode) IsUsed() bool {
  return c.UsedBy != nil
}

// IsExpired is strict: a code is still valid at exactly ExpiresAt.
func (c *OneTimeCode) IsExpired(now time.Time) bool {
  return now.After(c.ExpiresAt)
}
