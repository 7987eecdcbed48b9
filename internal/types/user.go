package types

import (
  "time"
)

const (
  RoleStudent = "student"
  RoleTeacher = "teacher"
)

// User is keyed by the identity provider's principal id.
type User struct {
  ID                  string                    `gorm:"type:varchar(128);primaryKey" json:"id"`
  Role                string                    `gorm:"type:varchar(16);not null;index" json:"role"`
  Name                string                    `gorm:"type:varchar(255);not null" json:"name"`
  Major               *string                   `gorm:"type:varchar(255)" json:"major"`
  Email               string                    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
  PhoneNumber         *string                   `gorm:"type:varchar(32);column:phone_number" json:"phone_number,omitempty"`

  CreatedAt           time.Time                 `gorm:"not null" json:"created_at"`
  UpdatedAt           time.Time                 `gorm:"not null" json:"-"`
}

func (User) TableName() string {
  return "users"
}

func (u *User) IsStudent() bool { return u.Role == RoleStudent }
func (u *User) IsTeacher() bool { return u.Role == RoleTeacher }
