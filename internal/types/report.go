package types

import (
  "time"
)

// Read models returned by the reporting queries. They are never persisted.

type TeacherStats struct {
  TotalStudents       int64                     `json:"totalStudents"`
  ActiveCards         int64                     `json:"activeCards"`
  CompletedCards      int64                     `json:"completedCards"`
  ExchangedCards      int64                     `json:"exchangedCards"`
  StampsIssued        int64                     `json:"stampsIssued"`
}

type StudentProgress struct {
  ID                  string                    `json:"id"`
  Name                string                    `json:"name"`
  Major               *string                   `json:"major"`
  TotalStamps         int64                     `json:"total_stamps"`
  CompletedCards      int64                     `json:"completed_cards"`
  ActiveCards         int64                     `json:"active_cards"`
  ExchangedCards      int64                     `json:"exchanged_cards"`
}

type StampView struct {
  Position            int                       `json:"position"`
  StampName           string                    `json:"stamp_name"`
  ImageURL            string                    `json:"image_url"`
  CreatedAt           time.Time                 `json:"created_at"`
}

type CardView struct {
  ID                  string                    `json:"id"`
  IsCompleted         bool                      `json:"is_completed"`
  IsExchanged         bool                      `json:"is_exchanged"`
  CompletedAt         *time.Time                `json:"completed_at"`
  ExchangedAt         *time.Time                `json:"exchanged_at"`
  CreatedAt           time.Time                 `json:"created_at"`
  StampCount          int                       `json:"stamp_count"`
  MaxStamps           int                       `json:"maxStamps"`
  Stamps              []StampView               `json:"stamps"`
}

type GiftView struct {
  ID                  string                    `json:"id"`
  GiftName            string                    `json:"gift_name"`
  ExchangedAt         time.Time                 `json:"exchanged_at"`
  ExchangeCode        string                    `json:"exchange_code,omitempty"`
  CardID              string                    `json:"card_id"`
  Stamps              []StampView               `json:"stamps"`
}

type CodeView struct {
  ID                  string                    `json:"id"`
  Code                string                    `json:"code"`
  Type                CodeType                  `json:"type"`
  Used                bool                      `json:"used"`
  UsedBy              *string                   `json:"used_by"`
  UsedAt              *time.Time                `json:"used_at"`
  ExpiresAt           time.Time                 `json:"expires_at"`
  CreatedAt           time.Time                 `json:"created_at"`
  StampImageID        *string                   `json:"stamp_image_id"`
}

type StudentStats struct {
  TotalStamps         int                       `json:"totalStamps"`
  CompletedCards      int                       `json:"completedCards"`
  ActiveCards         int                       `json:"activeCards"`
  ExchangedCards      int                       `json:"exchangedCards"`
}

type StudentSummary struct {
  ID                  string                    `json:"id"`
  Name                string                    `json:"name"`
  Major               *string                   `json:"major"`
  Email               string                    `json:"email"`
  CreatedAt           time.Time                 `json:"created_at"`
  Stats               StudentStats              `json:"stats"`
}

type StudentDetail struct {
  Student             StudentSummary            `json:"student"`
  Cards               []CardView                `json:"cards"`
  Gifts               []GiftView                `json:"gifts"`
}
