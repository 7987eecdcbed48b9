package services

import (
  "context"
  "encoding/json"
  "errors"
  "fmt"
  "strings"
  "time"

  "gorm.io/datatypes"
  "gorm.io/gorm"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/eventdata"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/metrics"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

const (
  GiftCardName    = "Gift Card"
  UnknownGiftName = "Unknown Gift"
)

// CompletionNotifier is told about every committed card completion.
type CompletionNotifier interface {
  CardCompleted(ctx context.Context, studentID, cardID string)
}

type StampRedemption struct {
  CardID         string
  Position       int
  CardCompleted  bool
  NewCardCreated bool
}

type GiftRedemption struct {
  ExchangeID string
  CardID     string
  GiftName   string
}

type RedemptionService interface {
  RedeemStampCode(ctx context.Context, studentID, code string) (*StampRedemption, error)
  RedeemGiftCode(ctx context.Context, studentID, code string) (*GiftRedemption, error)
}

type redemptionService struct {
  db               *gorm.DB
  log              *logger.Logger
  oneTimeCodeRepo  repos.OneTimeCodeRepo
  stampCardRepo    repos.StampCardRepo
  stampRepo        repos.StampRepo
  giftExchangeRepo repos.GiftExchangeRepo
  notifier         CompletionNotifier
  metrics          *metrics.Metrics
  now              func() time.Time
}

func NewRedemptionService(
  db               *gorm.DB,
  log              *logger.Logger,
  oneTimeCodeRepo  repos.OneTimeCodeRepo,
  stampCardRepo    repos.StampCardRepo,
  stampRepo        repos.StampRepo,
  giftExchangeRepo repos.GiftExchangeRepo,
  notifier         CompletionNotifier,
  m                *metrics.Metrics,
  now              func() time.Time,
) RedemptionService {
  if now == nil {
    now = time.Now
  }
  return &redemptionService{
    db:               db,
    log:              log.With("service", "RedemptionService"),
    oneTimeCodeRepo:  oneTimeCodeRepo,
    stampCardRepo:    stampCardRepo,
    stampRepo:        stampRepo,
    giftExchangeRepo: giftExchangeRepo,
    notifier:         notifier,
    metrics:          m,
    now:              now,
  }
}

type codeMessages struct {
  notFound, used, expired string
}

var (
  stampCodeMessages = codeMessages{"Invalid code", "Code already used", "Code expired"}
  giftCodeMessages  = codeMessages{"Invalid gift code", "Gift code already used", "Gift code expired"}
)

// claimCode looks up code, rejects it if missing, used or expired, and then
// claims it with a conditional update inside tx. Losing the claim race is
// reported exactly like an already used code.
func (rs *redemptionService) claimCode(ctx context.Context, tx *gorm.DB, studentID, code string, codeType types.CodeType, now time.Time, msgs codeMessages) (*types.OneTimeCode, error) {
  otc, err := rs.oneTimeCodeRepo.GetByCodeAndType(ctx, tx, code, codeType)
  if err != nil {
    return nil, fmt.Errorf("failed to look up code: %w", err)
  }
  if otc == nil {
    return nil, apperrors.Validation(apperrors.CodeCodeNotFound, msgs.notFound)
  }
  if otc.IsUsed() {
    return nil, apperrors.Validation(apperrors.CodeCodeAlreadyUsed, msgs.used)
  }
  if otc.IsExpired(now) {
    return nil, apperrors.Validation(apperrors.CodeCodeExpired, msgs.expired)
  }
  claimed, err := rs.oneTimeCodeRepo.Claim(ctx, tx, otc.ID, studentID, now)
  if err != nil {
    return nil, fmt.Errorf("failed to claim code: %w", err)
  }
  if !claimed {
    return nil, apperrors.Validation(apperrors.CodeCodeAlreadyUsed, msgs.used)
  }
  return otc, nil
}

//----------------------------------------------------------------------------------------------------------------------
// RedeemStampCode
//----------------------------------------------------------------------------------------------------------------------

func (rs *redemptionService) RedeemStampCode(ctx context.Context, studentID, code string) (*StampRedemption, error) {
  rs.log.Info("Starting RedeemStampCode now...", "studentID", studentID)
  code = strings.TrimSpace(code)
  if code == "" {
    return nil, apperrors.Validation(apperrors.CodeMissingFields, "Code is required")
  }

  now := rs.now().UTC()
  result := &StampRedemption{}
  err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    //1) Validate And Claim The Code
    otc, err := rs.claimCode(ctx, tx, studentID, code, types.CodeTypeStamp, now, stampCodeMessages)
    if err != nil {
      return err
    }
    if otc.StampImageID == nil {
      return fmt.Errorf("stamp code %s has no stamp image", otc.ID)
    }

    //2) Find The Card To Stamp
    card, err := rs.stampCardRepo.FindOpenCard(ctx, tx, studentID)
    if err != nil {
      return fmt.Errorf("failed to find open card: %w", err)
    }
    if card == nil {
      return apperrors.Capacity(apperrors.CodeNoAvailableCardSlot, "No available card slots")
    }

    //3) Insert Stamp At The Next Position
    result.CardID = card.ID
    result.Position = card.StampCount + 1
    stamp := &types.Stamp{
      CardID:       card.ID,
      StampImageID: *otc.StampImageID,
      Position:     result.Position,
      IssuedBy:     studentID,
      CreatedAt:    now,
    }
    if err := rs.stampRepo.Create(ctx, tx, stamp); err != nil {
      if repos.IsDuplicateKey(err) {
        return apperrors.Wrap(apperrors.KindConflict, apperrors.CodeCardSlotTaken, "Card slot was taken by a concurrent redemption", err)
      }
      return fmt.Errorf("failed to insert stamp: %w", err)
    }

    //4) Complete The Card And Open The Next One
    if result.Position == types.MaxStampsPerCard {
      completed, err := rs.stampCardRepo.MarkCompleted(ctx, tx, card.ID, now)
      if err != nil {
        return fmt.Errorf("failed to mark card completed: %w", err)
      }
      if !completed {
        return apperrors.Conflict(apperrors.CodeCardSlotTaken, "Card was completed by a concurrent redemption")
      }
      next := &types.StampCard{StudentID: studentID, CreatedAt: now}
      if err := rs.stampCardRepo.Create(ctx, tx, next); err != nil {
        return fmt.Errorf("failed to open new card: %w", err)
      }
      result.CardCompleted = true
      result.NewCardCreated = true
    }
    return nil
  })
  if err != nil {
    rs.recordFailure(types.CodeTypeStamp, err)
    return nil, err
  }

  //5) Committed: Count, Announce, Notify
  rs.metrics.Redemption(string(types.CodeTypeStamp), "ok")
  payload := map[string]interface{}{
    "studentId":     studentID,
    "cardId":        result.CardID,
    "position":      result.Position,
    "cardCompleted": result.CardCompleted,
  }
  eventdata.Append(ctx, socket.Message{Channel: socket.TeachersChannel, Event: socket.EventStampRedeemed, Data: payload})
  eventdata.Append(ctx, socket.Message{Channel: socket.StudentChannel(studentID), Event: socket.EventStampRedeemed, Data: payload})
  if result.CardCompleted {
    rs.metrics.CardCompleted()
    eventdata.Append(ctx, socket.Message{Channel: socket.TeachersChannel, Event: socket.EventCardCompleted, Data: payload})
    eventdata.Append(ctx, socket.Message{Channel: socket.StudentChannel(studentID), Event: socket.EventCardCompleted, Data: payload})
    if rs.notifier != nil {
      rs.notifier.CardCompleted(ctx, studentID, result.CardID)
    }
  }
  rs.log.Info("Stamp redeemed", "studentID", studentID, "cardID", result.CardID, "position", result.Position)
  return result, nil
}

//----------------------------------------------------------------------------------------------------------------------
// RedeemGiftCode
//----------------------------------------------------------------------------------------------------------------------

// GiftNameForCode derives the display name of a gift from the code text.
func GiftNameForCode(code string) string {
  if strings.HasPrefix(code, "GIFT") {
    return GiftCardName
  }
  return UnknownGiftName
}

func (rs *redemptionService) RedeemGiftCode(ctx context.Context, studentID, code string) (*GiftRedemption, error) {
  rs.log.Info("Starting RedeemGiftCode now...", "studentID", studentID)
  code = strings.TrimSpace(code)
  if code == "" {
    return nil, apperrors.Validation(apperrors.CodeMissingFields, "Code is required")
  }

  now := rs.now().UTC()
  result := &GiftRedemption{}
  err := rs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    //1) Validate And Claim The Code
    if _, err := rs.claimCode(ctx, tx, studentID, code, types.CodeTypeGift, now, giftCodeMessages); err != nil {
      return err
    }

    //2) Pick A Completed, Unexchanged Card
    card, err := rs.stampCardRepo.FindExchangeableCard(ctx, tx, studentID)
    if err != nil {
      return fmt.Errorf("failed to find completed card: %w", err)
    }
    if card == nil {
      return apperrors.Capacity(apperrors.CodeNoCompletedCardAvailable, "No completed cards available for exchange")
    }

    //3) Snapshot The Stamps Being Traded In
    rows, err := rs.stampRepo.ListByCardIDs(ctx, tx, []string{card.ID})
    if err != nil {
      return fmt.Errorf("failed to load card stamps: %w", err)
    }
    snapshot, err := stampSnapshot(rows)
    if err != nil {
      return err
    }

    //4) Record Exchange And Retire The Card
    exchange := &types.GiftExchange{
      StudentID:     studentID,
      CardID:        card.ID,
      GiftName:      GiftNameForCode(code),
      ExchangeCode:  code,
      StampSnapshot: snapshot,
      ExchangedAt:   now,
    }
    if err := rs.giftExchangeRepo.Create(ctx, tx, exchange); err != nil {
      return fmt.Errorf("failed to record gift exchange: %w", err)
    }
    exchanged, err := rs.stampCardRepo.MarkExchanged(ctx, tx, card.ID, now)
    if err != nil {
      return fmt.Errorf("failed to mark card exchanged: %w", err)
    }
    if !exchanged {
      return apperrors.Capacity(apperrors.CodeNoCompletedCardAvailable, "No completed cards available for exchange")
    }

    result.ExchangeID = exchange.ID
    result.CardID = card.ID
    result.GiftName = exchange.GiftName
    return nil
  })
  if err != nil {
    rs.recordFailure(types.CodeTypeGift, err)
    return nil, err
  }

  rs.metrics.Redemption(string(types.CodeTypeGift), "ok")
  payload := map[string]interface{}{
    "studentId": studentID,
    "cardId":    result.CardID,
    "giftName":  result.GiftName,
  }
  eventdata.Append(ctx, socket.Message{Channel: socket.TeachersChannel, Event: socket.EventGiftExchanged, Data: payload})
  eventdata.Append(ctx, socket.Message{Channel: socket.StudentChannel(studentID), Event: socket.EventGiftExchanged, Data: payload})
  rs.log.Info("Gift exchanged", "studentID", studentID, "cardID", result.CardID)
  return result, nil
}

func (rs *redemptionService) recordFailure(codeType types.CodeType, err error) {
  var appErr *apperrors.Error
  result := string(apperrors.CodeInternal)
  if errors.As(err, &appErr) {
    result = string(appErr.Code)
  }
  rs.metrics.Redemption(string(codeType), result)
  rs.log.Warn("Redemption failed", "type", codeType, "result", result, "error", err)
}

func stampSnapshot(rows []repos.StampRow) (datatypes.JSON, error) {
  views := make([]types.StampView, 0, len(rows))
  for _, row := range rows {
    views = append(views, row.View())
  }
  raw, err := json.Marshal(views)
  if err != nil {
    return nil, fmt.Errorf("failed to encode stamp snapshot: %w", err)
  }
  return datatypes.JSON(raw), nil
}
