package repos

import (
    "context"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

type GiftExchangeRepo interface {
    Create(ctx context.Context, tx *gorm.DB, exchange *types.GiftExchange) error
    ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]types.GiftExchange, error)
    CountByCard(ctx context.Context, tx *gorm.DB, cardID string) (int64, error)
}

type giftExchangeRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewGiftExchangeRepo(db *gorm.DB, baseLog *logger.Logger) GiftExchangeRepo {
    repoLog := baseLog.With("repo", "GiftExchangeRepo")
    return &giftExchangeRepo{db: db, log: repoLog}
}

func (r *giftExchangeRepo) Create(ctx context.Context, tx *gorm.DB, exchange *types.GiftExchange) error {
    r.log.Info("Recording gift exchange", "studentID", exchange.StudentID, "cardID", exchange.CardID)
    transaction := pick(tx, r.db)

    if err := transaction.WithContext(ctx).Omit("Student", "Card").Create(exchange).Error; err != nil {
        r.log.Error("Failed to record gift exchange", "error", err)
        return err
    }
    return nil
}

// ListByStudent returns the student's exchanges, newest first.
func (r *giftExchangeRepo) ListByStudent(ctx context.Context, tx *gorm.DB, studentID string) ([]types.GiftExchange, error) {
    transaction := pick(tx, r.db)

    results := []types.GiftExchange{}
    if err := transaction.WithContext(ctx).
        Where("student_id = ?", studentID).
        Order("exchanged_at DESC").
        Find(&results).Error; err != nil {
        r.log.Error("Failed to list gift exchanges", "error", err)
        return nil, err
    }
    return results, nil
}

func (r *giftExchangeRepo) CountByCard(ctx context.Context, tx *gorm.DB, cardID string) (int64, error) {
    transaction := pick(tx, r.db)

    var count int64
    err := transaction.WithContext(ctx).Model(&types.GiftExchange{}).Where("card_id = ?", cardID).Count(&count).Error
    return count, err
}
