package repos

import (
    "context"
    "errors"
    "time"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

// CardWithCount is a card row plus its current number of stamps.
type CardWithCount struct {
    types.StampCard
    StampCount int `gorm:"column:stamp_count"`
}

type StampCardRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, card *types.StampCard) error

    // READ
    FindOpenCard(ctx context.Context, tx *gorm.DB, studentID string) (*CardWithCount, error)
    FindExchangeableCard(ctx context.Context, tx *gorm.DB, studentID string) (*types.StampCard, error)
    ListWithCounts(ctx context.Context, tx *gorm.DB, studentID string, newestFirst bool) ([]CardWithCount, error)
    CountIncomplete(ctx context.Context, tx *gorm.DB, studentID string) (int64, error)

    // GUARDED UPDATE
    MarkCompleted(ctx context.Context, tx *gorm.DB, cardID string, at time.Time) (bool, error)
    MarkExchanged(ctx context.Context, tx *gorm.DB, cardID string, at time.Time) (bool, error)
}

type stampCardRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewStampCardRepo(db *gorm.DB, baseLog *logger.Logger) StampCardRepo {
    repoLog := baseLog.With("repo", "StampCardRepo")
    return &stampCardRepo{db: db, log: repoLog}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (r *stampCardRepo) Create(ctx context.Context, tx *gorm.DB, card *types.StampCard) error {
    r.log.Info("Creating stamp card now...", "studentID", card.StudentID)
    transaction := pick(tx, r.db)

    if err := transaction.WithContext(ctx).Omit("Stamps").Create(card).Error; err != nil {
        r.log.Error("Failed to create stamp card", "error", err)
        return err
    }
    r.log.Info("Successfully created stamp card", "cardID", card.ID)
    return nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

// FindOpenCard returns the student's oldest incomplete card that still has
// room, or (nil, nil).
func (r *stampCardRepo) FindOpenCard(ctx context.Context, tx *gorm.DB, studentID string) (*CardWithCount, error) {
    r.log.Debug("Looking up open card", "studentID", studentID)
    transaction := pick(tx, r.db)

    var rows []CardWithCount
    if err := transaction.WithContext(ctx).
        Table("stamp_cards AS sc").
        Select("sc.*, COUNT(s.id) AS stamp_count").
        Joins("LEFT JOIN stamps s ON s.card_id = sc.id").
        Where("sc.student_id = ? AND sc.is_completed = ?", studentID, false).
        Group("sc.id").
        Having("COUNT(s.id) < ?", types.MaxStampsPerCard).
        Order("sc.created_at ASC").
        Limit(1).
        Scan(&rows).Error; err != nil {
        r.log.Error("Failed to query open card", "error", err)
        return nil, err
    }
    if len(rows) == 0 {
        r.log.Debug("No open card for student", "studentID", studentID)
        return nil, nil
    }
    return &rows[0], nil
}

// FindExchangeableCard picks any completed card that has not been exchanged.
func (r *stampCardRepo) FindExchangeableCard(ctx context.Context, tx *gorm.DB, studentID string) (*types.StampCard, error) {
    transaction := pick(tx, r.db)

    var card types.StampCard
    err := transaction.WithContext(ctx).
        Where("student_id = ? AND is_completed = ? AND is_exchanged = ?", studentID, true, false).
        Take(&card).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        r.log.Debug("No exchangeable card for student", "studentID", studentID)
        return nil, nil
    }
    if err != nil {
        r.log.Error("Failed to query exchangeable card", "error", err)
        return nil, err
    }
    return &card, nil
}

func (r *stampCardRepo) ListWithCounts(ctx context.Context, tx *gorm.DB, studentID string, newestFirst bool) ([]CardWithCount, error) {
    transaction := pick(tx, r.db)

    order := "sc.created_at ASC"
    if newestFirst {
        order = "sc.created_at DESC"
    }
    rows := []CardWithCount{}
    if err := transaction.WithContext(ctx).
        Table("stamp_cards AS sc").
        Select("sc.*, COUNT(s.id) AS stamp_count").
        Joins("LEFT JOIN stamps s ON s.card_id = sc.id").
        Where("sc.student_id = ?", studentID).
        Group("sc.id").
        Order(order).
        Scan(&rows).Error; err != nil {
        r.log.Error("Failed to list cards", "error", err)
        return nil, err
    }
    r.log.Debug("Listed cards", "studentID", studentID, "count", len(rows))
    return rows, nil
}

func (r *stampCardRepo) CountIncomplete(ctx context.Context, tx *gorm.DB, studentID string) (int64, error) {
    transaction := pick(tx, r.db)

    var count int64
    err := transaction.WithContext(ctx).
        Model(&types.StampCard{}).
        Where("student_id = ? AND is_completed = ?", studentID, false).
        Count(&count).Error
    return count, err
}

// ----------------------------------------------------------------
// GUARDED UPDATE
// ----------------------------------------------------------------

// MarkCompleted flips is_completed only if it is still false. It returns
// false when another writer got there first.
func (r *stampCardRepo) MarkCompleted(ctx context.Context, tx *gorm.DB, cardID string, at time.Time) (bool, error) {
    r.log.Info("Marking card completed", "cardID", cardID)
    transaction := pick(tx, r.db)

    res := transaction.WithContext(ctx).
        Model(&types.StampCard{}).
        Where("id = ? AND is_completed = ?", cardID, false).
        Updates(map[string]interface{}{"is_completed": true, "completed_at": at})
    if res.Error != nil {
        r.log.Error("Failed to mark card completed", "error", res.Error)
        return false, res.Error
    }
    return res.RowsAffected == 1, nil
}

// MarkExchanged flips is_exchanged on a completed card only if it is still false.
func (r *stampCardRepo) MarkExchanged(ctx context.Context, tx *gorm.DB, cardID string, at time.Time) (bool, error) {
    r.log.Info("Marking card exchanged", "cardID", cardID)
    transaction := pick(tx, r.db)

    res := transaction.WithContext(ctx).
        Model(&types.StampCard{}).
        Where("id = ? AND is_completed = ? AND is_exchanged = ?", cardID, true, false).
        Updates(map[string]interface{}{"is_exchanged": true, "exchanged_at": at})
    if res.Error != nil {
        r.log.Error("Failed to mark card exchanged", "error", res.Error)
        return false, res.Error
    }
    return res.RowsAffected == 1, nil
}
