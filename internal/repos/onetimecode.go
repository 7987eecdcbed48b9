package repos

import (
    "context"
    "errors"
    "time"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

type OneTimeCodeRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, otCode *types.OneTimeCode) error

    // READ
    GetByCodeAndType(ctx context.Context, tx *gorm.DB, code string, codeType types.CodeType) (*types.OneTimeCode, error)
    CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error)
    CountAll(ctx context.Context, tx *gorm.DB) (int64, error)
    ListAll(ctx context.Context, tx *gorm.DB) ([]types.OneTimeCode, error)

    // PARTIAL UPDATE
    Claim(ctx context.Context, tx *gorm.DB, otCodeID, userID string, at time.Time) (bool, error)

    // FULL (HARD) DELETE
    DeleteOldest(ctx context.Context, tx *gorm.DB, n int) (int64, error)
}

type oneTimeCodeRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewOneTimeCodeRepo(db *gorm.DB, baseLog *logger.Logger) OneTimeCodeRepo {
    repoLog := baseLog.With("repo", "OneTimeCodeRepo")
    return &oneTimeCodeRepo{db: db, log: repoLog}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (ocr *oneTimeCodeRepo) Create(ctx context.Context, tx *gorm.DB, otCode *types.OneTimeCode) error {
    ocr.log.Info("Creating one-time code now...", "type", otCode.Type)
    transaction := pick(tx, ocr.db)

    if err := transaction.WithContext(ctx).Omit("StampImage", "Creator").Create(otCode).Error; err != nil {
        ocr.log.Error("Failed to create one-time code", "error", err)
        return err
    }
    ocr.log.Info("Successfully created one-time code", "otCodeID", otCode.ID)
    return nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

func (ocr *oneTimeCodeRepo) GetByCodeAndType(ctx context.Context, tx *gorm.DB, code string, codeType types.CodeType) (*types.OneTimeCode, error) {
    ocr.log.Debug("Fetching one-time code", "type", codeType)
    transaction := pick(tx, ocr.db)

    var otc types.OneTimeCode
    err := transaction.WithContext(ctx).
        Where("code = ? AND type = ?", code, codeType).
        First(&otc).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, nil
    }
    if err != nil {
        ocr.log.Error("Failed to fetch one-time code", "error", err)
        return nil, err
    }
    return &otc, nil
}

func (ocr *oneTimeCodeRepo) CodeExists(ctx context.Context, tx *gorm.DB, code string) (bool, error) {
    transaction := pick(tx, ocr.db)

    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.OneTimeCode{}).
        Where("code = ?", code).
        Count(&count).Error; err != nil {
        ocr.log.Error("Failed to check code existence", "error", err)
        return false, err
    }
    return count > 0, nil
}

func (ocr *oneTimeCodeRepo) CountAll(ctx context.Context, tx *gorm.DB) (int64, error) {
    transaction := pick(tx, ocr.db)

    var count int64
    if err := transaction.WithContext(ctx).Model(&types.OneTimeCode{}).Count(&count).Error; err != nil {
        ocr.log.Error("Failed to count one-time codes", "error", err)
        return 0, err
    }
    return count, nil
}

// ListAll returns every code, newest first.
func (ocr *oneTimeCodeRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]types.OneTimeCode, error) {
    transaction := pick(tx, ocr.db)

    results := []types.OneTimeCode{}
    if err := transaction.WithContext(ctx).
        Order("created_at DESC").
        Find(&results).Error; err != nil {
        ocr.log.Error("Failed to list one-time codes", "error", err)
        return nil, err
    }
    ocr.log.Debug("Listed one-time codes", "count", len(results))
    return results, nil
}

// ----------------------------------------------------------------
// PARTIAL UPDATE
// ----------------------------------------------------------------

// Claim marks a code used in a single conditional update. It returns false
// when the code was already claimed, so two redemptions can never both win.
func (ocr *oneTimeCodeRepo) Claim(ctx context.Context, tx *gorm.DB, otCodeID, userID string, at time.Time) (bool, error) {
    ocr.log.Info("Claiming one-time code", "otCodeID", otCodeID, "userID", userID)
    transaction := pick(tx, ocr.db)

    res := transaction.WithContext(ctx).
        Model(&types.OneTimeCode{}).
        Where("id = ? AND used_by IS NULL", otCodeID).
        Updates(map[string]interface{}{"used_by": userID, "used_at": at})
    if res.Error != nil {
        ocr.log.Error("Failed to claim one-time code", "error", res.Error)
        return false, res.Error
    }
    if res.RowsAffected == 0 {
        ocr.log.Warn("One-time code was already claimed", "otCodeID", otCodeID)
        return false, nil
    }
    return true, nil
}

// ----------------------------------------------------------------
// FULL (HARD) DELETE
// ----------------------------------------------------------------

// DeleteOldest removes the n codes with the earliest created_at.
func (ocr *oneTimeCodeRepo) DeleteOldest(ctx context.Context, tx *gorm.DB, n int) (int64, error) {
    if n <= 0 {
        return 0, nil
    }
    ocr.log.Info("Trimming oldest one-time codes", "n", n)
    transaction := pick(tx, ocr.db)

    var ids []string
    if err := transaction.WithContext(ctx).
        Model(&types.OneTimeCode{}).
        Order("created_at ASC").
        Order("id ASC").
        Limit(n).
        Pluck("id", &ids).Error; err != nil {
        ocr.log.Error("Failed to select oldest one-time codes", "error", err)
        return 0, err
    }
    if len(ids) == 0 {
        return 0, nil
    }
    res := transaction.WithContext(ctx).Where("id IN ?", ids).Delete(&types.OneTimeCode{})
    if res.Error != nil {
        ocr.log.Error("Failed to delete oldest one-time codes", "error", res.Error)
        return 0, res.Error
    }
    ocr.log.Info("Trimmed oldest one-time codes", "deleted", res.RowsAffected)
    return res.RowsAffected, nil
}
