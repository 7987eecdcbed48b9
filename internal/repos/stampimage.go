package repos

import (
    "context"
    "errors"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

type StampImageRepo interface {
    Create(ctx context.Context, tx *gorm.DB, img *types.StampImage) error
    GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.StampImage, error)
    ListAll(ctx context.Context, tx *gorm.DB) ([]types.StampImage, error)
    ListActive(ctx context.Context, tx *gorm.DB) ([]types.StampImage, error)
    SetActive(ctx context.Context, tx *gorm.DB, id string, active bool) (bool, error)
}

type stampImageRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewStampImageRepo(db *gorm.DB, baseLog *logger.Logger) StampImageRepo {
    repoLog := baseLog.With("repo", "StampImageRepo")
    return &stampImageRepo{db: db, log: repoLog}
}

func (r *stampImageRepo) Create(ctx context.Context, tx *gorm.DB, img *types.StampImage) error {
    r.log.Info("Creating stamp image now...", "name", img.Name)
    transaction := pick(tx, r.db)

    if err := transaction.WithContext(ctx).Create(img).Error; err != nil {
        r.log.Error("Failed to create stamp image", "error", err)
        return err
    }
    r.log.Info("Successfully created stamp image", "stampImageID", img.ID)
    return nil
}

func (r *stampImageRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*types.StampImage, error) {
    transaction := pick(tx, r.db)

    var img types.StampImage
    err := transaction.WithContext(ctx).Where("id = ?", id).First(&img).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        r.log.Debug("Stamp image not found", "stampImageID", id)
        return nil, nil
    }
    if err != nil {
        r.log.Error("Failed to fetch stamp image", "error", err)
        return nil, err
    }
    return &img, nil
}

func (r *stampImageRepo) ListAll(ctx context.Context, tx *gorm.DB) ([]types.StampImage, error) {
    transaction := pick(tx, r.db)

    results := []types.StampImage{}
    if err := transaction.WithContext(ctx).
        Order("created_at DESC").
        Find(&results).Error; err != nil {
        r.log.Error("Failed to list stamp images", "error", err)
        return nil, err
    }
    r.log.Debug("Listed stamp images", "count", len(results))
    return results, nil
}

func (r *stampImageRepo) ListActive(ctx context.Context, tx *gorm.DB) ([]types.StampImage, error) {
    transaction := pick(tx, r.db)

    results := []types.StampImage{}
    if err := transaction.WithContext(ctx).
        Where("is_active = ?", true).
        Order("created_at DESC").
        Find(&results).Error; err != nil {
        r.log.Error("Failed to list active stamp images", "error", err)
        return nil, err
    }
    return results, nil
}

// SetActive reports false when no row has the id.
func (r *stampImageRepo) SetActive(ctx context.Context, tx *gorm.DB, id string, active bool) (bool, error) {
    r.log.Info("Setting stamp image active flag", "stampImageID", id, "active", active)
    transaction := pick(tx, r.db)

    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.StampImage{}).
        Where("id = ?", id).
        Count(&count).Error; err != nil {
        r.log.Error("Failed to look up stamp image", "error", err)
        return false, err
    }
    if count == 0 {
        return false, nil
    }
    if err := transaction.WithContext(ctx).
        Model(&types.StampImage{}).
        Where("id = ?", id).
        Update("is_active", active).Error; err != nil {
        r.log.Error("Failed to update stamp image", "error", err)
        return false, err
    }
    return true, nil
}
