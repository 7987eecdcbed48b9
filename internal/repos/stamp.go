package repos

import (
    "context"
    "time"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

// StampRow is a stamp joined with the image it shows.
type StampRow struct {
    CardID    string    `gorm:"column:card_id"`
    Position  int       `gorm:"column:position"`
    StampName string    `gorm:"column:stamp_name"`
    ImageURL  string    `gorm:"column:image_url"`
    CreatedAt time.Time `gorm:"column:created_at"`
}

func (s StampRow) View() types.StampView {
    return types.StampView{
        Position:  s.Position,
        StampName: s.StampName,
        ImageURL:  s.ImageURL,
        CreatedAt: s.CreatedAt,
    }
}

type StampRepo interface {
    Create(ctx context.Context, tx *gorm.DB, stamp *types.Stamp) error
    ListByCardIDs(ctx context.Context, tx *gorm.DB, cardIDs []string) ([]StampRow, error)
    CountByCard(ctx context.Context, tx *gorm.DB, cardID string) (int64, error)
}

type stampRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewStampRepo(db *gorm.DB, baseLog *logger.Logger) StampRepo {
    repoLog := baseLog.With("repo", "StampRepo")
    return &stampRepo{db: db, log: repoLog}
}

func (r *stampRepo) Create(ctx context.Context, tx *gorm.DB, stamp *types.Stamp) error {
    r.log.Info("Creating stamp now...", "cardID", stamp.CardID, "position", stamp.Position)
    transaction := pick(tx, r.db)

    if err := transaction.WithContext(ctx).Omit("StampImage").Create(stamp).Error; err != nil {
        r.log.Error("Failed to create stamp", "error", err)
        return err
    }
    return nil
}

// ListByCardIDs returns stamps ordered by card then position.
func (r *stampRepo) ListByCardIDs(ctx context.Context, tx *gorm.DB, cardIDs []string) ([]StampRow, error) {
    rows := []StampRow{}
    if len(cardIDs) == 0 {
        r.log.Debug("No card IDs provided, returning empty slice")
        return rows, nil
    }
    transaction := pick(tx, r.db)

    if err := transaction.WithContext(ctx).
        Table("stamps AS s").
        Select("s.card_id, s.position, s.created_at, si.name AS stamp_name, si.image_url").
        Joins("JOIN stamp_images si ON si.id = s.stamp_image_id").
        Where("s.card_id IN ?", cardIDs).
        Order("s.card_id, s.position").
        Scan(&rows).Error; err != nil {
        r.log.Error("Failed to list stamps by card IDs", "error", err)
        return nil, err
    }
    r.log.Debug("Listed stamps", "cards", len(cardIDs), "stamps", len(rows))
    return rows, nil
}

func (r *stampRepo) CountByCard(ctx context.Context, tx *gorm.DB, cardID string) (int64, error) {
    transaction := pick(tx, r.db)

    var count int64
    err := transaction.WithContext(ctx).Model(&types.Stamp{}).Where("card_id = ?", cardID).Count(&count).Error
    return count, err
}

// GroupByCard buckets rows by card id, keeping position order.
func GroupByCard(rows []StampRow) map[string][]types.StampView {
    out := make(map[string][]types.StampView)
    for _, row := range rows {
        out[row.CardID] = append(out[row.CardID], row.View())
    }
    return out
}
