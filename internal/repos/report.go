package repos

import (
    "context"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

// ReportRepo runs the read-only dashboard aggregates.
type ReportRepo interface {
    Stats(ctx context.Context, tx *gorm.DB) (types.TeacherStats, error)
    StudentsWithProgress(ctx context.Context, tx *gorm.DB) ([]types.StudentProgress, error)
}

type reportRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewReportRepo(db *gorm.DB, baseLog *logger.Logger) ReportRepo {
    repoLog := baseLog.With("repo", "ReportRepo")
    return &reportRepo{db: db, log: repoLog}
}

func (r *reportRepo) Stats(ctx context.Context, tx *gorm.DB) (types.TeacherStats, error) {
    r.log.Debug("Computing teacher stats")
    transaction := pick(tx, r.db).WithContext(ctx)

    var stats types.TeacherStats
    counts := []struct {
        dst   *int64
        query *gorm.DB
    }{
        {&stats.TotalStudents, transaction.Model(&types.User{}).Where("role = ?", types.RoleStudent)},
        {&stats.ActiveCards, transaction.Model(&types.StampCard{}).Where("is_completed = ? AND is_exchanged = ?", false, false)},
        {&stats.CompletedCards, transaction.Model(&types.StampCard{}).Where("is_completed = ? AND is_exchanged = ?", true, false)},
        {&stats.ExchangedCards, transaction.Model(&types.StampCard{}).Where("is_exchanged = ?", true)},
        {&stats.StampsIssued, transaction.Model(&types.Stamp{})},
    }
    for _, c := range counts {
        if err := c.query.Count(c.dst).Error; err != nil {
            r.log.Error("Failed to compute stats", "error", err)
            return types.TeacherStats{}, err
        }
    }
    return stats, nil
}

// StudentsWithProgress rolls up stamps and cards per student, busiest first.
func (r *reportRepo) StudentsWithProgress(ctx context.Context, tx *gorm.DB) ([]types.StudentProgress, error) {
    transaction := pick(tx, r.db)

    rows := []types.StudentProgress{}
    if err := transaction.WithContext(ctx).
        Table("users AS u").
        Select(`u.id, u.name, u.major,
            COUNT(DISTINCT s.id) AS total_stamps,
            COUNT(DISTINCT CASE WHEN sc.is_completed = ? AND sc.is_exchanged = ? THEN sc.id END) AS completed_cards,
            COUNT(DISTINCT CASE WHEN sc.is_completed = ? AND sc.is_exchanged = ? THEN sc.id END) AS active_cards,
            COUNT(DISTINCT CASE WHEN sc.is_exchanged = ? THEN sc.id END) AS exchanged_cards`,
            true, false, false, false, true).
        Joins("LEFT JOIN stamp_cards sc ON sc.student_id = u.id").
        Joins("LEFT JOIN stamps s ON s.card_id = sc.id").
        Where("u.role = ?", types.RoleStudent).
        Group("u.id, u.name, u.major").
        Order("total_stamps DESC, u.name ASC").
        Scan(&rows).Error; err != nil {
        r.log.Error("Failed to compute student progress", "error", err)
        return nil, err
    }
    return rows, nil
}
