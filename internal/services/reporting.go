package services

import (
  "context"
  "encoding/json"
  "fmt"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

// ReportingService serves the read-only student and teacher dashboards.
type ReportingService interface {
  StudentCards(ctx context.Context, studentID string) ([]types.CardView, error)
  StudentCollection(ctx context.Context, studentID string) ([]types.GiftView, error)
  TeacherStats(ctx context.Context) (types.TeacherStats, []types.StudentProgress, error)
  StudentDetail(ctx context.Context, studentID string) (*types.StudentDetail, error)
}

type reportingService struct {
  log              *logger.Logger
  userRepo         repos.UserRepo
  stampCardRepo    repos.StampCardRepo
  stampRepo        repos.StampRepo
  giftExchangeRepo repos.GiftExchangeRepo
  reportRepo       repos.ReportRepo
}

func NewReportingService(
  log              *logger.Logger,
  userRepo         repos.UserRepo,
  stampCardRepo    repos.StampCardRepo,
  stampRepo        repos.StampRepo,
  giftExchangeRepo repos.GiftExchangeRepo,
  reportRepo       repos.ReportRepo,
) ReportingService {
  return &reportingService{
    log:              log.With("service", "ReportingService"),
    userRepo:         userRepo,
    stampCardRepo:    stampCardRepo,
    stampRepo:        stampRepo,
    giftExchangeRepo: giftExchangeRepo,
    reportRepo:       reportRepo,
  }
}

func (rs *reportingService) cardViews(ctx context.Context, studentID string, newestFirst bool) ([]types.CardView, error) {
  cards, err := rs.stampCardRepo.ListWithCounts(ctx, nil, studentID, newestFirst)
  if err != nil {
    return nil, fmt.Errorf("failed to list cards: %w", err)
  }
  ids := make([]string, 0, len(cards))
  for _, c := range cards {
    ids = append(ids, c.ID)
  }
  rows, err := rs.stampRepo.ListByCardIDs(ctx, nil, ids)
  if err != nil {
    return nil, fmt.Errorf("failed to list stamps: %w", err)
  }
  byCard := repos.GroupByCard(rows)

  views := make([]types.CardView, 0, len(cards))
  for _, c := range cards {
    stamps := byCard[c.ID]
    if stamps == nil {
      stamps = []types.StampView{}
    }
    views = append(views, types.CardView{
      ID:          c.ID,
      IsCompleted: c.IsCompleted,
      IsExchanged: c.IsExchanged,
      CompletedAt: c.CompletedAt,
      ExchangedAt: c.ExchangedAt,
      CreatedAt:   c.CreatedAt,
      StampCount:  c.StampCount,
      MaxStamps:   types.MaxStampsPerCard,
      Stamps:      stamps,
    })
  }
  return views, nil
}

func (rs *reportingService) giftViews(ctx context.Context, studentID string, withCode bool) ([]types.GiftView, error) {
  exchanges, err := rs.giftExchangeRepo.ListByStudent(ctx, nil, studentID)
  if err != nil {
    return nil, fmt.Errorf("failed to list gift exchanges: %w", err)
  }
  views := make([]types.GiftView, 0, len(exchanges))
  for _, ex := range exchanges {
    stamps := []types.StampView{}
    if len(ex.StampSnapshot) > 0 {
      if err := json.Unmarshal(ex.StampSnapshot, &stamps); err != nil {
        rs.log.Warn("Unreadable stamp snapshot, returning without stamps", "exchangeID", ex.ID, "error", err)
        stamps = []types.StampView{}
      }
    }
    view := types.GiftView{
      ID:          ex.ID,
      GiftName:    ex.GiftName,
      ExchangedAt: ex.ExchangedAt,
      CardID:      ex.CardID,
      Stamps:      stamps,
    }
    if withCode {
      view.ExchangeCode = ex.ExchangeCode
    }
    views = append(views, view)
  }
  return views, nil
}

func (rs *reportingService) StudentCards(ctx context.Context, studentID string) ([]types.CardView, error) {
  return rs.cardViews(ctx, studentID, false)
}

func (rs *reportingService) StudentCollection(ctx context.Context, studentID string) ([]types.GiftView, error) {
  return rs.giftViews(ctx, studentID, false)
}

func (rs *reportingService) TeacherStats(ctx context.Context) (types.TeacherStats, []types.StudentProgress, error) {
  stats, err := rs.reportRepo.Stats(ctx, nil)
  if err != nil {
    return types.TeacherStats{}, nil, fmt.Errorf("failed to compute stats: %w", err)
  }
  students, err := rs.reportRepo.StudentsWithProgress(ctx, nil)
  if err != nil {
    return types.TeacherStats{}, nil, fmt.Errorf("failed to compute student progress: %w", err)
  }
  return stats, students, nil
}

func (rs *reportingService) StudentDetail(ctx context.Context, studentID string) (*types.StudentDetail, error) {
  student, err := rs.userRepo.GetStudentByID(ctx, nil, studentID)
  if err != nil {
    return nil, fmt.Errorf("failed to load student: %w", err)
  }
  if student == nil {
    return nil, apperrors.NotFound(apperrors.CodeStudentNotFound, "Student not found")
  }

  cards, err := rs.cardViews(ctx, studentID, true)
  if err != nil {
    return nil, err
  }
  gifts, err := rs.giftViews(ctx, studentID, true)
  if err != nil {
    return nil, err
  }

  var stats types.StudentStats
  for _, c := range cards {
    stats.TotalStamps += c.StampCount
    switch {
    case c.IsExchanged:
      stats.ExchangedCards++
    case c.IsCompleted:
      stats.CompletedCards++
    default:
      stats.ActiveCards++
    }
  }

  return &types.StudentDetail{
    Student: types.StudentSummary{
      ID:        student.ID,
      Name:      student.Name,
      Major:     student.Major,
      Email:     student.Email,
      CreatedAt: student.CreatedAt,
      Stats:     stats,
    },
    Cards: cards,
    Gifts: gifts,
  }, nil
}
