package services

import (
  "context"
  "crypto/rand"
  "fmt"
  "math/big"
  "time"

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
  MaxOutstandingCodes    = 1000
  CodeGenerationAttempts = 100
  CodeTTL                = 7 * 24 * time.Hour

  minCode   = 10000
  codeRange = 90000
)

type IssuedCode struct {
  ID        string
  Code      string
  Type      types.CodeType
  ExpiresAt time.Time
}

type CodeService interface {
  IssueCode(ctx context.Context, teacherID string, codeType types.CodeType, stampImageID *string) (*IssuedCode, error)
  ListCodes(ctx context.Context) ([]types.CodeView, error)
}

type codeService struct {
  db              *gorm.DB
  log             *logger.Logger
  oneTimeCodeRepo repos.OneTimeCodeRepo
  stampImageRepo  repos.StampImageRepo
  metrics         *metrics.Metrics
  now             func() time.Time
  gen             func() (string, error)
}

func NewCodeService(
  db              *gorm.DB,
  log             *logger.Logger,
  oneTimeCodeRepo repos.OneTimeCodeRepo,
  stampImageRepo  repos.StampImageRepo,
  m               *metrics.Metrics,
  now             func() time.Time,
) CodeService {
  if now == nil {
    now = time.Now
  }
  return &codeService{
    db:              db,
    log:             log.With("service", "CodeService"),
    oneTimeCodeRepo: oneTimeCodeRepo,
    stampImageRepo:  stampImageRepo,
    metrics:         m,
    now:             now,
    gen:             randomCode,
  }
}

// randomCode returns a uniformly drawn 5 digit string in 10000..99999.
func randomCode() (string, error) {
  n, err := rand.Int(rand.Reader, big.NewInt(codeRange))
  if err != nil {
    return "", err
  }
  return fmt.Sprintf("%d", n.Int64()+minCode), nil
}

func (cs *codeService) IssueCode(ctx context.Context, teacherID string, codeType types.CodeType, stampImageID *string) (*IssuedCode, error) {
  cs.log.Info("Starting IssueCode now...", "type", codeType, "teacherID", teacherID)

  //1) Validate Input
  if !codeType.Valid() {
    return nil, apperrors.Validation(apperrors.CodeInvalidCodeType, "Invalid code type")
  }
  if codeType == types.CodeTypeStamp && (stampImageID == nil || *stampImageID == "") {
    return nil, apperrors.Validation(apperrors.CodeStampImageRequired, "Stamp image ID required for stamp codes")
  }
  if codeType == types.CodeTypeGift {
    stampImageID = nil
  }

  var issued *types.OneTimeCode
  err := cs.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    //2) Stamp Codes Need An Existing, Active Image
    if stampImageID != nil {
      img, err := cs.stampImageRepo.GetByID(ctx, tx, *stampImageID)
      if err != nil {
        return fmt.Errorf("failed to load stamp image: %w", err)
      }
      if img == nil {
        return apperrors.Validation(apperrors.CodeStampImageNotFound, "Stamp image not found")
      }
      if !img.IsActive {
        return apperrors.Validation(apperrors.CodeStampImageInactive, "Stamp image is not active")
      }
    }

    //3) Trim To The Most Recent Codes
    count, err := cs.oneTimeCodeRepo.CountAll(ctx, tx)
    if err != nil {
      return fmt.Errorf("failed to count codes: %w", err)
    }
    if count >= MaxOutstandingCodes {
      excess := int(count) - (MaxOutstandingCodes - 1)
      if _, err := cs.oneTimeCodeRepo.DeleteOldest(ctx, tx, excess); err != nil {
        return fmt.Errorf("failed to trim oldest codes: %w", err)
      }
    }

    //4) Draw A Code Not Already In The Table
    code, err := cs.uniqueCode(ctx, tx)
    if err != nil {
      return err
    }

    //5) Insert
    now := cs.now().UTC()
    issued = &types.OneTimeCode{
      Code:         code,
      Type:         codeType,
      StampImageID: stampImageID,
      CreatedBy:    teacherID,
      ExpiresAt:    now.Add(CodeTTL),
      CreatedAt:    now,
    }
    if err := cs.oneTimeCodeRepo.Create(ctx, tx, issued); err != nil {
      return fmt.Errorf("failed to insert code: %w", err)
    }
    return nil
  })
  if err != nil {
    cs.log.Warn("IssueCode failed", "error", err)
    return nil, err
  }

  cs.metrics.CodeIssued(string(codeType))
  eventdata.Append(ctx, socket.Message{
    Channel: socket.TeachersChannel,
    Event:   socket.EventCodeIssued,
    Data: map[string]interface{}{
      "id":        issued.ID,
      "code":      issued.Code,
      "type":      issued.Type,
      "expiresAt": issued.ExpiresAt,
      "createdBy": teacherID,
    },
  })
  cs.log.Info("Code issued", "otCodeID", issued.ID, "type", codeType)
  return &IssuedCode{ID: issued.ID, Code: issued.Code, Type: issued.Type, ExpiresAt: issued.ExpiresAt}, nil
}

func (cs *codeService) uniqueCode(ctx context.Context, tx *gorm.DB) (string, error) {
  for attempt := 1; attempt <= CodeGenerationAttempts; attempt++ {
    candidate, err := cs.gen()
    if err != nil {
      return "", fmt.Errorf("failed to draw code: %w", err)
    }
    exists, err := cs.oneTimeCodeRepo.CodeExists(ctx, tx, candidate)
    if err != nil {
      return "", fmt.Errorf("failed to check code uniqueness: %w", err)
    }
    if !exists {
      return candidate, nil
    }
    cs.log.Debug("Code collision, retrying", "attempt", attempt)
  }
  return "", apperrors.New(apperrors.KindInfrastructure, apperrors.CodeCodeGenerationExhausted,
    fmt.Sprintf("Failed to generate unique code after %d attempts", CodeGenerationAttempts))
}

func (cs *codeService) ListCodes(ctx context.Context) ([]types.CodeView, error) {
  codes, err := cs.oneTimeCodeRepo.ListAll(ctx, nil)
  if err != nil {
    return nil, fmt.Errorf("failed to list codes: %w", err)
  }
  views := make([]types.CodeView, 0, len(codes))
  for _, c := range codes {
    views = append(views, types.CodeView{
      ID:           c.ID,
      Code:         c.Code,
      Type:         c.Type,
      Used:         c.IsUsed(),
      UsedBy:       c.UsedBy,
      UsedAt:       c.UsedAt,
      ExpiresAt:    c.ExpiresAt,
      CreatedAt:    c.CreatedAt,
      StampImageID: c.StampImageID,
    })
  }
  return views, nil
}
