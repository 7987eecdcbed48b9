package services

import (
  "bytes"
  "context"
  "fmt"
  "time"

  "gorm.io/gorm"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/normalization"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

type StampImageService interface {
  ListStampImages(ctx context.Context) ([]types.StampImage, error)
  CreateStampImage(ctx context.Context, teacherID, name, imageURL string) (*types.StampImage, error)
  SetActive(ctx context.Context, id string, active bool) error
  GenerateStampImage(ctx context.Context, teacherID, name string) (*types.StampImage, error)
}

type stampImageService struct {
  db             *gorm.DB
  log            *logger.Logger
  stampImageRepo repos.StampImageRepo
  bucketService  BucketService
  renderer       StampRenderer
  now            func() time.Time
}

func NewStampImageService(
  db             *gorm.DB,
  log            *logger.Logger,
  stampImageRepo repos.StampImageRepo,
  bucketService  BucketService,
  renderer       StampRenderer,
  now            func() time.Time,
) StampImageService {
  if now == nil {
    now = time.Now
  }
  return &stampImageService{
    db:             db,
    log:            log.With("service", "StampImageService"),
    stampImageRepo: stampImageRepo,
    bucketService:  bucketService,
    renderer:       renderer,
    now:            now,
  }
}

func (ss *stampImageService) ListStampImages(ctx context.Context) ([]types.StampImage, error) {
  images, err := ss.stampImageRepo.ListAll(ctx, nil)
  if err != nil {
    return nil, fmt.Errorf("failed to list stamp images: %w", err)
  }
  return images, nil
}

func (ss *stampImageService) CreateStampImage(ctx context.Context, teacherID, name, imageURL string) (*types.StampImage, error) {
  name = normalization.ParseInputString(name)
  imageURL = normalization.ParseInputString(imageURL)
  if name == "" || imageURL == "" {
    return nil, apperrors.Validation(apperrors.CodeMissingFields, "Name and image URL are required")
  }
  img := &types.StampImage{
    Name:      name,
    ImageURL:  imageURL,
    CreatedBy: teacherID,
    IsActive:  true,
    CreatedAt: ss.now().UTC(),
  }
  if err := ss.stampImageRepo.Create(ctx, nil, img); err != nil {
    return nil, fmt.Errorf("failed to create stamp image: %w", err)
  }
  return img, nil
}

func (ss *stampImageService) SetActive(ctx context.Context, id string, active bool) error {
  found, err := ss.stampImageRepo.SetActive(ctx, nil, id, active)
  if err != nil {
    return fmt.Errorf("failed to update stamp image: %w", err)
  }
  if !found {
    return apperrors.NotFound(apperrors.CodeStampImageNotFound, "Stamp image not found")
  }
  ss.log.Info("Stamp image active flag updated", "stampImageID", id, "active", active)
  return nil
}

// GenerateStampImage renders a badge for name, stores it and registers it as
// an active stamp image. The stored file is removed again if the insert fails.
func (ss *stampImageService) GenerateStampImage(ctx context.Context, teacherID, name string) (*types.StampImage, error) {
  name = normalization.ParseInputString(name)
  if name == "" {
    return nil, apperrors.Validation(apperrors.CodeMissingFields, "Name is required")
  }

  //1) Render
  buf, err := ss.renderer.Render(name)
  if err != nil {
    return nil, fmt.Errorf("failed to render stamp badge: %w", err)
  }

  //2) Store
  key := fmt.Sprintf("%d_%s.png", ss.now().UnixMilli(), normalization.SafeFileStem(name))
  if err := ss.bucketService.UploadFile(ctx, key, "image/png", bytes.NewReader(buf.Bytes())); err != nil {
    return nil, fmt.Errorf("failed to store stamp badge: %w", err)
  }

  //3) Register
  img, err := ss.CreateStampImage(ctx, teacherID, name, ss.bucketService.GetPublicURL(key))
  if err != nil {
    if delErr := ss.bucketService.DeleteFile(ctx, key); delErr != nil {
      ss.log.Warn("Failed to remove orphaned stamp badge", "key", key, "error", delErr)
    }
    return nil, err
  }
  return img, nil
}
