package services

import (
  "bytes"
  "context"
  "fmt"
  "image"
  _ "image/gif"
  _ "image/jpeg"
  _ "image/png"
  "io"
  "path/filepath"
  "strings"
  "time"

  "github.com/disintegration/imaging"
  _ "golang.org/x/image/webp"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/normalization"
)

const (
  MaxUploadBytes  = 5 << 20
  StampImageSize  = 512
  // MaxImagePixels caps width*height before a full decode.
  MaxImagePixels  = 4096 * 4096
)

type UploadedImage struct {
  Key       string
  ImagePath string
  FileName  string
}

type UploadService interface {
  UploadStampImage(ctx context.Context, fileName, contentType string, size int64, r io.Reader) (*UploadedImage, error)
}

type uploadService struct {
  log           *logger.Logger
  bucketService BucketService
  now           func() time.Time
}

func NewUploadService(log *logger.Logger, bucketService BucketService, now func() time.Time) UploadService {
  if now == nil {
    now = time.Now
  }
  return &uploadService{
    log:           log.With("service", "UploadService"),
    bucketService: bucketService,
    now:           now,
  }
}

// UploadStampImage accepts any decodable image up to MaxUploadBytes and
// MaxImagePixels, fits it into a StampImageSize square and stores it as PNG.
func (us *uploadService) UploadStampImage(ctx context.Context, fileName, contentType string, size int64, r io.Reader) (*UploadedImage, error) {
  us.log.Info("Starting UploadStampImage now...", "fileName", fileName, "contentType", contentType, "size", size)

  //1) Check Declared Type And Size
  if !strings.HasPrefix(contentType, "image/") {
    return nil, apperrors.Validation(apperrors.CodeInvalidFileType, "Only image files are allowed")
  }
  if size > MaxUploadBytes {
    return nil, apperrors.Validation(apperrors.CodeFileTooLarge, "File size must be less than 5MB")
  }

  //2) Read With A Hard Cap, Then Decode
  raw, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
  if err != nil {
    return nil, fmt.Errorf("failed to read upload: %w", err)
  }
  if len(raw) > MaxUploadBytes {
    return nil, apperrors.Validation(apperrors.CodeFileTooLarge, "File size must be less than 5MB")
  }
  cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
  if err != nil {
    us.log.Warn("Upload has no readable image header", "error", err)
    return nil, apperrors.Validation(apperrors.CodeInvalidFileType, "Only image files are allowed")
  }
  if cfg.Width <= 0 || cfg.Height <= 0 || int64(cfg.Width)*int64(cfg.Height) > MaxImagePixels {
    us.log.Warn("Upload dimensions rejected", "width", cfg.Width, "height", cfg.Height)
    return nil, apperrors.Validation(apperrors.CodeImageTooLarge, "Image dimensions must be at most 4096x4096 pixels")
  }
  img, format, err := image.Decode(bytes.NewReader(raw))
  if err != nil {
    us.log.Warn("Upload is not a decodable image", "error", err)
    return nil, apperrors.Validation(apperrors.CodeInvalidFileType, "Only image files are allowed")
  }
  us.log.Debug("Decoded upload", "format", format, "bounds", img.Bounds())

  //3) Normalize
  out := imaging.Fit(img, StampImageSize, StampImageSize, imaging.Lanczos)
  var buf bytes.Buffer
  if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
    return nil, fmt.Errorf("failed to encode PNG: %w", err)
  }

  //4) Store
  stem := normalization.SafeFileStem(strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName)))
  storedName := fmt.Sprintf("%d_%s.png", us.now().UnixMilli(), stem)
  key := storedName
  if err := us.bucketService.UploadFile(ctx, key, "image/png", &buf); err != nil {
    return nil, fmt.Errorf("failed to store upload: %w", err)
  }
  url := us.bucketService.GetPublicURL(key)
  us.log.Info("Stamp image uploaded", "key", key, "url", url)
  return &UploadedImage{Key: key, ImagePath: url, FileName: storedName}, nil
}
