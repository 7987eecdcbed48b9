package services

import (
  "context"
  "errors"
  "fmt"
  "io"
  "os"
  "path"
  "path/filepath"
  "strings"

  "cloud.google.com/go/storage"
  "google.golang.org/api/option"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
)

// BucketService stores stamp artwork and hands back a URL browsers can load.
type BucketService interface {
  UploadFile(ctx context.Context, key, contentType string, r io.Reader) error
  DeleteFile(ctx context.Context, key string) error
  GetPublicURL(key string) string
  Close() error
}

//----------------------------------------------------------------------------------------------------------------------
// Google Cloud Storage
//----------------------------------------------------------------------------------------------------------------------

type gcsBucketService struct {
  log        *logger.Logger
  client     *storage.Client
  bucketName string
  prefix     string
}

// NewGCSBucketService stores objects under prefix inside bucketName.
func NewGCSBucketService(ctx context.Context, log *logger.Logger, bucketName, prefix, credentialsFile string) (BucketService, error) {
  serviceLog := log.With("service", "GCSBucketService")
  if bucketName == "" {
    return nil, fmt.Errorf("GCS_BUCKET is required for the gcs storage backend")
  }
  var opts []option.ClientOption
  if credentialsFile != "" {
    opts = append(opts, option.WithCredentialsFile(credentialsFile))
  }
  client, err := storage.NewClient(ctx, opts...)
  if err != nil {
    serviceLog.Error("Failed to create GCS client", "error", err)
    return nil, fmt.Errorf("failed to create GCS client: %w", err)
  }
  serviceLog.Info("GCS client ready", "bucket", bucketName)
  prefix = strings.Trim(prefix, "/")
  if prefix != "" {
    prefix += "/"
  }
  return &gcsBucketService{log: serviceLog, client: client, bucketName: bucketName, prefix: prefix}, nil
}

func (gs *gcsBucketService) UploadFile(ctx context.Context, key, contentType string, r io.Reader) error {
  w := gs.client.Bucket(gs.bucketName).Object(gs.prefix + key).NewWriter(ctx)
  w.ContentType = contentType
  w.CacheControl = "public, max-age=86400"
  if _, err := io.Copy(w, r); err != nil {
    _ = w.Close()
    gs.log.Warn("Failed writing object to GCS", "key", key, "error", err)
    return fmt.Errorf("failed to upload %s: %w", key, err)
  }
  if err := w.Close(); err != nil {
    gs.log.Warn("Failed finalizing GCS object", "key", key, "error", err)
    return fmt.Errorf("failed to finalize %s: %w", key, err)
  }
  gs.log.Info("Uploaded object to GCS", "key", key)
  return nil
}

func (gs *gcsBucketService) DeleteFile(ctx context.Context, key string) error {
  err := gs.client.Bucket(gs.bucketName).Object(gs.prefix + key).Delete(ctx)
  if err != nil && !errors.Is(err, storage.ErrObjectNotExist) {
    return fmt.Errorf("failed to delete %s: %w", key, err)
  }
  return nil
}

func (gs *gcsBucketService) GetPublicURL(key string) string {
  return fmt.Sprintf("https://storage.googleapis.com/%s/%s%s", gs.bucketName, gs.prefix, key)
}

func (gs *gcsBucketService) Close() error {
  return gs.client.Close()
}

//----------------------------------------------------------------------------------------------------------------------
// Local disk, served by the router under publicBasePath
//----------------------------------------------------------------------------------------------------------------------

type localBucketService struct {
  log            *logger.Logger
  dir            string
  publicBasePath string
}

func NewLocalBucketService(log *logger.Logger, dir, publicBasePath string) (BucketService, error) {
  if err := os.MkdirAll(dir, 0o755); err != nil {
    return nil, fmt.Errorf("failed to create upload dir %s: %w", dir, err)
  }
  return &localBucketService{
    log:            log.With("service", "LocalBucketService"),
    dir:            dir,
    publicBasePath: "/" + strings.Trim(publicBasePath, "/"),
  }, nil
}

func (ls *localBucketService) pathFor(key string) (string, error) {
  clean := filepath.Clean("/" + key)
  if strings.Contains(clean, "..") {
    return "", fmt.Errorf("invalid key %q", key)
  }
  return filepath.Join(ls.dir, clean), nil
}

func (ls *localBucketService) UploadFile(ctx context.Context, key, contentType string, r io.Reader) error {
  dst, err := ls.pathFor(key)
  if err != nil {
    return err
  }
  if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
    return fmt.Errorf("failed to create dir for %s: %w", key, err)
  }
  f, err := os.Create(dst)
  if err != nil {
    return fmt.Errorf("failed to create %s: %w", dst, err)
  }
  if _, err := io.Copy(f, r); err != nil {
    _ = f.Close()
    return fmt.Errorf("failed to write %s: %w", dst, err)
  }
  if err := f.Close(); err != nil {
    return err
  }
  ls.log.Info("Stored file on local disk", "key", key)
  return nil
}

func (ls *localBucketService) DeleteFile(ctx context.Context, key string) error {
  p, err := ls.pathFor(key)
  if err != nil {
    return err
  }
  if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
    return err
  }
  return nil
}

func (ls *localBucketService) GetPublicURL(key string) string {
  return path.Join(ls.publicBasePath, key)
}

func (ls *localBucketService) Close() error { return nil }
