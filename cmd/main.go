package main

import (
  "context"
  "errors"
  "fmt"
  "net/http"
  "os"
  "os/signal"
  "syscall"
  "time"

  "github.com/getsentry/sentry-go"
  "github.com/gin-gonic/gin"
  "github.com/redis/go-redis/v9"

  "github.com/gakusta-org/gakusta-backend/internal/db"
  "github.com/gakusta-org/gakusta-backend/internal/handlers"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/metrics"
  "github.com/gakusta-org/gakusta-backend/internal/middleware"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/seed"
  "github.com/gakusta-org/gakusta-backend/internal/server"
  "github.com/gakusta-org/gakusta-backend/internal/services"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
  "github.com/gakusta-org/gakusta-backend/internal/utils"
)

func main() {
  if err := run(); err != nil {
    fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
    os.Exit(1)
  }
}

func run() error {
  // Config Files (.env, optional YAML defaults)
  bootLog := logger.NewNop()
  if err := utils.LoadConfigFiles(bootLog); err != nil {
    return fmt.Errorf("failed to load config files: %w", err)
  }

  // Logger Setup
  logMode := utils.GetEnv("LOG_MODE", "development", nil)
  var sink *logger.FileSink
  if path := utils.GetEnv("LOG_FILE", "", nil); path != "" {
    sink = &logger.FileSink{
      Path:       path,
      MaxSizeMB:  utils.GetEnvAsInt("LOG_FILE_MAX_SIZE_MB", 100, nil),
      MaxBackups: utils.GetEnvAsInt("LOG_FILE_MAX_BACKUPS", 5, nil),
      MaxAgeDays: utils.GetEnvAsInt("LOG_FILE_MAX_AGE_DAYS", 28, nil),
    }
  }
  log, err := logger.NewWithFile(logMode, sink)
  if err != nil {
    return fmt.Errorf("failed to init logger: %w", err)
  }
  defer log.Sync()
  if logMode == "production" || logMode == "prod" {
    gin.SetMode(gin.ReleaseMode)
  }

  // Environment Variables
  log.Info("Attempting to load environment variables for Main now...")
  port := utils.GetEnv("PORT", "8080", log)
  authProvider := utils.GetEnv("AUTH_PROVIDER", "firebase", log)
  firebaseProjectID := utils.GetEnv("FIREBASE_PROJECT_ID", "", log)
  hmacSecret := utils.GetEnv("AUTH_HMAC_SECRET", "", log)
  teacherPassword := utils.GetEnv("TEACHER_REGISTRATION_PASSWORD", "teacher123", log)
  redisAddress := utils.GetEnv("REDIS_ADDRESS", "", log)
  redisPassword := utils.GetEnv("REDIS_PASSWORD", "", log)
  redeemPerMinute := utils.GetEnvAsInt("REDEEM_RATE_LIMIT_PER_MIN", middleware.DefaultRedeemPerMinute, log)
  if redeemPerMinute <= 0 {
    log.Warn("REDEEM_RATE_LIMIT_PER_MIN must be positive, using default", "value", redeemPerMinute, "default", middleware.DefaultRedeemPerMinute)
    redeemPerMinute = middleware.EffectivePerMinute(redeemPerMinute)
  }
  storageBackend := utils.GetEnv("STORAGE_BACKEND", "local", log)
  gcsBucket := utils.GetEnv("GCS_BUCKET", "", log)
  gcsPrefix := utils.GetEnv("GCS_PREFIX", "stamps/", log)
  gcsCredentials := utils.GetEnv("GCS_CREDENTIALS_FILE", "", log)
  uploadDir := utils.GetEnv("UPLOAD_DIR", "./public/stamps", log)
  publicBasePath := utils.GetEnv("PUBLIC_BASE_PATH", "/stamps", log)
  appURL := utils.GetEnv("APP_URL", "", log)
  sentryDSN := utils.GetEnv("SENTRY_DSN", "", log)
  corsOrigins := utils.GetEnvAsList("CORS_ORIGINS", []string{"http://localhost:3000"}, log)
  seedDemo := utils.GetEnvAsBool("SEED_DEMO", false, log)
  shutdownTimeout := utils.GetEnvAsDuration("SHUTDOWN_TIMEOUT", 15*time.Second, log)
  log.Info("Environment variables loaded for Main :)")

  // Sentry
  if sentryDSN != "" {
    if err := sentry.Init(sentry.ClientOptions{
      Dsn:              sentryDSN,
      Environment:      logMode,
      TracesSampleRate: 0.2,
    }); err != nil {
      log.Warn("Sentry init failed", "error", err)
    } else {
      defer sentry.Flush(2 * time.Second)
    }
  }

  // Database Setup
  log.Info("Setting Up Database from Main now...")
  database, err := db.Open(db.ConfigFromEnv(log), log)
  if err != nil {
    return fmt.Errorf("failed to open database: %w", err)
  }
  defer database.Close()
  if err := database.AutoMigrateAll(); err != nil {
    return fmt.Errorf("auto migration failed: %w", err)
  }
  gdb := database.DB()
  log.Info("Database Setup From Main Successful :)", "driver", database.Driver())

  // Repositories Setup
  log.Info("Setting Up Repositories from Main now...")
  userRepo := repos.NewUserRepo(gdb, log)
  stampImageRepo := repos.NewStampImageRepo(gdb, log)
  stampCardRepo := repos.NewStampCardRepo(gdb, log)
  stampRepo := repos.NewStampRepo(gdb, log)
  oneTimeCodeRepo := repos.NewOneTimeCodeRepo(gdb, log)
  giftExchangeRepo := repos.NewGiftExchangeRepo(gdb, log)
  reportRepo := repos.NewReportRepo(gdb, log)
  log.Info("Repositories Set Up From Main Successful :)")

  // Websocket Hub + Redis
  log.Info("Setting Up Websocket Hub From Main Now :)")
  wsHub := socket.NewHub(log)
  var redisClient *redis.Client
  var redisPubSub *socket.RedisPubSub
  var redeemLimiter middleware.Limiter = middleware.NewTokenBucket(redeemPerMinute, redeemPerMinute)
  if redisAddress != "" {
    redisClient = redis.NewClient(&redis.Options{Addr: redisAddress, Password: redisPassword})
    defer redisClient.Close()
    pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
    pingErr := redisClient.Ping(pingCtx).Err()
    cancel()
    if pingErr != nil {
      log.Warn("Redis unreachable, continuing without fan-out", "error", pingErr)
    } else {
      redisPubSub = socket.NewRedisPubSub(log, redisClient, "stampcard_hub_broadcast")
      if err := redisPubSub.StartSubscriber(wsHub); err != nil {
        log.Warn("Failed to subscribe to Redis pub/sub", "error", err)
        redisPubSub = nil
      } else {
        wsHub.SetRedisPubSub(redisPubSub)
        log.Info("Redis pubsub is active!")
      }
      redeemLimiter = middleware.NewRedisLimiter(redisClient, redeemPerMinute)
    }
  }

  // Services Setup
  log.Info("Setting up Services from Main now...")
  m := metrics.New()

  var verifier services.IdentityVerifier
  switch authProvider {
  case "firebase":
    if firebaseProjectID == "" {
      return errors.New("FIREBASE_PROJECT_ID is required when AUTH_PROVIDER=firebase")
    }
    verifier = services.NewFirebaseVerifier(firebaseProjectID, &http.Client{Timeout: 10 * time.Second}, log)
  case "hmac":
    if hmacSecret == "" {
      return errors.New("AUTH_HMAC_SECRET is required when AUTH_PROVIDER=hmac")
    }
    verifier = services.NewHMACVerifier(hmacSecret, log)
  default:
    return fmt.Errorf("unknown AUTH_PROVIDER %q", authProvider)
  }

  var bucketService services.BucketService
  staticDir, staticPath := "", ""
  switch storageBackend {
  case "gcs":
    bucketService, err = services.NewGCSBucketService(context.Background(), log, gcsBucket, gcsPrefix, gcsCredentials)
  case "local":
    bucketService, err = services.NewLocalBucketService(log, uploadDir, publicBasePath)
    staticDir, staticPath = uploadDir, publicBasePath
  default:
    err = fmt.Errorf("unknown STORAGE_BACKEND %q", storageBackend)
  }
  if err != nil {
    return fmt.Errorf("failed to init bucket service: %w", err)
  }
  defer bucketService.Close()

  var emailService services.EmailService
  if es, err := services.NewEmailService(log); err != nil {
    log.Warn("Could not init EmailService", "error", err)
  } else {
    emailService = es
  }
  var textService services.TextService
  if ts, err := services.NewTextService(log); err != nil {
    log.Warn("Could not init TextService", "error", err)
  } else {
    textService = ts
  }
  notifier := services.NewCompletionNotifier(log, userRepo, emailService, textService, appURL)

  renderer, err := services.NewStampRenderer(services.StampImageSize)
  if err != nil {
    return err
  }
  authService, err := services.NewAuthService(gdb, log, userRepo, stampCardRepo, teacherPassword, nil)
  if err != nil {
    return err
  }
  codeService := services.NewCodeService(gdb, log, oneTimeCodeRepo, stampImageRepo, m, nil)
  redemptionService := services.NewRedemptionService(gdb, log, oneTimeCodeRepo, stampCardRepo, stampRepo, giftExchangeRepo, notifier, m, nil)
  reportingService := services.NewReportingService(log, userRepo, stampCardRepo, stampRepo, giftExchangeRepo, reportRepo)
  stampImageService := services.NewStampImageService(gdb, log, stampImageRepo, bucketService, renderer, nil)
  uploadService := services.NewUploadService(log, bucketService, nil)
  log.Info("Services Set Up From Main Successful :)")

  // Seed
  if seedDemo {
    log.Info("Attempting to Seed demo data From Main now...")
    if err := seed.SeedAll(context.Background(), gdb, log, userRepo, stampCardRepo, stampImageService, time.Now); err != nil {
      log.Warn("Failed to seed data :(", "error", err)
    }
  }

  // Handlers + Middleware
  log.Info("Setting Up Handlers from Main now...")
  if err := handlers.RegisterValidators(); err != nil {
    return err
  }
  router := server.NewRouter(server.RouterConfig{
    Log:               log,
    Metrics:           m,
    CORSOrigins:       corsOrigins,
    DBTimeout:         database.AcquireTimeout(),
    RedeemLimiter:     redeemLimiter,
    StaticPath:        staticPath,
    StaticDir:         staticDir,
    AuthMiddleware:    middleware.NewAuthMiddleware(log, verifier, userRepo),
    AuthHandler:       handlers.NewAuthHandler(log, authService),
    StudentHandler:    handlers.NewStudentHandler(log, wsHub, redemptionService, reportingService),
    TeacherHandler:    handlers.NewTeacherHandler(log, wsHub, codeService, reportingService),
    StampImageHandler: handlers.NewStampImageHandler(log, wsHub, stampImageService),
    UploadHandler:     handlers.NewUploadHandler(log, uploadService),
    HealthHandler:     handlers.NewHealthHandler(database, redisClient),
    TeacherWsHandler:  handlers.TeacherWsHandler(wsHub, log),
    StudentWsHandler:  handlers.StudentWsHandler(wsHub, log),
  })
  log.Info("Router Set Up From Main Successful :)")

  // Serve
  srv := &http.Server{
    Addr:              ":" + port,
    Handler:           router,
    ReadHeaderTimeout: 10 * time.Second,
  }
  serveErr := make(chan error, 1)
  go func() {
    log.Info("Server listening", "port", port)
    if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
      serveErr <- err
    }
    close(serveErr)
  }()

  stop := make(chan os.Signal, 1)
  signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
  select {
  case err := <-serveErr:
    if err != nil {
      return fmt.Errorf("server failed: %w", err)
    }
  case sig := <-stop:
    log.Info("Shutting down", "signal", sig.String())
  }

  // On Shutdown
  ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
  defer cancel()
  if err := srv.Shutdown(ctx); err != nil {
    log.Warn("Graceful shutdown failed", "error", err)
  }
  if redisPubSub != nil {
    redisPubSub.Stop()
  }
  notifier.Wait()
  log.Info("Shutdown complete")
  return nil
}
