package server

import (
  "time"

  "github.com/gin-contrib/cors"
  "github.com/gin-gonic/gin"

  "github.com/gakusta-org/gakusta-backend/internal/handlers"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/metrics"
  "github.com/gakusta-org/gakusta-backend/internal/middleware"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

type RouterConfig struct {
  Log                   *logger.Logger
  Metrics               *metrics.Metrics
  CORSOrigins           []string
  DBTimeout             time.Duration
  RedeemLimiter         middleware.Limiter

  // StaticDir is served at StaticPath when stamp images live on local disk.
  StaticPath            string
  StaticDir             string

  AuthMiddleware        *middleware.AuthMiddleware
  AuthHandler           *handlers.AuthHandler
  StudentHandler        *handlers.StudentHandler
  TeacherHandler        *handlers.TeacherHandler
  StampImageHandler     *handlers.StampImageHandler
  UploadHandler         *handlers.UploadHandler
  HealthHandler         *handlers.HealthHandler
  TeacherWsHandler      gin.HandlerFunc
  StudentWsHandler      gin.HandlerFunc
}

func NewRouter(cfg RouterConfig) *gin.Engine {
  router := gin.New()
  router.Use(gin.Recovery())
  router.Use(middleware.AttachRequestContext())
  router.Use(middleware.RequestLogger(cfg.Log))
  router.Use(cfg.Metrics.Middleware())

  //-----------------------------------------
  // Cors Setup
  //-----------------------------------------
  router.Use(cors.New(cors.Config{
    AllowOrigins:     cfg.CORSOrigins,
    AllowMethods:     []string{"GET", "POST", "PATCH", "OPTIONS"},
    AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
    AllowCredentials: true,
  }))

  //-----------------------------------------
  // Health, Metrics, Static
  //-----------------------------------------
  router.GET("/healthz", cfg.HealthHandler.Healthz)
  router.GET("/metrics", gin.WrapH(cfg.Metrics.Handler()))
  if cfg.StaticDir != "" && cfg.StaticPath != "" {
    router.Static(cfg.StaticPath, cfg.StaticDir)
  }

  am := cfg.AuthMiddleware
  api := router.Group("/")
  api.Use(middleware.RequestTimeout(cfg.DBTimeout))

  //-----------------------------------------
  // Registration (token required, user row not yet)
  //-----------------------------------------
  auth := api.Group("/auth")
  auth.Use(am.RequireAuth())
  {
    auth.POST("/register/student", cfg.AuthHandler.RegisterStudent)
    auth.POST("/register/teacher", cfg.AuthHandler.RegisterTeacher)
    auth.GET("/user-role", cfg.AuthHandler.GetUserRole)
  }

  //-----------------------------------------
  // Student
  //-----------------------------------------
  redeemLimit := middleware.RateLimit(cfg.RedeemLimiter, "redeem", cfg.Log)
  student := api.Group("/student")
  student.Use(am.RequireAuth(), am.RequireRole(types.RoleStudent))
  {
    student.GET("/cards", cfg.StudentHandler.GetCards)
    student.GET("/collection", cfg.StudentHandler.GetCollection)
    student.POST("/use-stamp-code", redeemLimit, cfg.StudentHandler.UseStampCode)
    student.POST("/exchange-gift", redeemLimit, cfg.StudentHandler.ExchangeGift)
    student.GET("/ws", cfg.StudentWsHandler)
  }

  //-----------------------------------------
  // Teacher
  //-----------------------------------------
  teacher := api.Group("/teacher")
  teacher.Use(am.RequireAuth(), am.RequireRole(types.RoleTeacher))
  {
    teacher.GET("/stats", cfg.TeacherHandler.GetStats)
    teacher.GET("/codes", cfg.TeacherHandler.ListCodes)
    teacher.POST("/generate-code", cfg.TeacherHandler.GenerateCode)
    teacher.GET("/students/:id", cfg.TeacherHandler.GetStudent)

    teacher.GET("/stamp-images", cfg.StampImageHandler.ListStampImages)
    teacher.POST("/stamp-images", cfg.StampImageHandler.CreateStampImage)
    teacher.POST("/stamp-images/generate", cfg.StampImageHandler.GenerateStampImage)
    teacher.PATCH("/stamp-images/:id", cfg.StampImageHandler.UpdateStampImage)

    teacher.GET("/ws", cfg.TeacherWsHandler)
  }

  //-----------------------------------------
  // Upload
  //-----------------------------------------
  upload := api.Group("/upload")
  upload.Use(am.RequireAuth(), am.RequireRole(types.RoleTeacher))
  upload.POST("/stamp-image", cfg.UploadHandler.UploadStampImage)

  return router
}
