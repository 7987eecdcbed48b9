package services

import (
  "context"
  "fmt"
  "time"

  "golang.org/x/crypto/bcrypt"
  "gorm.io/gorm"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/normalization"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

type StudentRegistration struct {
  UID         string
  Email       string
  Name        string
  Major       string
  PhoneNumber *string
}

type TeacherRegistration struct {
  UID                  string
  Email                string
  Name                 string
  RegistrationPassword string
  PhoneNumber          *string
}

type AuthService interface {
  RegisterStudent(ctx context.Context, principal *Principal, reg StudentRegistration) (*types.User, error)
  RegisterTeacher(ctx context.Context, principal *Principal, reg TeacherRegistration) (*types.User, error)
  GetUserRole(ctx context.Context, uid string) (string, error)
  GetUser(ctx context.Context, uid string) (*types.User, error)
}

type authService struct {
  db                   *gorm.DB
  log                  *logger.Logger
  userRepo             repos.UserRepo
  stampCardRepo        repos.StampCardRepo
  teacherPasswordHash  []byte
  now                  func() time.Time
}

// NewAuthService hashes the teacher registration password once at startup.
func NewAuthService(
  db                   *gorm.DB,
  log                  *logger.Logger,
  userRepo             repos.UserRepo,
  stampCardRepo        repos.StampCardRepo,
  teacherPassword      string,
  now                  func() time.Time,
) (AuthService, error) {
  serviceLog := log.With("service", "AuthService")
  hash, err := bcrypt.GenerateFromPassword([]byte(teacherPassword), bcrypt.DefaultCost)
  if err != nil {
    return nil, fmt.Errorf("failed to hash teacher registration password: %w", err)
  }
  if now == nil {
    now = time.Now
  }
  return &authService{
    db:                  db,
    log:                 serviceLog,
    userRepo:            userRepo,
    stampCardRepo:       stampCardRepo,
    teacherPasswordHash: hash,
    now:                 now,
  }, nil
}

//----------------------------------------------------------------------------------------------------------------------
// RegisterStudent, RegisterTeacher, createUser
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) RegisterStudent(ctx context.Context, principal *Principal, reg StudentRegistration) (*types.User, error) {
  as.log.Info("Starting RegisterStudent now...")

  //1) Normalize And Check Required Fields
  reg.UID = normalization.ParseInputString(reg.UID)
  reg.Email = normalization.ParseEmail(reg.Email)
  reg.Name = normalization.ParseInputString(reg.Name)
  reg.Major = normalization.ParseInputString(reg.Major)
  if reg.UID == "" || reg.Email == "" || reg.Name == "" || reg.Major == "" {
    return nil, apperrors.Validation(apperrors.CodeMissingFields, "Missing required fields")
  }

  //2) The Body Must Describe The Caller
  if err := checkPrincipal(principal, reg.UID); err != nil {
    return nil, err
  }

  major := reg.Major
  user := &types.User{
    ID:          reg.UID,
    Role:        types.RoleStudent,
    Name:        reg.Name,
    Major:       &major,
    Email:       reg.Email,
    PhoneNumber: normalization.ParseInputStringPtr(reg.PhoneNumber),
  }

  //3) Create User And First Card Together
  err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    if err := as.createUser(ctx, tx, user); err != nil {
      return err
    }
    card := &types.StampCard{StudentID: user.ID, CreatedAt: as.now().UTC()}
    if err := as.stampCardRepo.Create(ctx, tx, card); err != nil {
      as.log.Warn("Failed to create initial stamp card, rolling back registration", "error", err)
      return fmt.Errorf("failed to create initial stamp card: %w", err)
    }
    return nil
  })
  if err != nil {
    return nil, err
  }
  as.log.Info("Student registered", "userID", user.ID)
  return user, nil
}

func (as *authService) RegisterTeacher(ctx context.Context, principal *Principal, reg TeacherRegistration) (*types.User, error) {
  as.log.Info("Starting RegisterTeacher now...")

  //1) Normalize And Check Required Fields
  reg.UID = normalization.ParseInputString(reg.UID)
  reg.Email = normalization.ParseEmail(reg.Email)
  reg.Name = normalization.ParseInputString(reg.Name)
  if reg.UID == "" || reg.Email == "" || reg.Name == "" || reg.RegistrationPassword == "" {
    return nil, apperrors.Validation(apperrors.CodeMissingFields, "Missing required fields")
  }

  //2) The Body Must Describe The Caller
  if err := checkPrincipal(principal, reg.UID); err != nil {
    return nil, err
  }

  //3) Check Registration Password
  if err := bcrypt.CompareHashAndPassword(as.teacherPasswordHash, []byte(reg.RegistrationPassword)); err != nil {
    as.log.Warn("Teacher registration with wrong password", "userID", reg.UID)
    return nil, apperrors.Forbidden(apperrors.CodeInvalidRegistrationPassword, "Invalid registration password")
  }

  user := &types.User{
    ID:          reg.UID,
    Role:        types.RoleTeacher,
    Name:        reg.Name,
    Email:       reg.Email,
    PhoneNumber: normalization.ParseInputStringPtr(reg.PhoneNumber),
  }

  //4) Create User
  err := as.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
    return as.createUser(ctx, tx, user)
  })
  if err != nil {
    return nil, err
  }
  as.log.Info("Teacher registered", "userID", user.ID)
  return user, nil
}

// createUser rejects an id or email that is already registered. The unique
// index still catches a concurrent insert that slips past the pre-check.
func (as *authService) createUser(ctx context.Context, tx *gorm.DB, user *types.User) error {
  exists, err := as.userRepo.IDOrEmailExists(ctx, tx, user.ID, user.Email)
  if err != nil {
    return fmt.Errorf("failed to check existing users: %w", err)
  }
  if exists {
    as.log.Warn("User already exists", "userID", user.ID)
    return apperrors.Conflict(apperrors.CodeUserAlreadyExists, "User already exists")
  }
  if err := as.userRepo.Create(ctx, tx, user); err != nil {
    if repos.IsDuplicateKey(err) {
      return apperrors.Wrap(apperrors.KindConflict, apperrors.CodeUserAlreadyExists, "User already exists", err)
    }
    return fmt.Errorf("failed to create user: %w", err)
  }
  return nil
}

func checkPrincipal(principal *Principal, uid string) error {
  if principal == nil || principal.UID == "" {
    return apperrors.Unauthenticated("Missing identity token")
  }
  if principal.UID != uid {
    return apperrors.Forbidden(apperrors.CodeUIDMismatch, "Token does not match uid")
  }
  return nil
}

//----------------------------------------------------------------------------------------------------------------------
// GetUserRole, GetUser
//----------------------------------------------------------------------------------------------------------------------

func (as *authService) GetUserRole(ctx context.Context, uid string) (string, error) {
  user, err := as.GetUser(ctx, uid)
  if err != nil {
    return "", err
  }
  return user.Role, nil
}

func (as *authService) GetUser(ctx context.Context, uid string) (*types.User, error) {
  user, err := as.userRepo.GetByID(ctx, nil, uid)
  if err != nil {
    return nil, fmt.Errorf("failed to load user: %w", err)
  }
  if user == nil {
    return nil, apperrors.NotFound(apperrors.CodeUserNotFound, "User not found")
  }
  return user, nil
}
