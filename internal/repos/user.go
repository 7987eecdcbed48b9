package repos

import (
    "context"
    "errors"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

type UserRepo interface {
    // CREATE
    Create(ctx context.Context, tx *gorm.DB, user *types.User) error

    // READ
    GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error)
    GetStudentByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error)
    IDOrEmailExists(ctx context.Context, tx *gorm.DB, userID, email string) (bool, error)
    EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error)
}

type userRepo struct {
    db  *gorm.DB
    log *logger.Logger
}

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo {
    repoLog := baseLog.With("repo", "UserRepo")
    return &userRepo{db: db, log: repoLog}
}

// ----------------------------------------------------------------
// CREATE
// ----------------------------------------------------------------

func (ur *userRepo) Create(ctx context.Context, tx *gorm.DB, user *types.User) error {
    ur.log.Info("Starting Create User now...")
    transaction := pick(tx, ur.db)

    if err := transaction.WithContext(ctx).Create(user).Error; err != nil {
        ur.log.Error("Failed to create user", "error", err, "userID", user.ID)
        return err
    }
    ur.log.Info("Successfully created user", "userID", user.ID, "role", user.Role)
    return nil
}

// ----------------------------------------------------------------
// READ
// ----------------------------------------------------------------

// GetByID returns (nil, nil) when no user has the id.
func (ur *userRepo) GetByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error) {
    ur.log.Debug("Starting GetByID for User...", "userID", userID)
    transaction := pick(tx, ur.db)

    var user types.User
    err := transaction.WithContext(ctx).Where("id = ?", userID).First(&user).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        ur.log.Debug("User not found", "userID", userID)
        return nil, nil
    }
    if err != nil {
        ur.log.Error("Failed to fetch user by ID", "error", err)
        return nil, err
    }
    return &user, nil
}

func (ur *userRepo) GetStudentByID(ctx context.Context, tx *gorm.DB, userID string) (*types.User, error) {
    ur.log.Debug("Starting GetStudentByID...", "userID", userID)
    transaction := pick(tx, ur.db)

    var user types.User
    err := transaction.WithContext(ctx).
        Where("id = ? AND role = ?", userID, types.RoleStudent).
        First(&user).Error
    if errors.Is(err, gorm.ErrRecordNotFound) {
        return nil, nil
    }
    if err != nil {
        ur.log.Error("Failed to fetch student by ID", "error", err)
        return nil, err
    }
    return &user, nil
}

func (ur *userRepo) IDOrEmailExists(ctx context.Context, tx *gorm.DB, userID, email string) (bool, error) {
    transaction := pick(tx, ur.db)

    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.User{}).
        Where("id = ? OR email = ?", userID, email).
        Count(&count).Error; err != nil {
        ur.log.Error("Failed to check user id/email existence", "error", err)
        return false, err
    }
    ur.log.Debug("Checked user id/email existence", "userID", userID, "exists", count > 0)
    return count > 0, nil
}

func (ur *userRepo) EmailExists(ctx context.Context, tx *gorm.DB, email string) (bool, error) {
    transaction := pick(tx, ur.db)

    var count int64
    if err := transaction.WithContext(ctx).
        Model(&types.User{}).
        Where("email = ?", email).
        Count(&count).Error; err != nil {
        ur.log.Error("Failed to check email existence", "error", err)
        return false, err
    }
    return count > 0, nil
}
