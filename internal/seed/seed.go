package seed

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/gakusta-org/gakusta-backend/internal/logger"
	"github.com/gakusta-org/gakusta-backend/internal/repos"
	"github.com/gakusta-org/gakusta-backend/internal/services"
	"github.com/gakusta-org/gakusta-backend/internal/types"
)

const (
	DemoTeacherID  = "demo-teacher"
	DemoStudentID  = "demo-student"
	DemoStampName  = "Welcome"
)

// SeedAll creates a demo teacher, a demo student with one open card and a
// default stamp image. Existing rows are left alone, so it is safe to rerun.
func SeedAll(
	ctx									context.Context,
	db									*gorm.DB,
	log									*logger.Logger,
	userRepo						repos.UserRepo,
	stampCardRepo				repos.StampCardRepo,
	stampImageService		services.StampImageService,
	now									func() time.Time,
) error {
	seedLog := log.With("component", "Seed")
	seedLog.Info("Running SeedAll... seeding demo data")

	major := "Undeclared"
	users := []*types.User{
		{ID: DemoTeacherID, Role: types.RoleTeacher, Name: "Demo Teacher", Email: "teacher@demo.gakusta.app"},
		{ID: DemoStudentID, Role: types.RoleStudent, Name: "Demo Student", Major: &major, Email: "student@demo.gakusta.app"},
	}
	for _, u := range users {
		if err := seedUser(ctx, db, userRepo, stampCardRepo, u, now); err != nil {
			return err
		}
	}

	images, err := stampImageService.ListStampImages(ctx)
	if err != nil {
		return fmt.Errorf("failed to list stamp images: %w", err)
	}
	if len(images) == 0 {
		if _, err := stampImageService.GenerateStampImage(ctx, DemoTeacherID, DemoStampName); err != nil {
			return fmt.Errorf("failed to seed default stamp image: %w", err)
		}
		seedLog.Info("Seeded default stamp image", "name", DemoStampName)
	}

	seedLog.Info("SeedAll Complete!")
	return nil
}

func seedUser(ctx context.Context, db *gorm.DB, userRepo repos.UserRepo, stampCardRepo repos.StampCardRepo, user *types.User, now func() time.Time) error {
	return db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		exists, err := userRepo.IDOrEmailExists(ctx, tx, user.ID, user.Email)
		if err != nil {
			return fmt.Errorf("failed to check demo user %s: %w", user.ID, err)
		}
		if exists {
			return nil
		}
		if err := userRepo.Create(ctx, tx, user); err != nil {
			return fmt.Errorf("failed to create demo user %s: %w", user.ID, err)
		}
		if !user.IsStudent() {
			return nil
		}
		card := &types.StampCard{StudentID: user.ID, CreatedAt: now().UTC()}
		if err := stampCardRepo.Create(ctx, tx, card); err != nil {
			return fmt.Errorf("failed to create demo card: %w", err)
		}
		return nil
	})
}
