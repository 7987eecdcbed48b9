package services

import (
  "context"
  "fmt"
  "sync"
  "time"

  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/templates"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

const notifyTimeout = 15 * time.Second

// CompletionMailer tells a student their card is full. SMS wins when the
// student left a phone number and twilio is configured, otherwise mail.
// Delivery is best effort and never affects the redemption.
type CompletionMailer struct {
  log          *logger.Logger
  userRepo     repos.UserRepo
  emailService EmailService
  textService  TextService
  appURL       string
  wg           sync.WaitGroup
}

func NewCompletionNotifier(
  log *logger.Logger,
  userRepo repos.UserRepo,
  emailService EmailService,
  textService TextService,
  appURL string,
) *CompletionMailer {
  return &CompletionMailer{
    log:          log.With("service", "CompletionNotifier"),
    userRepo:     userRepo,
    emailService: emailService,
    textService:  textService,
    appURL:       appURL,
  }
}

func (cn *CompletionMailer) CardCompleted(ctx context.Context, studentID, cardID string) {
  if cn.emailService == nil && cn.textService == nil {
    return
  }
  cn.wg.Add(1)
  go func() {
    defer cn.wg.Done()
    nctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
    defer cancel()
    if err := cn.notify(nctx, studentID); err != nil {
      cn.log.Warn("Card completion notification failed", "studentID", studentID, "cardID", cardID, "error", err)
    }
  }()
}

// Wait blocks until in-flight notifications finish.
func (cn *CompletionMailer) Wait() {
  cn.wg.Wait()
}

func (cn *CompletionMailer) notify(ctx context.Context, studentID string) error {
  user, err := cn.userRepo.GetByID(ctx, nil, studentID)
  if err != nil {
    return fmt.Errorf("failed to load student: %w", err)
  }
  if user == nil {
    return fmt.Errorf("student %s not found", studentID)
  }

  if user.PhoneNumber != nil && *user.PhoneNumber != "" && cn.textService != nil {
    return cn.textService.SendText(ctx, *user.PhoneNumber, completionText(user))
  }
  if cn.emailService == nil || user.Email == "" {
    return nil
  }
  html, err := templates.RenderCardCompletedHTML(templates.CardCompletedEmailData{
    StudentName: user.Name,
    StampCount:  types.MaxStampsPerCard,
    AppURL:      cn.appURL,
  })
  if err != nil {
    return fmt.Errorf("failed to render email: %w", err)
  }
  return cn.emailService.SendEmail(ctx, user.Email, "Your stamp card is complete!", completionText(user), html)
}

func completionText(user *types.User) string {
  name := user.Name
  if name == "" {
    name = "there"
  }
  return fmt.Sprintf("Hi %s, your stamp card is full (%d/%d). Ask a teacher for a gift code to claim your gift.",
    name, types.MaxStampsPerCard, types.MaxStampsPerCard)
}
