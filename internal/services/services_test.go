package services

import (
  "context"
  "errors"
  "fmt"
  "sync"
  "testing"
  "time"

  "gorm.io/gorm"

  "github.com/gakusta-org/gakusta-backend/internal/apperrors"
  "github.com/gakusta-org/gakusta-backend/internal/db"
  "github.com/gakusta-org/gakusta-backend/internal/eventdata"
  "github.com/gakusta-org/gakusta-backend/internal/logger"
  "github.com/gakusta-org/gakusta-backend/internal/metrics"
  "github.com/gakusta-org/gakusta-backend/internal/repos"
  "github.com/gakusta-org/gakusta-backend/internal/socket"
  "github.com/gakusta-org/gakusta-backend/internal/types"
)

const testTeacherPassword = "let-me-teach"

type testClock struct {
  mu  sync.Mutex
  now time.Time
}

func (c *testClock) Now() time.Time {
  c.mu.Lock()
  defer c.mu.Unlock()
  return c.now
}

func (c *testClock) Advance(d time.Duration) {
  c.mu.Lock()
  defer c.mu.Unlock()
  c.now = c.now.Add(d)
}

type recordingNotifier struct {
  mu    sync.Mutex
  cards []string
}

func (n *recordingNotifier) CardCompleted(ctx context.Context, studentID, cardID string) {
  n.mu.Lock()
  defer n.mu.Unlock()
  n.cards = append(n.cards, studentID+"/"+cardID)
}

type fixture struct {
  gdb        *gorm.DB
  clock      *testClock
  notifier   *recordingNotifier
  metrics    *metrics.Metrics
  userRepo   repos.UserRepo
  imageRepo  repos.StampImageRepo
  codeRepo   repos.OneTimeCodeRepo
  cardRepo   repos.StampCardRepo
  auth       AuthService
  codes      CodeService
  redemption RedemptionService
  reporting  ReportingService
}

func newFixture(t *testing.T) *fixture {
  t.Helper()
  log := logger.NewNop()
  d, err := db.OpenSQLiteMemory(fmt.Sprintf("services_%d", time.Now().UnixNano()), log)
  if err != nil {
    t.Fatalf("open db: %v", err)
  }
  if err := d.AutoMigrateAll(); err != nil {
    t.Fatalf("migrate: %v", err)
  }
  t.Cleanup(func() { _ = d.Close() })
  gdb := d.DB()

  f := &fixture{
    gdb:       gdb,
    clock:     &testClock{now: time.Date(2026, 4, 1, 9, 0, 0, 0, time.UTC)},
    notifier:  &recordingNotifier{},
    metrics:   metrics.New(),
    userRepo:  repos.NewUserRepo(gdb, log),
    imageRepo: repos.NewStampImageRepo(gdb, log),
    codeRepo:  repos.NewOneTimeCodeRepo(gdb, log),
    cardRepo:  repos.NewStampCardRepo(gdb, log),
  }
  stampRepo := repos.NewStampRepo(gdb, log)
  giftRepo := repos.NewGiftExchangeRepo(gdb, log)

  f.auth, err = NewAuthService(gdb, log, f.userRepo, f.cardRepo, testTeacherPassword, f.clock.Now)
  if err != nil {
    t.Fatalf("auth service: %v", err)
  }
  f.codes = NewCodeService(gdb, log, f.codeRepo, f.imageRepo, f.metrics, f.clock.Now)
  f.redemption = NewRedemptionService(gdb, log, f.codeRepo, f.cardRepo, stampRepo, giftRepo, f.notifier, f.metrics, f.clock.Now)
  f.reporting = NewReportingService(log, f.userRepo, f.cardRepo, stampRepo, giftRepo, repos.NewReportRepo(gdb, log))
  return f
}

func (f *fixture) registerStudent(t *testing.T, uid string) *types.User {
  t.Helper()
  user, err := f.auth.RegisterStudent(context.Background(), &Principal{UID: uid, Email: uid + "@example.edu"}, StudentRegistration{
    UID:   uid,
    Email: uid + "@example.edu",
    Name:  "Student " + uid,
    Major: "Physics",
  })
  if err != nil {
    t.Fatalf("register student %s: %v", uid, err)
  }
  return user
}

func (f *fixture) registerTeacher(t *testing.T, uid string) *types.User {
  t.Helper()
  user, err := f.auth.RegisterTeacher(context.Background(), &Principal{UID: uid}, TeacherRegistration{
    UID:                  uid,
    Email:                uid + "@example.edu",
    Name:                 "Teacher " + uid,
    RegistrationPassword: testTeacherPassword,
  })
  if err != nil {
    t.Fatalf("register teacher %s: %v", uid, err)
  }
  return user
}

func (f *fixture) createImage(t *testing.T, teacherID, name string, active bool) string {
  t.Helper()
  img := &types.StampImage{Name: name, ImageURL: "/stamps/" + name + ".png", CreatedBy: teacherID, IsActive: true, CreatedAt: f.clock.Now()}
  if err := f.imageRepo.Create(context.Background(), nil, img); err != nil {
    t.Fatalf("create image: %v", err)
  }
  if !active {
    if _, err := f.imageRepo.SetActive(context.Background(), nil, img.ID, false); err != nil {
      t.Fatalf("deactivate image: %v", err)
    }
  }
  return img.ID
}

func (f *fixture) issue(t *testing.T, teacherID string, codeType types.CodeType, imageID string) *IssuedCode {
  t.Helper()
  var idPtr *string
  if imageID != "" {
    idPtr = &imageID
  }
  code, err := f.codes.IssueCode(context.Background(), teacherID, codeType, idPtr)
  if err != nil {
    t.Fatalf("issue %s code: %v", codeType, err)
  }
  return code
}

func errCode(err error) apperrors.Code {
  var appErr *apperrors.Error
  if errors.As(err, &appErr) {
    return appErr.Code
  }
  return ""
}

func expectCode(t *testing.T, err error, want apperrors.Code) {
  t.Helper()
  if err == nil {
    t.Fatalf("expected %s, got nil error", want)
  }
  if got := errCode(err); got != want {
    t.Fatalf("expected %s, got %q (%v)", want, got, err)
  }
}

func countIncomplete(t *testing.T, f *fixture, studentID string) int64 {
  t.Helper()
  n, err := f.cardRepo.CountIncomplete(context.Background(), nil, studentID)
  if err != nil {
    t.Fatalf("count incomplete: %v", err)
  }
  return n
}

//----------------------------------------------------------------------------------------------------------------------
// Registration
//----------------------------------------------------------------------------------------------------------------------

func TestRegisterStudentCreatesOneCard(t *testing.T) {
  f := newFixture(t)
  user := f.registerStudent(t, "stu-1")
  if user.Role != types.RoleStudent {
    t.Fatalf("expected student role, got %s", user.Role)
  }
  if n := countIncomplete(t, f, "stu-1"); n != 1 {
    t.Fatalf("expected exactly one open card, got %d", n)
  }

  role, err := f.auth.GetUserRole(context.Background(), "stu-1")
  if err != nil || role != types.RoleStudent {
    t.Fatalf("GetUserRole = %q, %v", role, err)
  }
}

func TestRegisterStudentRejectsMismatchAndDuplicates(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  reg := StudentRegistration{UID: "stu-1", Email: "stu-1@example.edu", Name: "A", Major: "Math"}

  _, err := f.auth.RegisterStudent(ctx, &Principal{UID: "someone-else"}, reg)
  expectCode(t, err, apperrors.CodeUIDMismatch)
  if apperrors.HTTPStatus(err) != 403 {
    t.Fatalf("expected 403 for uid mismatch, got %d", apperrors.HTTPStatus(err))
  }

  _, err = f.auth.RegisterStudent(ctx, nil, reg)
  expectCode(t, err, apperrors.CodeUnauthenticated)

  _, err = f.auth.RegisterStudent(ctx, &Principal{UID: "stu-1"}, StudentRegistration{UID: "stu-1", Email: "x@example.edu", Name: "A"})
  expectCode(t, err, apperrors.CodeMissingFields)

  f.registerStudent(t, "stu-1")
  _, err = f.auth.RegisterStudent(ctx, &Principal{UID: "stu-1"}, reg)
  if !errors.Is(err, apperrors.ErrUserAlreadyExists) {
    t.Fatalf("expected USER_ALREADY_EXISTS, got %v", err)
  }

  _, err = f.auth.RegisterStudent(ctx, &Principal{UID: "stu-2"}, StudentRegistration{UID: "stu-2", Email: "STU-1@example.edu", Name: "B", Major: "Math"})
  expectCode(t, err, apperrors.CodeUserAlreadyExists)
}

func TestRegisterTeacherChecksPassword(t *testing.T) {
  f := newFixture(t)
  _, err := f.auth.RegisterTeacher(context.Background(), &Principal{UID: "t-1"}, TeacherRegistration{
    UID: "t-1", Email: "t-1@example.edu", Name: "T", RegistrationPassword: "wrong",
  })
  expectCode(t, err, apperrors.CodeInvalidRegistrationPassword)

  user := f.registerTeacher(t, "t-1")
  if user.Role != types.RoleTeacher {
    t.Fatalf("expected teacher role, got %s", user.Role)
  }
  if n := countIncomplete(t, f, "t-1"); n != 0 {
    t.Fatalf("teachers should not get cards, got %d", n)
  }

  _, err = f.auth.GetUser(context.Background(), "nobody")
  expectCode(t, err, apperrors.CodeUserNotFound)
}

//----------------------------------------------------------------------------------------------------------------------
// Code issuance
//----------------------------------------------------------------------------------------------------------------------

func TestIssueCodeValidation(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  inactive := f.createImage(t, teacher.ID, "Old", false)
  missing := "does-not-exist"

  _, err := f.codes.IssueCode(ctx, teacher.ID, types.CodeType("coupon"), nil)
  expectCode(t, err, apperrors.CodeInvalidCodeType)

  _, err = f.codes.IssueCode(ctx, teacher.ID, types.CodeTypeStamp, nil)
  expectCode(t, err, apperrors.CodeStampImageRequired)

  _, err = f.codes.IssueCode(ctx, teacher.ID, types.CodeTypeStamp, &missing)
  expectCode(t, err, apperrors.CodeStampImageNotFound)

  _, err = f.codes.IssueCode(ctx, teacher.ID, types.CodeTypeStamp, &inactive)
  expectCode(t, err, apperrors.CodeStampImageInactive)

  gift := f.issue(t, teacher.ID, types.CodeTypeGift, inactive)
  if gift.Type != types.CodeTypeGift {
    t.Fatalf("expected gift code, got %s", gift.Type)
  }
  if want := f.clock.Now().Add(CodeTTL); !gift.ExpiresAt.Equal(want) {
    t.Fatalf("expected expiry %v, got %v", want, gift.ExpiresAt)
  }
}

func TestIssueCodeIsListedUnused(t *testing.T) {
  f := newFixture(t)
  ctx := eventdata.WithEventData(context.Background())
  teacher := f.registerTeacher(t, "t-1")
  img := f.createImage(t, teacher.ID, "Star", true)

  issued, err := f.codes.IssueCode(ctx, teacher.ID, types.CodeTypeStamp, &img)
  if err != nil {
    t.Fatalf("issue: %v", err)
  }
  if len(issued.Code) != 5 || issued.Code < "10000" || issued.Code > "99999" {
    t.Fatalf("expected 5 digit code, got %q", issued.Code)
  }

  views, err := f.codes.ListCodes(context.Background())
  if err != nil {
    t.Fatalf("list: %v", err)
  }
  if len(views) != 1 || views[0].Code != issued.Code || views[0].Used {
    t.Fatalf("unexpected listing: %+v", views)
  }
  if views[0].StampImageID == nil || *views[0].StampImageID != img {
    t.Fatalf("expected stamp image id on listing")
  }

  msgs := eventdata.GetEventData(ctx).Drain()
  if len(msgs) != 1 || msgs[0].Event != socket.EventCodeIssued || msgs[0].Channel != socket.TeachersChannel {
    t.Fatalf("expected one code.issued event, got %+v", msgs)
  }
}

func TestIssueCodeTrimsToMaxOutstanding(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")

  base := f.clock.Now().Add(-time.Hour)
  seed := make([]types.OneTimeCode, 0, MaxOutstandingCodes)
  for i := 0; i < MaxOutstandingCodes; i++ {
    seed = append(seed, types.OneTimeCode{
      Code:      fmt.Sprintf("G%04d", i),
      Type:      types.CodeTypeGift,
      CreatedBy: teacher.ID,
      ExpiresAt: base.Add(CodeTTL),
      CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
    })
  }
  if err := f.gdb.CreateInBatches(&seed, 200).Error; err != nil {
    t.Fatalf("seed codes: %v", err)
  }

  f.issue(t, teacher.ID, types.CodeTypeGift, "")

  total, err := f.codeRepo.CountAll(ctx, nil)
  if err != nil {
    t.Fatalf("count: %v", err)
  }
  if total != MaxOutstandingCodes {
    t.Fatalf("expected %d codes after trim, got %d", MaxOutstandingCodes, total)
  }
  exists, err := f.codeRepo.CodeExists(ctx, nil, "G0000")
  if err != nil {
    t.Fatalf("exists: %v", err)
  }
  if exists {
    t.Fatalf("expected the oldest code to be trimmed")
  }
  if exists, _ := f.codeRepo.CodeExists(ctx, nil, "G0001"); !exists {
    t.Fatalf("expected only one code to be trimmed")
  }
}

func TestIssueCodeTrimsBackDownWhenOverLimit(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")

  base := f.clock.Now().Add(-time.Hour)
  seed := make([]types.OneTimeCode, 0, MaxOutstandingCodes+1)
  for i := 0; i < MaxOutstandingCodes+1; i++ {
    seed = append(seed, types.OneTimeCode{
      Code:      fmt.Sprintf("G%04d", i),
      Type:      types.CodeTypeGift,
      CreatedBy: teacher.ID,
      ExpiresAt: base.Add(CodeTTL),
      CreatedAt: base.Add(time.Duration(i) * time.Millisecond),
    })
  }
  if err := f.gdb.CreateInBatches(&seed, 200).Error; err != nil {
    t.Fatalf("seed codes: %v", err)
  }

  f.issue(t, teacher.ID, types.CodeTypeGift, "")

  total, _ := f.codeRepo.CountAll(ctx, nil)
  if total != MaxOutstandingCodes {
    t.Fatalf("expected %d codes after trim, got %d", MaxOutstandingCodes, total)
  }
  for _, gone := range []string{"G0000", "G0001"} {
    if exists, _ := f.codeRepo.CodeExists(ctx, nil, gone); exists {
      t.Fatalf("expected %s to be trimmed", gone)
    }
  }
}

func TestIssueCodeGenerationExhausted(t *testing.T) {
  f := newFixture(t)
  teacher := f.registerTeacher(t, "t-1")
  first := f.issue(t, teacher.ID, types.CodeTypeGift, "")

  attempts := 0
  f.codes.(*codeService).gen = func() (string, error) {
    attempts++
    return first.Code, nil
  }
  _, err := f.codes.IssueCode(context.Background(), teacher.ID, types.CodeTypeGift, nil)
  if !errors.Is(err, apperrors.ErrCodeGenerationExhausted) {
    t.Fatalf("expected CODE_GENERATION_EXHAUSTED, got %v", err)
  }
  if attempts != CodeGenerationAttempts {
    t.Fatalf("expected %d attempts, got %d", CodeGenerationAttempts, attempts)
  }
  if apperrors.HTTPStatus(err) != 500 {
    t.Fatalf("expected 500, got %d", apperrors.HTTPStatus(err))
  }
}

//----------------------------------------------------------------------------------------------------------------------
// Redemption
//----------------------------------------------------------------------------------------------------------------------

func TestStampCardLifecycle(t *testing.T) {
  f := newFixture(t)
  teacher := f.registerTeacher(t, "t-1")
  student := f.registerStudent(t, "stu-1")
  img := f.createImage(t, teacher.ID, "Star", true)

  for i := 1; i <= types.MaxStampsPerCard; i++ {
    ctx := eventdata.WithEventData(context.Background())
    code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
    f.clock.Advance(time.Minute)
    res, err := f.redemption.RedeemStampCode(ctx, student.ID, code.Code)
    if err != nil {
      t.Fatalf("redeem stamp %d: %v", i, err)
    }
    if res.Position != i {
      t.Fatalf("expected position %d, got %d", i, res.Position)
    }
    last := i == types.MaxStampsPerCard
    if res.CardCompleted != last || res.NewCardCreated != last {
      t.Fatalf("stamp %d: completed=%v newCard=%v", i, res.CardCompleted, res.NewCardCreated)
    }
    if n := countIncomplete(t, f, student.ID); n != 1 {
      t.Fatalf("stamp %d: expected one open card, got %d", i, n)
    }
    msgs := eventdata.GetEventData(ctx).Drain()
    want := 2
    if last {
      want = 4
    }
    if len(msgs) != want {
      t.Fatalf("stamp %d: expected %d events, got %d", i, want, len(msgs))
    }
  }

  cards, err := f.reporting.StudentCards(context.Background(), student.ID)
  if err != nil {
    t.Fatalf("student cards: %v", err)
  }
  if len(cards) != 2 {
    t.Fatalf("expected 2 cards, got %d", len(cards))
  }
  if !cards[0].IsCompleted || cards[0].StampCount != 3 || len(cards[0].Stamps) != 3 || cards[0].CompletedAt == nil {
    t.Fatalf("expected first card complete with 3 stamps: %+v", cards[0])
  }
  for i, s := range cards[0].Stamps {
    if s.Position != i+1 || s.StampName != "Star" {
      t.Fatalf("unexpected stamp %d: %+v", i, s)
    }
  }
  if cards[1].IsCompleted || cards[1].StampCount != 0 || cards[1].MaxStamps != types.MaxStampsPerCard {
    t.Fatalf("expected fresh second card: %+v", cards[1])
  }
  if len(f.notifier.cards) != 1 || f.notifier.cards[0] != student.ID+"/"+cards[0].ID {
    t.Fatalf("expected one completion notification, got %v", f.notifier.cards)
  }
}

func TestRedeemStampCodeRejectsBadCodes(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  alice := f.registerStudent(t, "alice")
  bob := f.registerStudent(t, "bob")
  img := f.createImage(t, teacher.ID, "Star", true)

  _, err := f.redemption.RedeemStampCode(ctx, alice.ID, "   ")
  expectCode(t, err, apperrors.CodeMissingFields)

  _, err = f.redemption.RedeemStampCode(ctx, alice.ID, "00000")
  expectCode(t, err, apperrors.CodeCodeNotFound)

  gift := f.issue(t, teacher.ID, types.CodeTypeGift, "")
  _, err = f.redemption.RedeemStampCode(ctx, alice.ID, gift.Code)
  expectCode(t, err, apperrors.CodeCodeNotFound)

  code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
  if _, err := f.redemption.RedeemStampCode(ctx, alice.ID, code.Code); err != nil {
    t.Fatalf("first redeem: %v", err)
  }
  _, err = f.redemption.RedeemStampCode(ctx, bob.ID, code.Code)
  if !errors.Is(err, apperrors.ErrCodeAlreadyUsed) {
    t.Fatalf("expected CODE_ALREADY_USED, got %v", err)
  }

  views, _ := f.codes.ListCodes(ctx)
  for _, v := range views {
    if v.Code == code.Code && (!v.Used || v.UsedBy == nil || *v.UsedBy != alice.ID) {
      t.Fatalf("expected code used by alice: %+v", v)
    }
  }
}

func TestRedeemStampCodeExpiry(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  student := f.registerStudent(t, "stu-1")
  img := f.createImage(t, teacher.ID, "Star", true)

  atLimit := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
  late := f.issue(t, teacher.ID, types.CodeTypeStamp, img)

  f.clock.Advance(CodeTTL)
  if _, err := f.redemption.RedeemStampCode(ctx, student.ID, atLimit.Code); err != nil {
    t.Fatalf("code should still be valid at its expiry instant: %v", err)
  }

  f.clock.Advance(time.Second)
  _, err := f.redemption.RedeemStampCode(ctx, student.ID, late.Code)
  if !errors.Is(err, apperrors.ErrCodeExpired) {
    t.Fatalf("expected CODE_EXPIRED, got %v", err)
  }
}

func TestRedeemStampCodeWithoutOpenCardKeepsCode(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  img := f.createImage(t, teacher.ID, "Star", true)

  orphan := &types.User{ID: "orphan", Role: types.RoleStudent, Name: "Orphan", Email: "orphan@example.edu"}
  if err := f.userRepo.Create(ctx, nil, orphan); err != nil {
    t.Fatalf("create orphan: %v", err)
  }
  code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)

  _, err := f.redemption.RedeemStampCode(ctx, orphan.ID, code.Code)
  expectCode(t, err, apperrors.CodeNoAvailableCardSlot)

  otc, err := f.codeRepo.GetByCodeAndType(ctx, nil, code.Code, types.CodeTypeStamp)
  if err != nil || otc == nil {
    t.Fatalf("reload code: %v", err)
  }
  if otc.IsUsed() {
    t.Fatalf("failed redemption must not consume the code")
  }
}

func TestRedeemGiftCode(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  student := f.registerStudent(t, "stu-1")
  img := f.createImage(t, teacher.ID, "Star", true)

  early := f.issue(t, teacher.ID, types.CodeTypeGift, "")
  _, err := f.redemption.RedeemGiftCode(ctx, student.ID, early.Code)
  if !errors.Is(err, apperrors.ErrNoCompletedCardAvailable) {
    t.Fatalf("expected NO_COMPLETED_CARD_AVAILABLE, got %v", err)
  }

  for i := 0; i < types.MaxStampsPerCard; i++ {
    code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
    f.clock.Advance(time.Minute)
    if _, err := f.redemption.RedeemStampCode(ctx, student.ID, code.Code); err != nil {
      t.Fatalf("redeem stamp: %v", err)
    }
  }

  // the failed attempt above rolled back, so the same gift code still works
  evCtx := eventdata.WithEventData(ctx)
  res, err := f.redemption.RedeemGiftCode(evCtx, student.ID, early.Code)
  if err != nil {
    t.Fatalf("redeem gift: %v", err)
  }
  if res.GiftName != UnknownGiftName {
    t.Fatalf("expected %q for numeric code, got %q", UnknownGiftName, res.GiftName)
  }
  if msgs := eventdata.GetEventData(evCtx).Drain(); len(msgs) != 2 || msgs[0].Event != socket.EventGiftExchanged {
    t.Fatalf("expected gift.exchanged events, got %+v", msgs)
  }

  _, err = f.redemption.RedeemGiftCode(ctx, student.ID, early.Code)
  expectCode(t, err, apperrors.CodeCodeAlreadyUsed)

  again := f.issue(t, teacher.ID, types.CodeTypeGift, "")
  _, err = f.redemption.RedeemGiftCode(ctx, student.ID, again.Code)
  expectCode(t, err, apperrors.CodeNoCompletedCardAvailable)

  gifts, err := f.reporting.StudentCollection(ctx, student.ID)
  if err != nil {
    t.Fatalf("collection: %v", err)
  }
  if len(gifts) != 1 || gifts[0].CardID != res.CardID || len(gifts[0].Stamps) != 3 {
    t.Fatalf("unexpected collection: %+v", gifts)
  }
  if gifts[0].ExchangeCode != "" {
    t.Fatalf("student collection must not expose exchange code")
  }

  cards, _ := f.reporting.StudentCards(ctx, student.ID)
  if !cards[0].IsExchanged || cards[0].ExchangedAt == nil {
    t.Fatalf("expected first card exchanged: %+v", cards[0])
  }
}

func TestRedeemGiftCodeRejectsBadCodes(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  student := f.registerStudent(t, "stu-1")
  img := f.createImage(t, teacher.ID, "Star", true)

  late := f.issue(t, teacher.ID, types.CodeTypeGift, "")
  for i := 0; i < types.MaxStampsPerCard; i++ {
    code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
    f.clock.Advance(time.Minute)
    if _, err := f.redemption.RedeemStampCode(ctx, student.ID, code.Code); err != nil {
      t.Fatalf("redeem stamp: %v", err)
    }
  }

  _, err := f.redemption.RedeemGiftCode(ctx, student.ID, "   ")
  expectCode(t, err, apperrors.CodeMissingFields)

  _, err = f.redemption.RedeemGiftCode(ctx, student.ID, "00000")
  if !errors.Is(err, apperrors.ErrCodeNotFound) {
    t.Fatalf("expected CODE_NOT_FOUND, got %v", err)
  }
  var appErr *apperrors.Error
  if !errors.As(err, &appErr) || appErr.Message != "Invalid gift code" {
    t.Fatalf("unexpected message: %v", err)
  }

  stampCode := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
  _, err = f.redemption.RedeemGiftCode(ctx, student.ID, stampCode.Code)
  expectCode(t, err, apperrors.CodeCodeNotFound)
  otc, err := f.codeRepo.GetByCodeAndType(ctx, nil, stampCode.Code, types.CodeTypeStamp)
  if err != nil || otc == nil || otc.IsUsed() {
    t.Fatalf("stamp code presented as a gift must stay unused: %+v %v", otc, err)
  }

  f.clock.Advance(CodeTTL + time.Second)
  _, err = f.redemption.RedeemGiftCode(ctx, student.ID, late.Code)
  if !errors.Is(err, apperrors.ErrCodeExpired) {
    t.Fatalf("expected CODE_EXPIRED, got %v", err)
  }

  gifts, err := f.reporting.StudentCollection(ctx, student.ID)
  if err != nil {
    t.Fatalf("collection: %v", err)
  }
  if len(gifts) != 0 {
    t.Fatalf("rejected gift codes must not exchange a card: %+v", gifts)
  }
  cards, _ := f.reporting.StudentCards(ctx, student.ID)
  if !cards[0].IsCompleted || cards[0].IsExchanged {
    t.Fatalf("completed card should still be exchangeable: %+v", cards[0])
  }
}

func TestGiftNameForCode(t *testing.T) {
  cases := map[string]string{
    "GIFT-2026": GiftCardName,
    "GIFT":      GiftCardName,
    "gift-1":    UnknownGiftName,
    "48213":     UnknownGiftName,
  }
  for code, want := range cases {
    if got := GiftNameForCode(code); got != want {
      t.Fatalf("GiftNameForCode(%q) = %q, want %q", code, got, want)
    }
  }
}

func TestConcurrentRedemptionOfSameCode(t *testing.T) {
  f := newFixture(t)
  teacher := f.registerTeacher(t, "t-1")
  alice := f.registerStudent(t, "alice")
  bob := f.registerStudent(t, "bob")
  img := f.createImage(t, teacher.ID, "Star", true)
  code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)

  var wg sync.WaitGroup
  errs := make([]error, 2)
  for i, uid := range []string{alice.ID, bob.ID} {
    wg.Add(1)
    go func(i int, uid string) {
      defer wg.Done()
      _, errs[i] = f.redemption.RedeemStampCode(context.Background(), uid, code.Code)
    }(i, uid)
  }
  wg.Wait()

  ok := 0
  for _, err := range errs {
    if err == nil {
      ok++
      continue
    }
    expectCode(t, err, apperrors.CodeCodeAlreadyUsed)
  }
  if ok != 1 {
    t.Fatalf("expected exactly one successful redemption, got %d (%v)", ok, errs)
  }
}

//----------------------------------------------------------------------------------------------------------------------
// Reporting
//----------------------------------------------------------------------------------------------------------------------

func TestTeacherStatsAndStudentDetail(t *testing.T) {
  f := newFixture(t)
  ctx := context.Background()
  teacher := f.registerTeacher(t, "t-1")
  alice := f.registerStudent(t, "alice")
  f.registerStudent(t, "bob")
  img := f.createImage(t, teacher.ID, "Star", true)

  for i := 0; i < 4; i++ {
    code := f.issue(t, teacher.ID, types.CodeTypeStamp, img)
    f.clock.Advance(time.Minute)
    if _, err := f.redemption.RedeemStampCode(ctx, alice.ID, code.Code); err != nil {
      t.Fatalf("redeem: %v", err)
    }
  }
  gift := f.issue(t, teacher.ID, types.CodeTypeGift, "")
  if _, err := f.redemption.RedeemGiftCode(ctx, alice.ID, gift.Code); err != nil {
    t.Fatalf("gift: %v", err)
  }

  stats, students, err := f.reporting.TeacherStats(ctx)
  if err != nil {
    t.Fatalf("stats: %v", err)
  }
  if stats.TotalStudents != 2 || stats.StampsIssued != 4 || stats.ExchangedCards != 1 {
    t.Fatalf("unexpected stats: %+v", stats)
  }
  if len(students) != 2 || students[0].ID != alice.ID || students[0].TotalStamps != 4 {
    t.Fatalf("expected alice first with 4 stamps: %+v", students)
  }

  detail, err := f.reporting.StudentDetail(ctx, alice.ID)
  if err != nil {
    t.Fatalf("detail: %v", err)
  }
  if detail.Student.Stats.TotalStamps != 4 || detail.Student.Stats.ExchangedCards != 1 || detail.Student.Stats.ActiveCards != 1 {
    t.Fatalf("unexpected student stats: %+v", detail.Student.Stats)
  }
  if len(detail.Cards) != 2 || detail.Cards[0].StampCount != 1 {
    t.Fatalf("expected newest card first: %+v", detail.Cards)
  }
  if len(detail.Gifts) != 1 || detail.Gifts[0].ExchangeCode != gift.Code {
    t.Fatalf("teacher view should carry exchange code: %+v", detail.Gifts)
  }

  _, err = f.reporting.StudentDetail(ctx, teacher.ID)
  expectCode(t, err, apperrors.CodeStudentNotFound)
}
