package repos

import (
    "context"
    "errors"
    "fmt"
    "testing"
    "time"

    "gorm.io/gorm"

    "github.com/gakusta-org/gakusta-backend/internal/db"
    "github.com/gakusta-org/gakusta-backend/internal/logger"
    "github.com/gakusta-org/gakusta-backend/internal/types"
)

func newTestDB(t *testing.T) *gorm.DB {
    t.Helper()
    d, err := db.OpenSQLiteMemory(fmt.Sprintf("repos_%d", time.Now().UnixNano()), logger.NewNop())
    if err != nil {
        t.Fatalf("open db: %v", err)
    }
    if err := d.AutoMigrateAll(); err != nil {
        t.Fatalf("migrate: %v", err)
    }
    t.Cleanup(func() { _ = d.Close() })
    return d.DB()
}

func seedStudent(t *testing.T, gdb *gorm.DB, id string) {
    t.Helper()
    u := types.User{ID: id, Role: types.RoleStudent, Name: id, Email: id + "@example.edu"}
    if err := gdb.Create(&u).Error; err != nil {
        t.Fatalf("seed student: %v", err)
    }
}

func seedImage(t *testing.T, gdb *gorm.DB, creator string) string {
    t.Helper()
    img := types.StampImage{Name: "Star", ImageURL: "/stamps/star.png", CreatedBy: creator, IsActive: true, CreatedAt: time.Now()}
    if err := gdb.Create(&img).Error; err != nil {
        t.Fatalf("seed image: %v", err)
    }
    return img.ID
}

func TestFindOpenCardPicksOldestCardWithRoom(t *testing.T) {
    gdb := newTestDB(t)
    ctx := context.Background()
    log := logger.NewNop()
    cards := NewStampCardRepo(gdb, log)
    stamps := NewStampRepo(gdb, log)

    seedStudent(t, gdb, "s1")
    imgID := seedImage(t, gdb, "s1")

    base := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
    older := &types.StampCard{StudentID: "s1", CreatedAt: base}
    newer := &types.StampCard{StudentID: "s1", CreatedAt: base.Add(time.Hour)}
    if err := cards.Create(ctx, nil, older); err != nil {
        t.Fatalf("create older: %v", err)
    }
    if err := cards.Create(ctx, nil, newer); err != nil {
        t.Fatalf("create newer: %v", err)
    }
    for pos := 1; pos <= 2; pos++ {
        if err := stamps.Create(ctx, nil, &types.Stamp{CardID: older.ID, StampImageID: imgID, Position: pos, IssuedBy: "s1", CreatedAt: base}); err != nil {
            t.Fatalf("stamp: %v", err)
        }
    }

    open, err := cards.FindOpenCard(ctx, nil, "s1")
    if err != nil {
        t.Fatalf("FindOpenCard: %v", err)
    }
    if open == nil || open.ID != older.ID {
        t.Fatalf("expected older card, got %+v", open)
    }
    if open.StampCount != 2 {
        t.Fatalf("expected 2 stamps, got %d", open.StampCount)
    }

    if err := stamps.Create(ctx, nil, &types.Stamp{CardID: older.ID, StampImageID: imgID, Position: 3, IssuedBy: "s1", CreatedAt: base}); err != nil {
        t.Fatalf("stamp 3: %v", err)
    }
    open, err = cards.FindOpenCard(ctx, nil, "s1")
    if err != nil {
        t.Fatalf("FindOpenCard: %v", err)
    }
    if open == nil || open.ID != newer.ID {
        t.Fatalf("expected full card to be skipped, got %+v", open)
    }
}

func TestGuardedCardUpdatesOnlyApplyOnce(t *testing.T) {
    gdb := newTestDB(t)
    ctx := context.Background()
    cards := NewStampCardRepo(gdb, logger.NewNop())
    seedStudent(t, gdb, "s1")

    card := &types.StampCard{StudentID: "s1", CreatedAt: time.Now()}
    if err := cards.Create(ctx, nil, card); err != nil {
        t.Fatalf("create: %v", err)
    }
    if ok, err := cards.MarkExchanged(ctx, nil, card.ID, time.Now()); err != nil || ok {
        t.Fatalf("incomplete card must not be exchangeable: ok=%v err=%v", ok, err)
    }
    if ok, err := cards.MarkCompleted(ctx, nil, card.ID, time.Now()); err != nil || !ok {
        t.Fatalf("first completion should apply: ok=%v err=%v", ok, err)
    }
    if ok, err := cards.MarkCompleted(ctx, nil, card.ID, time.Now()); err != nil || ok {
        t.Fatalf("second completion must be a no-op: ok=%v err=%v", ok, err)
    }
    if ok, err := cards.MarkExchanged(ctx, nil, card.ID, time.Now()); err != nil || !ok {
        t.Fatalf("exchange should apply: ok=%v err=%v", ok, err)
    }
    if ok, err := cards.MarkExchanged(ctx, nil, card.ID, time.Now()); err != nil || ok {
        t.Fatalf("second exchange must be a no-op: ok=%v err=%v", ok, err)
    }
}

func TestClaimIsSingleUse(t *testing.T) {
    gdb := newTestDB(t)
    ctx := context.Background()
    codes := NewOneTimeCodeRepo(gdb, logger.NewNop())
    seedStudent(t, gdb, "s1")

    otc := &types.OneTimeCode{Code: "12345", Type: types.CodeTypeGift, CreatedBy: "s1", ExpiresAt: time.Now().Add(time.Hour), CreatedAt: time.Now()}
    if err := codes.Create(ctx, nil, otc); err != nil {
        t.Fatalf("create: %v", err)
    }
    ok, err := codes.Claim(ctx, nil, otc.ID, "s1", time.Now())
    if err != nil || !ok {
        t.Fatalf("first claim: ok=%v err=%v", ok, err)
    }
    ok, err = codes.Claim(ctx, nil, otc.ID, "s1", time.Now())
    if err != nil || ok {
        t.Fatalf("second claim must fail: ok=%v err=%v", ok, err)
    }
    got, err := codes.GetByCodeAndType(ctx, nil, "12345", types.CodeTypeGift)
    if err != nil || got == nil || !got.IsUsed() {
        t.Fatalf("expected used code, got %+v err=%v", got, err)
    }
    if miss, _ := codes.GetByCodeAndType(ctx, nil, "12345", types.CodeTypeStamp); miss != nil {
        t.Fatalf("type must be part of the lookup")
    }
}

func TestDeleteOldestTrimsByCreationTime(t *testing.T) {
    gdb := newTestDB(t)
    ctx := context.Background()
    codes := NewOneTimeCodeRepo(gdb, logger.NewNop())
    seedStudent(t, gdb, "t1")

    base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
    for i := 0; i < 5; i++ {
        otc := &types.OneTimeCode{
            Code:      fmt.Sprintf("1000%d", i),
            Type:      types.CodeTypeGift,
            CreatedBy: "t1",
            ExpiresAt: base.Add(7 * 24 * time.Hour),
            CreatedAt: base.Add(time.Duration(i) * time.Minute),
        }
        if err := codes.Create(ctx, nil, otc); err != nil {
            t.Fatalf("create %d: %v", i, err)
        }
    }
    deleted, err := codes.DeleteOldest(ctx, nil, 2)
    if err != nil || deleted != 2 {
        t.Fatalf("DeleteOldest: deleted=%d err=%v", deleted, err)
    }
    for _, gone := range []string{"10000", "10001"} {
        if exists, _ := codes.CodeExists(ctx, nil, gone); exists {
            t.Fatalf("expected %s to be trimmed", gone)
        }
    }
    if n, _ := codes.CountAll(ctx, nil); n != 3 {
        t.Fatalf("expected 3 remaining, got %d", n)
    }
}

func TestDuplicateEmailIsDetected(t *testing.T) {
    gdb := newTestDB(t)
    ctx := context.Background()
    users := NewUserRepo(gdb, logger.NewNop())

    if err := users.Create(ctx, nil, &types.User{ID: "a", Role: types.RoleStudent, Name: "A", Email: "same@example.edu"}); err != nil {
        t.Fatalf("create: %v", err)
    }
    err := users.Create(ctx, nil, &types.User{ID: "b", Role: types.RoleStudent, Name: "B", Email: "same@example.edu"})
    if !IsDuplicateKey(err) {
        t.Fatalf("expected duplicate key error, got %v", err)
    }
    if IsDuplicateKey(errors.New("connection reset")) {
        t.Fatalf("unrelated errors are not duplicates")
    }
}

func TestReportAggregates(t *testing.T) {
    gdb := newTestDB(t)
    ctx := context.Background()
    log := logger.NewNop()
    cards := NewStampCardRepo(gdb, log)
    stamps := NewStampRepo(gdb, log)
    reports := NewReportRepo(gdb, log)

    seedStudent(t, gdb, "busy")
    seedStudent(t, gdb, "idle")
    imgID := seedImage(t, gdb, "busy")

    now := time.Now()
    done := &types.StampCard{StudentID: "busy", IsCompleted: true, CompletedAt: &now, CreatedAt: now.Add(-time.Hour)}
    open := &types.StampCard{StudentID: "busy", CreatedAt: now}
    idle := &types.StampCard{StudentID: "idle", CreatedAt: now}
    for _, c := range []*types.StampCard{done, open, idle} {
        if err := cards.Create(ctx, nil, c); err != nil {
            t.Fatalf("create card: %v", err)
        }
    }
    for pos := 1; pos <= 3; pos++ {
        if err := stamps.Create(ctx, nil, &types.Stamp{CardID: done.ID, StampImageID: imgID, Position: pos, IssuedBy: "busy", CreatedAt: now}); err != nil {
            t.Fatalf("stamp: %v", err)
        }
    }

    stats, err := reports.Stats(ctx, nil)
    if err != nil {
        t.Fatalf("Stats: %v", err)
    }
    want := types.TeacherStats{TotalStudents: 2, ActiveCards: 2, CompletedCards: 1, ExchangedCards: 0, StampsIssued: 3}
    if stats != want {
        t.Fatalf("stats = %+v, want %+v", stats, want)
    }

    progress, err := reports.StudentsWithProgress(ctx, nil)
    if err != nil {
        t.Fatalf("StudentsWithProgress: %v", err)
    }
    if len(progress) != 2 || progress[0].ID != "busy" {
        t.Fatalf("expected busy student first, got %+v", progress)
    }
    if progress[0].TotalStamps != 3 || progress[0].CompletedCards != 1 || progress[0].ActiveCards != 1 {
        t.Fatalf("unexpected rollup %+v", progress[0])
    }
}
