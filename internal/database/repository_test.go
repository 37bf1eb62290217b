package database

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/example/learncore/pkg/models"
)

func TestMain(m *testing.M) {
	if err := Open("sqlite3", ":memory:"); err != nil {
		panic(err)
	}
	code := m.Run()
	Close()
	os.Exit(code)
}

func resetTables(t *testing.T) {
	t.Helper()
	for _, table := range []string{"attempts", "mastery_edges", "review_schedules", "notification_channels"} {
		if _, err := DB.Exec("DELETE FROM " + table); err != nil {
			t.Fatalf("failed to reset %s: %v", table, err)
		}
	}
}

func TestAttemptIdempotencyKeyUnique(t *testing.T) {
	resetTables(t)
	repo := NewAttemptRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	a := &models.Attempt{
		UserID: "u1", ItemID: "i1", Grade: models.GradeGood,
		Correctness: 1, IdempotencyKey: "dup-key",
		Probability: 0.35, StatusBucket: models.StatusScaffold,
		IntervalDays: 1, NextReviewDate: now.AddDate(0, 0, 1), CreatedAt: now,
	}
	if err := repo.Insert(ctx, nil, a); err != nil {
		t.Fatalf("first insert: %v", err)
	}

	dup := *a
	dup.ID = 0
	err := repo.Insert(ctx, nil, &dup)
	if err == nil {
		t.Fatal("duplicate idempotency key accepted")
	}
	if !IsUniqueViolation(err) {
		t.Errorf("duplicate not reported as unique violation: %v", err)
	}

	stored, err := repo.GetByIdempotencyKey(ctx, nil, "dup-key")
	if err != nil {
		t.Fatalf("key lookup: %v", err)
	}
	if stored == nil || stored.Probability != 0.35 {
		t.Errorf("recorded result not readable: %+v", stored)
	}

	missing, err := repo.GetByIdempotencyKey(ctx, nil, "unseen")
	if err != nil || missing != nil {
		t.Errorf("unseen key lookup = %+v, %v; want nil, nil", missing, err)
	}
}

func TestMasteryEdgeLifecycle(t *testing.T) {
	resetTables(t)
	repo := NewMasteryRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	if edge, err := repo.Get(ctx, nil, "u1", "i1"); err != nil || edge != nil {
		t.Fatalf("fresh pair Get = %+v, %v; want nil, nil", edge, err)
	}

	edge := &models.MasteryEdge{UserID: "u1", ItemID: "i1", Probability: 0.35, AttemptCount: 1, UpdatedAt: now}
	if err := repo.Insert(ctx, nil, edge); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := repo.Insert(ctx, nil, edge); !IsUniqueViolation(err) {
		t.Errorf("pair duplicate not a unique violation: %v", err)
	}

	updated := &models.MasteryEdge{UserID: "u1", ItemID: "i1", Probability: 0.52, AttemptCount: 2, UpdatedAt: now}
	ok, err := repo.UpdateGuarded(ctx, nil, updated, 1)
	if err != nil || !ok {
		t.Fatalf("guarded update with current count: %v, %v", ok, err)
	}

	// Stale guard: the count moved to 2 above
	ok, err = repo.UpdateGuarded(ctx, nil, updated, 1)
	if err != nil {
		t.Fatalf("stale guarded update: %v", err)
	}
	if ok {
		t.Error("stale attempt count accepted")
	}

	edges, err := repo.EdgesForUser(ctx, "u1")
	if err != nil {
		t.Fatalf("edges for user: %v", err)
	}
	if len(edges) != 1 || edges["i1"].AttemptCount != 2 {
		t.Errorf("edges = %+v", edges)
	}
}

func TestScheduleDueQuery(t *testing.T) {
	resetTables(t)
	repo := NewScheduleRepository()
	ctx := context.Background()
	asOf := time.Date(2025, 5, 10, 12, 0, 0, 0, time.UTC)

	rows := []models.ReviewSchedule{
		{UserID: "u1", ItemID: "overdue", IntervalDays: 3, EaseFactor: 2.5, LastGrade: models.GradeGood, NextReviewDate: asOf.AddDate(0, 0, -4), UpdatedAt: asOf},
		{UserID: "u1", ItemID: "just-due", IntervalDays: 1, EaseFactor: 2.5, LastGrade: models.GradeHard, NextReviewDate: asOf.Add(-time.Hour), UpdatedAt: asOf},
		{UserID: "u1", ItemID: "future", IntervalDays: 7, EaseFactor: 2.5, LastGrade: models.GradeEasy, NextReviewDate: asOf.AddDate(0, 0, 5), UpdatedAt: asOf},
		{UserID: "u2", ItemID: "other-user", IntervalDays: 1, EaseFactor: 2.5, LastGrade: models.GradeGood, NextReviewDate: asOf.AddDate(0, 0, -1), UpdatedAt: asOf},
	}
	for i := range rows {
		if err := repo.Insert(ctx, nil, &rows[i]); err != nil {
			t.Fatalf("insert %s: %v", rows[i].ItemID, err)
		}
	}

	due, err := repo.DueForUser(ctx, "u1", asOf, 10)
	if err != nil {
		t.Fatalf("due query: %v", err)
	}
	if len(due) != 2 {
		t.Fatalf("due rows = %d, want 2", len(due))
	}
	if due[0].ItemID != "overdue" || due[1].ItemID != "just-due" {
		t.Errorf("due order wrong: %s, %s", due[0].ItemID, due[1].ItemID)
	}

	count, err := repo.CountDueForUser(ctx, "u1", asOf)
	if err != nil || count != 2 {
		t.Errorf("due count = %d, %v; want 2", count, err)
	}
}

func TestScheduleUpdate(t *testing.T) {
	resetTables(t)
	repo := NewScheduleRepository()
	ctx := context.Background()
	now := time.Now().UTC()

	s := &models.ReviewSchedule{
		UserID: "u1", ItemID: "i1", IntervalDays: 1, EaseFactor: 2.5,
		LastGrade: models.GradeGood, NextReviewDate: now.AddDate(0, 0, 1), UpdatedAt: now,
	}
	if err := repo.Insert(ctx, nil, s); err != nil {
		t.Fatalf("insert: %v", err)
	}

	s.IntervalDays = 3
	s.LastGrade = models.GradeEasy
	s.NextReviewDate = now.AddDate(0, 0, 3)
	if err := repo.Update(ctx, nil, s); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := repo.Get(ctx, nil, "u1", "i1")
	if err != nil || got == nil {
		t.Fatalf("get after update: %+v, %v", got, err)
	}
	if got.IntervalDays != 3 || got.LastGrade != models.GradeEasy {
		t.Errorf("update not persisted: %+v", got)
	}

	missing := &models.ReviewSchedule{UserID: "u1", ItemID: "nope", UpdatedAt: now, NextReviewDate: now}
	if err := repo.Update(ctx, nil, missing); err == nil {
		t.Error("update of missing schedule succeeded")
	}
}

func TestNotificationChannelUpsert(t *testing.T) {
	resetTables(t)
	repo := NewNotificationRepository()
	ctx := context.Background()

	if err := repo.Upsert(ctx, &models.NotificationChannel{UserID: "u1", TelegramChatID: 100, NotifyHour: 9}); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	// Re-pointing the channel must not create a second row
	if err := repo.Upsert(ctx, &models.NotificationChannel{UserID: "u1", TelegramChatID: 200, NotifyHour: 18}); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	nine, err := repo.ChannelsForHour(ctx, 9)
	if err != nil {
		t.Fatalf("channels for hour 9: %v", err)
	}
	if len(nine) != 0 {
		t.Errorf("stale hour still subscribed: %+v", nine)
	}

	eighteen, err := repo.ChannelsForHour(ctx, 18)
	if err != nil {
		t.Fatalf("channels for hour 18: %v", err)
	}
	if len(eighteen) != 1 || eighteen[0].TelegramChatID != 200 {
		t.Errorf("channels = %+v", eighteen)
	}
}
