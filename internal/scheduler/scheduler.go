// Package scheduler runs the hourly review-reminder digest. It only ever
// reads due counts and notifies; review timing itself is computed on the
// request path, never here.
package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"

	"github.com/example/learncore/internal/database"
	"github.com/example/learncore/internal/logger"
)

// Notifier interface for sending reminder digests
type Notifier interface {
	SendReminder(chatID int64, dueCount int) error
}

// Scheduler manages the digest job
type Scheduler struct {
	scheduler *gocron.Scheduler
	notifier  Notifier
	schedules *database.ScheduleRepository
	channels  *database.NotificationRepository
	log       *logger.Logger
}

// New creates a scheduler instance
func New(notifier Notifier, log *logger.Logger) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		notifier:  notifier,
		schedules: database.NewScheduleRepository(),
		channels:  database.NewNotificationRepository(),
		log:       log.With("component", "scheduler"),
	}
}

// Start begins running the hourly digest
func (s *Scheduler) Start() {
	s.scheduler.Every(1).Hour().Do(s.sendDigest)
	s.scheduler.StartAsync()
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// sendDigest notifies every user subscribed for the current hour who has
// due reviews waiting
func (s *Scheduler) sendDigest() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	now := time.Now().UTC()
	channels, err := s.channels.ChannelsForHour(ctx, now.Hour())
	if err != nil {
		s.log.Error("failed to load notification channels", "error", err)
		return
	}

	for _, ch := range channels {
		count, err := s.schedules.CountDueForUser(ctx, ch.UserID, now)
		if err != nil {
			s.log.Error("failed to count due reviews", "user_id", ch.UserID, "error", err)
			continue
		}
		if count == 0 {
			continue
		}
		if err := s.notifier.SendReminder(ch.TelegramChatID, count); err != nil {
			s.log.Error("failed to send reminder", "user_id", ch.UserID, "error", err)
		}
	}
}

// RunManualCheck forces a digest for a specific user
func (s *Scheduler) RunManualCheck(ctx context.Context, userID string, chatID int64) error {
	count, err := s.schedules.CountDueForUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return err
	}
	if count > 0 {
		return s.notifier.SendReminder(chatID, count)
	}
	return nil
}
