package database

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/example/learncore/pkg/models"
)

// NotificationRepository handles reminder-digest subscriptions
type NotificationRepository struct{}

// NewNotificationRepository creates a new repository instance
func NewNotificationRepository() *NotificationRepository {
	return &NotificationRepository{}
}

// Upsert subscribes (or re-points) a user's reminder channel.
func (r *NotificationRepository) Upsert(ctx context.Context, ch *models.NotificationChannel) error {
	query := `
		INSERT INTO notification_channels (user_id, telegram_chat_id, notify_hour)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id) DO UPDATE SET
			telegram_chat_id = EXCLUDED.telegram_chat_id,
			notify_hour = EXCLUDED.notify_hour
	`
	if _, err := queryer(nil).ExecContext(ctx, query, ch.UserID, ch.TelegramChatID, ch.NotifyHour); err != nil {
		return fmt.Errorf("failed to upsert notification channel: %v", err)
	}
	return nil
}

// ChannelsForHour returns subscriptions whose notify hour matches.
func (r *NotificationRepository) ChannelsForHour(ctx context.Context, hour int) ([]models.NotificationChannel, error) {
	var channels []models.NotificationChannel
	err := sqlx.SelectContext(ctx, queryer(nil), &channels,
		"SELECT * FROM notification_channels WHERE notify_hour = $1", hour)
	if err != nil {
		return nil, fmt.Errorf("failed to list notification channels: %v", err)
	}
	return channels, nil
}
