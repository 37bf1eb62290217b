package models

import "time"

// NotificationChannel subscribes a user to the hourly review-reminder
// digest on a Telegram chat.
type NotificationChannel struct {
	UserID         string    `json:"user_id" db:"user_id"`
	TelegramChatID int64     `json:"telegram_chat_id" db:"telegram_chat_id"`
	NotifyHour     int       `json:"notify_hour" db:"notify_hour"` // 0-23 UTC
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}
