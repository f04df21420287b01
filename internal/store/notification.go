package store

import "time"

type Notification struct {
	NotificationID   int64      `json:"id"`
	RecipientID      int64      `json:"recipient_id"`
	Title            string     `json:"title"`
	Content          string     `json:"content"`
	NotificationType string     `json:"notification_type"`
	IsRead           bool       `json:"is_read"`
	CreatedOn        time.Time  `json:"created_on"`
	ReadOn           *time.Time `json:"read_on"`
}
