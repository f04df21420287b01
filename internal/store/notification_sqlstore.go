package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
)

type NotificationSQLStore struct {
	rdb, rwdb *sql.DB
}

func NewNotificationSQLStore(rdb, rwdb *sql.DB) *NotificationSQLStore {
	return &NotificationSQLStore{rdb, rwdb}
}

func (store *NotificationSQLStore) CreateNotification(
	ctx context.Context,
	recipientID int64,
	title, content, notificationType string,
) (*Notification, error) {
	n := &Notification{
		RecipientID:      recipientID,
		Title:            title,
		Content:          content,
		NotificationType: notificationType,
		CreatedOn:        time.Now().UTC(),
	}
	query := `insert into notifications (
		recipient_id,
		title,
		content,
		notification_type,
		created_on
	)
	values ($1, $2, $3, $4, $5)
	returning notification_id`
	if err := sqlscan.Get(
		ctx, store.rwdb, n, query,
		n.RecipientID,
		n.Title,
		n.Content,
		n.NotificationType,
		n.CreatedOn,
	); err != nil {
		return nil, err
	}
	return n, nil
}

func (store *NotificationSQLStore) ListUserNotifications(
	ctx context.Context,
	recipientID int64,
) ([]*Notification, error) {
	query := `select * from notifications
	where recipient_id = $1
	order by created_on desc, notification_id desc`
	notifications := make([]*Notification, 0)
	err := sqlscan.Select(ctx, store.rdb, &notifications, query, recipientID)
	return notifications, err
}
