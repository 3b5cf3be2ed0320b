package store

import (
	"context"

	"notification-workers/internal/models"

	"github.com/lib/pq"
)

const notificationColumns = `id, type, content, entity_id, actor_id, created_at`

func scanNotification(row interface{ Scan(...interface{}) error }) (*models.Notification, error) {
	var n models.Notification
	if err := row.Scan(&n.ID, &n.Type, &n.Content, &n.EntityID, &n.ActorID, &n.CreatedAt); err != nil {
		return nil, err
	}
	return &n, nil
}

const findNotification = `
SELECT ` + notificationColumns + `
FROM notification
WHERE type = $1 AND entity_id = $2
ORDER BY id
LIMIT 1`

// FindNotification returns the oldest notification for (type, entityId). It
// is the one kept when concurrent writers created duplicates.
func (q *Queries) FindNotification(ctx context.Context, typ models.NotificationType, entityID int64) (*models.Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, findNotification, typ, entityID))
}

type CreateNotificationParams struct {
	Type     models.NotificationType
	Content  string
	EntityID *int64
	ActorID  *int64
}

const createNotification = `
INSERT INTO notification (type, content, entity_id, actor_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + notificationColumns

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (*models.Notification, error) {
	return scanNotification(q.db.QueryRowContext(ctx, createNotification, arg.Type, arg.Content, arg.EntityID, arg.ActorID))
}

const listIndicatorNotifications = `
SELECT ` + notificationColumns + `
FROM notification
WHERE entity_id = $1 AND type = ANY($2)
ORDER BY id`

// ListIndicatorNotifications returns every indicator notification of a transaction.
func (q *Queries) ListIndicatorNotifications(ctx context.Context, entityID int64) ([]models.Notification, error) {
	types := make([]string, len(models.IndicatorTypes))
	for i, t := range models.IndicatorTypes {
		types[i] = string(t)
	}

	rows, err := q.db.QueryContext(ctx, listIndicatorNotifications, entityID, pq.Array(types))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *n)
	}
	return out, rows.Err()
}

const deleteNotificationReceivers = `DELETE FROM notification_receiver WHERE notification_id = $1`
const deleteNotification = `DELETE FROM notification WHERE id = $1`

// DeleteNotification removes a notification together with its receivers.
func (q *Queries) DeleteNotification(ctx context.Context, id int64) error {
	if _, err := q.db.ExecContext(ctx, deleteNotificationReceivers, id); err != nil {
		return err
	}
	_, err := q.db.ExecContext(ctx, deleteNotification, id)
	return err
}
