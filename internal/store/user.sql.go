package store

import (
	"context"

	"notification-workers/internal/models"

	"github.com/lib/pq"
)

const getPreferences = `
SELECT user_id, type, email, in_app
FROM notification_preferences
WHERE user_id = ANY($1) AND type = $2`

// GetPreferences returns the stored rows only. Missing rows mean both channels are on.
func (q *Queries) GetPreferences(ctx context.Context, userIDs []int64, typ models.NotificationType) ([]models.NotificationPreferences, error) {
	if len(userIDs) == 0 {
		return nil, nil
	}
	rows, err := q.db.QueryContext(ctx, getPreferences, pq.Array(userIDs), typ)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NotificationPreferences
	for rows.Next() {
		var p models.NotificationPreferences
		if err := rows.Scan(&p.UserID, &p.Type, &p.Email, &p.InApp); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

const getUsersByIDs = `
SELECT id, email, status, admin, created_at
FROM "user"
WHERE id = ANY($1) AND deleted_at IS NULL`

func (q *Queries) GetUsersByIDs(ctx context.Context, ids []int64) ([]models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	rows, err := q.db.QueryContext(ctx, getUsersByIDs, pq.Array(ids))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.User
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Status, &u.Admin, &u.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
