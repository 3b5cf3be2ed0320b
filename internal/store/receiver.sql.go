package store

import (
	"context"
	"database/sql"
	"errors"

	"notification-workers/internal/models"

	"github.com/lib/pq"
)

const receiverColumns = `id, notification_id, user_id, is_read, is_email_sent, is_in_app_notified, updated_at`

func scanReceiver(row interface{ Scan(...interface{}) error }) (*models.NotificationReceiver, error) {
	var r models.NotificationReceiver
	if err := row.Scan(&r.ID, &r.NotificationID, &r.UserID, &r.IsRead, &r.IsEmailSent, &r.IsInAppNotified, &r.UpdatedAt); err != nil {
		return nil, err
	}
	return &r, nil
}

const listReceivers = `
SELECT ` + receiverColumns + `
FROM notification_receiver
WHERE notification_id = $1
ORDER BY id`

func (q *Queries) ListReceivers(ctx context.Context, notificationID int64) ([]models.NotificationReceiver, error) {
	rows, err := q.db.QueryContext(ctx, listReceivers, notificationID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.NotificationReceiver
	for rows.Next() {
		r, err := scanReceiver(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *r)
	}
	return out, rows.Err()
}

const createReceiver = `
INSERT INTO notification_receiver (notification_id, user_id)
VALUES ($1, $2)
ON CONFLICT (notification_id, user_id) DO NOTHING
RETURNING ` + receiverColumns

// TryCreateReceiver inserts the (notification, user) receiver unless it
// already exists. created is false when a row was already there.
//
// Inside a transaction the insert runs under a savepoint so a failure does
// not abort the surrounding transaction and sibling inserts can continue.
func (q *Queries) TryCreateReceiver(ctx context.Context, notificationID, userID int64) (*models.NotificationReceiver, bool, error) {
	if q.inTx {
		if _, err := q.db.ExecContext(ctx, "SAVEPOINT receiver_insert"); err != nil {
			return nil, false, err
		}
	}

	r, err := scanReceiver(q.db.QueryRowContext(ctx, createReceiver, notificationID, userID))
	if err != nil {
		if q.inTx {
			if _, rbErr := q.db.ExecContext(ctx, "ROLLBACK TO SAVEPOINT receiver_insert"); rbErr != nil {
				return nil, false, rbErr
			}
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, err
	}

	if q.inTx {
		if _, err := q.db.ExecContext(ctx, "RELEASE SAVEPOINT receiver_insert"); err != nil {
			return nil, false, err
		}
	}
	return r, true, nil
}

const deleteReceivers = `DELETE FROM notification_receiver WHERE id = ANY($1)`

func (q *Queries) DeleteReceivers(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx, deleteReceivers, pq.Array(ids))
	return err
}

const updateEmailState = `
UPDATE notification_receiver
SET is_email_sent = $2, updated_at = now()
WHERE id = ANY($1)`

func (q *Queries) UpdateEmailState(ctx context.Context, ids []int64, state models.DeliveryState) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx, updateEmailState, pq.Array(ids), state)
	return err
}

const updateInAppState = `
UPDATE notification_receiver
SET is_in_app_notified = $2, updated_at = now()
WHERE id = ANY($1)`

func (q *Queries) UpdateInAppState(ctx context.Context, ids []int64, state models.DeliveryState) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := q.db.ExecContext(ctx, updateInAppState, pq.Array(ids), state)
	return err
}
