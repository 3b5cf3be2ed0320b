package store

import (
	"context"
	"database/sql"

	"notification-workers/internal/models"
)

const getTransaction = `
SELECT id, name, status, creator_key_id, valid_start, created_at, transaction_id
FROM transaction
WHERE id = $1 AND deleted_at IS NULL`

func (q *Queries) GetTransaction(ctx context.Context, id int64) (*models.Transaction, error) {
	var t models.Transaction
	err := q.db.QueryRowContext(ctx, getTransaction, id).
		Scan(&t.ID, &t.Name, &t.Status, &t.CreatorKeyID, &t.ValidStart, &t.CreatedAt, &t.TransactionID)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

const getTransactionCreatorID = `
SELECT uk.user_id
FROM transaction t
JOIN user_key uk ON uk.id = t.creator_key_id
WHERE t.id = $1`

// GetTransactionCreatorID resolves the creator through the creator key's owner.
func (q *Queries) GetTransactionCreatorID(ctx context.Context, transactionID int64) (int64, error) {
	var id int64
	err := q.db.QueryRowContext(ctx, getTransactionCreatorID, transactionID).Scan(&id)
	return id, err
}

const listObservers = `
SELECT id, transaction_id, user_id, role
FROM transaction_observer
WHERE transaction_id = $1`

func (q *Queries) ListObservers(ctx context.Context, transactionID int64) ([]models.TransactionObserver, error) {
	rows, err := q.db.QueryContext(ctx, listObservers, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TransactionObserver
	for rows.Next() {
		var o models.TransactionObserver
		if err := rows.Scan(&o.ID, &o.TransactionID, &o.UserID, &o.Role); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

const listSigners = `
SELECT s.id, s.transaction_id, s.user_key_id, uk.user_id
FROM transaction_signer s
JOIN user_key uk ON uk.id = s.user_key_id
WHERE s.transaction_id = $1`

func (q *Queries) ListSigners(ctx context.Context, transactionID int64) ([]models.TransactionSigner, error) {
	rows, err := q.db.QueryContext(ctx, listSigners, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TransactionSigner
	for rows.Next() {
		var s models.TransactionSigner
		if err := rows.Scan(&s.ID, &s.TransactionID, &s.UserKeyID, &s.UserID); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// listApprovers walks the approver tree: root rows reference the
// transaction, nested rows reference their parent list.
const listApprovers = `
WITH RECURSIVE approvers AS (
	SELECT id, transaction_id, list_id, threshold, user_id, approved
	FROM transaction_approver
	WHERE transaction_id = $1 AND deleted_at IS NULL
	UNION ALL
	SELECT child.id, child.transaction_id, child.list_id, child.threshold, child.user_id, child.approved
	FROM transaction_approver child
	JOIN approvers parent ON child.list_id = parent.id
	WHERE child.deleted_at IS NULL
)
SELECT id, transaction_id, list_id, threshold, user_id, approved FROM approvers`

func (q *Queries) ListApprovers(ctx context.Context, transactionID int64) ([]models.TransactionApprover, error) {
	rows, err := q.db.QueryContext(ctx, listApprovers, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.TransactionApprover
	for rows.Next() {
		var (
			a         models.TransactionApprover
			txID      sql.NullInt64
			listID    sql.NullInt64
			threshold sql.NullInt32
			userID    sql.NullInt64
			approved  sql.NullBool
		)
		if err := rows.Scan(&a.ID, &txID, &listID, &threshold, &userID, &approved); err != nil {
			return nil, err
		}
		if txID.Valid {
			a.TransactionID = &txID.Int64
		}
		if listID.Valid {
			a.ListID = &listID.Int64
		}
		if threshold.Valid {
			v := int(threshold.Int32)
			a.Threshold = &v
		}
		if userID.Valid {
			a.UserID = &userID.Int64
		}
		if approved.Valid {
			a.Approved = &approved.Bool
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

const listTransactionGroupIDs = `
SELECT DISTINCT group_id
FROM transaction_group_item
WHERE transaction_id = $1`

func (q *Queries) ListTransactionGroupIDs(ctx context.Context, transactionID int64) ([]int64, error) {
	rows, err := q.db.QueryContext(ctx, listTransactionGroupIDs, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// RequiredKeyOwner is one key the transaction needs, with its owner and
// whether that key already signed. UserID is nil for keys nobody registered.
type RequiredKeyOwner struct {
	UserKeyID int64
	UserID    *int64
	Signed    bool
}

const listRequiredKeyOwners = `
SELECT rk.user_key_id, uk.user_id,
	EXISTS (
		SELECT 1 FROM transaction_signer s
		WHERE s.transaction_id = rk.transaction_id AND s.user_key_id = rk.user_key_id
	) AS signed
FROM transaction_required_key rk
LEFT JOIN user_key uk ON uk.id = rk.user_key_id AND uk.deleted_at IS NULL
WHERE rk.transaction_id = $1`

func (q *Queries) ListRequiredKeyOwners(ctx context.Context, transactionID int64) ([]RequiredKeyOwner, error) {
	rows, err := q.db.QueryContext(ctx, listRequiredKeyOwners, transactionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RequiredKeyOwner
	for rows.Next() {
		var (
			k      RequiredKeyOwner
			userID sql.NullInt64
		)
		if err := rows.Scan(&k.UserKeyID, &userID, &k.Signed); err != nil {
			return nil, err
		}
		if userID.Valid {
			k.UserID = &userID.Int64
		}
		out = append(out, k)
	}
	return out, rows.Err()
}

const listActiveTransactionsForUser = `
SELECT DISTINCT t.id, t.name, t.status, t.creator_key_id, t.valid_start, t.created_at, t.transaction_id
FROM transaction t
JOIN transaction_required_key rk ON rk.transaction_id = t.id
JOIN user_key uk ON uk.id = rk.user_key_id
WHERE uk.user_id = $1
	AND t.deleted_at IS NULL
	AND t.status NOT IN ('EXPIRED', 'CANCELED', 'EXECUTED', 'FAILED', 'ARCHIVED')`

// ListActiveTransactionsForUser returns non-terminal transactions requiring one of the user's keys.
func (q *Queries) ListActiveTransactionsForUser(ctx context.Context, userID int64) ([]models.Transaction, error) {
	rows, err := q.db.QueryContext(ctx, listActiveTransactionsForUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Name, &t.Status, &t.CreatorKeyID, &t.ValidStart, &t.CreatedAt, &t.TransactionID); err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}
