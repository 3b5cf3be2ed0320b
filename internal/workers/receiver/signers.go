package receiver

import (
	"context"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/models"
	"notification-workers/internal/store"
)

// RequiredSigners are the users holding keys a transaction needs. Pending
// still have at least one unsigned required key.
type RequiredSigners struct {
	All     []int64
	Pending []int64
}

// SignerResolver computes who must sign a transaction.
type SignerResolver interface {
	RequiredSigners(ctx context.Context, tx *models.Transaction) (*RequiredSigners, error)
}

// StoreSignerResolver reads the required key set the execution service
// maintains, joined with collected signatures.
type StoreSignerResolver struct {
	q store.Querier
}

func NewStoreSignerResolver(q store.Querier) *StoreSignerResolver {
	return &StoreSignerResolver{q: q}
}

func (r *StoreSignerResolver) RequiredSigners(ctx context.Context, tx *models.Transaction) (*RequiredSigners, error) {
	keys, err := r.q.ListRequiredKeyOwners(ctx, tx.ID)
	if err != nil {
		return nil, errors.NewExternalServiceError("signer-resolution", err)
	}

	var all, pending []int64
	for _, k := range keys {
		if k.UserID == nil {
			continue
		}
		all = append(all, *k.UserID)
		if !k.Signed {
			pending = append(pending, *k.UserID)
		}
	}
	return &RequiredSigners{All: unique(all), Pending: unique(pending)}, nil
}
