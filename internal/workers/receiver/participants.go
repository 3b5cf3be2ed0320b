package receiver

import (
	"context"

	"notification-workers/internal/common/errors"
	"notification-workers/internal/models"
)

// Participants are the users involved in a transaction, recomputed on demand.
type Participants struct {
	CreatorID   int64
	SignerIDs   []int64
	ObserverIDs []int64

	RequiredSignerIDs []int64
	PendingSignerIDs  []int64

	ApproverIDs              []int64
	ApproversGaveChoiceIDs   []int64
	ApproversShouldChooseIDs []int64

	// RequiredIDs are required signers plus approvers.
	RequiredIDs []int64
	// ParticipantIDs drive the non-approve indicators. Creator and observers
	// are not folded in.
	ParticipantIDs []int64
}

// Participants computes who takes part in tx. Nobody is asked to choose once
// the transaction is terminal, even if their approver row is undecided.
func (s *Service) Participants(ctx context.Context, tx *models.Transaction) (*Participants, error) {
	creatorID, err := s.creator(ctx, tx.ID)
	if err != nil {
		return nil, err
	}
	signers, err := s.store.ListSigners(ctx, tx.ID)
	if err != nil {
		return nil, errors.NewPersistenceError("list signers", err)
	}
	observers, err := s.store.ListObservers(ctx, tx.ID)
	if err != nil {
		return nil, errors.NewPersistenceError("list observers", err)
	}
	approvers, err := s.store.ListApprovers(ctx, tx.ID)
	if err != nil {
		return nil, errors.NewPersistenceError("list approvers", err)
	}
	required, err := s.signers.RequiredSigners(ctx, tx)
	if err != nil {
		return nil, err
	}

	p := &Participants{
		CreatorID:         creatorID,
		RequiredSignerIDs: required.All,
		PendingSignerIDs:  required.Pending,
	}
	for _, sg := range signers {
		p.SignerIDs = append(p.SignerIDs, sg.UserID)
	}
	p.SignerIDs = unique(p.SignerIDs)
	for _, o := range observers {
		p.ObserverIDs = append(p.ObserverIDs, o.UserID)
	}
	p.ObserverIDs = unique(p.ObserverIDs)

	// The approver tree comes back flattened; every node naming a user counts.
	for _, a := range approvers {
		if a.UserID == nil {
			continue
		}
		p.ApproverIDs = append(p.ApproverIDs, *a.UserID)
		if a.HasDecided() {
			p.ApproversGaveChoiceIDs = append(p.ApproversGaveChoiceIDs, *a.UserID)
		}
	}
	p.ApproverIDs = unique(p.ApproverIDs)
	p.ApproversGaveChoiceIDs = unique(p.ApproversGaveChoiceIDs)
	if !tx.Status.IsTerminal() {
		p.ApproversShouldChooseIDs = without(p.ApproverIDs, p.ApproversGaveChoiceIDs...)
	}

	p.RequiredIDs = union(p.RequiredSignerIDs, p.ApproverIDs)
	p.ParticipantIDs = union(p.RequiredIDs, p.ApproverIDs)
	return p, nil
}
