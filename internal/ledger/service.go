package ledger

import (
	"context"
	"fmt"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	List(ctx context.Context, locationID int64, filter ListFilter) ([]Entry, int64, error)
}

// Service coordinates drawer-level cash movements that are not tied to a
// sale: petty cash and versements. Sale payments and refunds append their
// entries from their own workflows.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// RecordPettyCash posts a small cash movement bound to the caller's open
// session.
func (s *Service) RecordPettyCash(ctx context.Context, actor shared.Principal, req PettyCashRequest) (Entry, error) {
	entryType := TypePettyCashIn
	if req.Direction == DirectionOut {
		entryType = TypePettyCashOut
	}
	var created Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sessionID, err := tx.FindOpenSession(ctx, actor.LocationID, actor.ID)
		if err != nil {
			return err
		}
		created = Entry{
			LocationID:    actor.LocationID,
			CashierID:     actor.ID,
			CashSessionID: &sessionID,
			Type:          entryType,
			Direction:     req.Direction,
			Amount:        req.Amount,
			Method:        MethodCash,
			Note:          req.Note,
		}
		id, err := tx.InsertLedgerEntry(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "PETTY_CASH_" + string(req.Direction),
			Entity:      "cash_ledger",
			EntityID:    id,
			Description: fmt.Sprintf("Petty cash %s of %s", req.Direction, shared.FormatAmount(req.Amount)),
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return created, nil
}

// RecordVersement posts an outbound cash drop from the drawer.
func (s *Service) RecordVersement(ctx context.Context, actor shared.Principal, req VersementRequest) (Entry, error) {
	var created Entry
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sessionID, err := tx.FindOpenSession(ctx, actor.LocationID, actor.ID)
		if err != nil {
			return err
		}
		created = Entry{
			LocationID:    actor.LocationID,
			CashierID:     actor.ID,
			CashSessionID: &sessionID,
			Type:          TypeVersement,
			Direction:     DirectionOut,
			Amount:        req.Amount,
			Method:        MethodCash,
			Reference:     req.Reference,
			Note:          req.Note,
		}
		id, err := tx.InsertLedgerEntry(ctx, created)
		if err != nil {
			return err
		}
		created.ID = id
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "VERSEMENT",
			Entity:      "cash_ledger",
			EntityID:    id,
			Description: fmt.Sprintf("Versement of %s", shared.FormatAmount(req.Amount)),
		})
	})
	if err != nil {
		return Entry{}, err
	}
	return created, nil
}

// List returns the location's ledger entries, newest first.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) ([]Entry, int64, error) {
	return s.repo.List(ctx, actor.LocationID, filter)
}
