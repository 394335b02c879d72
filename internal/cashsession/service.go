package cashsession

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, locationID, sessionID int64) (Session, error)
	FindOpen(ctx context.Context, locationID, cashierID int64) (Session, error)
}

// Service coordinates drawer session lifecycle.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Open starts a session for the cashier. At most one session per cashier per
// location may be open; the opening float is posted as an OPENING_BALANCE
// ledger entry so reconciliation can derive expected cash from the ledger
// alone.
func (s *Service) Open(ctx context.Context, actor shared.Principal, req OpenRequest) (Session, error) {
	now := time.Now().UTC()
	session := Session{
		LocationID:   actor.LocationID,
		CashierID:    actor.ID,
		Status:       StatusOpen,
		OpeningFloat: req.OpeningFloat,
		Note:         req.Note,
		OpenedAt:     now,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		_, err := tx.FindOpenByCashier(ctx, actor.LocationID, actor.ID)
		if err == nil {
			return ErrSessionAlreadyOpen
		}
		if !errors.Is(err, ledger.ErrNoOpenSession) {
			return err
		}
		id, err := tx.InsertSession(ctx, session)
		if err != nil {
			return err
		}
		session.ID = id
		if req.OpeningFloat > 0 {
			if _, err := tx.InsertLedgerEntry(ctx, ledger.Entry{
				LocationID:    actor.LocationID,
				CashierID:     actor.ID,
				CashSessionID: &id,
				Type:          ledger.TypeOpeningBalance,
				Direction:     ledger.DirectionIn,
				Amount:        req.OpeningFloat,
				Method:        ledger.MethodCash,
			}); err != nil {
				return err
			}
		}
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "CASH_SESSION_OPEN",
			Entity:      "cash_session",
			EntityID:    id,
			Description: fmt.Sprintf("Cash session #%d opened, float=%s", id, shared.FormatAmount(req.OpeningFloat)),
		})
	})
	if err != nil {
		return Session{}, err
	}
	return session, nil
}

// Reconcile closes the session. Expected cash is derived from the session's
// CASH ledger entries (the opening float is among them); the difference to
// the physical count is stored as variance.
func (s *Service) Reconcile(ctx context.Context, actor shared.Principal, sessionID int64, req ReconcileRequest) (Session, error) {
	var closed Session
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		session, err := tx.GetSessionForUpdate(ctx, actor.LocationID, sessionID)
		if err != nil {
			return err
		}
		if session.CashierID != actor.ID {
			return shared.NewError(shared.KindForbidden, "session belongs to another cashier")
		}
		if session.Status != StatusOpen {
			return ErrNotOpen.With("status", string(session.Status))
		}
		totals, err := tx.SessionCashTotals(ctx, sessionID)
		if err != nil {
			return err
		}
		expected := totals.In - totals.Out
		variance := req.CountedCash - expected
		now := time.Now().UTC()
		if err := tx.CloseSession(ctx, sessionID, expected, req.CountedCash, variance, req.Note, now); err != nil {
			return err
		}
		closed = session
		closed.Status = StatusClosed
		closed.ExpectedCash = &expected
		closed.CountedCash = &req.CountedCash
		closed.Variance = &variance
		closed.ClosedAt = &now
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "CASH_SESSION_RECONCILE",
			Entity:      "cash_session",
			EntityID:    sessionID,
			Description: fmt.Sprintf("Cash session #%d closed: expected=%s counted=%s variance=%s", sessionID, shared.FormatAmount(expected), shared.FormatAmount(req.CountedCash), shared.FormatAmount(variance)),
			Meta:        map[string]any{"expected": expected, "counted": req.CountedCash, "variance": variance},
		})
	})
	if err != nil {
		return Session{}, err
	}
	return closed, nil
}

// Current returns the caller's open session.
func (s *Service) Current(ctx context.Context, actor shared.Principal) (Session, error) {
	return s.repo.FindOpen(ctx, actor.LocationID, actor.ID)
}

// Get loads a session by id within the caller's location.
func (s *Service) Get(ctx context.Context, actor shared.Principal, sessionID int64) (Session, error) {
	return s.repo.Get(ctx, actor.LocationID, sessionID)
}
