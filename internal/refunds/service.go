package refunds

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/sales"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, locationID, refundID int64) (Refund, error)
	List(ctx context.Context, locationID int64, filter ListFilter) ([]Refund, int64, error)
}

// Service runs the refund workflow.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create refunds a completed sale in full: every line's quantity goes back on
// the balance, a REFUND ledger entry moves the sale total out, and the sale
// ends REFUNDED. One refund per sale; a cash refund needs the cashier's open
// drawer session.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateRequest) (Refund, error) {
	if actor.Role == shared.RoleSeller {
		return Refund{}, shared.NewError(shared.KindForbidden, "sellers cannot issue refunds")
	}
	var refund Refund
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, actor.LocationID, req.SaleID)
		if err != nil {
			return err
		}
		if sale.Status == sales.StatusRefunded {
			return ErrAlreadyRefunded.With("sale_id", req.SaleID)
		}
		if _, err := sales.Transition(sale.Status, sales.EventRefund); err != nil {
			return err
		}
		if _, err := tx.FindRefundBySale(ctx, req.SaleID); err == nil {
			return ErrAlreadyRefunded.With("sale_id", req.SaleID)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		items, err := tx.GetSaleItems(ctx, req.SaleID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return sales.ErrNoItems.With("sale_id", req.SaleID)
		}
		for _, it := range items {
			if _, err := inventory.ApplyDelta(ctx, tx, actor.LocationID, it.ProductID, it.Qty); err != nil {
				return err
			}
		}

		var sessionID *int64
		if req.Method == sales.MethodCash {
			session, err := tx.FindOpenSession(ctx, actor.LocationID, actor.ID)
			if err != nil {
				return err
			}
			sessionID = &session.ID
		}
		refund = Refund{
			LocationID:    actor.LocationID,
			SaleID:        req.SaleID,
			CashierID:     actor.ID,
			CashSessionID: sessionID,
			Amount:        sale.Total,
			Method:        req.Method,
			Reason:        req.Reason,
			CreatedAt:     time.Now().UTC(),
		}
		id, err := tx.InsertRefund(ctx, refund)
		if err != nil {
			return err
		}
		refund.ID = id

		if _, err := tx.InsertLedgerEntry(ctx, ledger.Entry{
			LocationID:    actor.LocationID,
			CashierID:     actor.ID,
			CashSessionID: sessionID,
			Type:          ledger.TypeRefund,
			Direction:     ledger.DirectionOut,
			Amount:        sale.Total,
			Method:        req.Method,
			SaleID:        &req.SaleID,
		}); err != nil {
			return err
		}
		if err := tx.MarkSaleRefunded(ctx, req.SaleID); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "REFUND_CREATE",
			Entity:      "refund",
			EntityID:    id,
			Description: fmt.Sprintf("Refund #%d for sale #%d: %s %s", id, req.SaleID, shared.FormatAmount(sale.Total), req.Method),
		})
	})
	if err != nil {
		return Refund{}, err
	}
	return refund, nil
}

// Get loads one refund.
func (s *Service) Get(ctx context.Context, actor shared.Principal, refundID int64) (Refund, error) {
	return s.repo.Get(ctx, actor.LocationID, refundID)
}

// List returns refunds for the caller's location.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) ([]Refund, int64, error) {
	return s.repo.List(ctx, actor.LocationID, filter)
}
