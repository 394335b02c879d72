package credit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/sales"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, locationID, creditID int64) (Credit, error)
	List(ctx context.Context, locationID int64, filter ListFilter) ([]Credit, int64, error)
}

// Service runs the credit lifecycle.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create issues credit against a pending sale. The amount is the sale total
// at issuance; one live credit per sale.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateRequest) (Credit, error) {
	var credit Credit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, actor.LocationID, req.SaleID)
		if err != nil {
			return err
		}
		if sale.Status != sales.StatusPending {
			return sales.ErrBadTransition.
				With("from", string(sale.Status)).
				With("event", "CREDIT_CREATE")
		}
		if _, err := tx.FindCreditBySale(ctx, req.SaleID); err == nil {
			return ErrDuplicateCredit.With("sale_id", req.SaleID)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		credit = Credit{
			LocationID:    actor.LocationID,
			SaleID:        req.SaleID,
			CreatedBy:     actor.ID,
			CustomerName:  req.CustomerName,
			CustomerPhone: req.CustomerPhone,
			Amount:        sale.Total,
			Status:        StatusOpen,
			DueDate:       req.DueDate,
			Note:          req.Note,
			CreatedAt:     time.Now().UTC(),
		}
		id, err := tx.InsertCredit(ctx, credit)
		if err != nil {
			return err
		}
		credit.ID = id
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "CREDIT_CREATE",
			Entity:      "credit",
			EntityID:    id,
			Description: fmt.Sprintf("Credit #%d issued for sale #%d to %s, amount=%s", id, req.SaleID, req.CustomerName, shared.FormatAmount(sale.Total)),
		})
	})
	if err != nil {
		return Credit{}, err
	}
	return credit, nil
}

// Decide approves or rejects an open credit. Managers and above only.
func (s *Service) Decide(ctx context.Context, actor shared.Principal, creditID int64, req DecideRequest) (Credit, error) {
	switch actor.Role {
	case shared.RoleManager, shared.RoleAdmin, shared.RoleOwner:
	default:
		return Credit{}, shared.NewError(shared.KindForbidden, "only managers may decide credits")
	}
	var credit Credit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCreditForUpdate(ctx, actor.LocationID, creditID)
		if err != nil {
			return err
		}
		if c.Status != StatusOpen {
			return ErrNotOpen.With("status", string(c.Status))
		}
		status := StatusRejected
		action := "CREDIT_REJECT"
		if req.Approve {
			status = StatusApproved
			action = "CREDIT_APPROVE"
		}
		now := time.Now().UTC()
		if err := tx.DecideCredit(ctx, creditID, status, actor.ID, now, req.Note); err != nil {
			return err
		}
		credit = c
		credit.Status = status
		credit.ApprovedBy = &actor.ID
		credit.ApprovedAt = &now
		credit.DecisionNote = req.Note
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      action,
			Entity:      "credit",
			EntityID:    creditID,
			Description: fmt.Sprintf("Credit #%d %s", creditID, status),
		})
	})
	if err != nil {
		return Credit{}, err
	}
	return credit, nil
}

// Settle pays an approved credit in full and completes the underlying sale.
// No payment row is written; the ledger entry and the credit row together
// document the settlement, and the payments unique check still guards the
// sale.
func (s *Service) Settle(ctx context.Context, actor shared.Principal, creditID int64, req SettleRequest) (Credit, error) {
	if actor.Role == shared.RoleSeller {
		return Credit{}, shared.NewError(shared.KindForbidden, "sellers cannot settle credits")
	}
	var credit Credit
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		c, err := tx.GetCreditForUpdate(ctx, actor.LocationID, creditID)
		if err != nil {
			return err
		}
		if c.Status == StatusSettled {
			return ErrAlreadySettled.With("credit_id", creditID)
		}
		if c.Status != StatusApproved {
			return ErrNotApproved.With("status", string(c.Status))
		}
		sale, err := tx.GetSaleForUpdate(ctx, actor.LocationID, c.SaleID)
		if err != nil {
			return err
		}
		if _, err := sales.Transition(sale.Status, sales.EventSettleCredit); err != nil {
			return err
		}
		if paid, err := tx.SaleHasPayment(ctx, c.SaleID); err != nil {
			return err
		} else if paid {
			return shared.NewError(shared.KindDuplicatePayment, "sale already has a payment").With("sale_id", c.SaleID)
		}

		var sessionID *int64
		if req.Method == sales.MethodCash {
			session, err := tx.FindOpenSession(ctx, actor.LocationID, actor.ID)
			if err != nil {
				return err
			}
			sessionID = &session.ID
		}
		if _, err := tx.InsertLedgerEntry(ctx, ledger.Entry{
			LocationID:    actor.LocationID,
			CashierID:     actor.ID,
			CashSessionID: sessionID,
			Type:          ledger.TypeCreditSettlement,
			Direction:     ledger.DirectionIn,
			Amount:        c.Amount,
			Method:        req.Method,
			Reference:     req.Reference,
			SaleID:        &c.SaleID,
		}); err != nil {
			return err
		}
		now := time.Now().UTC()
		if err := tx.SettleCredit(ctx, creditID, actor.ID, now, req.Note); err != nil {
			return err
		}
		if err := tx.CompleteSale(ctx, c.SaleID); err != nil {
			return err
		}
		credit = c
		credit.Status = StatusSettled
		credit.SettledBy = &actor.ID
		credit.SettledAt = &now
		credit.SettlementNote = req.Note
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "CREDIT_SETTLE",
			Entity:      "credit",
			EntityID:    creditID,
			Description: fmt.Sprintf("Credit #%d settled: %s %s, sale #%d completed", creditID, shared.FormatAmount(c.Amount), req.Method, c.SaleID),
		})
	})
	if err != nil {
		return Credit{}, err
	}
	return credit, nil
}

// Get loads one credit.
func (s *Service) Get(ctx context.Context, actor shared.Principal, creditID int64) (Credit, error) {
	return s.repo.Get(ctx, actor.LocationID, creditID)
}

// List returns credits for the caller's location.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) ([]Credit, int64, error) {
	return s.repo.List(ctx, actor.LocationID, filter)
}
