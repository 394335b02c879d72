package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/sales"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, locationID, paymentID int64) (Payment, error)
	GetBySale(ctx context.Context, locationID, saleID int64) (Payment, error)
}

// Service posts payments.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Record posts the single payment for a sale awaiting payment record and
// completes the sale. The amount must equal the sale total. Whatever the
// method, the named drawer session must be open and owned by the cashier;
// the payment and its ledger entry are bound to it. The unique index on
// payments.sale_id catches the race of two cashiers posting at once; both
// paths surface as ErrDuplicatePayment.
func (s *Service) Record(ctx context.Context, actor shared.Principal, req RecordRequest) (Payment, error) {
	if actor.Role == shared.RoleSeller {
		return Payment{}, shared.NewError(shared.KindForbidden, "sellers cannot record payments")
	}
	var payment Payment
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, actor.LocationID, req.SaleID)
		if err != nil {
			return err
		}
		if _, err := sales.Transition(sale.Status, sales.EventRecordPayment); err != nil {
			return err
		}
		if req.Amount != sale.Total {
			return ErrAmountMismatch.
				With("sale_id", sale.ID).
				With("amount", req.Amount).
				With("total", sale.Total)
		}
		if _, err := tx.FindPaymentBySale(ctx, req.SaleID); err == nil {
			return ErrDuplicatePayment.With("sale_id", req.SaleID)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}

		open, err := tx.SessionIsOpen(ctx, actor.LocationID, actor.ID, req.CashSessionID)
		if err != nil {
			return err
		}
		if !open {
			return ledger.ErrNoOpenSession.With("cash_session_id", req.CashSessionID)
		}
		sessionID := &req.CashSessionID

		payment = Payment{
			SaleID:        req.SaleID,
			LocationID:    actor.LocationID,
			CashierID:     actor.ID,
			CashSessionID: sessionID,
			Amount:        req.Amount,
			Method:        req.Method,
			Reference:     req.Reference,
			CreatedAt:     time.Now().UTC(),
		}
		id, err := tx.InsertPayment(ctx, payment)
		if err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == "23505" {
				return ErrDuplicatePayment.With("sale_id", req.SaleID)
			}
			return err
		}
		payment.ID = id

		if _, err := tx.InsertLedgerEntry(ctx, ledger.Entry{
			LocationID:    actor.LocationID,
			CashierID:     actor.ID,
			CashSessionID: sessionID,
			Type:          ledger.TypeSalePayment,
			Direction:     ledger.DirectionIn,
			Amount:        req.Amount,
			Method:        req.Method,
			Reference:     req.Reference,
			SaleID:        &req.SaleID,
			PaymentID:     &id,
		}); err != nil {
			return err
		}
		if err := tx.CompleteSale(ctx, req.SaleID); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "PAYMENT_RECORD",
			Entity:      "payment",
			EntityID:    id,
			Description: fmt.Sprintf("Payment #%d posted for sale #%d: %s %s", id, req.SaleID, shared.FormatAmount(req.Amount), req.Method),
		})
	})
	if err != nil {
		return Payment{}, err
	}
	return payment, nil
}

// Get loads a payment.
func (s *Service) Get(ctx context.Context, actor shared.Principal, paymentID int64) (Payment, error) {
	return s.repo.Get(ctx, actor.LocationID, paymentID)
}

// GetBySale loads the payment posted for a sale.
func (s *Service) GetBySale(ctx context.Context, actor shared.Principal, saleID int64) (Payment, error) {
	return s.repo.GetBySale(ctx, actor.LocationID, saleID)
}
