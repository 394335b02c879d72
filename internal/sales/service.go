package sales

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, locationID, saleID int64) (Sale, error)
	List(ctx context.Context, locationID int64, filter ListFilter) ([]Sale, int64, error)
}

// Service orchestrates the sale lifecycle.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// Create captures a draft sale. Prices and names are copied from the catalog
// so later catalog edits never rewrite a committed sale. Stock is not touched
// until fulfillment.
func (s *Service) Create(ctx context.Context, actor shared.Principal, req CreateSaleRequest) (Sale, error) {
	if len(req.Items) == 0 {
		return Sale{}, ErrNoItems
	}
	var sale Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		ids := make([]int64, 0, len(req.Items))
		for _, it := range req.Items {
			ids = append(ids, it.ProductID)
		}
		products, err := tx.GetProducts(ctx, actor.LocationID, ids)
		if err != nil {
			return err
		}
		items := make([]Item, 0, len(req.Items))
		maxLinePercent := 100.0
		for _, itemReq := range req.Items {
			product, ok := products[itemReq.ProductID]
			if !ok || !product.IsActive {
				return catalog.ErrProductNotFound.With("product_id", itemReq.ProductID)
			}
			item, err := priceLine(product, itemReq)
			if err != nil {
				return err
			}
			if product.MaxDiscountPercent < maxLinePercent {
				maxLinePercent = product.MaxDiscountPercent
			}
			items = append(items, item)
		}
		subTotal, discount, total, err := priceSale(items, maxLinePercent, req.DiscountPercent, req.DiscountAmount)
		if err != nil {
			return err
		}
		now := time.Now().UTC()
		sale = Sale{
			LocationID:      actor.LocationID,
			SellerID:        actor.ID,
			CustomerID:      req.CustomerID,
			CustomerName:    req.CustomerName,
			CustomerPhone:   req.CustomerPhone,
			Status:          StatusDraft,
			SubTotal:        subTotal,
			DiscountPercent: clampPercent(req.DiscountPercent),
			DiscountAmount:  discount,
			Total:           total,
			Note:            req.Note,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		id, err := tx.InsertSale(ctx, sale)
		if err != nil {
			return err
		}
		sale.ID = id
		if err := tx.InsertItems(ctx, id, items); err != nil {
			return err
		}
		for i := range items {
			items[i].SaleID = id
		}
		sale.Items = items
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "SALE_CREATE",
			Entity:      "sale",
			EntityID:    id,
			Description: fmt.Sprintf("Sale #%d created, %d item(s), total=%s", id, len(items), shared.FormatAmount(total)),
		})
	})
	if err != nil {
		return Sale{}, err
	}
	return sale, nil
}

// Fulfill debits stock for every line and moves the sale to FULFILLED. Any
// line short on stock rolls the whole transaction back, leaving the sale in
// DRAFT with no balance changed. An optional note patches the sale note.
func (s *Service) Fulfill(ctx context.Context, actor shared.Principal, saleID int64, req FulfillRequest) (Sale, error) {
	return s.applyEvent(ctx, actor, saleID, EventFulfill, statusPatch{note: req.Note})
}

// MarkPaid declares the sale paid by the given method and hands it to the
// cashier for payment recording. Re-marking an awaiting sale with the same
// method is a no-op; a different method just patches the method.
func (s *Service) MarkPaid(ctx context.Context, actor shared.Principal, saleID int64, req MarkRequest) (Sale, error) {
	if !validMethod(req.PaymentMethod) {
		return Sale{}, ErrBadPaymentMethod.With("method", req.PaymentMethod)
	}
	return s.applyEvent(ctx, actor, saleID, EventMarkPaid, statusPatch{method: &req.PaymentMethod})
}

// MarkPending parks a fulfilled sale as unpaid, the entry point for store
// credit. Any previously declared payment method is cleared.
func (s *Service) MarkPending(ctx context.Context, actor shared.Principal, saleID int64) (Sale, error) {
	return s.applyEvent(ctx, actor, saleID, EventMarkPending, statusPatch{clearMethod: true})
}

// Cancel voids the sale with a recorded reason. Stock debited at fulfillment
// is restored in the same transaction.
func (s *Service) Cancel(ctx context.Context, actor shared.Principal, saleID int64, req CancelRequest) (Sale, error) {
	return s.applyEvent(ctx, actor, saleID, EventCancel, statusPatch{cancelReason: &req.Reason})
}

func validMethod(method string) bool {
	switch method {
	case MethodCash, MethodMomo, MethodBank:
		return true
	}
	return false
}

func isMarkEvent(event Event) bool {
	return event == EventMarkPaid || event == EventMarkPending
}

// remarkIsNoOp reports whether re-applying a mark event would change nothing:
// the sale already sits in the target status with the requested method (or,
// for a pending re-mark, with no method left to clear).
func remarkIsNoOp(sale Sale, next Status, patch statusPatch) bool {
	if sale.Status != next {
		return false
	}
	if patch.clearMethod {
		return sale.PaymentMethod == nil
	}
	return patch.method != nil && sale.PaymentMethod != nil && *sale.PaymentMethod == *patch.method
}

// fulfillStockError retags a shortage from the balance engine so callers see
// the sale-level kind with the product context preserved.
func fulfillStockError(err error) error {
	var tagged *shared.Error
	if errors.As(err, &tagged) && tagged.Kind == shared.KindInsufficientStock {
		out := ErrInsufficientInventoryStock
		for k, v := range tagged.Fields {
			out = out.With(k, v)
		}
		return out
	}
	return err
}

func applyPatch(sale Sale, next Status, patch statusPatch) Sale {
	sale.Status = next
	if patch.clearMethod {
		sale.PaymentMethod = nil
	} else if patch.method != nil {
		sale.PaymentMethod = patch.method
	}
	if patch.note != nil {
		sale.Note = patch.note
	}
	if patch.fulfilledAt != nil {
		sale.FulfilledAt = patch.fulfilledAt
	}
	if patch.canceledBy != nil {
		sale.CanceledBy = patch.canceledBy
	}
	if patch.canceledAt != nil {
		sale.CanceledAt = patch.canceledAt
	}
	if patch.cancelReason != nil {
		sale.CancelReason = patch.cancelReason
	}
	return sale
}

// applyEvent runs one lifecycle transition with its side effects inside a
// single transaction.
func (s *Service) applyEvent(ctx context.Context, actor shared.Principal, saleID int64, event Event, patch statusPatch) (Sale, error) {
	var result Sale
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		sale, err := tx.GetSaleForUpdate(ctx, actor.LocationID, saleID)
		if err != nil {
			return err
		}
		if isMarkEvent(event) {
			// Marking is personal: only the seller who captured the sale may
			// declare how it will be paid, whatever the caller's role.
			if sale.SellerID != actor.ID {
				return shared.NewError(shared.KindForbidden, "only the sale's seller may mark it")
			}
		} else if actor.Role == shared.RoleSeller && sale.SellerID != actor.ID {
			return shared.NewError(shared.KindForbidden, "sale belongs to another seller")
		}
		next, err := Transition(sale.Status, event)
		if err != nil {
			return err
		}
		items, err := tx.GetItems(ctx, saleID)
		if err != nil {
			return err
		}
		if len(items) == 0 {
			return ErrNoItems.With("sale_id", saleID)
		}
		if isMarkEvent(event) && remarkIsNoOp(sale, next, patch) {
			result = sale
			result.Items = items
			return nil
		}

		switch event {
		case EventFulfill:
			for _, it := range items {
				if _, err := inventory.ApplyDelta(ctx, tx, actor.LocationID, it.ProductID, -it.Qty); err != nil {
					return fulfillStockError(err)
				}
			}
			now := time.Now().UTC()
			patch.fulfilledAt = &now
		case EventCancel:
			if stockHeld(sale.Status) {
				for _, it := range items {
					if _, err := inventory.ApplyDelta(ctx, tx, actor.LocationID, it.ProductID, it.Qty); err != nil {
						return err
					}
				}
			}
			now := time.Now().UTC()
			patch.canceledBy = &actor.ID
			patch.canceledAt = &now
		}

		if err := tx.UpdateSaleStatus(ctx, saleID, next, patch); err != nil {
			return err
		}
		result = applyPatch(sale, next, patch)
		result.Items = items

		description := fmt.Sprintf("Sale #%d: %s -> %s", saleID, sale.Status, next)
		if sale.Status == next && patch.method != nil {
			description = fmt.Sprintf("Sale #%d: payment method -> %s", saleID, *patch.method)
		}
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "SALE_" + string(event),
			Entity:      "sale",
			EntityID:    saleID,
			Description: description,
		})
	})
	if err != nil {
		return Sale{}, err
	}
	return result, nil
}

// Get loads one sale. Sellers only see their own.
func (s *Service) Get(ctx context.Context, actor shared.Principal, saleID int64) (Sale, error) {
	sale, err := s.repo.Get(ctx, actor.LocationID, saleID)
	if err != nil {
		return Sale{}, err
	}
	if actor.Role == shared.RoleSeller && sale.SellerID != actor.ID {
		return Sale{}, ErrNotFound.With("sale_id", saleID)
	}
	return sale, nil
}

// List returns sales for the caller's location. Sellers are scoped to their
// own sales regardless of the requested filter.
func (s *Service) List(ctx context.Context, actor shared.Principal, filter ListFilter) ([]Sale, int64, error) {
	if actor.Role == shared.RoleSeller {
		filter.SellerID = actor.ID
	}
	return s.repo.List(ctx, actor.LocationID, filter)
}
