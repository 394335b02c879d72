package catalog

import (
	"context"
	"fmt"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error
	Get(ctx context.Context, locationID, productID int64) (Product, error)
	List(ctx context.Context, locationID int64) ([]Product, error)
}

// Service coordinates catalog operations.
type Service struct {
	repo RepositoryPort
}

// NewService builds Service.
func NewService(repo RepositoryPort) *Service {
	return &Service{repo: repo}
}

// CreateProduct inserts a product and its zero opening balance atomically.
func (s *Service) CreateProduct(ctx context.Context, actor shared.Principal, req CreateProductRequest) (Product, error) {
	unit := req.Unit
	if unit == "" {
		unit = "unit"
	}
	product := Product{
		LocationID:         actor.LocationID,
		Name:               req.Name,
		SKU:                req.SKU,
		Unit:               unit,
		SellingPrice:       req.SellingPrice,
		CostPrice:          req.CostPrice,
		MaxDiscountPercent: clampPercent(req.MaxDiscountPercent),
		IsActive:           true,
		Notes:              req.Notes,
	}
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		id, err := tx.InsertProduct(ctx, product)
		if err != nil {
			return err
		}
		product.ID = id
		if err := tx.EnsureBalance(ctx, actor.LocationID, id); err != nil {
			return err
		}
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "PRODUCT_CREATE",
			Entity:      "product",
			EntityID:    id,
			Description: fmt.Sprintf("Created product: %s", product.Name),
		})
	})
	if err != nil {
		return Product{}, err
	}
	return product, nil
}

// UpdatePricing changes purchase/selling price and the discount ceiling.
func (s *Service) UpdatePricing(ctx context.Context, actor shared.Principal, productID int64, req UpdatePricingRequest) (Product, error) {
	var updated Product
	err := s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		product, err := tx.GetProductForUpdate(ctx, actor.LocationID, productID)
		if err != nil {
			return err
		}
		maxDisc := clampPercent(req.MaxDiscountPercent)
		if err := tx.UpdatePricing(ctx, actor.LocationID, productID, req.PurchasePrice, req.SellingPrice, maxDisc); err != nil {
			return err
		}
		updated = product
		updated.CostPrice = req.PurchasePrice
		updated.SellingPrice = req.SellingPrice
		updated.MaxDiscountPercent = maxDisc
		return tx.InsertAuditEntry(ctx, audit.Entry{
			LocationID:  actor.LocationID,
			ActorID:     actor.ID,
			Action:      "PRODUCT_PRICING_UPDATE",
			Entity:      "product",
			EntityID:    productID,
			Description: fmt.Sprintf("Updated pricing for product #%d (purchase=%s, selling=%s, maxDiscount=%.0f%%)", productID, shared.FormatAmount(req.PurchasePrice), shared.FormatAmount(req.SellingPrice), maxDisc),
		})
	})
	if err != nil {
		return Product{}, err
	}
	return updated, nil
}

// Get returns a product view shaped for the caller's role.
func (s *Service) Get(ctx context.Context, actor shared.Principal, productID int64) (View, error) {
	product, err := s.repo.Get(ctx, actor.LocationID, productID)
	if err != nil {
		return View{}, err
	}
	return viewFor(actor, product), nil
}

// List returns the location's products; purchase price is hidden from roles
// that may not see it.
func (s *Service) List(ctx context.Context, actor shared.Principal) ([]View, error) {
	products, err := s.repo.List(ctx, actor.LocationID)
	if err != nil {
		return nil, err
	}
	views := make([]View, 0, len(products))
	for _, p := range products {
		views = append(views, viewFor(actor, p))
	}
	return views, nil
}

func viewFor(actor shared.Principal, p Product) View {
	v := View{Product: p}
	if actor.CanSeeCostPrice() {
		cost := p.CostPrice
		v.PurchasePrice = &cost
	}
	v.CostPrice = 0
	return v
}

func clampPercent(pct float64) float64 {
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}
