package catalog

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/shared"
)

type memoryState struct {
	products map[int64]Product
	balances map[int64]bool
	audits   []audit.Entry
	nextID   int64
}

type memoryRepo struct {
	state *memoryState
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{state: &memoryState{
		products: map[int64]Product{},
		balances: map[int64]bool{},
		nextID:   1,
	}}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{state: r.state})
}

func (r *memoryRepo) Get(_ context.Context, locationID, productID int64) (Product, error) {
	p, ok := r.state.products[productID]
	if !ok || p.LocationID != locationID {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (r *memoryRepo) List(_ context.Context, locationID int64) ([]Product, error) {
	var out []Product
	for _, p := range r.state.products {
		if p.LocationID == locationID {
			out = append(out, p)
		}
	}
	return out, nil
}

type memoryTx struct {
	state *memoryState
}

func (t *memoryTx) InsertProduct(_ context.Context, p Product) (int64, error) {
	id := t.state.nextID
	t.state.nextID++
	p.ID = id
	t.state.products[id] = p
	return id, nil
}

func (t *memoryTx) GetProductForUpdate(_ context.Context, locationID, productID int64) (Product, error) {
	p, ok := t.state.products[productID]
	if !ok || p.LocationID != locationID {
		return Product{}, ErrProductNotFound
	}
	return p, nil
}

func (t *memoryTx) UpdatePricing(_ context.Context, locationID, productID int64, costPrice, sellingPrice int64, maxDiscountPercent float64) error {
	p, ok := t.state.products[productID]
	if !ok || p.LocationID != locationID {
		return ErrProductNotFound
	}
	p.CostPrice = costPrice
	p.SellingPrice = sellingPrice
	p.MaxDiscountPercent = maxDiscountPercent
	t.state.products[productID] = p
	return nil
}

func (t *memoryTx) EnsureBalance(_ context.Context, _, productID int64) error {
	t.state.balances[productID] = true
	return nil
}

func (t *memoryTx) InsertAuditEntry(_ context.Context, entry audit.Entry) error {
	t.state.audits = append(t.state.audits, entry)
	return nil
}

var manager = shared.Principal{ID: 7, Role: shared.RoleManager, LocationID: 1}

func TestCreateProductOpensZeroBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.CreateProduct(context.Background(), manager, CreateProductRequest{
		Name:               "Bread Loaf",
		SellingPrice:       1200,
		CostPrice:          700,
		MaxDiscountPercent: 150, // clamped
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.ID)
	require.Equal(t, "unit", created.Unit)
	require.Equal(t, float64(100), created.MaxDiscountPercent)
	require.True(t, created.IsActive)
	require.True(t, repo.state.balances[created.ID])
	require.Len(t, repo.state.audits, 1)
	require.Equal(t, "PRODUCT_CREATE", repo.state.audits[0].Action)
}

func TestUpdatePricingDoesNotTouchOtherFields(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.CreateProduct(context.Background(), manager, CreateProductRequest{
		Name: "Rice 5kg", SellingPrice: 9500, CostPrice: 7800, MaxDiscountPercent: 5,
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePricing(context.Background(), manager, created.ID, UpdatePricingRequest{
		PurchasePrice: 8000, SellingPrice: 9900, MaxDiscountPercent: 10,
	})
	require.NoError(t, err)
	require.Equal(t, int64(8000), updated.CostPrice)
	require.Equal(t, int64(9900), updated.SellingPrice)
	require.Equal(t, float64(10), updated.MaxDiscountPercent)
	require.Equal(t, "Rice 5kg", updated.Name)

	_, err = svc.UpdatePricing(context.Background(), manager, 99, UpdatePricingRequest{SellingPrice: 100})
	require.Equal(t, shared.KindProductNotFound, shared.KindOf(err))
}

func TestViewHidesPurchasePriceFromSellers(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	created, err := svc.CreateProduct(context.Background(), manager, CreateProductRequest{
		Name: "Cooking Oil 1L", SellingPrice: 3200, CostPrice: 2500,
	})
	require.NoError(t, err)

	seller := shared.Principal{ID: 3, Role: shared.RoleSeller, LocationID: 1}
	view, err := svc.Get(context.Background(), seller, created.ID)
	require.NoError(t, err)
	require.Nil(t, view.PurchasePrice)
	require.Zero(t, view.CostPrice)

	view, err = svc.Get(context.Background(), manager, created.ID)
	require.NoError(t, err)
	require.NotNil(t, view.PurchasePrice)
	require.Equal(t, int64(2500), *view.PurchasePrice)

	otherLocation := shared.Principal{ID: 9, Role: shared.RoleManager, LocationID: 2}
	_, err = svc.Get(context.Background(), otherLocation, created.ID)
	require.Equal(t, shared.KindProductNotFound, shared.KindOf(err))
}
