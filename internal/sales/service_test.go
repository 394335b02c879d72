package sales

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/catalog"
	"github.com/opentill/opentill/internal/inventory"
	"github.com/opentill/opentill/internal/shared"
)

type memoryRepo struct {
	products map[int64]catalog.Product
	balances map[int64]*inventory.Balance
	sales    map[int64]*Sale
	items    map[int64][]Item
	audits   []audit.Entry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		products: make(map[int64]catalog.Product),
		balances: make(map[int64]*inventory.Balance),
		sales:    make(map[int64]*Sale),
		items:    make(map[int64][]Item),
	}
}

func (r *memoryRepo) seedProduct(p catalog.Product, stock int64) {
	r.products[p.ID] = p
	r.balances[p.ID] = &inventory.Balance{LocationID: p.LocationID, ProductID: p.ID, QtyOnHand: stock}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	// Snapshot so a failing callback rolls everything back, like the real
	// transaction does.
	snapshot := newMemoryRepo()
	for k, v := range r.products {
		snapshot.products[k] = v
	}
	for k, v := range r.balances {
		b := *v
		snapshot.balances[k] = &b
	}
	for k, v := range r.sales {
		s := *v
		snapshot.sales[k] = &s
	}
	for k, v := range r.items {
		snapshot.items[k] = append([]Item(nil), v...)
	}
	snapshot.audits = append([]audit.Entry(nil), r.audits...)
	snapshot.nextID = r.nextID

	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		*r = *snapshot
		return err
	}
	return nil
}

func (r *memoryRepo) Get(ctx context.Context, locationID, saleID int64) (Sale, error) {
	s, ok := r.sales[saleID]
	if !ok || s.LocationID != locationID {
		return Sale{}, ErrNotFound
	}
	sale := *s
	sale.Items = append([]Item(nil), r.items[saleID]...)
	return sale, nil
}

func (r *memoryRepo) List(ctx context.Context, locationID int64, filter ListFilter) ([]Sale, int64, error) {
	var out []Sale
	for _, s := range r.sales {
		if s.LocationID != locationID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.SellerID != 0 && s.SellerID != filter.SellerID {
			continue
		}
		out = append(out, *s)
	}
	return out, 0, nil
}

func (tx *memoryTx) GetProducts(ctx context.Context, locationID int64, ids []int64) (map[int64]catalog.Product, error) {
	out := make(map[int64]catalog.Product)
	for _, id := range ids {
		if p, ok := tx.repo.products[id]; ok && p.LocationID == locationID {
			out[id] = p
		}
	}
	return out, nil
}

func (tx *memoryTx) InsertSale(ctx context.Context, sale Sale) (int64, error) {
	tx.repo.nextID++
	sale.ID = tx.repo.nextID
	tx.repo.sales[sale.ID] = &sale
	return sale.ID, nil
}

func (tx *memoryTx) InsertItems(ctx context.Context, saleID int64, items []Item) error {
	for i := range items {
		tx.repo.nextID++
		items[i].ID = tx.repo.nextID
		items[i].SaleID = saleID
	}
	tx.repo.items[saleID] = append([]Item(nil), items...)
	return nil
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (Sale, error) {
	return tx.repo.Get(ctx, locationID, saleID)
}

func (tx *memoryTx) GetItems(ctx context.Context, saleID int64) ([]Item, error) {
	return append([]Item(nil), tx.repo.items[saleID]...), nil
}

func (tx *memoryTx) UpdateSaleStatus(ctx context.Context, saleID int64, status Status, patch statusPatch) error {
	s := tx.repo.sales[saleID]
	s.Status = status
	if patch.clearMethod {
		s.PaymentMethod = nil
	} else if patch.method != nil {
		s.PaymentMethod = patch.method
	}
	if patch.note != nil {
		s.Note = patch.note
	}
	if patch.fulfilledAt != nil {
		s.FulfilledAt = patch.fulfilledAt
	}
	if patch.canceledBy != nil {
		s.CanceledBy = patch.canceledBy
	}
	if patch.canceledAt != nil {
		s.CanceledAt = patch.canceledAt
	}
	if patch.cancelReason != nil {
		s.CancelReason = patch.cancelReason
	}
	return nil
}

func (tx *memoryTx) GetBalanceForUpdate(ctx context.Context, locationID, productID int64) (inventory.Balance, error) {
	if b, ok := tx.repo.balances[productID]; ok {
		return *b, nil
	}
	return inventory.Balance{}, inventory.ErrBalanceNotFound
}

func (tx *memoryTx) UpsertBalance(ctx context.Context, balance inventory.Balance) error {
	b := balance
	tx.repo.balances[balance.ProductID] = &b
	return nil
}

func (tx *memoryTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	tx.repo.audits = append(tx.repo.audits, entry)
	return nil
}

func seller() shared.Principal {
	return shared.Principal{ID: 7, Role: shared.RoleSeller, LocationID: 1}
}

func catalogProduct(id, price int64, maxPct float64) catalog.Product {
	return catalog.Product{ID: id, LocationID: 1, Name: "soda", SellingPrice: price, MaxDiscountPercent: maxPct, IsActive: true}
}

func TestCreateCapturesDraftWithCopiedPrices(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)

	sale, err := svc.Create(context.Background(), seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 1, Qty: 2}},
	})
	require.NoError(t, err)
	require.Equal(t, StatusDraft, sale.Status)
	require.EqualValues(t, 2000, sale.Total)
	require.Equal(t, "soda", sale.Items[0].ProductName)
	require.EqualValues(t, 1000, sale.Items[0].UnitPrice)

	// Draft capture never touches stock.
	require.EqualValues(t, 5, repo.balances[1].QtyOnHand)
	require.Len(t, repo.audits, 1)
	require.Equal(t, "SALE_CREATE", repo.audits[0].Action)
}

func TestCreateCapturesCustomer(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)

	customerID := int64(42)
	name := "Ama Mensah"
	phone := "+233201234567"
	sale, err := svc.Create(context.Background(), seller(), CreateSaleRequest{
		Items:         []CreateItemRequest{{ProductID: 1, Qty: 1}},
		CustomerID:    &customerID,
		CustomerName:  &name,
		CustomerPhone: &phone,
	})
	require.NoError(t, err)
	require.NotNil(t, sale.CustomerID)
	require.EqualValues(t, 42, *sale.CustomerID)

	got, err := svc.Get(context.Background(), seller(), sale.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CustomerName)
	require.Equal(t, "Ama Mensah", *got.CustomerName)
	require.NotNil(t, got.CustomerPhone)
	require.Equal(t, "+233201234567", *got.CustomerPhone)
}

func TestCreateRejectsUnknownProduct(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 99, Qty: 1}},
	})
	require.Equal(t, shared.KindProductNotFound, shared.KindOf(err))
}

func TestCreateRejectsNonPositiveQty(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 1, Qty: 0}},
	})
	require.ErrorIs(t, err, ErrBadQty)

	_, err = svc.Create(context.Background(), seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 1, Qty: -3}},
	})
	require.Equal(t, shared.KindBadQty, shared.KindOf(err))
}

func TestFulfillDebitsStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 1, Qty: 3}},
	})
	require.NoError(t, err)

	fulfilled, err := svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.NoError(t, err)
	require.Equal(t, StatusFulfilled, fulfilled.Status)
	require.NotNil(t, fulfilled.FulfilledAt)
	require.EqualValues(t, 2, repo.balances[1].QtyOnHand)
}

func TestFulfillPatchesNote(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 1, Qty: 1}},
	})
	require.NoError(t, err)

	note := "delivered to the counter"
	fulfilled, err := svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{Note: &note})
	require.NoError(t, err)
	require.NotNil(t, fulfilled.Note)
	require.Equal(t, note, *fulfilled.Note)

	got, err := svc.Get(ctx, seller(), sale.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Note)
	require.Equal(t, note, *got.Note)
}

func TestFulfillInsufficientStockLeavesDraftUntouched(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 2)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{
		Items: []CreateItemRequest{{ProductID: 1, Qty: 5}},
	})
	require.NoError(t, err)

	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.ErrorIs(t, err, ErrInsufficientInventoryStock)
	require.Equal(t, shared.KindInsufficientInventoryStock, shared.KindOf(err))

	got, err := svc.Get(ctx, seller(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusDraft, got.Status)
	require.EqualValues(t, 2, repo.balances[1].QtyOnHand)
}

func TestPartialShortageRollsBackAllLines(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 10)
	p2 := catalogProduct(2, 500, 10)
	repo.seedProduct(p2, 1)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{
		Items: []CreateItemRequest{
			{ProductID: 1, Qty: 4},
			{ProductID: 2, Qty: 3},
		},
	})
	require.NoError(t, err)

	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.ErrorIs(t, err, ErrInsufficientInventoryStock)

	// The first line's debit must not survive the failed second line.
	require.EqualValues(t, 10, repo.balances[1].QtyOnHand)
	require.EqualValues(t, 1, repo.balances[2].QtyOnHand)
}

func TestMarkPaidAndMethodPatch(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 1}}})
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.NoError(t, err)

	marked, err := svc.MarkPaid(ctx, seller(), sale.ID, MarkRequest{PaymentMethod: MethodCash})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingPaymentRecord, marked.Status)
	require.Equal(t, MethodCash, *marked.PaymentMethod)

	// Re-marking stays AWAITING_PAYMENT_RECORD but patches the method, and
	// the audit trail records only the method change.
	audits := len(repo.audits)
	patched, err := svc.MarkPaid(ctx, seller(), sale.ID, MarkRequest{PaymentMethod: MethodMomo})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingPaymentRecord, patched.Status)
	require.Equal(t, MethodMomo, *patched.PaymentMethod)
	require.Len(t, repo.audits, audits+1)
	require.Contains(t, repo.audits[len(repo.audits)-1].Description, "payment method")
}

func TestRemarkSameMethodIsNoOp(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 1}}})
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, seller(), sale.ID, MarkRequest{PaymentMethod: MethodCash})
	require.NoError(t, err)

	audits := len(repo.audits)
	again, err := svc.MarkPaid(ctx, seller(), sale.ID, MarkRequest{PaymentMethod: MethodCash})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingPaymentRecord, again.Status)
	require.Equal(t, MethodCash, *again.PaymentMethod)
	require.Len(t, repo.audits, audits, "an unchanged re-mark must not write audit entries")
}

func TestMarkPendingClearsDeclaredMethod(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 1}}})
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.NoError(t, err)
	_, err = svc.MarkPaid(ctx, seller(), sale.ID, MarkRequest{PaymentMethod: MethodCash})
	require.NoError(t, err)

	pending, err := svc.MarkPending(ctx, seller(), sale.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPending, pending.Status)
	require.Nil(t, pending.PaymentMethod)

	got, err := svc.Get(ctx, seller(), sale.ID)
	require.NoError(t, err)
	require.Nil(t, got.PaymentMethod)
}

func TestMarkRejectsUnknownMethod(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	_, err := svc.MarkPaid(context.Background(), seller(), 1, MarkRequest{PaymentMethod: "CHECK"})
	require.ErrorIs(t, err, ErrBadPaymentMethod)
}

func TestOnlyTheSellingSellerMayMark(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 1}}})
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.NoError(t, err)

	// Marking is personal to the selling seller; even a manager is refused.
	manager := shared.Principal{ID: 9, Role: shared.RoleManager, LocationID: 1}
	_, err = svc.MarkPaid(ctx, manager, sale.ID, MarkRequest{PaymentMethod: MethodCash})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))

	_, err = svc.MarkPending(ctx, manager, sale.ID)
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))

	marked, err := svc.MarkPaid(ctx, seller(), sale.ID, MarkRequest{PaymentMethod: MethodCash})
	require.NoError(t, err)
	require.Equal(t, StatusAwaitingPaymentRecord, marked.Status)
}

func TestCancelAfterFulfillRestoresStock(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 3}}})
	require.NoError(t, err)
	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.NoError(t, err)
	require.EqualValues(t, 2, repo.balances[1].QtyOnHand)

	cancelled, err := svc.Cancel(ctx, seller(), sale.ID, CancelRequest{Reason: "customer changed their mind"})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)
	require.EqualValues(t, 5, repo.balances[1].QtyOnHand)

	// Terminal: nothing else applies.
	_, err = svc.Fulfill(ctx, seller(), sale.ID, FulfillRequest{})
	require.Equal(t, shared.KindBadStatus, shared.KindOf(err))
}

func TestCancelRecordsReasonAndActor(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 1}}})
	require.NoError(t, err)

	cancelled, err := svc.Cancel(ctx, seller(), sale.ID, CancelRequest{Reason: "wrong items captured"})
	require.NoError(t, err)
	require.NotNil(t, cancelled.CancelReason)
	require.Equal(t, "wrong items captured", *cancelled.CancelReason)
	require.NotNil(t, cancelled.CanceledBy)
	require.EqualValues(t, 7, *cancelled.CanceledBy)
	require.NotNil(t, cancelled.CanceledAt)

	got, err := svc.Get(ctx, seller(), sale.ID)
	require.NoError(t, err)
	require.NotNil(t, got.CancelReason)
	require.Equal(t, "wrong items captured", *got.CancelReason)
}

func TestCancelDraftLeavesStockAlone(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 3}}})
	require.NoError(t, err)

	_, err = svc.Cancel(ctx, seller(), sale.ID, CancelRequest{Reason: "duplicate capture"})
	require.NoError(t, err)
	require.EqualValues(t, 5, repo.balances[1].QtyOnHand)
}

func TestSellerCannotTouchAnotherSellersSale(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 10), 5)
	svc := NewService(repo)
	ctx := context.Background()

	sale, err := svc.Create(ctx, seller(), CreateSaleRequest{Items: []CreateItemRequest{{ProductID: 1, Qty: 1}}})
	require.NoError(t, err)

	other := shared.Principal{ID: 8, Role: shared.RoleSeller, LocationID: 1}
	_, err = svc.Fulfill(ctx, other, sale.ID, FulfillRequest{})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))

	// A manager may fulfill or cancel any sale at the location.
	manager := shared.Principal{ID: 9, Role: shared.RoleManager, LocationID: 1}
	_, err = svc.Fulfill(ctx, manager, sale.ID, FulfillRequest{})
	require.NoError(t, err)
}

func TestSaleDiscountBoundedByStrictestProduct(t *testing.T) {
	repo := newMemoryRepo()
	repo.seedProduct(catalogProduct(1, 1000, 20), 5)
	repo.seedProduct(catalogProduct(2, 1000, 5), 5)
	svc := NewService(repo)

	_, err := svc.Create(context.Background(), seller(), CreateSaleRequest{
		Items: []CreateItemRequest{
			{ProductID: 1, Qty: 1},
			{ProductID: 2, Qty: 1},
		},
		DiscountPercent: 10,
	})
	require.ErrorIs(t, err, ErrSaleDiscountTooHigh)
}
