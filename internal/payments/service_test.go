package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/cashsession"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/sales"
	"github.com/opentill/opentill/internal/shared"
)

type memoryRepo struct {
	sales    map[int64]*sales.Sale
	payments map[int64]*Payment
	sessions []cashsession.Session
	entries  []ledger.Entry
	audits   []audit.Entry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sales: make(map[int64]*sales.Sale), payments: make(map[int64]*Payment)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, locationID, paymentID int64) (Payment, error) {
	if p, ok := r.payments[paymentID]; ok && p.LocationID == locationID {
		return *p, nil
	}
	return Payment{}, ErrNotFound
}

func (r *memoryRepo) GetBySale(ctx context.Context, locationID, saleID int64) (Payment, error) {
	for _, p := range r.payments {
		if p.SaleID == saleID && p.LocationID == locationID {
			return *p, nil
		}
	}
	return Payment{}, ErrNotFound
}

func (tx *memoryTx) GetSaleForUpdate(ctx context.Context, locationID, saleID int64) (sales.Sale, error) {
	if s, ok := tx.repo.sales[saleID]; ok && s.LocationID == locationID {
		return *s, nil
	}
	return sales.Sale{}, sales.ErrNotFound
}

func (tx *memoryTx) FindPaymentBySale(ctx context.Context, saleID int64) (Payment, error) {
	for _, p := range tx.repo.payments {
		if p.SaleID == saleID {
			return *p, nil
		}
	}
	return Payment{}, ErrNotFound
}

func (tx *memoryTx) InsertPayment(ctx context.Context, p Payment) (int64, error) {
	tx.repo.nextID++
	p.ID = tx.repo.nextID
	tx.repo.payments[p.ID] = &p
	return p.ID, nil
}

func (tx *memoryTx) CompleteSale(ctx context.Context, saleID int64) error {
	tx.repo.sales[saleID].Status = sales.StatusCompleted
	return nil
}

func (tx *memoryTx) SessionIsOpen(ctx context.Context, locationID, cashierID, sessionID int64) (bool, error) {
	for _, s := range tx.repo.sessions {
		if s.ID == sessionID && s.LocationID == locationID && s.CashierID == cashierID && s.Status == cashsession.StatusOpen {
			return true, nil
		}
	}
	return false, nil
}

func (tx *memoryTx) InsertLedgerEntry(ctx context.Context, entry ledger.Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	tx.repo.audits = append(tx.repo.audits, entry)
	return nil
}

func cashier() shared.Principal {
	return shared.Principal{ID: 3, Role: shared.RoleCashier, LocationID: 1}
}

func awaitingSale(id, total int64) *sales.Sale {
	return &sales.Sale{ID: id, LocationID: 1, SellerID: 7, Status: sales.StatusAwaitingPaymentRecord, Total: total}
}

func (r *memoryRepo) openSession(id int64) {
	r.sessions = append(r.sessions, cashsession.Session{ID: id, LocationID: 1, CashierID: 3, Status: cashsession.StatusOpen})
}

func TestRecordCompletesSaleAndWritesLedger(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.openSession(11)
	svc := NewService(repo)

	payment, err := svc.Record(context.Background(), cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "CASH", CashSessionID: 11})
	require.NoError(t, err)
	require.Equal(t, sales.StatusCompleted, repo.sales[1].Status)
	require.NotNil(t, payment.CashSessionID)
	require.EqualValues(t, 11, *payment.CashSessionID)

	require.Len(t, repo.entries, 1)
	require.Equal(t, ledger.TypeSalePayment, repo.entries[0].Type)
	require.Equal(t, ledger.DirectionIn, repo.entries[0].Direction)
	require.EqualValues(t, 2000, repo.entries[0].Amount)
	require.EqualValues(t, 1, *repo.entries[0].SaleID)
	require.EqualValues(t, 11, *repo.entries[0].CashSessionID)

	require.Len(t, repo.audits, 1)
	require.Equal(t, "PAYMENT_RECORD", repo.audits[0].Action)
}

func TestRecordBindsSessionForCashlessMethods(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.openSession(11)
	svc := NewService(repo)

	payment, err := svc.Record(context.Background(), cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "MOMO", CashSessionID: 11})
	require.NoError(t, err)
	require.NotNil(t, payment.CashSessionID)
	require.EqualValues(t, 11, *payment.CashSessionID)
	require.EqualValues(t, 11, *repo.entries[0].CashSessionID)
}

func TestRecordIsExactlyOnce(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.openSession(11)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "MOMO", CashSessionID: 11})
	require.NoError(t, err)

	// The sale completed, so the second attempt fails on status before it
	// even reaches the duplicate check.
	_, err = svc.Record(ctx, cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "MOMO", CashSessionID: 11})
	require.Equal(t, shared.KindBadStatus, shared.KindOf(err))
	require.Len(t, repo.payments, 1)
	require.Len(t, repo.entries, 1)
}

func TestRecordDuplicateRowRejected(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.openSession(11)
	// A payment row already exists while the sale status lagged behind.
	repo.payments[99] = &Payment{ID: 99, SaleID: 1, LocationID: 1}
	svc := NewService(repo)

	_, err := svc.Record(context.Background(), cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "MOMO", CashSessionID: 11})
	require.ErrorIs(t, err, ErrDuplicatePayment)
}

func TestRecordRejectsAmountMismatch(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.openSession(11)
	svc := NewService(repo)

	_, err := svc.Record(context.Background(), cashier(), RecordRequest{SaleID: 1, Amount: 1500, Method: "MOMO", CashSessionID: 11})
	require.ErrorIs(t, err, ErrAmountMismatch)
	require.Empty(t, repo.payments)
}

func TestRecordRejectsWrongStatus(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = &sales.Sale{ID: 1, LocationID: 1, Status: sales.StatusPending, Total: 2000}
	repo.openSession(11)
	svc := NewService(repo)

	_, err := svc.Record(context.Background(), cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "MOMO", CashSessionID: 11})
	require.Equal(t, shared.KindBadStatus, shared.KindOf(err))
}

func TestRecordNeedsOpenSessionForEveryMethod(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.sales[2] = awaitingSale(2, 2000)
	svc := NewService(repo)
	ctx := context.Background()

	_, err := svc.Record(ctx, cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "CASH", CashSessionID: 11})
	require.ErrorIs(t, err, ledger.ErrNoOpenSession)

	// Cashless payments are held to the same drawer-session rule.
	_, err = svc.Record(ctx, cashier(), RecordRequest{SaleID: 2, Amount: 2000, Method: "MOMO", CashSessionID: 11})
	require.ErrorIs(t, err, ledger.ErrNoOpenSession)
	require.Equal(t, sales.StatusAwaitingPaymentRecord, repo.sales[1].Status)
	require.Empty(t, repo.payments)
}

func TestRecordRejectsAnotherCashiersSession(t *testing.T) {
	repo := newMemoryRepo()
	repo.sales[1] = awaitingSale(1, 2000)
	repo.sessions = append(repo.sessions, cashsession.Session{ID: 11, LocationID: 1, CashierID: 4, Status: cashsession.StatusOpen})
	svc := NewService(repo)

	_, err := svc.Record(context.Background(), cashier(), RecordRequest{SaleID: 1, Amount: 2000, Method: "CASH", CashSessionID: 11})
	require.ErrorIs(t, err, ledger.ErrNoOpenSession)
}

func TestRecordForbiddenForSeller(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	actor := shared.Principal{ID: 7, Role: shared.RoleSeller, LocationID: 1}

	_, err := svc.Record(context.Background(), actor, RecordRequest{SaleID: 1, Amount: 2000, Method: "CASH", CashSessionID: 11})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}
