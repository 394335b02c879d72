package cashsession

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/ledger"
	"github.com/opentill/opentill/internal/shared"
)

type memoryRepo struct {
	sessions map[int64]*Session
	entries  []ledger.Entry
	audits   []audit.Entry
	nextID   int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{sessions: make(map[int64]*Session)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) Get(ctx context.Context, locationID, sessionID int64) (Session, error) {
	if s, ok := r.sessions[sessionID]; ok && s.LocationID == locationID {
		return *s, nil
	}
	return Session{}, ErrNotFound
}

func (r *memoryRepo) FindOpen(ctx context.Context, locationID, cashierID int64) (Session, error) {
	for _, s := range r.sessions {
		if s.LocationID == locationID && s.CashierID == cashierID && s.Status == StatusOpen {
			return *s, nil
		}
	}
	return Session{}, ledger.ErrNoOpenSession
}

func (tx *memoryTx) FindOpenByCashier(ctx context.Context, locationID, cashierID int64) (Session, error) {
	return tx.repo.FindOpen(ctx, locationID, cashierID)
}

func (tx *memoryTx) InsertSession(ctx context.Context, s Session) (int64, error) {
	tx.repo.nextID++
	s.ID = tx.repo.nextID
	tx.repo.sessions[s.ID] = &s
	return s.ID, nil
}

func (tx *memoryTx) GetSessionForUpdate(ctx context.Context, locationID, sessionID int64) (Session, error) {
	return tx.repo.Get(ctx, locationID, sessionID)
}

func (tx *memoryTx) CloseSession(ctx context.Context, sessionID int64, expected, counted, variance int64, note *string, closedAt time.Time) error {
	s := tx.repo.sessions[sessionID]
	s.Status = StatusClosed
	s.ExpectedCash = &expected
	s.CountedCash = &counted
	s.Variance = &variance
	s.ClosedAt = &closedAt
	return nil
}

func (tx *memoryTx) SessionCashTotals(ctx context.Context, sessionID int64) (CashTotals, error) {
	var totals CashTotals
	for _, e := range tx.repo.entries {
		if e.CashSessionID == nil || *e.CashSessionID != sessionID || e.Method != ledger.MethodCash {
			continue
		}
		if e.Direction == ledger.DirectionIn {
			totals.In += e.Amount
		} else {
			totals.Out += e.Amount
		}
	}
	return totals, nil
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

func TestOpenPostsOpeningBalance(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	actor := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}

	session, err := svc.Open(context.Background(), actor, OpenRequest{OpeningFloat: 20000})
	require.NoError(t, err)
	require.Equal(t, StatusOpen, session.Status)

	require.Len(t, repo.entries, 1)
	require.Equal(t, ledger.TypeOpeningBalance, repo.entries[0].Type)
	require.Equal(t, ledger.DirectionIn, repo.entries[0].Direction)
	require.EqualValues(t, 20000, repo.entries[0].Amount)
}

func TestOpenRejectsSecondSession(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	actor := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}
	ctx := context.Background()

	_, err := svc.Open(ctx, actor, OpenRequest{OpeningFloat: 1000})
	require.NoError(t, err)
	_, err = svc.Open(ctx, actor, OpenRequest{OpeningFloat: 1000})
	require.ErrorIs(t, err, ErrSessionAlreadyOpen)
}

func TestReconcileComputesVarianceFromLedger(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	actor := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}
	ctx := context.Background()

	session, err := svc.Open(ctx, actor, OpenRequest{OpeningFloat: 10000})
	require.NoError(t, err)

	// A cash sale of 2000 and a petty cash out of 500 during the session.
	sid := session.ID
	repo.entries = append(repo.entries,
		ledger.Entry{CashSessionID: &sid, Type: ledger.TypeSalePayment, Direction: ledger.DirectionIn, Amount: 2000, Method: ledger.MethodCash},
		ledger.Entry{CashSessionID: &sid, Type: ledger.TypePettyCashOut, Direction: ledger.DirectionOut, Amount: 500, Method: ledger.MethodCash},
	)

	closed, err := svc.Reconcile(ctx, actor, session.ID, ReconcileRequest{CountedCash: 11000})
	require.NoError(t, err)
	require.Equal(t, StatusClosed, closed.Status)
	require.EqualValues(t, 11500, *closed.ExpectedCash)
	require.EqualValues(t, -500, *closed.Variance)

	_, err = svc.Reconcile(ctx, actor, session.ID, ReconcileRequest{CountedCash: 11000})
	require.ErrorIs(t, err, ErrNotOpen)
}

func TestReconcileForbiddenForOtherCashier(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	owner := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}
	other := shared.Principal{ID: 5, Role: shared.RoleCashier, LocationID: 1}
	ctx := context.Background()

	session, err := svc.Open(ctx, owner, OpenRequest{})
	require.NoError(t, err)

	_, err = svc.Reconcile(ctx, other, session.ID, ReconcileRequest{CountedCash: 0})
	require.Equal(t, shared.KindForbidden, shared.KindOf(err))
}
