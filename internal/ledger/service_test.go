package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/opentill/opentill/internal/audit"
	"github.com/opentill/opentill/internal/shared"
)

type memoryRepo struct {
	openSessions map[int64]int64 // cashier id -> session id
	entries      []Entry
	audits       []audit.Entry
	nextID       int64
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{openSessions: make(map[int64]int64)}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	return fn(ctx, &memoryTx{repo: r})
}

func (r *memoryRepo) List(ctx context.Context, locationID int64, filter ListFilter) ([]Entry, int64, error) {
	return r.entries, 0, nil
}

func (tx *memoryTx) InsertLedgerEntry(ctx context.Context, entry Entry) (int64, error) {
	tx.repo.nextID++
	entry.ID = tx.repo.nextID
	tx.repo.entries = append(tx.repo.entries, entry)
	return entry.ID, nil
}

func (tx *memoryTx) FindOpenSession(ctx context.Context, locationID, cashierID int64) (int64, error) {
	if id, ok := tx.repo.openSessions[cashierID]; ok {
		return id, nil
	}
	return 0, ErrNoOpenSession
}

func (tx *memoryTx) InsertAuditEntry(ctx context.Context, entry audit.Entry) error {
	tx.repo.audits = append(tx.repo.audits, entry)
	return nil
}

func TestRecordPettyCashRequiresOpenSession(t *testing.T) {
	repo := newMemoryRepo()
	svc := NewService(repo)
	actor := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}

	_, err := svc.RecordPettyCash(context.Background(), actor, PettyCashRequest{Direction: DirectionIn, Amount: 5000})
	require.ErrorIs(t, err, ErrNoOpenSession)
	require.Empty(t, repo.entries)
}

func TestRecordPettyCashBindsSession(t *testing.T) {
	repo := newMemoryRepo()
	repo.openSessions[4] = 31
	svc := NewService(repo)
	actor := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}

	entry, err := svc.RecordPettyCash(context.Background(), actor, PettyCashRequest{Direction: DirectionOut, Amount: 2500})
	require.NoError(t, err)
	require.Equal(t, TypePettyCashOut, entry.Type)
	require.Equal(t, DirectionOut, entry.Direction)
	require.NotNil(t, entry.CashSessionID)
	require.EqualValues(t, 31, *entry.CashSessionID)

	require.Len(t, repo.audits, 1)
	require.Equal(t, "PETTY_CASH_OUT", repo.audits[0].Action)
}

func TestRecordVersement(t *testing.T) {
	repo := newMemoryRepo()
	repo.openSessions[4] = 8
	svc := NewService(repo)
	actor := shared.Principal{ID: 4, Role: shared.RoleCashier, LocationID: 1}

	ref := "BANK-20260901"
	entry, err := svc.RecordVersement(context.Background(), actor, VersementRequest{Amount: 150000, Reference: &ref})
	require.NoError(t, err)
	require.Equal(t, TypeVersement, entry.Type)
	require.Equal(t, DirectionOut, entry.Direction)
	require.Equal(t, MethodCash, entry.Method)
}

func TestCleanMethodDefaultsToCash(t *testing.T) {
	require.Equal(t, MethodCash, CleanMethod(""))
	require.Equal(t, MethodCash, CleanMethod("CHEQUE"))
	require.Equal(t, MethodMomo, CleanMethod("MOMO"))
}
