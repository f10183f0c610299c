package sqlite

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
)

func openLedger(t *testing.T) (*accounting.Service, *Store) {
	t.Helper()
	store, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	svc := accounting.NewService(store, nil, nil)
	_, err = svc.SeedChart(context.Background(), 1)
	require.NoError(t, err)
	return svc, store
}

func balances(t *testing.T, svc *accounting.Service) map[string]decimal.Decimal {
	t.Helper()
	accounts, err := svc.ListAccounts(context.Background(), 1)
	require.NoError(t, err)
	out := make(map[string]decimal.Decimal, len(accounts))
	for _, acc := range accounts {
		out[acc.Code] = acc.CurrentBalance
	}
	return out
}

func purchase(source string) accounting.PostingInput {
	return accounting.PostingInput{
		CompanyID:   1,
		Date:        time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
		Description: "Bill B-17",
		Source:      accounting.SourceRef{Type: accounting.SourceBill, ID: source},
		Lines: []accounting.PostingLineInput{
			{AccountCode: accounting.CodeInventory, Debit: decimal.RequireFromString("500")},
			{AccountCode: accounting.CodeInputVAT, Debit: decimal.RequireFromString("50")},
			{AccountCode: accounting.CodeAccountsPayable, Credit: decimal.RequireFromString("550")},
		},
	}
}

func TestPostAndReverseRoundTrip(t *testing.T) {
	svc, _ := openLedger(t)
	ctx := context.Background()

	entry, err := svc.PostJournal(ctx, purchase("b-17"))
	require.NoError(t, err)
	require.Equal(t, "JE-000001", entry.Number)

	got := balances(t, svc)
	require.True(t, got[accounting.CodeInventory].Equal(decimal.RequireFromString("500")))
	require.True(t, got[accounting.CodeInputVAT].Equal(decimal.RequireFromString("50")))
	require.True(t, got[accounting.CodeAccountsPayable].Equal(decimal.RequireFromString("550")))

	stored, err := svc.GetJournal(ctx, 1, entry.ID)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 3)
	require.Equal(t, accounting.CodeInputVAT, stored.Lines[1].AccountCode)
	require.True(t, stored.Date.Equal(entry.Date))
	require.True(t, stored.TotalCredit.Equal(decimal.RequireFromString("550")))

	_, err = svc.PostJournal(ctx, purchase("b-17"))
	require.ErrorIs(t, err, accounting.ErrSourceAlreadyLinked)

	reversal, err := svc.ReverseJournal(ctx, accounting.ReverseInput{CompanyID: 1, EntryID: entry.ID})
	require.NoError(t, err)
	require.Equal(t, "JE-000002", reversal.Number)

	got = balances(t, svc)
	require.True(t, got[accounting.CodeInventory].IsZero())
	require.True(t, got[accounting.CodeAccountsPayable].IsZero())

	_, err = svc.ReverseJournal(ctx, accounting.ReverseInput{CompanyID: 1, EntryID: entry.ID})
	require.ErrorIs(t, err, accounting.ErrAlreadyReversed)

	tb, err := svc.CheckIntegrity(ctx, 1)
	require.NoError(t, err)
	require.Equal(t, int64(2), tb.Entries)
	require.True(t, tb.LineDebit.Equal(decimal.RequireFromString("1100")))
}

func TestUnknownAccountRollsBackEverything(t *testing.T) {
	svc, _ := openLedger(t)
	ctx := context.Background()
	in := purchase("b-18")
	in.Lines[1].AccountCode = "1999"

	_, err := svc.PostJournal(ctx, in)
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)

	for code, bal := range balances(t, svc) {
		require.True(t, bal.IsZero(), code)
	}
	next, err := svc.PostJournal(ctx, purchase("b-19"))
	require.NoError(t, err)
	require.Equal(t, "JE-000001", next.Number)
}

func TestConcurrentPostingsKeepBalancesExact(t *testing.T) {
	svc, _ := openLedger(t)
	ctx := context.Background()
	const n = 20
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		go func(i int) {
			_, err := svc.PostJournal(ctx, purchase("bulk-"+decimal.NewFromInt(int64(i)).String()))
			errs <- err
		}(i)
	}
	for i := 0; i < n; i++ {
		require.NoError(t, <-errs)
	}
	got := balances(t, svc)
	require.True(t, got[accounting.CodeAccountsPayable].Equal(decimal.RequireFromString("11000")))
	_, err := svc.CheckIntegrity(ctx, 1)
	require.NoError(t, err)
}

func TestWithTxRollsBackOnMissingAccount(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db)
	svc := accounting.NewService(store, nil, nil)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT id, company_id, code, name, type, category, current_balance, created_at, updated_at FROM accounts WHERE company_id = \\? AND code = \\?").
		WithArgs(int64(1), accounting.CodeInventory).
		WillReturnRows(sqlmock.NewRows([]string{"id", "company_id", "code", "name", "type", "category", "current_balance", "created_at", "updated_at"}))
	mock.ExpectRollback()

	_, err = svc.PostJournal(context.Background(), purchase("b-20"))
	require.ErrorIs(t, err, accounting.ErrAccountNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWithTxSurfacesCommitFailure(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	store := NewWithDB(db)
	mock.ExpectBegin()
	mock.ExpectCommit().WillReturnError(errors.New("disk I/O error"))

	err = store.WithTx(context.Background(), func(ctx context.Context, tx accounting.TxRepository) error {
		return nil
	})
	require.Error(t, err)
	require.Contains(t, err.Error(), "commit")
	assert.NoError(t, mock.ExpectationsWereMet())
}
