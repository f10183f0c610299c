// Package sqlite implements the ledger repository ports on an embedded SQLite
// database. It backs local tooling and end-to-end posting tests; production
// deployments use the PostgreSQL repository in the parent package.
//
// Amounts are stored as decimal strings and timestamps as RFC 3339 text. Write
// transactions are opened with BEGIN IMMEDIATE, which serializes postings the
// way row locks do on PostgreSQL.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sqlite3 "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/accounting"
)

// Store implements accounting.RepositoryPort using SQLite.
type Store struct {
	db *sql.DB
}

var _ accounting.RepositoryPort = (*Store)(nil)

// Open creates a store at path and migrates the schema. Use ":memory:" for a
// throwaway database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// A single connection keeps ":memory:" databases shared and writes serial.
	db.SetMaxOpenConns(1)
	store := NewWithDB(db)
	if err := store.migrate(context.Background()); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: migrate: %w", err)
	}
	return store, nil
}

// NewWithDB wraps an existing handle without migrating it.
func NewWithDB(db *sql.DB) *Store {
	return &Store{db: db}
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
	CREATE TABLE IF NOT EXISTS accounts (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		code TEXT NOT NULL,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		category TEXT NOT NULL,
		normal_balance TEXT NOT NULL,
		current_balance TEXT NOT NULL DEFAULT '0',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		UNIQUE (company_id, code)
	);

	CREATE TABLE IF NOT EXISTS journal_sequences (
		company_id INTEGER PRIMARY KEY,
		last_value INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS journal_entries (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		company_id INTEGER NOT NULL,
		number TEXT NOT NULL,
		entry_date TEXT NOT NULL,
		description TEXT NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		status TEXT NOT NULL,
		total_debit TEXT NOT NULL,
		total_credit TEXT NOT NULL,
		posted_by INTEGER NOT NULL DEFAULT 0,
		posted_at TEXT NOT NULL,
		reversal_of INTEGER REFERENCES journal_entries(id),
		UNIQUE (company_id, number)
	);

	CREATE TABLE IF NOT EXISTS journal_lines (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		entry_id INTEGER NOT NULL REFERENCES journal_entries(id),
		line_no INTEGER NOT NULL,
		account_id INTEGER NOT NULL REFERENCES accounts(id),
		description TEXT NOT NULL DEFAULT '',
		debit TEXT NOT NULL,
		credit TEXT NOT NULL,
		UNIQUE (entry_id, line_no)
	);

	CREATE TABLE IF NOT EXISTS source_links (
		company_id INTEGER NOT NULL,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		entry_id INTEGER NOT NULL REFERENCES journal_entries(id),
		UNIQUE (company_id, source_type, source_id)
	);
	`)
	return err
}

// WithTx executes fn inside an immediate transaction.
func (s *Store) WithTx(ctx context.Context, fn func(context.Context, accounting.TxRepository) error) error {
	if s == nil || s.db == nil {
		return errors.New("sqlite store not initialised")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: begin tx: %w", err)
	}
	if err := fn(ctx, &txRepo{tx: tx}); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: commit tx: %w", err)
	}
	return nil
}

type txRepo struct {
	tx *sql.Tx
}

const accountColumns = `id, company_id, code, name, type, category, current_balance, created_at, updated_at`

type scanner interface {
	Scan(dest ...any) error
}

func scanAccount(row scanner) (accounting.Account, error) {
	var (
		a                         accounting.Account
		balance, created, updated string
	)
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Category, &balance, &created, &updated); err != nil {
		return accounting.Account{}, err
	}
	var err error
	if a.CurrentBalance, err = decimal.NewFromString(balance); err != nil {
		return accounting.Account{}, err
	}
	if a.CreatedAt, err = parseTime(created); err != nil {
		return accounting.Account{}, err
	}
	if a.UpdatedAt, err = parseTime(updated); err != nil {
		return accounting.Account{}, err
	}
	return a, nil
}

func (r *txRepo) ListAccounts(ctx context.Context, companyID int64) ([]accounting.Account, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id = ? ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []accounting.Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (r *txRepo) InsertAccount(ctx context.Context, acc accounting.Account) error {
	now := formatTime(time.Now())
	_, err := r.tx.ExecContext(ctx, `INSERT INTO accounts (company_id, code, name, type, category, normal_balance, current_balance, created_at, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) ON CONFLICT (company_id, code) DO NOTHING`,
		acc.CompanyID, acc.Code, acc.Name, string(acc.Type), string(acc.Category), string(acc.NormalBalance()),
		acc.CurrentBalance.StringFixed(2), now, now)
	return err
}

func (r *txRepo) FindAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (accounting.Account, error) {
	a, err := scanAccount(r.tx.QueryRowContext(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id = ? AND code = ?`, companyID, code))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounting.Account{}, accounting.ErrAccountNotFound
		}
		return accounting.Account{}, err
	}
	return a, nil
}

func (r *txRepo) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	res, err := r.tx.ExecContext(ctx, `UPDATE accounts SET current_balance = ?, updated_at = ? WHERE id = ?`,
		balance.StringFixed(2), formatTime(time.Now()), accountID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return accounting.ErrAccountNotFound
	}
	return nil
}

func (r *txRepo) NextJournalNumber(ctx context.Context, companyID int64) (string, error) {
	var seq int64
	err := r.tx.QueryRowContext(ctx, `INSERT INTO journal_sequences (company_id, last_value) VALUES (?, 1)
ON CONFLICT (company_id) DO UPDATE SET last_value = last_value + 1
RETURNING last_value`, companyID).Scan(&seq)
	if err != nil {
		return "", err
	}
	return accounting.FormatJournalNumber(seq), nil
}

func (r *txRepo) InsertJournalEntry(ctx context.Context, entry accounting.JournalEntry) (accounting.JournalEntry, error) {
	res, err := r.tx.ExecContext(ctx, `INSERT INTO journal_entries (company_id, number, entry_date, description, source_type, source_id, status, total_debit, total_credit, posted_by, posted_at, reversal_of)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.CompanyID, entry.Number, formatTime(entry.Date), entry.Description, string(entry.Source.Type), entry.Source.ID,
		string(entry.Status), entry.TotalDebit.StringFixed(2), entry.TotalCredit.StringFixed(2), entry.PostedBy,
		formatTime(entry.PostedAt), entry.ReversalOf)
	if err != nil {
		return accounting.JournalEntry{}, err
	}
	if entry.ID, err = res.LastInsertId(); err != nil {
		return accounting.JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepo) InsertJournalLines(ctx context.Context, entryID int64, lines []accounting.JournalLine) error {
	stmt, err := r.tx.PrepareContext(ctx, `INSERT INTO journal_lines (entry_id, line_no, account_id, description, debit, credit) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, line := range lines {
		if _, err := stmt.ExecContext(ctx, entryID, line.LineNo, line.AccountID, line.Description,
			line.Debit.StringFixed(2), line.Credit.StringFixed(2)); err != nil {
			return err
		}
	}
	return nil
}

func (r *txRepo) LinkSource(ctx context.Context, companyID int64, source accounting.SourceRef, entryID int64) error {
	_, err := r.tx.ExecContext(ctx, `INSERT INTO source_links (company_id, source_type, source_id, entry_id) VALUES (?, ?, ?, ?)`,
		companyID, string(source.Type), source.ID, entryID)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return accounting.ErrSourceConflict
		}
		return err
	}
	return nil
}

func (r *txRepo) GetJournalWithLines(ctx context.Context, companyID, entryID int64) (accounting.JournalEntry, []accounting.JournalLine, error) {
	var (
		entry                         accounting.JournalEntry
		date, postedAt, debit, credit string
	)
	err := r.tx.QueryRowContext(ctx, `SELECT id, company_id, number, entry_date, description, source_type, source_id, status, total_debit, total_credit, posted_by, posted_at, reversal_of
FROM journal_entries WHERE company_id = ? AND id = ?`, companyID, entryID).
		Scan(&entry.ID, &entry.CompanyID, &entry.Number, &date, &entry.Description, &entry.Source.Type, &entry.Source.ID,
			&entry.Status, &debit, &credit, &entry.PostedBy, &postedAt, &entry.ReversalOf)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return accounting.JournalEntry{}, nil, accounting.ErrJournalNotFound
		}
		return accounting.JournalEntry{}, nil, err
	}
	if entry.Date, err = parseTime(date); err != nil {
		return accounting.JournalEntry{}, nil, err
	}
	if entry.PostedAt, err = parseTime(postedAt); err != nil {
		return accounting.JournalEntry{}, nil, err
	}
	if entry.TotalDebit, err = decimal.NewFromString(debit); err != nil {
		return accounting.JournalEntry{}, nil, err
	}
	if entry.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return accounting.JournalEntry{}, nil, err
	}

	rows, err := r.tx.QueryContext(ctx, `SELECT l.id, l.entry_id, l.line_no, l.account_id, a.code, l.description, l.debit, l.credit
FROM journal_lines l JOIN accounts a ON a.id = l.account_id
WHERE l.entry_id = ? ORDER BY l.line_no`, entryID)
	if err != nil {
		return accounting.JournalEntry{}, nil, err
	}
	defer rows.Close()
	var lines []accounting.JournalLine
	for rows.Next() {
		var line accounting.JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.AccountCode, &line.Description, &debit, &credit); err != nil {
			return accounting.JournalEntry{}, nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return accounting.JournalEntry{}, nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return accounting.JournalEntry{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return accounting.JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

// TrialBalance sums in Go because SQLite has no exact decimal type.
func (r *txRepo) TrialBalance(ctx context.Context, companyID int64) (accounting.TrialBalance, error) {
	tb := accounting.TrialBalance{CompanyID: companyID}
	rows, err := r.tx.QueryContext(ctx, `SELECT e.id, e.total_debit, e.total_credit, l.debit, l.credit
FROM journal_entries e JOIN journal_lines l ON l.entry_id = e.id
WHERE e.company_id = ? AND e.status = ? ORDER BY e.id`, companyID, string(accounting.JournalStatusPosted))
	if err != nil {
		return tb, err
	}
	defer rows.Close()

	type totals struct{ debit, credit decimal.Decimal }
	var (
		current int64
		entry   totals
	)
	flush := func() {
		if current == 0 {
			return
		}
		tb.LineDebit = tb.LineDebit.Add(entry.debit)
		tb.LineCredit = tb.LineCredit.Add(entry.credit)
		if entry.debit.Sub(entry.credit).Abs().GreaterThan(decimal.NewFromFloat(0.01)) {
			tb.UnbalancedEntries++
		}
	}
	for rows.Next() {
		var (
			id                                int64
			headerDebit, headerCredit, dr, cr string
		)
		if err := rows.Scan(&id, &headerDebit, &headerCredit, &dr, &cr); err != nil {
			return tb, err
		}
		if id != current {
			flush()
			current = id
			entry = totals{decimal.Zero, decimal.Zero}
			tb.Entries++
			hd, err := decimal.NewFromString(headerDebit)
			if err != nil {
				return tb, err
			}
			hc, err := decimal.NewFromString(headerCredit)
			if err != nil {
				return tb, err
			}
			tb.HeaderDebit = tb.HeaderDebit.Add(hd)
			tb.HeaderCredit = tb.HeaderCredit.Add(hc)
		}
		lineDebit, err := decimal.NewFromString(dr)
		if err != nil {
			return tb, err
		}
		lineCredit, err := decimal.NewFromString(cr)
		if err != nil {
			return tb, err
		}
		entry.debit = entry.debit.Add(lineDebit)
		entry.credit = entry.credit.Add(lineCredit)
	}
	if err := rows.Err(); err != nil {
		return tb, err
	}
	flush()
	return tb, nil
}

func (r *txRepo) ListCompanies(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.QueryContext(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
