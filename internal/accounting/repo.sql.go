package accounting

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/odyssey-erp/ifrs-ledger/internal/platform/db"
)

// Repository persists accounting entities in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// TxRepository exposes transactional operations.
type TxRepository interface {
	ListAccounts(ctx context.Context, companyID int64) ([]Account, error)
	InsertAccount(ctx context.Context, acc Account) error
	FindAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (Account, error)
	UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error
	NextJournalNumber(ctx context.Context, companyID int64) (string, error)
	InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error)
	InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) error
	LinkSource(ctx context.Context, companyID int64, source SourceRef, entryID int64) error
	GetJournalWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, []JournalLine, error)
	TrialBalance(ctx context.Context, companyID int64) (TrialBalance, error)
	ListCompanies(ctx context.Context) ([]int64, error)
}

type txRepository struct {
	tx pgx.Tx
}

// WithTx executes fn within a read-committed transaction. Postings serialize
// on the account rows they lock.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	if r == nil || r.pool == nil {
		return errors.New("accounting repository not initialised")
	}
	return db.WithTx(ctx, r.pool, db.ReadCommitted, func(tx pgx.Tx) error {
		return fn(ctx, &txRepository{tx: tx})
	})
}

const accountColumns = `id, company_id, code, name, type, category, current_balance::text, created_at, updated_at`

func scanAccount(row pgx.Row) (Account, error) {
	var (
		a       Account
		balance string
	)
	if err := row.Scan(&a.ID, &a.CompanyID, &a.Code, &a.Name, &a.Type, &a.Category, &balance, &a.CreatedAt, &a.UpdatedAt); err != nil {
		return Account{}, err
	}
	parsed, err := decimal.NewFromString(balance)
	if err != nil {
		return Account{}, err
	}
	a.CurrentBalance = parsed
	return a, nil
}

func (r *txRepository) ListAccounts(ctx context.Context, companyID int64) ([]Account, error) {
	rows, err := r.tx.Query(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 ORDER BY code`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var accounts []Account
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, a)
	}
	return accounts, rows.Err()
}

func (r *txRepository) InsertAccount(ctx context.Context, acc Account) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO accounts (company_id, code, name, type, category, normal_balance, current_balance)
VALUES ($1,$2,$3,$4,$5,$6,$7::numeric) ON CONFLICT (company_id, code) DO NOTHING`,
		acc.CompanyID, acc.Code, acc.Name, acc.Type, acc.Category, acc.NormalBalance(), toNumeric(acc.CurrentBalance))
	return err
}

func (r *txRepository) FindAccountByCodeForUpdate(ctx context.Context, companyID int64, code string) (Account, error) {
	a, err := scanAccount(r.tx.QueryRow(ctx, `SELECT `+accountColumns+` FROM accounts WHERE company_id=$1 AND code=$2 FOR UPDATE`, companyID, code))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, err
	}
	return a, nil
}

func (r *txRepository) UpdateAccountBalance(ctx context.Context, accountID int64, balance decimal.Decimal) error {
	cmd, err := r.tx.Exec(ctx, `UPDATE accounts SET current_balance=$2::numeric, updated_at=NOW() WHERE id=$1`, accountID, toNumeric(balance))
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAccountNotFound
	}
	return nil
}

func (r *txRepository) NextJournalNumber(ctx context.Context, companyID int64) (string, error) {
	var seq int64
	err := r.tx.QueryRow(ctx, `INSERT INTO journal_sequences (company_id, last_value) VALUES ($1, 1)
ON CONFLICT (company_id) DO UPDATE SET last_value = journal_sequences.last_value + 1
RETURNING last_value`, companyID).Scan(&seq)
	if err != nil {
		return "", err
	}
	return FormatJournalNumber(seq), nil
}

func (r *txRepository) InsertJournalEntry(ctx context.Context, entry JournalEntry) (JournalEntry, error) {
	row := r.tx.QueryRow(ctx, `INSERT INTO journal_entries (company_id, number, entry_date, description, source_type, source_id, status, total_debit, total_credit, posted_by, posted_at, reversal_of)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8::numeric,$9::numeric,$10,$11,$12) RETURNING id`,
		entry.CompanyID, entry.Number, entry.Date, entry.Description, entry.Source.Type, entry.Source.ID, entry.Status,
		toNumeric(entry.TotalDebit), toNumeric(entry.TotalCredit), nullInt(entry.PostedBy), entry.PostedAt, entry.ReversalOf)
	if err := row.Scan(&entry.ID); err != nil {
		return JournalEntry{}, err
	}
	return entry, nil
}

func (r *txRepository) InsertJournalLines(ctx context.Context, entryID int64, lines []JournalLine) error {
	batch := &pgx.Batch{}
	for _, line := range lines {
		batch.Queue(`INSERT INTO journal_lines (entry_id, line_no, account_id, description, debit, credit)
VALUES ($1,$2,$3,$4,$5::numeric,$6::numeric)`, entryID, line.LineNo, line.AccountID, line.Description, toNumeric(line.Debit), toNumeric(line.Credit))
	}
	return r.tx.SendBatch(ctx, batch).Close()
}

func (r *txRepository) LinkSource(ctx context.Context, companyID int64, source SourceRef, entryID int64) error {
	_, err := r.tx.Exec(ctx, `INSERT INTO source_links (company_id, source_type, source_id, entry_id) VALUES ($1,$2,$3,$4)`,
		companyID, source.Type, source.ID, entryID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrSourceConflict
		}
		return err
	}
	return nil
}

func (r *txRepository) GetJournalWithLines(ctx context.Context, companyID, entryID int64) (JournalEntry, []JournalLine, error) {
	var (
		entry         JournalEntry
		debit, credit string
		postedBy      *int64
	)
	err := r.tx.QueryRow(ctx, `SELECT id, company_id, number, entry_date, description, source_type, source_id, status, total_debit::text, total_credit::text, posted_by, posted_at, reversal_of
FROM journal_entries WHERE company_id=$1 AND id=$2`, companyID, entryID).
		Scan(&entry.ID, &entry.CompanyID, &entry.Number, &entry.Date, &entry.Description, &entry.Source.Type, &entry.Source.ID,
			&entry.Status, &debit, &credit, &postedBy, &entry.PostedAt, &entry.ReversalOf)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return JournalEntry{}, nil, ErrJournalNotFound
		}
		return JournalEntry{}, nil, err
	}
	if postedBy != nil {
		entry.PostedBy = *postedBy
	}
	if entry.TotalDebit, err = decimal.NewFromString(debit); err != nil {
		return JournalEntry{}, nil, err
	}
	if entry.TotalCredit, err = decimal.NewFromString(credit); err != nil {
		return JournalEntry{}, nil, err
	}
	rows, err := r.tx.Query(ctx, `SELECT l.id, l.entry_id, l.line_no, l.account_id, a.code, l.description, l.debit::text, l.credit::text
FROM journal_lines l JOIN accounts a ON a.id = l.account_id
WHERE l.entry_id=$1 ORDER BY l.line_no ASC`, entryID)
	if err != nil {
		return JournalEntry{}, nil, err
	}
	defer rows.Close()
	var lines []JournalLine
	for rows.Next() {
		var line JournalLine
		if err := rows.Scan(&line.ID, &line.EntryID, &line.LineNo, &line.AccountID, &line.AccountCode, &line.Description, &debit, &credit); err != nil {
			return JournalEntry{}, nil, err
		}
		if line.Debit, err = decimal.NewFromString(debit); err != nil {
			return JournalEntry{}, nil, err
		}
		if line.Credit, err = decimal.NewFromString(credit); err != nil {
			return JournalEntry{}, nil, err
		}
		lines = append(lines, line)
	}
	if err := rows.Err(); err != nil {
		return JournalEntry{}, nil, err
	}
	return entry, lines, nil
}

func (r *txRepository) TrialBalance(ctx context.Context, companyID int64) (TrialBalance, error) {
	var tb TrialBalance
	var lineDebit, lineCredit, headerDebit, headerCredit string
	err := r.tx.QueryRow(ctx, `WITH per_entry AS (
	SELECT e.id, e.total_debit, e.total_credit,
	       COALESCE(SUM(l.debit), 0) AS line_debit,
	       COALESCE(SUM(l.credit), 0) AS line_credit
	FROM journal_entries e
	LEFT JOIN journal_lines l ON l.entry_id = e.id
	WHERE e.company_id = $1 AND e.status = 'POSTED'
	GROUP BY e.id, e.total_debit, e.total_credit
)
SELECT COUNT(*),
       COALESCE(SUM(line_debit), 0)::text,
       COALESCE(SUM(line_credit), 0)::text,
       COALESCE(SUM(total_debit), 0)::text,
       COALESCE(SUM(total_credit), 0)::text,
       COUNT(*) FILTER (WHERE ABS(line_debit - line_credit) > 0.01)
FROM per_entry`, companyID).Scan(&tb.Entries, &lineDebit, &lineCredit, &headerDebit, &headerCredit, &tb.UnbalancedEntries)
	if err != nil {
		return TrialBalance{}, err
	}
	for _, pair := range []struct {
		dst *decimal.Decimal
		src string
	}{
		{&tb.LineDebit, lineDebit},
		{&tb.LineCredit, lineCredit},
		{&tb.HeaderDebit, headerDebit},
		{&tb.HeaderCredit, headerCredit},
	} {
		v, err := decimal.NewFromString(pair.src)
		if err != nil {
			return TrialBalance{}, err
		}
		*pair.dst = v
	}
	tb.CompanyID = companyID
	return tb, nil
}

func (r *txRepository) ListCompanies(ctx context.Context) ([]int64, error) {
	rows, err := r.tx.Query(ctx, `SELECT DISTINCT company_id FROM accounts ORDER BY company_id`)
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

func nullInt(val int64) any {
	if val == 0 {
		return nil
	}
	return val
}

func toNumeric(v decimal.Decimal) string {
	return v.StringFixed(2)
}
