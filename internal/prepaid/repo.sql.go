package prepaid

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAlreadyApplied indicates the months were already saved for the expense.
var ErrAlreadyApplied = errors.New("prepaid: amortization already applied")

// Repository persists prepaid expenses in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const expenseColumns = `id, company_id, description, vendor, total_amount::float8, start_date, end_date,
expense_account, periods_recognized, recognized_amount::float8`

func scanExpense(row pgx.Row) (Expense, error) {
	var e Expense
	err := row.Scan(&e.ID, &e.CompanyID, &e.Description, &e.Vendor, &e.TotalAmount, &e.StartDate, &e.EndDate,
		&e.ExpenseAccount, &e.PeriodsRecognized, &e.RecognizedAmount)
	return e, err
}

// Create inserts a validated prepaid expense and returns it with its id.
func (r *Repository) Create(ctx context.Context, e Expense) (Expense, error) {
	e, err := NewExpense(e)
	if err != nil {
		return Expense{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO prepaid_expenses (company_id, description, vendor, total_amount,
start_date, end_date, expense_account, periods_recognized, recognized_amount)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
		e.CompanyID, e.Description, e.Vendor, e.TotalAmount, e.StartDate, e.EndDate,
		e.ExpenseAccount, e.PeriodsRecognized, e.RecognizedAmount).
		Scan(&e.ID)
	if err != nil {
		return Expense{}, fmt.Errorf("prepaid: insert: %w", err)
	}
	return e, nil
}

// ListActive returns the company's prepaid expenses with an unrecognised
// balance.
func (r *Repository) ListActive(ctx context.Context, companyID int64) ([]Expense, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+expenseColumns+` FROM prepaid_expenses
WHERE company_id=$1 AND recognized_amount < total_amount
ORDER BY id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Expense
	for rows.Next() {
		e, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveAmortization records the months recognised. The update only moves
// forward so a rerun cannot double count.
func (r *Repository) SaveAmortization(ctx context.Context, e Expense) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE prepaid_expenses
SET periods_recognized=$2, recognized_amount=$3, updated_at=NOW()
WHERE id=$1 AND periods_recognized < $2`,
		e.ID, e.PeriodsRecognized, e.RecognizedAmount)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyApplied
	}
	return nil
}
