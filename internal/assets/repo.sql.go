package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrAssetNotFound indicates a missing fixed asset.
var ErrAssetNotFound = errors.New("assets: fixed asset not found")

// Repository persists fixed assets in PostgreSQL.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const assetColumns = `id, company_id, name, acquisition_date, acquisition_cost::float8, residual_value::float8,
COALESCE(useful_life_years, 0), COALESCE(useful_life_units, 0)::float8, method, declining_rate::float8,
accumulated_depreciation::float8, units_produced::float8, COALESCE(last_depreciated_period, '')`

func scanAsset(row pgx.Row) (FixedAsset, error) {
	var a FixedAsset
	err := row.Scan(&a.ID, &a.CompanyID, &a.Name, &a.AcquisitionDate, &a.AcquisitionCost, &a.ResidualValue,
		&a.UsefulLifeYears, &a.UsefulLifeUnits, &a.Method, &a.DecliningRate,
		&a.AccumulatedDepreciation, &a.UnitsProducedToDate, &a.LastDepreciatedPeriod)
	return a, err
}

// Create inserts a validated asset and returns it with its id.
func (r *Repository) Create(ctx context.Context, a FixedAsset) (FixedAsset, error) {
	a, err := NewFixedAsset(a)
	if err != nil {
		return FixedAsset{}, err
	}
	err = r.pool.QueryRow(ctx, `INSERT INTO fixed_assets (company_id, name, acquisition_date, acquisition_cost, residual_value,
useful_life_years, useful_life_units, method, declining_rate, accumulated_depreciation, units_produced)
VALUES ($1,$2,$3,$4,$5,NULLIF($6,0),NULLIF($7,0),$8,$9,$10,$11) RETURNING id`,
		a.CompanyID, a.Name, a.AcquisitionDate, a.AcquisitionCost, a.ResidualValue,
		a.UsefulLifeYears, a.UsefulLifeUnits, a.Method, a.DecliningRate, a.AccumulatedDepreciation, a.UnitsProducedToDate).
		Scan(&a.ID)
	if err != nil {
		return FixedAsset{}, fmt.Errorf("assets: insert: %w", err)
	}
	return a, nil
}

// Get loads one asset.
func (r *Repository) Get(ctx context.Context, companyID, assetID int64) (FixedAsset, error) {
	a, err := scanAsset(r.pool.QueryRow(ctx, `SELECT `+assetColumns+` FROM fixed_assets WHERE company_id=$1 AND id=$2`, companyID, assetID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FixedAsset{}, ErrAssetNotFound
		}
		return FixedAsset{}, err
	}
	return a, nil
}

// ListDepreciable returns assets acquired by the end of period that still have
// depreciable amount left and have not been depreciated for period yet.
func (r *Repository) ListDepreciable(ctx context.Context, companyID int64, period string) ([]FixedAsset, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+assetColumns+` FROM fixed_assets
WHERE company_id=$1
  AND acquisition_date < (to_date($2, 'YYYY-MM') + INTERVAL '1 month')
  AND accumulated_depreciation < acquisition_cost - residual_value
  AND (last_depreciated_period IS NULL OR last_depreciated_period < $2)
ORDER BY id`, companyID, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []FixedAsset
	for rows.Next() {
		a, err := scanAsset(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UsageForPeriod returns units produced in period keyed by asset id.
func (r *Repository) UsageForPeriod(ctx context.Context, companyID int64, period string) (map[int64]float64, error) {
	rows, err := r.pool.Query(ctx, `SELECT u.asset_id, u.units::float8 FROM fixed_asset_usage u
JOIN fixed_assets a ON a.id = u.asset_id
WHERE a.company_id=$1 AND u.period=$2`, companyID, period)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make(map[int64]float64)
	for rows.Next() {
		var (
			id    int64
			units float64
		)
		if err := rows.Scan(&id, &units); err != nil {
			return nil, err
		}
		out[id] = units
	}
	return out, rows.Err()
}

// SaveDepreciation records the period charge. The update is skipped when the
// period was already applied so reruns cannot double count.
func (r *Repository) SaveDepreciation(ctx context.Context, asset FixedAsset, period string) error {
	cmd, err := r.pool.Exec(ctx, `UPDATE fixed_assets
SET accumulated_depreciation=$3, units_produced=$4, last_depreciated_period=$2, updated_at=NOW()
WHERE id=$1 AND (last_depreciated_period IS NULL OR last_depreciated_period < $2)`,
		asset.ID, period, asset.AccumulatedDepreciation, asset.UnitsProducedToDate)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return ErrAlreadyApplied
	}
	return nil
}

// ErrAlreadyApplied indicates the period was already saved for the asset.
var ErrAlreadyApplied = errors.New("assets: period already applied")
