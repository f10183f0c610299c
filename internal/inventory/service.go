package inventory

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Service turns period movement streams into cost-of-sales and write-down
// events for the ledger.
type Service struct {
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service. integration may be nil, in which case results
// are computed but nothing is posted.
func NewService(integration IntegrationHandler, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{integration: integration, logger: logger, now: time.Now}
}

// WithNow overrides the clock for testing.
func (s *Service) WithNow(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// CloseInput groups the data needed to close one item for a period.
type CloseInput struct {
	CompanyID             int64
	ItemRef               string
	Period                string
	Method                Method
	Movements             []Movement
	EstimatedSellingPrice *float64
	EstimatedCostsToSell  float64
}

// CloseResult reports what was computed and posted.
type CloseResult struct {
	Valuation Valuation
	NRV       *NRVResult
}

// ClosePeriod values the item's movements, recognises cost of sales and, when
// a selling price estimate is supplied, tests the ending inventory against
// NRV and recognises any write-down.
func (s *Service) ClosePeriod(ctx context.Context, in CloseInput) (CloseResult, error) {
	if in.CompanyID <= 0 || in.ItemRef == "" || in.Period == "" {
		return CloseResult{}, errors.New("inventory: company, item and period required")
	}
	valuation, err := Valuate(in.Movements, in.Method)
	if err != nil {
		return CloseResult{}, err
	}
	res := CloseResult{Valuation: valuation}
	now := s.now()
	if s.integration != nil && valuation.COGS > 0 {
		if err := s.integration.HandleCostOfSales(ctx, CostOfSalesEvent{
			CompanyID: in.CompanyID,
			ItemRef:   in.ItemRef,
			Period:    in.Period,
			Method:    in.Method,
			COGS:      valuation.COGS,
			PostedAt:  now,
		}); err != nil {
			return CloseResult{}, err
		}
	}
	if in.EstimatedSellingPrice != nil {
		nrv, err := ApplyNRV(valuation.EndingInventory, *in.EstimatedSellingPrice, in.EstimatedCostsToSell)
		if err != nil {
			return CloseResult{}, err
		}
		res.NRV = &nrv
		if nrv.UseNRV && s.integration != nil {
			if err := s.integration.HandleWriteDown(ctx, WriteDownEvent{
				CompanyID: in.CompanyID,
				ItemRef:   in.ItemRef,
				Period:    in.Period,
				Cost:      nrv.Cost,
				NRV:       nrv.NRV,
				WriteDown: nrv.WriteDown,
				PostedAt:  now,
			}); err != nil {
				return CloseResult{}, err
			}
		}
	}
	s.logger.InfoContext(ctx, "inventory period closed",
		slog.Int64("company_id", in.CompanyID),
		slog.String("item", in.ItemRef),
		slog.String("period", in.Period),
		slog.String("method", string(in.Method)),
		slog.Float64("cogs", valuation.COGS),
		slog.Float64("ending_inventory", valuation.EndingInventory),
	)
	return res, nil
}
