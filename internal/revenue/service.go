package revenue

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// Service records contract progress and forwards the resulting revenue to the
// ledger.
type Service struct {
	integration IntegrationHandler
	logger      *slog.Logger
	now         func() time.Time
}

// NewService builds Service.
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

// RecordProgress applies progress to an obligation and posts the incremental
// revenue. The contract is updated in place.
func (s *Service) RecordProgress(ctx context.Context, c *Contract, obligationID string, p Progress) (float64, error) {
	if c == nil {
		return 0, errors.New("revenue: contract required")
	}
	before := *c
	before.Obligations = append([]PerformanceObligation(nil), c.Obligations...)

	amount, err := c.Recognize(obligationID, p)
	if err != nil {
		return 0, err
	}
	if amount == 0 || s.integration == nil {
		return amount, nil
	}
	o, _ := c.Obligation(obligationID)
	err = s.integration.HandleRevenueRecognised(ctx, RevenueRecognisedEvent{
		CompanyID:        c.CompanyID,
		ContractID:       c.ID,
		ObligationID:     o.ID,
		Description:      o.Description,
		Amount:           amount,
		RecognizedToDate: o.RecognizedAmount,
		PostedAt:         s.now(),
	})
	if err != nil {
		*c = before
		return 0, err
	}
	s.logger.InfoContext(ctx, "revenue recognised",
		slog.Int64("company_id", c.CompanyID),
		slog.String("contract_id", c.ID),
		slog.String("obligation_id", o.ID),
		slog.Float64("amount", amount),
		slog.String("status", string(c.Status)),
	)
	return amount, nil
}

// PostPosition summarises the contract and posts any contract asset.
func (s *Service) PostPosition(ctx context.Context, c *Contract) (Summary, error) {
	if c == nil {
		return Summary{}, errors.New("revenue: contract required")
	}
	summary, err := c.Summary()
	if err != nil {
		return Summary{}, err
	}
	if summary.ContractAsset > 0 && s.integration != nil {
		if err := s.integration.HandleContractPosition(ctx, ContractPositionEvent{
			CompanyID:     c.CompanyID,
			ContractID:    c.ID,
			ContractAsset: summary.ContractAsset,
			PostedAt:      s.now(),
		}); err != nil {
			return Summary{}, err
		}
	}
	return summary, nil
}
