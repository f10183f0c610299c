package revenue

import (
	"context"
	"time"
)

// RevenueRecognisedEvent carries revenue recognised on one obligation.
type RevenueRecognisedEvent struct {
	CompanyID        int64
	ContractID       string
	ObligationID     string
	Description      string
	Amount           float64
	RecognizedToDate float64
	PostedAt         time.Time
}

// ContractPositionEvent carries a contract asset to be recognised.
type ContractPositionEvent struct {
	CompanyID     int64
	ContractID    string
	ContractAsset float64
	PostedAt      time.Time
}

// IntegrationHandler receives revenue events for financial integration.
type IntegrationHandler interface {
	HandleRevenueRecognised(ctx context.Context, evt RevenueRecognisedEvent) error
	HandleContractPosition(ctx context.Context, evt ContractPositionEvent) error
}
