package assets

import (
	"context"
	"time"
)

// DepreciationComputedEvent carries one asset's charge for a period.
type DepreciationComputedEvent struct {
	CompanyID int64
	AssetID   int64
	AssetName string
	Period    string
	Amount    float64
	PostedAt  time.Time
}

// ImpairmentRecognisedEvent carries an IAS 36 impairment loss.
type ImpairmentRecognisedEvent struct {
	CompanyID int64
	AssetID   int64
	AssetName string
	Loss      float64
	PostedAt  time.Time
}

// IntegrationHandler receives asset events for financial integration.
type IntegrationHandler interface {
	HandleDepreciationComputed(ctx context.Context, evt DepreciationComputedEvent) error
	HandleImpairmentRecognised(ctx context.Context, evt ImpairmentRecognisedEvent) error
}
