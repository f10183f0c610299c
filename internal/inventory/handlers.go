package inventory

import "context"

// IntegrationHandler receives inventory events for financial integration.
type IntegrationHandler interface {
	HandleCostOfSales(ctx context.Context, evt CostOfSalesEvent) error
	HandleWriteDown(ctx context.Context, evt WriteDownEvent) error
}
