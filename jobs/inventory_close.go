package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/hibiken/asynq"

	"github.com/odyssey-erp/ifrs-ledger/internal/inventory"
	jobmetrics "github.com/odyssey-erp/ifrs-ledger/internal/jobs"
)

const (
	// TaskInventoryClose values one item's period movements and posts cost of
	// sales and any NRV write-down.
	TaskInventoryClose = "inventory:close"
)

// MovementPayload is the wire form of an inventory movement.
type MovementPayload struct {
	Date     time.Time `json:"date"`
	Type     string    `json:"type"`
	Quantity float64   `json:"quantity"`
	UnitCost float64   `json:"unit_cost"`
	Ref      string    `json:"ref,omitempty"`
}

// InventoryClosePayload carries everything needed to close one item.
type InventoryClosePayload struct {
	CompanyID             int64             `json:"company_id"`
	ItemRef               string            `json:"item_ref"`
	Period                string            `json:"period"`
	Method                string            `json:"method"`
	Movements             []MovementPayload `json:"movements"`
	EstimatedSellingPrice *float64          `json:"estimated_selling_price,omitempty"`
	EstimatedCostsToSell  float64           `json:"estimated_costs_to_sell,omitempty"`
}

// NewInventoryCloseTask constructs an Asynq task for an item period close.
func NewInventoryCloseTask(payload InventoryClosePayload) (*asynq.Task, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskInventoryClose, body, asynq.Queue(QueueDefault)), nil
}

// PeriodCloser closes one inventory item for a period.
type PeriodCloser interface {
	ClosePeriod(ctx context.Context, in inventory.CloseInput) (inventory.CloseResult, error)
}

// InventoryCloseJob handles TaskInventoryClose.
type InventoryCloseJob struct {
	Closer  PeriodCloser
	Logger  *slog.Logger
	Metrics *jobmetrics.Metrics
}

// NewInventoryCloseJob initialises the handler.
func NewInventoryCloseJob(closer PeriodCloser, logger *slog.Logger, metrics *jobmetrics.Metrics) *InventoryCloseJob {
	return &InventoryCloseJob{Closer: closer, Logger: logger, Metrics: metrics}
}

// Handle closes the item. Invalid movement histories are not retried.
func (j *InventoryCloseJob) Handle(ctx context.Context, t *asynq.Task) (resultErr error) {
	if j == nil || j.Closer == nil {
		return errors.New("inventory close: handler not configured")
	}
	var payload InventoryClosePayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.Metrics.Track(TaskInventoryClose)
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	in := inventory.CloseInput{
		CompanyID:             payload.CompanyID,
		ItemRef:               payload.ItemRef,
		Period:                payload.Period,
		Method:                inventory.Method(payload.Method),
		Movements:             make([]inventory.Movement, len(payload.Movements)),
		EstimatedSellingPrice: payload.EstimatedSellingPrice,
		EstimatedCostsToSell:  payload.EstimatedCostsToSell,
	}
	for i, m := range payload.Movements {
		in.Movements[i] = inventory.Movement{
			Date:     m.Date,
			Type:     inventory.MovementType(m.Type),
			Quantity: m.Quantity,
			UnitCost: m.UnitCost,
			Ref:      m.Ref,
		}
	}

	logger := j.logger().With(
		slog.Int64("company_id", payload.CompanyID),
		slog.String("item", payload.ItemRef),
		slog.String("period", payload.Period),
	)
	res, err := j.Closer.ClosePeriod(ctx, in)
	if err != nil {
		logger.Error("inventory close failed", slog.Any("error", err))
		if errors.Is(err, inventory.ErrInvalidMovement) ||
			errors.Is(err, inventory.ErrInsufficientInventory) ||
			errors.Is(err, inventory.ErrUnknownMethod) ||
			errors.Is(err, inventory.ErrInvalidAmount) {
			return fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		}
		return err
	}
	if res.NRV != nil && res.NRV.UseNRV {
		logger.Warn("inventory written down to NRV", slog.Float64("write_down", res.NRV.WriteDown))
	}
	return nil
}

func (j *InventoryCloseJob) logger() *slog.Logger {
	if j.Logger != nil {
		return j.Logger
	}
	return slog.Default()
}
