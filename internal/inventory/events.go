package inventory

import "time"

// CostOfSalesEvent carries the cost recognised for goods issued in a period.
type CostOfSalesEvent struct {
	CompanyID int64
	ItemRef   string
	Period    string
	Method    Method
	COGS      float64
	PostedAt  time.Time
}

// WriteDownEvent carries an IAS 2 write-down to net realisable value.
type WriteDownEvent struct {
	CompanyID int64
	ItemRef   string
	Period    string
	Cost      float64
	NRV       float64
	WriteDown float64
	PostedAt  time.Time
}
