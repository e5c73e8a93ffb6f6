package model

import (
	"gorm.io/datatypes"
)

// OrderModel is the gorm mapping of an order record. Structured slices
// (execution reports, conditions) are stored as JSON columns; everything
// the engine filters on gets its own indexed column.
type OrderModel struct {
	ID          string `gorm:"column:id;primaryKey"`
	PortfolioID string `gorm:"column:portfolio_id;index"`
	Symbol      string `gorm:"column:symbol;index:idx_symbol_status,priority:1"`
	Seq         uint64 `gorm:"column:seq"`

	Type        string `gorm:"column:order_type"`
	Side        string `gorm:"column:side"`
	TimeInForce string `gorm:"column:time_in_force"`

	Quantity     float64 `gorm:"column:quantity"`
	LimitPrice   float64 `gorm:"column:limit_price"`
	StopPrice    float64 `gorm:"column:stop_price"`
	TriggerPrice float64 `gorm:"column:trigger_price"`

	TrailAmount   float64 `gorm:"column:trail_amount"`
	TrailPercent  float64 `gorm:"column:trail_percent"`
	HighWaterMark float64 `gorm:"column:high_water_mark"`

	ParentOrderID string `gorm:"column:parent_order_id;index"`
	OCOGroupID    string `gorm:"column:oco_group_id;index"`
	Dormant       int    `gorm:"column:dormant"`

	ConditionsJSON datatypes.JSON `gorm:"column:conditions_json;type:TEXT"`

	Status             string         `gorm:"column:status;index:idx_symbol_status,priority:2"`
	FillCount          float64        `gorm:"column:fill_count"`
	AvgExecutionPrice  float64        `gorm:"column:avg_execution_price"`
	Commission         float64        `gorm:"column:commission"`
	ReportsJSON        datatypes.JSON `gorm:"column:reports_json;type:TEXT"`
	CancellationReason string         `gorm:"column:cancellation_reason"`

	SubmittedAtUnix int64 `gorm:"column:submitted_at"`
	UpdatedAtUnix   int64 `gorm:"column:updated_at"`
}

func (OrderModel) TableName() string { return "orders" }
