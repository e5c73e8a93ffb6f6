// Package gormstore implements order persistence on Gorm + SQLite.
package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"ordercore/internal/order"
	storemodel "ordercore/internal/store/model"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

type GormStore struct {
	db *gorm.DB
}

func New(path string) (*GormStore, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("gorm store: database path cannot be empty")
	}
	if err := ensureDir(path); err != nil {
		return nil, err
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&cache=shared", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&storemodel.OrderModel{}); err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	// SQLite + WAL: a little read parallelism without lock churn.
	sqlDB.SetMaxOpenConns(2)
	sqlDB.SetMaxIdleConns(2)
	return &GormStore{db: db}, nil
}

func ensureDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func (s *GormStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save upserts the full record keyed by order id. The engine may save the
// same id many times as the order moves through its lifecycle.
func (s *GormStore) Save(ctx context.Context, o *order.Order) error {
	if o == nil || o.ID == "" {
		return fmt.Errorf("gorm store: order id required")
	}
	m, err := toModel(o)
	if err != nil {
		return err
	}
	return s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(m).Error
}

func (s *GormStore) Load(ctx context.Context, id string) (*order.Order, error) {
	var m storemodel.OrderModel
	err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("order %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return fromModel(&m)
}

func (s *GormStore) FindBySymbol(ctx context.Context, symbol string, status order.Status) ([]*order.Order, error) {
	q := s.db.WithContext(ctx).Where("symbol = ?", order.NormalizeSymbol(symbol))
	if status != "" {
		q = q.Where("status = ?", string(status))
	}
	var models []storemodel.OrderModel
	if err := q.Order("seq asc").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]*order.Order, 0, len(models))
	for i := range models {
		o, err := fromModel(&models[i])
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

func toModel(o *order.Order) (*storemodel.OrderModel, error) {
	conds, err := json.Marshal(o.Conditions)
	if err != nil {
		return nil, fmt.Errorf("encoding conditions for %s: %w", o.ID, err)
	}
	reports, err := json.Marshal(o.ExecutionReports)
	if err != nil {
		return nil, fmt.Errorf("encoding reports for %s: %w", o.ID, err)
	}
	dormant := 0
	if o.Dormant {
		dormant = 1
	}
	return &storemodel.OrderModel{
		ID:                 o.ID,
		PortfolioID:        o.PortfolioID,
		Symbol:             order.NormalizeSymbol(o.Symbol),
		Seq:                o.Seq,
		Type:               string(o.Type),
		Side:               string(o.Side),
		TimeInForce:        string(o.TimeInForce),
		Quantity:           o.Quantity,
		LimitPrice:         o.LimitPrice,
		StopPrice:          o.StopPrice,
		TriggerPrice:       o.TriggerPrice,
		TrailAmount:        o.TrailAmount,
		TrailPercent:       o.TrailPercent,
		HighWaterMark:      o.HighWaterMark,
		ParentOrderID:      o.ParentOrderID,
		OCOGroupID:         o.OCOGroupID,
		Dormant:            dormant,
		ConditionsJSON:     conds,
		Status:             string(o.Status),
		FillCount:          o.FillCount,
		AvgExecutionPrice:  o.AvgExecutionPrice,
		Commission:         o.Commission,
		ReportsJSON:        reports,
		CancellationReason: o.CancellationReason,
		SubmittedAtUnix:    o.SubmittedAt.Unix(),
		UpdatedAtUnix:      o.UpdatedAt.Unix(),
	}, nil
}

func fromModel(m *storemodel.OrderModel) (*order.Order, error) {
	o := &order.Order{
		ID:                 m.ID,
		PortfolioID:        m.PortfolioID,
		Symbol:             m.Symbol,
		Seq:                m.Seq,
		Type:               order.Type(m.Type),
		Side:               order.Side(m.Side),
		TimeInForce:        order.TimeInForce(m.TimeInForce),
		Quantity:           m.Quantity,
		LimitPrice:         m.LimitPrice,
		StopPrice:          m.StopPrice,
		TriggerPrice:       m.TriggerPrice,
		TrailAmount:        m.TrailAmount,
		TrailPercent:       m.TrailPercent,
		HighWaterMark:      m.HighWaterMark,
		ParentOrderID:      m.ParentOrderID,
		OCOGroupID:         m.OCOGroupID,
		Dormant:            m.Dormant != 0,
		Status:             order.Status(m.Status),
		FillCount:          m.FillCount,
		AvgExecutionPrice:  m.AvgExecutionPrice,
		Commission:         m.Commission,
		CancellationReason: m.CancellationReason,
		SubmittedAt:        time.Unix(m.SubmittedAtUnix, 0).UTC(),
		UpdatedAt:          time.Unix(m.UpdatedAtUnix, 0).UTC(),
	}
	if len(m.ConditionsJSON) > 0 {
		if err := json.Unmarshal(m.ConditionsJSON, &o.Conditions); err != nil {
			return nil, fmt.Errorf("decoding conditions for %s: %w", m.ID, err)
		}
	}
	if len(m.ReportsJSON) > 0 {
		if err := json.Unmarshal(m.ReportsJSON, &o.ExecutionReports); err != nil {
			return nil, fmt.Errorf("decoding reports for %s: %w", m.ID, err)
		}
	}
	return o, nil
}
