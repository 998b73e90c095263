package storage

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/dtshaba/goldengine/internal/core"
)

// GormStore implements the execution.Store/position.Store collaborator
// surfaces against any GORM dialect, adapted from the teacher's SQLStorage.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens dialect, migrates the schema, and returns a GormStore.
func NewGormStore(dialect gorm.Dialector, opts ...gorm.Option) (*GormStore, error) {
	db, err := gorm.Open(dialect, opts...)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("get database instance: %w", err)
	}
	sqlDB.SetMaxIdleConns(10)
	sqlDB.SetMaxOpenConns(100)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&signalRow{}, &tradeRow{}, &eventRow{}); err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &GormStore{db: db}, nil
}

func (s *GormStore) RecordSignal(sig core.Signal) (int64, error) {
	row := signalRow{
		Direction: string(sig.Direction), EntryType: string(sig.EntryType),
		Confidence: sig.Confidence, Price: sig.Price, Reason: sig.Reason,
		Timestamp: sig.Timestamp,
	}
	if result := s.db.Create(&row); result.Error != nil {
		return 0, fmt.Errorf("record signal: %w", result.Error)
	}
	return row.ID, nil
}

func (s *GormStore) RecordTradeEntry(ticket, signalID int64, sig core.Signal, fillPrice, lot, sl, tp float64, at time.Time) error {
	row := toTradeRow(ticket, signalID, fillPrice, lot, sl, tp, sig.Direction, at)
	if result := s.db.Create(&row); result.Error != nil {
		return fmt.Errorf("record trade entry: %w", result.Error)
	}
	return nil
}

func (s *GormStore) RecordTradeExit(ticket int64, exitPrice, pnl, holdSeconds float64, exitReason string) error {
	result := s.db.Model(&tradeRow{}).Where("ticket = ?", ticket).Updates(map[string]any{
		"exit_price":   exitPrice,
		"exit_time":    time.Now(),
		"exit_reason":  exitReason,
		"realized_pnl": pnl,
		"hold_seconds": holdSeconds,
	})
	if result.Error != nil {
		return fmt.Errorf("record trade exit: %w", result.Error)
	}
	return nil
}

func (s *GormStore) RecordPartialClose(ticket int64, fraction, price float64, at time.Time) error {
	var row tradeRow
	if result := s.db.Where("ticket = ?", ticket).First(&row); result.Error != nil {
		return fmt.Errorf("find trade for partial close: %w", result.Error)
	}

	var partials []core.PartialExit
	if len(row.PartialExits) > 0 {
		if err := json.Unmarshal(row.PartialExits, &partials); err != nil {
			return fmt.Errorf("decode partial exits: %w", err)
		}
	}
	partials = append(partials, core.PartialExit{FractionClosed: fraction, Price: price, Time: at})

	encoded, err := json.Marshal(partials)
	if err != nil {
		return fmt.Errorf("encode partial exits: %w", err)
	}

	result := s.db.Model(&tradeRow{}).Where("ticket = ?", ticket).Update("partial_exits", encoded)
	if result.Error != nil {
		return fmt.Errorf("persist partial close: %w", result.Error)
	}
	return nil
}

func (s *GormStore) RecordEvent(evt core.Event) error {
	row := eventRow{
		Type: string(evt.Type), Reason: evt.Reason, StartTime: evt.StartTime,
		EndTime: evt.EndTime, LossCount: evt.LossCount, DailyPnL: evt.DailyPnL,
	}
	if result := s.db.Create(&row); result.Error != nil {
		return fmt.Errorf("record event: %w", result.Error)
	}
	return nil
}

func (s *GormStore) GetRecentTrades(n int) ([]core.Trade, error) {
	var rows []tradeRow
	result := s.db.Order("entry_time desc").Limit(n).Find(&rows)
	if result.Error != nil {
		return nil, fmt.Errorf("fetch recent trades: %w", result.Error)
	}
	trades := make([]core.Trade, len(rows))
	for i, r := range rows {
		trades[i] = r.toTrade()
	}
	return trades, nil
}

func (s *GormStore) GetSessionPnL(date time.Time) (float64, error) {
	start := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, date.Location())
	end := start.Add(24 * time.Hour)

	var total float64
	row := s.db.Model(&tradeRow{}).
		Where("entry_time >= ? AND entry_time < ? AND exit_time IS NOT NULL", start, end).
		Select("COALESCE(SUM(realized_pnl), 0)").Row()
	if err := row.Scan(&total); err != nil {
		return 0, fmt.Errorf("sum session pnl: %w", err)
	}
	return total, nil
}

func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("get database instance: %w", err)
	}
	return sqlDB.Close()
}
