package storage

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/tidwall/buntdb"

	"github.com/dtshaba/goldengine/internal/core"
)

// BuntStore implements the execution.Store/position.Store collaborator
// surfaces against an embedded BuntDB file or in-memory database, adapted
// from the teacher's BuntStorage.
type BuntStore struct {
	db          *buntdb.DB
	lastSignal  int64
	lastTrade   int64
	lastEventID int64
}

// NewBuntStoreMemory opens an in-memory store.
func NewBuntStoreMemory() (*BuntStore, error) {
	return newBuntStore(":memory:")
}

// NewBuntStoreFile opens a file-backed store.
func NewBuntStoreFile(path string) (*BuntStore, error) {
	return newBuntStore(path)
}

func newBuntStore(path string) (*BuntStore, error) {
	db, err := buntdb.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open buntdb: %w", err)
	}
	return &BuntStore{db: db}, nil
}

func (b *BuntStore) RecordSignal(sig core.Signal) (int64, error) {
	id := atomic.AddInt64(&b.lastSignal, 1)
	row := signalRow{
		ID: id, Direction: string(sig.Direction), EntryType: string(sig.EntryType),
		Confidence: sig.Confidence, Price: sig.Price, Reason: sig.Reason, Timestamp: sig.Timestamp,
	}
	content, err := json.Marshal(row)
	if err != nil {
		return 0, fmt.Errorf("marshal signal: %w", err)
	}
	err = b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(signalKey(id), string(content), nil)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("store signal: %w", err)
	}
	return id, nil
}

func (b *BuntStore) RecordTradeEntry(ticket, signalID int64, sig core.Signal, fillPrice, lot, sl, tp float64, at time.Time) error {
	row := toTradeRow(ticket, signalID, fillPrice, lot, sl, tp, sig.Direction, at)
	return b.putTrade(ticket, row)
}

func (b *BuntStore) RecordTradeExit(ticket int64, exitPrice, pnl, holdSeconds float64, exitReason string) error {
	row, err := b.getTrade(ticket)
	if err != nil {
		return err
	}
	now := time.Now()
	row.ExitPrice = &exitPrice
	row.ExitTime = &now
	row.ExitReason = exitReason
	row.RealizedPnL = pnl
	row.HoldSeconds = holdSeconds
	return b.putTrade(ticket, row)
}

func (b *BuntStore) RecordPartialClose(ticket int64, fraction, price float64, at time.Time) error {
	row, err := b.getTrade(ticket)
	if err != nil {
		return err
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
	row.PartialExits = encoded
	return b.putTrade(ticket, row)
}

func (b *BuntStore) RecordEvent(evt core.Event) error {
	id := atomic.AddInt64(&b.lastEventID, 1)
	row := eventRow{
		ID: id, Type: string(evt.Type), Reason: evt.Reason, StartTime: evt.StartTime,
		EndTime: evt.EndTime, LossCount: evt.LossCount, DailyPnL: evt.DailyPnL,
	}
	content, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(eventKey(id), string(content), nil)
		return err
	})
}

func (b *BuntStore) GetRecentTrades(n int) ([]core.Trade, error) {
	var rows []tradeRow
	err := b.db.View(func(tx *buntdb.Tx) error {
		return tx.Ascend("", func(key, value string) bool {
			if !isTradeKey(key) {
				return true
			}
			var row tradeRow
			if err := json.Unmarshal([]byte(value), &row); err == nil {
				rows = append(rows, row)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("scan trades: %w", err)
	}

	sort.Slice(rows, func(i, j int) bool { return rows[i].EntryTime.After(rows[j].EntryTime) })
	if len(rows) > n {
		rows = rows[:n]
	}

	trades := make([]core.Trade, len(rows))
	for i, r := range rows {
		trades[i] = r.toTrade()
	}
	return trades, nil
}

func (b *BuntStore) GetSessionPnL(date time.Time) (float64, error) {
	trades, err := b.GetRecentTrades(10000)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, t := range trades {
		if t.ExitTime == nil {
			continue
		}
		if sameDay(t.EntryTime, date) {
			total += t.RealizedPnL
		}
	}
	return total, nil
}

func (b *BuntStore) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *BuntStore) getTrade(ticket int64) (tradeRow, error) {
	var row tradeRow
	err := b.db.View(func(tx *buntdb.Tx) error {
		value, err := tx.Get(tradeKey(ticket))
		if err != nil {
			return fmt.Errorf("trade %d not found: %w", ticket, err)
		}
		return json.Unmarshal([]byte(value), &row)
	})
	return row, err
}

func (b *BuntStore) putTrade(ticket int64, row tradeRow) error {
	content, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	return b.db.Update(func(tx *buntdb.Tx) error {
		_, _, err := tx.Set(tradeKey(ticket), string(content), nil)
		return err
	})
}

func signalKey(id int64) string { return "signal:" + strconv.FormatInt(id, 10) }
func eventKey(id int64) string  { return "event:" + strconv.FormatInt(id, 10) }
func tradeKey(ticket int64) string { return "trade:" + strconv.FormatInt(ticket, 10) }

func isTradeKey(key string) bool {
	return len(key) > 6 && key[:6] == "trade:"
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
