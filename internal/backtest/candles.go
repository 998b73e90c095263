package backtest

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/dtshaba/goldengine/internal/core"
)

// LoadM1CSV reads a CSV of M1 candles (time,open,high,low,close,volume),
// the CSV shape `backnrun.go`'s own candle loading expects and the natural
// on-disk form of MT5's exported rates the original source's
// HistoricalDataFetcher pulls via copy_rates_range.
func LoadM1CSV(path string) ([]core.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open candle csv: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 6

	var candles []core.Candle
	first := true
	for {
		record, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read candle csv: %w", err)
		}
		if first {
			first = false
			if _, convErr := strconv.ParseFloat(record[1], 64); convErr != nil {
				continue // header row
			}
		}

		candle, err := parseCandleRow(record)
		if err != nil {
			return nil, err
		}
		candles = append(candles, candle)
	}
	return candles, nil
}

func parseCandleRow(record []string) (core.Candle, error) {
	t, err := parseCandleTime(record[0])
	if err != nil {
		return core.Candle{}, fmt.Errorf("parse time %q: %w", record[0], err)
	}
	open, err1 := strconv.ParseFloat(record[1], 64)
	high, err2 := strconv.ParseFloat(record[2], 64)
	low, err3 := strconv.ParseFloat(record[3], 64)
	close_, err4 := strconv.ParseFloat(record[4], 64)
	volume, err5 := strconv.ParseFloat(record[5], 64)
	for _, e := range []error{err1, err2, err3, err4, err5} {
		if e != nil {
			return core.Candle{}, fmt.Errorf("parse candle row: %w", e)
		}
	}
	return core.Candle{Time: t, Open: open, High: high, Low: low, Close: close_, Volume: volume}, nil
}

func parseCandleTime(s string) (time.Time, error) {
	layouts := []string{time.RFC3339, "2006-01-02 15:04:05", "2006-01-02T15:04:05"}
	var lastErr error
	for _, layout := range layouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		} else {
			lastErr = err
		}
	}
	return time.Time{}, lastErr
}

// AggregateM5 builds M5 candles from a contiguous, time-ordered M1 slice,
// grouping every 5 bars into one. Used when only M1 history is on disk,
// the mirror image of the original source's generate_m1_from_m5 fallback.
func AggregateM5(m1 []core.Candle) []core.Candle {
	var m5 []core.Candle
	for i := 0; i+5 <= len(m1); i += 5 {
		group := m1[i : i+5]
		agg := core.Candle{
			Time: group[0].Time, Open: group[0].Open, Close: group[len(group)-1].Close,
			High: group[0].High, Low: group[0].Low,
		}
		for _, c := range group {
			if c.High > agg.High {
				agg.High = c.High
			}
			if c.Low < agg.Low {
				agg.Low = c.Low
			}
			agg.Volume += c.Volume
		}
		m5 = append(m5, agg)
	}
	return m5
}
