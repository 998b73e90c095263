package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/aybabtme/uniplot/histogram"
	"github.com/olekukonko/tablewriter"

	"github.com/dtshaba/goldengine/internal/core"
)

// Report renders a Result the way results_reporter.py renders a backtest
// results dict: a text summary table plus an equity-curve histogram,
// grounded on the teacher's own tablewriter/uniplot usage in backnrun.go.
func Report(result Result) string {
	b := &strings.Builder{}

	fmt.Fprintln(b, strings.Repeat("=", 80))
	fmt.Fprintln(b, "BACKTEST PERFORMANCE REPORT")
	fmt.Fprintln(b, strings.Repeat("=", 80))
	fmt.Fprintf(b, "PERIOD: %s to %s\n", result.StartTime.Format("2006-01-02"), result.EndTime.Format("2006-01-02"))
	fmt.Fprintf(b, "STARTING EQUITY: $%.2f\n", result.StartingEquity)
	fmt.Fprintf(b, "FINAL EQUITY: $%.2f\n", result.FinalEquity)
	fmt.Fprintf(b, "TOTAL RETURN: %.2f%%\n", result.TotalReturnPercent)
	fmt.Fprintf(b, "MAX DRAWDOWN: %.2f%%\n\n", result.MaxDrawdownPercent)

	s := result.Summary
	signalToTrade := 0.0
	if result.TotalSignals > 0 {
		signalToTrade = float64(s.TotalTrades) / float64(result.TotalSignals) * 100
	}

	table := tablewriter.NewWriter(b)
	table.SetHeader([]string{"Metric", "Value"})
	table.SetFooterAlignment(tablewriter.ALIGN_RIGHT)
	table.AppendBulk([][]string{
		{"Total Trades", strconv.Itoa(s.TotalTrades)},
		{"Total Signals", strconv.Itoa(result.TotalSignals)},
		{"Signal-to-Trade Ratio", fmt.Sprintf("%.1f%%", signalToTrade)},
		{"Wins", strconv.Itoa(s.Wins)},
		{"Losses", strconv.Itoa(s.Losses)},
		{"Win Rate", fmt.Sprintf("%.2f%%", s.WinRate)},
		{"Total P&L", fmt.Sprintf("$%.2f", s.TotalPnL)},
		{"Average Win", fmt.Sprintf("$%.2f", s.AverageWin)},
		{"Average Loss", fmt.Sprintf("$%.2f", s.AverageLoss)},
		{"Profit Factor", fmt.Sprintf("%.2f", s.ProfitFactor)},
		{"Best Trade", fmt.Sprintf("$%.2f", s.BestTrade)},
		{"Worst Trade", fmt.Sprintf("$%.2f", s.WorstTrade)},
		{"Average Hold Time", fmt.Sprintf("%.1f minutes", s.AverageHoldSeconds/60)},
	})
	table.Render()

	if len(result.EquityCurve) > 1 {
		fmt.Fprintln(b, "\nEQUITY CURVE")
		hist := histogram.Hist(15, result.EquityCurve)
		histogram.Fprint(b, hist, histogram.Linear(60))
	}

	monthly := monthlyStats(result.Trades)
	if len(monthly) > 0 {
		fmt.Fprintln(b, "\nMONTHLY BREAKDOWN")
		keys := make([]string, 0, len(monthly))
		for k := range monthly {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			st := monthly[k]
			fmt.Fprintf(b, "%s: %d trades, %.1f%% win rate, $%.2f P&L\n", k, st.trades, st.winRate(), st.pnl)
		}
	}

	fmt.Fprintln(b, strings.Repeat("=", 80))
	fmt.Fprintln(b, "END OF REPORT")
	fmt.Fprintln(b, strings.Repeat("=", 80))

	return b.String()
}

type monthBucket struct {
	trades, wins int
	pnl          float64
}

func (m monthBucket) winRate() float64 {
	if m.trades == 0 {
		return 0
	}
	return float64(m.wins) / float64(m.trades) * 100
}

func monthlyStats(trades []core.Trade) map[string]monthBucket {
	out := map[string]monthBucket{}
	for _, t := range trades {
		if t.ExitTime == nil {
			continue
		}
		key := t.EntryTime.Format("2006-01")
		b := out[key]
		b.trades++
		b.pnl += t.RealizedPnL
		if t.RealizedPnL > 0 {
			b.wins++
		}
		out[key] = b
	}
	return out
}

// ExportTradesCSV writes every trade in result to a CSV file, mirroring
// results_reporter.py's export_to_csv field layout.
func ExportTradesCSV(result Result, path string) error {
	if len(result.Trades) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{
		"ticket", "direction", "entry_price", "exit_price", "lot_size",
		"stop_loss", "take_profit", "entry_time", "exit_time", "pnl",
		"exit_reason", "hold_time_seconds",
	}); err != nil {
		return err
	}

	for _, t := range result.Trades {
		exitPrice, exitTime := "", ""
		if t.ExitPrice != nil {
			exitPrice = strconv.FormatFloat(*t.ExitPrice, 'f', 2, 64)
		}
		if t.ExitTime != nil {
			exitTime = t.ExitTime.Format("2006-01-02T15:04:05Z07:00")
		}
		row := []string{
			strconv.FormatInt(t.Ticket, 10),
			string(t.Direction),
			strconv.FormatFloat(t.EntryPrice, 'f', 2, 64),
			exitPrice,
			strconv.FormatFloat(t.LotSize, 'f', 2, 64),
			strconv.FormatFloat(t.StopLoss, 'f', 2, 64),
			strconv.FormatFloat(t.TakeProfit, 'f', 2, 64),
			t.EntryTime.Format("2006-01-02T15:04:05Z07:00"),
			exitTime,
			strconv.FormatFloat(t.RealizedPnL, 'f', 2, 64),
			t.ExitReason,
			strconv.FormatFloat(t.HoldSeconds, 'f', 0, 64),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// ExportSummaryJSON writes result's summary and top-level metrics to a JSON
// file, mirroring results_reporter.py's export_summary_to_json.
func ExportSummaryJSON(result Result, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	payload := struct {
		Summary            Summary   `json:"summary"`
		StartingEquity     float64   `json:"starting_equity"`
		FinalEquity        float64   `json:"final_equity"`
		TotalReturnPercent float64   `json:"total_return_percent"`
		MaxDrawdownPercent float64   `json:"max_drawdown_percent"`
		TotalTrades        int       `json:"total_trades"`
		TotalSignals       int       `json:"total_signals"`
	}{
		Summary:            result.Summary,
		StartingEquity:     result.StartingEquity,
		FinalEquity:        result.FinalEquity,
		TotalReturnPercent: result.TotalReturnPercent,
		MaxDrawdownPercent: result.MaxDrawdownPercent,
		TotalTrades:        len(result.Trades),
		TotalSignals:       result.TotalSignals,
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create json: %w", err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(payload)
}
