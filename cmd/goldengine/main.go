package main

import (
	"context"
	"fmt"
	"os"
	ossignal "os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/dtshaba/goldengine/internal/backtest"
	"github.com/dtshaba/goldengine/internal/config"
	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/internal/execution"
	"github.com/dtshaba/goldengine/internal/notify"
	"github.com/dtshaba/goldengine/internal/storage"
	"github.com/dtshaba/goldengine/pkg/logger"
	zerologadapter "github.com/dtshaba/goldengine/pkg/logger/zerolog"

	"gorm.io/driver/sqlite"
)

const dateLayout = "2006-01-02"

var (
	configPath string

	btStart      string
	btEnd        string
	btCandlesCSV string
	btEquity     float64
	btOutputDir  string
	btNoCSV      bool
	btNoJSON     bool
	btSpread     float64
	btSlippage   float64
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "goldengine",
		Short:   "Intraday XAUUSD execution engine",
		Version: "1.0.0",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "Path to config file")

	rootCmd.AddCommand(buildLiveCmd())
	rootCmd.AddCommand(buildBacktestCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLog() (logger.Logger, error) {
	zl, err := zerologadapter.NewZerolog("info", time.RFC3339, true, false)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}
	return zerologadapter.NewAdapter(zl.Logger), nil
}

func buildLiveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "live",
		Short: "Run the execution loop against a live broker until interrupted",
		RunE:  runLive,
	}
}

func runLive(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	store, err := openStore(cfg.Storage)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}

	var notifier *notify.Telegram
	if cfg.Notify.TelegramToken != "" {
		notifier, err = notify.NewTelegram(notify.Config{Token: cfg.Notify.TelegramToken, UserIDs: cfg.Notify.TelegramUserIDs}, log)
		if err != nil {
			log.WithError(err).Warn("telegram notifier disabled")
		}
	}
	_ = notifier // wired for future exit/halt alert hooks; RunCycle logs are the authoritative record today

	return fmt.Errorf("live broker binding is out of scope for this build: wire a broker.Broker implementation and pass it as the execution.Capability before calling execution.NewLoop.Run, config=%s", filepath.Clean(configPath))
}

func buildBacktestCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "backtest",
		Short: "Replay the execution engine against historical M1 candles",
		RunE:  runBacktest,
	}
	cmd.Flags().StringVarP(&btStart, "start", "s", "", "Start date (e.g. 2024-01-01), filters the candle CSV")
	cmd.Flags().StringVarP(&btEnd, "end", "e", "", "End date (e.g. 2024-03-01), filters the candle CSV")
	cmd.Flags().StringVar(&btCandlesCSV, "candles", "", "Path to an M1 candle CSV (time,open,high,low,close,volume)")
	cmd.Flags().Float64Var(&btEquity, "equity", 10000, "Starting account equity")
	cmd.Flags().StringVar(&btOutputDir, "output-dir", "./backtest-results", "Directory for report/CSV/JSON output")
	cmd.Flags().BoolVar(&btNoCSV, "no-csv", false, "Skip CSV trade export")
	cmd.Flags().BoolVar(&btNoJSON, "no-json", false, "Skip JSON summary export")
	cmd.Flags().Float64Var(&btSpread, "spread-points", 20, "Simulated spread, in points")
	cmd.Flags().Float64Var(&btSlippage, "slippage-points", 2, "Simulated fill slippage, in points")
	cmd.MarkFlagRequired("candles")
	return cmd
}

func runBacktest(cmd *cobra.Command, args []string) error {
	log, err := newLog()
	if err != nil {
		return err
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	m1, err := backtest.LoadM1CSV(btCandlesCSV)
	if err != nil {
		return fmt.Errorf("load candles: %w", err)
	}
	m1, err = filterByDateRange(m1, btStart, btEnd)
	if err != nil {
		return fmt.Errorf("filter candles: %w", err)
	}
	if len(m1) == 0 {
		return fmt.Errorf("no candles in the requested date range")
	}
	m5 := backtest.AggregateM5(m1)

	req := backtest.Request{
		M1Candles: m1, M5Candles: m5, StartingEquity: btEquity,
		SpreadPoints: btSpread, SlippagePoints: btSlippage,
	}

	ctx, cancel := ossignal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	result, err := backtest.Run(ctx, cfg, req, log, true)
	if err != nil {
		return fmt.Errorf("run backtest: %w", err)
	}

	fmt.Println(backtest.Report(result))

	if !btNoCSV {
		path := filepath.Join(btOutputDir, "trades.csv")
		if err := backtest.ExportTradesCSV(result, path); err != nil {
			return fmt.Errorf("export trades csv: %w", err)
		}
		log.WithField("path", path).Info("exported trades")
	}
	if !btNoJSON {
		path := filepath.Join(btOutputDir, "summary.json")
		if err := backtest.ExportSummaryJSON(result, path); err != nil {
			return fmt.Errorf("export summary json: %w", err)
		}
		log.WithField("path", path).Info("exported summary")
	}

	return nil
}

// filterByDateRange restricts candles to the inclusive [start, end] window,
// both given in dateLayout form. Either bound may be empty to leave that
// side open.
func filterByDateRange(candles []core.Candle, start, end string) ([]core.Candle, error) {
	var startTime, endTime time.Time
	if start != "" {
		t, err := time.Parse(dateLayout, start)
		if err != nil {
			return nil, fmt.Errorf("parse start date %q: %w", start, err)
		}
		startTime = t
	}
	if end != "" {
		t, err := time.Parse(dateLayout, end)
		if err != nil {
			return nil, fmt.Errorf("parse end date %q: %w", end, err)
		}
		endTime = t.AddDate(0, 0, 1) // end date is inclusive of the whole day
	}
	if startTime.IsZero() && endTime.IsZero() {
		return candles, nil
	}

	out := make([]core.Candle, 0, len(candles))
	for _, c := range candles {
		if !startTime.IsZero() && c.Time.Before(startTime) {
			continue
		}
		if !endTime.IsZero() && !c.Time.Before(endTime) {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func openStore(cfg config.StorageConfig) (execution.Store, error) {
	switch cfg.Backend {
	case "gorm":
		return storage.NewGormStore(sqlite.Open(cfg.DSN))
	case "bunt", "":
		if cfg.DSN == "" {
			return storage.NewBuntStoreMemory()
		}
		return storage.NewBuntStoreFile(cfg.DSN)
	default:
		return nil, fmt.Errorf("unknown storage.backend %q", cfg.Backend)
	}
}
