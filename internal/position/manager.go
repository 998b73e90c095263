package position

import (
	"strings"
	"time"

	"github.com/StudioSol/set"

	"github.com/dtshaba/goldengine/internal/core"
)

// Venue is the subset of the Broker collaborator (spec §6) the position
// manager needs to dispatch exits.
type Venue interface {
	ModifyStopLoss(ticket int64, newSL float64) error
	ClosePosition(ticket int64, volume float64) (fillPrice float64, err error)
	PositionHistory(ticket int64) ([]core.Deal, error)
}

// Store is the subset of the Persistence collaborator (spec §6) the
// position manager needs to record exits and partial closes.
type Store interface {
	RecordTradeExit(ticket int64, exitPrice, pnl, holdSeconds float64, exitReason string) error
	RecordPartialClose(ticket int64, fraction, price float64, at time.Time) error
}

// Manager dispatches exit-strategy actions against live broker positions
// (spec §4.9). The previous-cycle open-ticket set used to detect a
// broker-side close is owned and threaded in by the ExecutionLoop (spec §3,
// §5) rather than carried here, so a Manager itself holds no cycle state.
type Manager struct {
	exit  *ExitStrategy
	venue Venue
	store Store
}

// NewManager builds a position Manager.
func NewManager(exit *ExitStrategy, venue Venue, store Store) *Manager {
	return &Manager{exit: exit, venue: venue, store: store}
}

// Monitor runs one cycle of position management: reconcile broker-closed
// positions (any ticket in previousTickets no longer present in
// livePositions), then evaluate and dispatch exits for every still-open
// position. currentPrice is the instrument's current mid/bid/ask as
// appropriate for the position's side; recentM1 feeds the momentum-reversal
// check.
func (m *Manager) Monitor(livePositions []core.Position, currentPrice float64, now time.Time, recentM1 []core.Candle, previousTickets *set.LinkedHashSetINT64) error {
	current := make(map[int64]struct{}, len(livePositions))
	for _, p := range livePositions {
		current[p.Ticket] = struct{}{}
	}

	for ticket := range previousTickets.Iter() {
		if _, stillOpen := current[ticket]; !stillOpen {
			if err := m.reconcileBrokerClose(ticket); err != nil {
				return err
			}
		}
	}

	for _, pos := range livePositions {
		action := m.exit.Evaluate(pos, currentPrice, now, recentM1)
		if err := m.dispatch(pos, action, now); err != nil {
			return err
		}
	}

	return nil
}

func (m *Manager) reconcileBrokerClose(ticket int64) error {
	deals, err := m.venue.PositionHistory(ticket)
	if err != nil || len(deals) == 0 {
		return err
	}

	var pnl float64
	var exitPrice float64
	var exitTime time.Time
	var comment string
	for _, d := range deals {
		pnl += d.Profit
		exitPrice = d.Price
		exitTime = d.Time
		comment = d.Comment
	}

	reason := inferExitReason(comment)
	holdSeconds := exitTime.Sub(deals[0].Time).Seconds()

	return m.store.RecordTradeExit(ticket, exitPrice, pnl, holdSeconds, reason)
}

// inferExitReason infers a close reason from the broker deal comment
// substring (spec §4.9): contains "tp" -> take_profit, "sl" -> stop_loss,
// else mt5_auto_close.
func inferExitReason(comment string) string {
	lower := strings.ToLower(comment)
	switch {
	case strings.Contains(lower, "tp"):
		return "take_profit"
	case strings.Contains(lower, "sl"):
		return "stop_loss"
	default:
		return "mt5_auto_close"
	}
}

func (m *Manager) dispatch(pos core.Position, action Action, now time.Time) error {
	switch action.Type {
	case ActionClose:
		fillPrice, err := m.venue.ClosePosition(pos.Ticket, pos.Volume)
		if err != nil {
			return err
		}
		pnl := realizedPnL(pos, fillPrice, m.exit.instrument)
		holdSeconds := now.Sub(pos.OpenTime).Seconds()
		return m.store.RecordTradeExit(pos.Ticket, fillPrice, pnl, holdSeconds, action.Reason)

	case ActionSLAdjust:
		return m.venue.ModifyStopLoss(pos.Ticket, action.NewSL)

	case ActionPartialClose:
		closeVolume := pos.Volume * action.CloseFraction
		fillPrice, err := m.venue.ClosePosition(pos.Ticket, closeVolume)
		if err != nil {
			return err
		}
		if err := m.store.RecordPartialClose(pos.Ticket, action.CloseFraction, fillPrice, now); err != nil {
			return err
		}
		if action.NewSL != 0 {
			if err := m.venue.ModifyStopLoss(pos.Ticket, action.NewSL); err != nil {
				return err
			}
		}
		return nil

	default:
		return nil
	}
}

func realizedPnL(pos core.Position, exitPrice float64, instrument core.Instrument) float64 {
	priceDiff := exitPrice - pos.EntryPrice
	if pos.Side == core.Sell {
		priceDiff = -priceDiff
	}
	return instrument.ToPoints(priceDiff) * pos.Volume * instrument.PointValuePerLot
}
