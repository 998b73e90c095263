// Package notify implements the Notifier collaborator (spec §6): one-way
// alerts on circuit-breaker transitions and trade exits. It deliberately
// carries none of the interactive command surface (buy/sell/status) the
// teacher's telegram bot exposes — that is an admin control surface and
// falls under the out-of-scope HTTP/admin boundary (spec §1).
package notify

import (
	"fmt"
	"time"

	tb "gopkg.in/tucnak/telebot.v2"

	"github.com/dtshaba/goldengine/internal/core"
	"github.com/dtshaba/goldengine/pkg/logger"
)

// Config mirrors spec §6's notify.* config surface.
type Config struct {
	Token   string
	UserIDs []int64
}

// Telegram sends one-way trade and circuit-breaker alerts, grounded on the
// teacher's pkg/notification/telegram.go Notify/sendMessage pattern.
type Telegram struct {
	client  *tb.Bot
	userIDs []int64
	log     logger.Logger
}

// NewTelegram builds a Telegram notifier. It does not start a poller —
// there is nothing to poll for since this notifier never receives commands.
func NewTelegram(cfg Config, log logger.Logger) (*Telegram, error) {
	client, err := tb.NewBot(tb.Settings{
		Token:  cfg.Token,
		Poller: nil,
	})
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	return &Telegram{client: client, userIDs: cfg.UserIDs, log: log}, nil
}

// NotifyHalt announces a circuit-breaker halt or reset.
func (t *Telegram) NotifyHalt(evt core.Event) {
	var title string
	switch evt.Type {
	case core.EventHalt:
		title = "circuit breaker halted"
	case core.EventReset:
		title = "circuit breaker reset"
	case core.EventRiskAdjustment:
		title = "circuit breaker risk adjusted"
	}
	t.send(fmt.Sprintf("%s\n-----\nreason: %s\nloss count: %d\ndaily pnl: %.2f",
		title, evt.Reason, evt.LossCount, evt.DailyPnL))
}

// NotifyTradeExit announces a closed trade.
func (t *Telegram) NotifyTradeExit(trade core.Trade) {
	t.send(fmt.Sprintf(
		"trade closed - %s\n-----\nticket: %d\nreason: %s\npnl: %.2f\nhold: %s",
		trade.Direction, trade.Ticket, trade.ExitReason, trade.RealizedPnL,
		time.Duration(trade.HoldSeconds*float64(time.Second)),
	))
}

// NotifyError announces an unexpected error (spec §7's unexpected-error class).
func (t *Telegram) NotifyError(err error) {
	t.send(fmt.Sprintf("engine error\n-----\n%s", err))
}

func (t *Telegram) send(text string) {
	for _, id := range t.userIDs {
		if _, err := t.client.Send(&tb.User{ID: id}, text); err != nil {
			t.log.WithError(err).Error("failed to send telegram notification")
		}
	}
}
