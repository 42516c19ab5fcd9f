package sweep

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/lineage-agent/forensics/internal/httpshell"
	"github.com/lineage-agent/forensics/internal/labels"
	"github.com/lineage-agent/forensics/internal/models"
)

// Notifier dispatches a single alert message to one subscriber.
type Notifier interface {
	Notify(ctx context.Context, chatID int64, message string) error
}

// NoopNotifier discards every alert; used when no alert transport is
// configured so the sweep still runs (and logs) without a live bot token.
type NoopNotifier struct{}

func (NoopNotifier) Notify(ctx context.Context, chatID int64, message string) error {
	log.Debug().Int64("chat_id", chatID).Str("message", message).Msg("alert sweep: no notifier configured, dropping")
	return nil
}

// TelegramNotifier dispatches alerts through the Telegram Bot API, reusing
// the shared rate-limited/breaker-protected HTTP client rather than a raw
// http.Client.
type TelegramNotifier struct {
	client   *httpshell.Client
	botToken string
}

func NewTelegramNotifier(client *httpshell.Client, botToken string) *TelegramNotifier {
	return &TelegramNotifier{client: client, botToken: botToken}
}

func (n *TelegramNotifier) Notify(ctx context.Context, chatID int64, message string) error {
	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", n.botToken)
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    message,
	}
	return n.client.PostJSON(ctx, url, payload, nil, false)
}

// runAlertSweep dispatches one notification per new token_created event
// matching an active subscription's deployer or narrative filter, looking
// back a window wider than the sweep interval so a slow tick never drops a
// match entirely.
func (r *Runner) runAlertSweep(ctx context.Context) {
	subs, err := r.store.AllSubscriptions()
	if err != nil {
		log.Error().Err(err).Msg("alert sweep: list subscriptions")
		return
	}
	cutoff := time.Now().UTC().Add(-r.cfg.AlertLookback)

	for _, sub := range subs {
		var deployer, narrative string
		switch sub.SubType {
		case "deployer":
			deployer = sub.Value
		case "narrative":
			narrative = sub.Value
		default:
			continue
		}

		events, err := r.store.EventsSince(deployer, narrative, cutoff, r.cfg.AlertEventLimit)
		if err != nil {
			log.Error().Err(err).Int64("chat_id", sub.ChatID).Msg("alert sweep: events since")
			continue
		}
		for _, ev := range events {
			if err := r.notifier.Notify(ctx, sub.ChatID, alertMessage(ev)); err != nil {
				log.Error().Err(err).Int64("chat_id", sub.ChatID).Str("mint", ev.Mint).Msg("alert sweep: notify")
			}
		}
	}
}

func alertMessage(ev models.TokenEvent) string {
	return fmt.Sprintf("new launch: %s (%s) by %s — narrative=%s mcap=$%.0f liq=$%.0f mint=%s",
		ev.Name, ev.Symbol, labels.Short(ev.Deployer), ev.Narrative, ev.McapUSD, ev.LiqUSD, ev.Mint)
}
