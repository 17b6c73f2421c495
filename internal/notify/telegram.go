// Package notify delivers a finished report to Telegram. Delivery and
// formatting for the channel live here; the pipeline's only obligation is
// a well-formed report.
package notify

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/Alias1177/moex-anomaly/internal/report"
	"github.com/Alias1177/moex-anomaly/models"
)

// maxListed caps how many anomalies one message spells out.
const maxListed = 10

// Notifier consumes a finished report.
type Notifier interface {
	Notify(r *models.Report) error
}

// Telegram sends report summaries to a chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	// always sends clean reports too; default is only-on-anomalies.
	always bool
	logger zerolog.Logger
}

// NewTelegram creates the Telegram notifier.
func NewTelegram(token string, chatID int64, always bool) (*Telegram, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("initializing Telegram bot: %w", err)
	}

	return &Telegram{
		bot:    bot,
		chatID: chatID,
		always: always,
		logger: log.With().Str("component", "notify").Logger(),
	}, nil
}

// Notify sends the report summary. Clean reports are skipped unless the
// notifier is configured to always send.
func (t *Telegram) Notify(r *models.Report) error {
	if len(r.Anomalies) == 0 && !t.always {
		t.logger.Info().Str("date", r.Date).Msg("No anomalies, notification skipped")
		return nil
	}

	msg := tgbotapi.NewMessage(t.chatID, FormatMessage(r))
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.DisableWebPagePreview = true

	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("sending Telegram message: %w", err)
	}

	t.logger.Info().Str("date", r.Date).Int("anomalies", len(r.Anomalies)).Msg("Notification sent")
	return nil
}

// FormatMessage renders the Telegram Markdown summary of a report.
func FormatMessage(r *models.Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "📊 *Trading anomalies*\n")
	fmt.Fprintf(&b, "📅 Date: %s\n", r.Date)
	fmt.Fprintf(&b, "🎯 Thresholds: %.1fσ / %.1fσ\n\n", r.ThresholdModerate, r.ThresholdHigh)

	if len(r.Anomalies) > 0 {
		fmt.Fprintf(&b, "🔥 *Anomalies found: %d*\n\n", len(r.Anomalies))

		listed := r.Anomalies
		if len(listed) > maxListed {
			listed = listed[:maxListed]
		}
		for _, a := range listed {
			emoji := "📈"
			if a.Severity == models.SeverityHigh {
				emoji = "🚀"
			}
			fmt.Fprintf(&b, "%s *%s* — %s\n", emoji, a.Symbol, a.Metric)
			if a.Metric == models.MetricVolume {
				fmt.Fprintf(&b, "   💰 %s\n", report.FormatValue(a.Observed))
			} else {
				fmt.Fprintf(&b, "   💰 %+.2f%%\n", a.Observed*100)
			}
			fmt.Fprintf(&b, "   📊 Z-score: %+.2f | %+.1f%%\n\n", a.ZScore, a.DeviationPct)
		}

		if len(r.Anomalies) > maxListed {
			fmt.Fprintf(&b, "_...and %d more_\n", len(r.Anomalies)-maxListed)
		}
	} else {
		fmt.Fprintf(&b, "✅ No anomalies detected\n")
	}

	fmt.Fprintf(&b, "\n📋 Symbols evaluated: %d", len(r.SymbolsEvaluated))
	if len(r.SymbolsSkipped) > 0 {
		fmt.Fprintf(&b, " (skipped: %s)", strings.Join(r.SymbolsSkipped, ", "))
	}

	return b.String()
}
