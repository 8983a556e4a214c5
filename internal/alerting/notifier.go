package alerting

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Notifier delivers emitted alerts to an outbound channel.
type Notifier interface {
	Notify(ctx context.Context, alert Alert) error
}

// Channel names accepted in the alerting.channels config list.
const (
	ChannelLog      = "log"
	ChannelTelegram = "telegram"
)

// LogNotifier writes alerts to the structured log. It is the default channel
// so a run without external channels still surfaces every alert.
type LogNotifier struct {
	logger zerolog.Logger
}

// NewLogNotifier constructs the log channel.
func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "alert_log").Logger()}
}

// Notify emits one alert as a log event.
func (n *LogNotifier) Notify(_ context.Context, alert Alert) error {
	n.logger.Warn().
		Str("alert_id", alert.ID).
		Str("region", alert.RegionID).
		Str("period", alert.Period.String()).
		Str("tier", string(alert.Tier)).
		Float64("composite", alert.Composite).
		Str("status", string(alert.Status)).
		Str("reason", alert.Reason).
		Msg("flip alert")
	return nil
}

// Fanout dispatches each alert to every configured channel. Channel failures
// are collected so one broken channel does not silence the others.
type Fanout struct {
	notifiers []Notifier
}

// NewFanout constructs a multi-channel notifier.
func NewFanout(notifiers ...Notifier) *Fanout {
	return &Fanout{notifiers: notifiers}
}

// Notify delivers the alert to all channels and joins their errors.
func (f *Fanout) Notify(ctx context.Context, alert Alert) error {
	var errs []error
	for _, n := range f.notifiers {
		if err := n.Notify(ctx, alert); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// TelegramNotifier pushes alerts through the Telegram Bot API.
type TelegramNotifier struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
	logger   zerolog.Logger
}

// NewTelegramNotifier constructs the Telegram channel.
func NewTelegramNotifier(botToken, chatID, baseURL string, timeout time.Duration, logger zerolog.Logger) *TelegramNotifier {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if baseURL == "" {
		baseURL = "https://api.telegram.org"
	}

	return &TelegramNotifier{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  strings.TrimRight(baseURL, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.With().Str("component", "alert_telegram").Logger(),
	}
}

// Notify sends one alert as a sendMessage call.
func (n *TelegramNotifier) Notify(ctx context.Context, alert Alert) error {
	payload := map[string]string{
		"chat_id": n.chatID,
		"text":    renderMessage(alert),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal telegram payload: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", n.baseURL, n.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram unexpected status: %d", resp.StatusCode)
	}

	var result struct {
		OK bool `json:"ok"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			return fmt.Errorf("telegram returned ok=false")
		}
	}

	n.logger.Info().
		Str("region", alert.RegionID).
		Str("tier", string(alert.Tier)).
		Msg("alert dispatched (telegram)")
	return nil
}

func renderMessage(alert Alert) string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("[%s] Flip opportunity %s\n", alert.Tier, alert.RegionID))
	builder.WriteString(fmt.Sprintf("Period: %s\n", alert.Period))
	builder.WriteString(fmt.Sprintf("Score: %.1f (%s)\n", alert.Composite, alert.Status))
	builder.WriteString(fmt.Sprintf("Reason: %s\n", alert.Reason))
	builder.WriteString(fmt.Sprintf("Alert ID: %s\n", alert.ID))
	return builder.String()
}

var _ Notifier = (*TelegramNotifier)(nil)
var _ Notifier = (*LogNotifier)(nil)
var _ Notifier = (*Fanout)(nil)
