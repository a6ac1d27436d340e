// Package notify provides notification functionality for discipline events.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/armmoon4/bitsoftrade/internal/config"
	"github.com/armmoon4/bitsoftrade/internal/logging"
	"github.com/armmoon4/bitsoftrade/internal/models"
	"github.com/armmoon4/bitsoftrade/pkg/utils"
)

// Notifier defines the interface for sending notifications.
type Notifier interface {
	Send(ctx context.Context, n Notification) error
	SendEscalation(ctx context.Context, session *models.DisciplineSession, from models.SessionState) error
	SendUnlock(ctx context.Context, session *models.DisciplineSession) error
	SendError(ctx context.Context, err error, context string) error
}

// NotificationChannel defines the interface for a notification channel.
type NotificationChannel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
	IsEnabled() bool
}

// Notification represents a notification message.
type Notification struct {
	Type      NotificationType
	Title     string
	Message   string
	Data      map[string]interface{}
	Timestamp time.Time
}

// NotificationType represents the type of notification.
type NotificationType string

const (
	NotificationEscalation NotificationType = "escalation"
	NotificationUnlock     NotificationType = "unlock"
	NotificationError      NotificationType = "error"
	NotificationInfo       NotificationType = "info"
)

// NotificationLevel represents the notification level filter.
type NotificationLevel string

const (
	LevelAll             NotificationLevel = "all"
	LevelEscalationsOnly NotificationLevel = "escalations_only"
	LevelErrorsOnly      NotificationLevel = "errors_only"
)

// MultiNotifier sends notifications to multiple channels.
type MultiNotifier struct {
	channels []NotificationChannel
	level    NotificationLevel
	mu       sync.RWMutex
}

// NewMultiNotifier creates a new MultiNotifier with the given configuration.
func NewMultiNotifier(cfg *config.NotificationConfig) *MultiNotifier {
	mn := &MultiNotifier{
		channels: make([]NotificationChannel, 0),
		level:    NotificationLevel(cfg.Level),
	}

	if mn.level == "" {
		mn.level = LevelAll
	}

	// Add enabled channels
	if cfg.Webhook.Enabled {
		mn.channels = append(mn.channels, NewWebhookNotifier(cfg.Webhook))
	}
	if cfg.Telegram.Enabled {
		mn.channels = append(mn.channels, NewTelegramNotifier(cfg.Telegram))
	}

	return mn
}

// AddChannel adds a notification channel.
func (mn *MultiNotifier) AddChannel(ch NotificationChannel) {
	mn.mu.Lock()
	defer mn.mu.Unlock()
	mn.channels = append(mn.channels, ch)
}

// shouldSend checks if a notification should be sent based on the level filter.
func (mn *MultiNotifier) shouldSend(notifType NotificationType) bool {
	switch mn.level {
	case LevelEscalationsOnly:
		return notifType == NotificationEscalation || notifType == NotificationUnlock
	case LevelErrorsOnly:
		return notifType == NotificationError
	default:
		return true
	}
}

// Send sends a notification to all enabled channels.
func (mn *MultiNotifier) Send(ctx context.Context, n Notification) error {
	if !mn.shouldSend(n.Type) {
		return nil
	}

	if n.Timestamp.IsZero() {
		n.Timestamp = time.Now()
	}

	mn.mu.RLock()
	channels := mn.channels
	mn.mu.RUnlock()

	var errs []string
	for _, ch := range channels {
		if ch.IsEnabled() {
			if err := ch.Send(ctx, n); err != nil {
				errs = append(errs, fmt.Sprintf("%s: %v", ch.Name(), err))
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notification errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

// SendEscalation sends a session escalation notification.
func (mn *MultiNotifier) SendEscalation(ctx context.Context, session *models.DisciplineSession, from models.SessionState) error {
	icon := "⚠️"
	if session.State == models.StateRed {
		icon = "🔴"
	}

	title := fmt.Sprintf("%s Discipline session escalated: %s → %s", icon, from, session.State)
	message := fmt.Sprintf(
		"Date: %s\nState: %s\nViolations today: %d (hard %d, soft %d)",
		models.DateKey(session.SessionDate),
		strings.ToUpper(string(session.State)),
		session.ViolationsCount,
		session.HardViolations,
		session.SoftViolations,
	)
	if session.CooldownEndsAt != nil {
		message += fmt.Sprintf("\nCooldown ends: %s", session.CooldownEndsAt.Format(time.RFC3339))
	}

	return mn.Send(ctx, Notification{
		Type:    NotificationEscalation,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
			"state":      session.State,
			"from":       from,
		},
	})
}

// SendUnlock sends a session unlock notification.
func (mn *MultiNotifier) SendUnlock(ctx context.Context, session *models.DisciplineSession) error {
	title := "🟢 Discipline session unlocked"
	message := fmt.Sprintf(
		"Date: %s\nThe session is back to GREEN. Trade carefully.",
		models.DateKey(session.SessionDate),
	)

	return mn.Send(ctx, Notification{
		Type:    NotificationUnlock,
		Title:   title,
		Message: message,
		Data: map[string]interface{}{
			"session_id": session.ID,
			"user_id":    session.UserID,
		},
	})
}

// SendError sends an error notification.
func (mn *MultiNotifier) SendError(ctx context.Context, err error, errContext string) error {
	return mn.Send(ctx, Notification{
		Type:    NotificationError,
		Title:   "❌ Error",
		Message: fmt.Sprintf("%s: %v", errContext, err),
	})
}

// WebhookNotifier sends notifications via HTTP webhook.
type WebhookNotifier struct {
	url     string
	enabled bool
	client  *http.Client
	retry   utils.RetryConfig
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(cfg config.WebhookConfig) *WebhookNotifier {
	return &WebhookNotifier{
		url:     cfg.URL,
		enabled: cfg.Enabled && cfg.URL != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Name returns the name of the notifier.
func (w *WebhookNotifier) Name() string {
	return "webhook"
}

// IsEnabled returns whether the notifier is enabled.
func (w *WebhookNotifier) IsEnabled() bool {
	return w.enabled
}

// Send sends a notification via webhook.
func (w *WebhookNotifier) Send(ctx context.Context, n Notification) error {
	if !w.enabled {
		return nil
	}

	payload := map[string]interface{}{
		"type":      n.Type,
		"title":     n.Title,
		"message":   n.Message,
		"data":      n.Data,
		"timestamp": n.Timestamp.Format(time.RFC3339),
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling webhook payload: %w", err)
	}

	return utils.Retry(ctx, w.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating webhook request: %w", err)
		}

		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("User-Agent", "BitsOfTrade/1.0")

		resp, err := w.client.Do(req)
		if err != nil {
			return fmt.Errorf("sending webhook: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return fmt.Errorf("webhook returned status %d", resp.StatusCode)
		}

		return nil
	})
}

// TelegramNotifier sends notifications via Telegram bot.
type TelegramNotifier struct {
	botToken string
	chatID   string
	enabled  bool
	client   *http.Client
	retry    utils.RetryConfig
}

// NewTelegramNotifier creates a new TelegramNotifier.
func NewTelegramNotifier(cfg config.TelegramConfig) *TelegramNotifier {
	return &TelegramNotifier{
		botToken: cfg.BotToken,
		chatID:   cfg.ChatID,
		enabled:  cfg.Enabled && cfg.BotToken != "" && cfg.ChatID != "",
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		retry: utils.DefaultRetryConfig(),
	}
}

// Name returns the name of the notifier.
func (t *TelegramNotifier) Name() string {
	return "telegram"
}

// IsEnabled returns whether the notifier is enabled.
func (t *TelegramNotifier) IsEnabled() bool {
	return t.enabled
}

// Send sends a notification via Telegram.
func (t *TelegramNotifier) Send(ctx context.Context, n Notification) error {
	if !t.enabled {
		return nil
	}

	// Format message for Telegram (using HTML parse mode)
	text := fmt.Sprintf("<b>%s</b>\n\n%s", escapeHTML(n.Title), escapeHTML(n.Message))

	url := fmt.Sprintf("https://api.telegram.org/bot%s/sendMessage", t.botToken)

	payload := map[string]interface{}{
		"chat_id":    t.chatID,
		"text":       text,
		"parse_mode": "HTML",
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshaling telegram payload: %w", err)
	}

	return utils.Retry(ctx, t.retry, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("creating telegram request: %w", t.maskToken(err))
		}

		req.Header.Set("Content-Type", "application/json")

		resp, err := t.client.Do(req)
		if err != nil {
			// Transport errors embed the request URL, which carries the bot token.
			return fmt.Errorf("sending telegram message: %w", t.maskToken(err))
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
		}

		return nil
	})
}

func (t *TelegramNotifier) maskToken(err error) error {
	masked := strings.ReplaceAll(err.Error(), t.botToken, logging.MaskSecret(t.botToken))
	return fmt.Errorf("%s", masked)
}

// escapeHTML escapes HTML special characters for Telegram.
func escapeHTML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
