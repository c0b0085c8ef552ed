// Package alerts pushes operator notifications for order lifecycle events.
package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"btc-order-gw/internal/config"
	"btc-order-gw/internal/trade"

	"go.uber.org/zap"
)

const telegramBaseURL = "https://api.telegram.org"

type Telegram struct {
	enabled bool
	token   string
	chatID  string
	baseURL string
	client  *http.Client
	log     *zap.Logger
}

func NewTelegram(cfg config.TelegramConfig, log *zap.Logger) *Telegram {
	return newTelegram(cfg, log, telegramBaseURL, &http.Client{Timeout: 10 * time.Second})
}

func newTelegram(cfg config.TelegramConfig, log *zap.Logger, baseURL string, client *http.Client) *Telegram {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Telegram{
		enabled: cfg.Enabled,
		token:   strings.TrimSpace(cfg.Token),
		chatID:  strings.TrimSpace(cfg.ChatID),
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
		log:     log,
	}
}

// OrderStatusChanged reports a reconciliation outcome the operator should
// know about. Only fills and the two trouble statuses are worth a push.
func (t *Telegram) OrderStatusChanged(ctx context.Context, order trade.Order) {
	var text string
	switch order.Status {
	case trade.StatusFilled:
		text = fmt.Sprintf("order filled on %s: %s %s %s", order.Market, order.Type, order.Amount, order.Pair)
	case trade.StatusInvalid:
		text = fmt.Sprintf("order INVALID on %s: %s (remote %s)", order.Market, order.ID, order.RemoteID)
	case trade.StatusUnknown:
		text = fmt.Sprintf("order in unknown state on %s: %s (remote %s)", order.Market, order.ID, order.RemoteID)
	default:
		return
	}
	if err := t.Send(ctx, text); err != nil && t.log != nil {
		t.log.Warn("alert delivery failed", zap.Error(err))
	}
}

// MarketFailure reports a failed market refresh. Integrity failures are the
// ones that must never be sat on.
func (t *Telegram) MarketFailure(ctx context.Context, marketName string, cause error) {
	text := fmt.Sprintf("market update failed on %s: %v", marketName, cause)
	if trade.IsKind(cause, trade.KindIntegrity) {
		text = fmt.Sprintf("INTEGRITY FAILURE on %s: %v", marketName, cause)
	}
	if err := t.Send(ctx, text); err != nil && t.log != nil {
		t.log.Warn("alert delivery failed", zap.Error(err))
	}
}

func (t *Telegram) Send(ctx context.Context, message string) error {
	if !t.enabled {
		return nil
	}
	if t.token == "" || t.chatID == "" {
		return errors.New("telegram token and chat_id are required")
	}
	if strings.TrimSpace(message) == "" {
		return errors.New("telegram message is empty")
	}
	payload := map[string]string{
		"chat_id": t.chatID,
		"text":    message,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	url := fmt.Sprintf("%s/bot%s/sendMessage", t.baseURL, t.token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("telegram send failed: http %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err == nil {
		if !result.OK {
			desc := strings.TrimSpace(result.Description)
			if desc == "" {
				desc = "unknown telegram error"
			}
			return fmt.Errorf("telegram send failed: %s", desc)
		}
	}
	return nil
}
