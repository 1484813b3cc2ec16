// Package ledger is the HTTP adapter to the billing platform that owns
// balances, reservations and subscription metadata. Every call returns the
// platform's integer response code; a non-nil error means the call itself
// did not complete.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	domainerrors "airtime/internal/errors"
	"airtime/internal/logging"
)

// Account states reported by GetAccountState.
const (
	BlockStatusNone            = "NO_BLOCK"
	StatusActiveBeforeFirstUse = "ACTIVE_BEFORE_FIRST_USE"
)

// AccountState is the block and lifecycle status of a subscriber account.
type AccountState struct {
	BlockStatus string `json:"block_status"`
	Status      string `json:"status"`
}

// Config holds the adapter's connection and breaker settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration

	// Breaker trips after ConsecutiveFailures transport failures and stays
	// open for OpenTimeout.
	ConsecutiveFailures uint32
	OpenTimeout         time.Duration
}

// Client calls the ledger over HTTP behind a circuit breaker.
type Client struct {
	cfg        Config
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
	logger     *zap.Logger
}

type envelope struct {
	Code  int             `json:"code"`
	Value json.RawMessage `json:"value,omitempty"`
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	logger = logging.OrNop(logger)
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.ConsecutiveFailures == 0 {
		cfg.ConsecutiveFailures = 5
	}
	if cfg.OpenTimeout == 0 {
		cfg.OpenTimeout = 30 * time.Second
	}

	c := &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "ledger",
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("ledger circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	})
	return c
}

// call posts req to the operation endpoint and decodes the response value
// into out when out is not nil. Business codes never count as breaker
// failures; transport errors and 5xx responses do.
func (c *Client) call(ctx context.Context, op string, req any, out any) (int, error) {
	res, err := c.breaker.Execute(func() (interface{}, error) {
		return c.do(ctx, op, req)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			c.logger.Warn("ledger call rejected by circuit breaker", zap.String("op", op))
			return 0, domainerrors.ErrServiceUnavailable.Wrap(err)
		}
		return 0, fmt.Errorf("ledger %s: %w", op, err)
	}

	env := res.(*envelope)
	if env.Code == 0 && out != nil && len(env.Value) > 0 {
		if err := json.Unmarshal(env.Value, out); err != nil {
			return 0, fmt.Errorf("ledger %s: decode value: %w", op, err)
		}
	}
	return env.Code, nil
}

func (c *Client) do(ctx context.Context, op string, req any) (*envelope, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+"/v1/"+op, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	if c.cfg.APIKey != "" {
		httpReq.Header.Set("x-api-key", c.cfg.APIKey)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, string(respBody))
	}

	var env envelope
	if err := json.Unmarshal(respBody, &env); err != nil {
		return nil, fmt.Errorf("decode response (status %d): %w", resp.StatusCode, err)
	}
	return &env, nil
}

type accountReq struct {
	Account string `json:"account"`
}

func (c *Client) GetBalance(ctx context.Context, account string) (decimal.Decimal, int, error) {
	var balance decimal.Decimal
	code, err := c.call(ctx, "balance", accountReq{Account: account}, &balance)
	return balance, code, err
}

func (c *Client) GetPinByService(ctx context.Context, account, service string) (string, int, error) {
	var pin string
	code, err := c.call(ctx, "pin", map[string]string{"account": account, "service": service}, &pin)
	return pin, code, err
}

// GetMaxAmountByService returns the raw configured maximum; an empty value
// means none is configured for the account.
func (c *Client) GetMaxAmountByService(ctx context.Context, account, service string) (string, int, error) {
	var raw json.RawMessage
	code, err := c.call(ctx, "max-amount", map[string]string{"account": account, "service": service}, &raw)
	if err != nil || code != 0 {
		return "", code, err
	}
	return rawToString(raw), code, nil
}

func (c *Client) ReserveEvent(ctx context.Context, account string, eventID int64) (int64, int, error) {
	var handle int64
	code, err := c.call(ctx, "reservations", map[string]any{"account": account, "event_id": eventID}, &handle)
	return handle, code, err
}

func (c *Client) ChargeReservedEvent(ctx context.Context, account string, handle int64) (int, error) {
	return c.call(ctx, "reservations/charge", map[string]any{"account": account, "handle": handle}, nil)
}

func (c *Client) CancelReservation(ctx context.Context, account string, handle int64) (int, error) {
	return c.call(ctx, "reservations/cancel", map[string]any{"account": account, "handle": handle}, nil)
}

func (c *Client) TransferFunds(ctx context.Context, source, destination string, amount decimal.Decimal, reason, actor string) (int, error) {
	return c.call(ctx, "transfers", map[string]any{
		"source":      source,
		"destination": destination,
		"amount":      amount,
		"reason":      reason,
		"actor":       actor,
	}, nil)
}

// AdjustBalance applies a signed amount: negative debits, positive credits.
func (c *Client) AdjustBalance(ctx context.Context, account string, amount decimal.Decimal, reason, adjustType, note string) (int, error) {
	return c.call(ctx, "adjustments", map[string]any{
		"account": account,
		"amount":  amount,
		"reason":  reason,
		"type":    adjustType,
		"note":    note,
	}, nil)
}

func (c *Client) ExtendExpiry(ctx context.Context, account string, days int) (int, error) {
	return c.call(ctx, "expiry/extend", map[string]any{"account": account, "days": days}, nil)
}

func (c *Client) GetLocale(ctx context.Context, account string) (string, int, error) {
	var locale string
	code, err := c.call(ctx, "locale", accountReq{Account: account}, &locale)
	return locale, code, err
}

func (c *Client) SendSMS(ctx context.Context, from, to, text string, rtl bool) (int, error) {
	return c.call(ctx, "sms", map[string]any{"from": from, "to": to, "text": text, "rtl": rtl}, nil)
}

func (c *Client) GetSubscriptionClassification(ctx context.Context, account string) (string, int, error) {
	var class string
	code, err := c.call(ctx, "subscription", accountReq{Account: account}, &class)
	return class, code, err
}

func (c *Client) GetAccountState(ctx context.Context, account string) (AccountState, int, error) {
	var state AccountState
	code, err := c.call(ctx, "account-state", accountReq{Account: account}, &state)
	return state, code, err
}

func (c *Client) GetNetworkPartition(ctx context.Context, account string) (string, int, error) {
	var partition string
	code, err := c.call(ctx, "partition", accountReq{Account: account}, &partition)
	return partition, code, err
}

// Ping reports whether the breaker currently lets calls through.
func (c *Client) Ping(ctx context.Context) error {
	if c.breaker.State() == gobreaker.StateOpen {
		return domainerrors.ErrServiceUnavailable
	}
	return nil
}

func rawToString(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return string(raw)
}
