package transfer

import (
	"context"

	"github.com/shopspring/decimal"

	"airtime/internal/ledger"
	"airtime/internal/models"
	"airtime/internal/services/rules"
)

// Ledger is the billing platform. Every call returns the platform response
// code; a non-nil error means the call did not complete.
type Ledger interface {
	GetBalance(ctx context.Context, account string) (decimal.Decimal, int, error)
	GetPinByService(ctx context.Context, account, service string) (string, int, error)
	GetMaxAmountByService(ctx context.Context, account, service string) (string, int, error)
	ReserveEvent(ctx context.Context, account string, eventID int64) (int64, int, error)
	ChargeReservedEvent(ctx context.Context, account string, handle int64) (int, error)
	CancelReservation(ctx context.Context, account string, handle int64) (int, error)
	TransferFunds(ctx context.Context, source, destination string, amount decimal.Decimal, reason, actor string) (int, error)
	AdjustBalance(ctx context.Context, account string, amount decimal.Decimal, reason, adjustType, note string) (int, error)
	ExtendExpiry(ctx context.Context, account string, days int) (int, error)
	GetSubscriptionClassification(ctx context.Context, account string) (string, int, error)
	GetAccountState(ctx context.Context, account string) (ledger.AccountState, int, error)
	GetNetworkPartition(ctx context.Context, account string) (string, int, error)
}

// AuditStore persists transfer attempts and answers daily usage queries.
type AuditStore interface {
	Insert(ctx context.Context, tx *models.Transaction) (uint, error)
	DailyCount(ctx context.Context, source string) (int, error)
	DailyAmountSum(ctx context.Context, source string) (decimal.Decimal, error)
}

// ConfigStore looks up the transfer configuration of a subscription type.
type ConfigStore interface {
	TransferConfigByType(ctx context.Context, subscriptionType string) (*models.TransferConfig, error)
}

// Settings is the typed business configuration.
type Settings interface {
	String(ctx context.Context, key, def string) string
	Int(ctx context.Context, key string, def int) int
	Bool(ctx context.Context, key string, def bool) bool
	Decimal(ctx context.Context, key string, def decimal.Decimal) decimal.Decimal
	Strings(ctx context.Context, key string, def []string) []string
	Decimals(ctx context.Context, key string) ([]decimal.Decimal, error)
}

// RuleEvaluator decides whether a subscription type pair may transfer.
type RuleEvaluator interface {
	Evaluate(ctx context.Context, country, sourceType, destinationType string) rules.Decision
}

// Notifier reports finished attempts to subscribers and downstream systems.
type Notifier interface {
	NotifyTransfer(ctx context.Context, tx *models.Transaction) error
	PublishOutcome(ctx context.Context, tx *models.Transaction) error
}

// Service exposes the transfer operations. Every operation returns an
// Outcome; failures never surface as Go errors or panics.
type Service interface {
	Transfer(ctx context.Context, req Request) Outcome
	TransferWithReason(ctx context.Context, req Request) Outcome
	TransferWithoutPin(ctx context.Context, req PinlessRequest) Outcome
	Validate(ctx context.Context, req Request) Outcome
}
