package transfer

import (
	"context"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"

	domainerrors "airtime/internal/errors"
	"airtime/internal/ledger"
	"airtime/internal/models"
	"airtime/internal/repositories"
	"airtime/internal/services/rules"
	"airtime/internal/services/settings"
)

const (
	customerA = "96811111"
	customerB = "96822222"
	dealer    = "96833333"
	data      = "96844444"
)

type MockLedger struct {
	mock.Mock
}

func (m *MockLedger) GetBalance(ctx context.Context, account string) (decimal.Decimal, int, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(decimal.Decimal), args.Int(1), args.Error(2)
}

func (m *MockLedger) GetPinByService(ctx context.Context, account, service string) (string, int, error) {
	args := m.Called(ctx, account, service)
	return args.String(0), args.Int(1), args.Error(2)
}

func (m *MockLedger) GetMaxAmountByService(ctx context.Context, account, service string) (string, int, error) {
	args := m.Called(ctx, account, service)
	return args.String(0), args.Int(1), args.Error(2)
}

func (m *MockLedger) ReserveEvent(ctx context.Context, account string, eventID int64) (int64, int, error) {
	args := m.Called(ctx, account, eventID)
	return args.Get(0).(int64), args.Int(1), args.Error(2)
}

func (m *MockLedger) ChargeReservedEvent(ctx context.Context, account string, handle int64) (int, error) {
	args := m.Called(ctx, account, handle)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) CancelReservation(ctx context.Context, account string, handle int64) (int, error) {
	args := m.Called(ctx, account, handle)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) TransferFunds(ctx context.Context, source, destination string, amount decimal.Decimal, reason, actor string) (int, error) {
	args := m.Called(ctx, source, destination, amount, reason, actor)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) AdjustBalance(ctx context.Context, account string, amount decimal.Decimal, reason, adjustType, note string) (int, error) {
	args := m.Called(ctx, account, amount, reason, adjustType, note)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) ExtendExpiry(ctx context.Context, account string, days int) (int, error) {
	args := m.Called(ctx, account, days)
	return args.Int(0), args.Error(1)
}

func (m *MockLedger) GetSubscriptionClassification(ctx context.Context, account string) (string, int, error) {
	args := m.Called(ctx, account)
	return args.String(0), args.Int(1), args.Error(2)
}

func (m *MockLedger) GetAccountState(ctx context.Context, account string) (ledger.AccountState, int, error) {
	args := m.Called(ctx, account)
	return args.Get(0).(ledger.AccountState), args.Int(1), args.Error(2)
}

func (m *MockLedger) GetNetworkPartition(ctx context.Context, account string) (string, int, error) {
	args := m.Called(ctx, account)
	return args.String(0), args.Int(1), args.Error(2)
}

type MockAudit struct {
	mock.Mock
}

func (m *MockAudit) Insert(ctx context.Context, tx *models.Transaction) (uint, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(uint), args.Error(1)
}

func (m *MockAudit) DailyCount(ctx context.Context, source string) (int, error) {
	args := m.Called(ctx, source)
	return args.Int(0), args.Error(1)
}

func (m *MockAudit) DailyAmountSum(ctx context.Context, source string) (decimal.Decimal, error) {
	args := m.Called(ctx, source)
	return args.Get(0).(decimal.Decimal), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) NotifyTransfer(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockNotifier) PublishOutcome(ctx context.Context, tx *models.Transaction) error {
	return m.Called(ctx, tx).Error(0)
}

type settingsMap map[string]string

func (s settingsMap) AllSettings(ctx context.Context) ([]models.Setting, error) {
	rows := make([]models.Setting, 0, len(s))
	for k, v := range s {
		rows = append(rows, models.Setting{Category: "test", Key: k, Value: v})
	}
	return rows, nil
}

type configMap map[string]*models.TransferConfig

func (c configMap) TransferConfigByType(ctx context.Context, subscriptionType string) (*models.TransferConfig, error) {
	cfg, ok := c[subscriptionType]
	if !ok {
		return nil, repositories.ErrTransferConfigNotFound
	}
	cp := *cfg
	return &cp, nil
}

type staticRules []models.TransferRule

func (r staticRules) ActiveRules(ctx context.Context) ([]models.TransferRule, error) {
	return r, nil
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func amountEq(s string) interface{} {
	want := dec(s)
	return mock.MatchedBy(func(d decimal.Decimal) bool { return d.Equal(want) })
}

type fixture struct {
	t        *testing.T
	ledger   *MockLedger
	audit    *MockAudit
	notifier *MockNotifier
	settings settingsMap
	configs  configMap
	rules    staticRules
	inserted []*models.Transaction
}

func newFixture(t *testing.T) *fixture {
	f := &fixture{
		t:        t,
		ledger:   new(MockLedger),
		audit:    new(MockAudit),
		notifier: new(MockNotifier),
		settings: settingsMap{
			KeyCountry:                  "OM",
			KeyPhoneLengths:             "8,11",
			KeyMinorUnitFactor:          "1000",
			KeyDefaultPin:               "0000",
			KeyPinLength:                "4",
			KeyDefaultReason:            "C2C",
			KeyNewNetwork:               "NEW",
			KeyAdjustType:               "TRANSFER",
			KeyExtendExpiryEnabled:      "true",
			KeyExtensionThresholds:      "1,5,10",
			KeyExtensionDays:            "1,3,7",
			KeyAdjustReasonThresholds:   "1,10",
			KeyAdjustReasonOldToNew:     "ON_LOW,ON_HIGH",
			KeyAdjustReasonNewToOld:     "NO_LOW,NO_HIGH",
			KeyTransferReasonThresholds: "1,10",
			KeyTransferReasonCross:      "X_LOW,X_HIGH",
			KeyTransferReasonSame:       "S_LOW,S_HIGH",
		},
		configs: configMap{
			"Prepaid": {
				SubscriptionType: "Prepaid", Class: models.ClassCustomer,
				MinAmount: dec("1"), MaxAmount: dec("100"), FeeEventID: 501, ServiceName: "C2C",
			},
			"Dealer": {
				SubscriptionType: "Dealer", Class: models.ClassDealer,
				MinAmount: dec("1"), MaxAmount: dec("1000"), ServiceName: "D2C",
			},
			"Distributor": {
				SubscriptionType: "Distributor", Class: models.ClassDealer,
				MinAmount: dec("1"), MaxAmount: dec("1000"), ServiceName: "D2C",
			},
			"Data": {
				SubscriptionType: "Data", Class: models.ClassData,
				MinAmount: dec("1"), MaxAmount: dec("100"), ServiceName: "DATA",
			},
		},
		rules: staticRules{
			{Country: "OM", SourceType: "Prepaid", DestinationType: "Prepaid", Allowed: true, Priority: 10, Active: true},
			{Country: "OM", SourceType: "Dealer", DestinationType: "*", Allowed: true, Priority: 5, Active: true},
			{Country: "OM", SourceType: "*", DestinationType: "Data", Allowed: true, Priority: 1, Active: true},
		},
	}
	f.notifier.On("NotifyTransfer", mock.Anything, mock.Anything).Return(nil).Maybe()
	f.notifier.On("PublishOutcome", mock.Anything, mock.Anything).Return(nil).Maybe()
	return f
}

func (f *fixture) service() Service {
	store := settings.NewStore(f.settings, nil)
	gate := rules.NewGate(f.rules, store, nil)
	validator := NewValidator(f.ledger, f.configs, gate, f.audit, store, nil)
	orchestrator := NewOrchestrator(f.ledger, f.audit, store, f.notifier, nil)
	return NewService(validator, orchestrator, domainerrors.NewCatalog(store), store, nil)
}

// account registers the lookups validation performs on one account.
func (f *fixture) account(number, subType, partition string) {
	f.ledger.On("GetSubscriptionClassification", mock.Anything, number).Return(subType, 0, nil).Maybe()
	f.ledger.On("GetAccountState", mock.Anything, number).
		Return(ledger.AccountState{BlockStatus: ledger.BlockStatusNone, Status: "ACTIVE"}, 0, nil).Maybe()
	f.ledger.On("GetNetworkPartition", mock.Anything, number).Return(partition, 0, nil).Maybe()
}

func (f *fixture) balance(number, amount string) {
	f.ledger.On("GetBalance", mock.Anything, number).Return(dec(amount), 0, nil).Maybe()
	f.ledger.On("GetMaxAmountByService", mock.Anything, number, mock.Anything).Return("", 0, nil).Maybe()
}

func (f *fixture) pin(number, pin string) {
	f.ledger.On("GetPinByService", mock.Anything, number, mock.Anything).Return(pin, 0, nil).Maybe()
}

// recordInserts captures every persisted record and assigns ids from 100.
func (f *fixture) recordInserts() {
	f.audit.On("Insert", mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			tx := args.Get(1).(*models.Transaction)
			tx.ID = uint(100 + len(f.inserted))
			cp := *tx
			f.inserted = append(f.inserted, &cp)
		}).
		Return(uint(100), nil).Maybe()
}

func (f *fixture) onlyRecord() *models.Transaction {
	f.t.Helper()
	if len(f.inserted) != 1 {
		f.t.Fatalf("expected exactly one persisted record, got %d", len(f.inserted))
	}
	return f.inserted[0]
}

func (f *fixture) assertNoMutation() {
	f.t.Helper()
	for _, method := range []string{"ReserveEvent", "TransferFunds", "AdjustBalance", "ChargeReservedEvent", "CancelReservation", "ExtendExpiry"} {
		f.ledger.AssertNotCalled(f.t, method)
	}
}

func plain(source, destination string, major, minor int64, pin string) Request {
	return Request{
		Source: source, Destination: destination,
		AmountMajor: major, AmountMinor: minor,
		Pin: pin, Actor: "agent-1",
	}
}
