package transfer

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "airtime/internal/errors"
	"airtime/internal/ledger"
	"airtime/internal/logging"
	"airtime/internal/models"
	"airtime/internal/repositories"
)

// Validator runs the ordered validation pipeline. The first failing check
// decides the outcome code, so the order of checks is part of the contract.
type Validator struct {
	ledger   Ledger
	configs  ConfigStore
	rules    RuleEvaluator
	audit    AuditStore
	settings Settings
	logger   *zap.Logger
}

func NewValidator(l Ledger, configs ConfigStore, rules RuleEvaluator, audit AuditStore, settings Settings, logger *zap.Logger) *Validator {
	return &Validator{
		ledger:   l,
		configs:  configs,
		rules:    rules,
		audit:    audit,
		settings: settings,
		logger:   logging.OrNop(logger),
	}
}

// Validate checks a transfer of amount from source to destination without
// mutating anything on the ledger.
func (v *Validator) Validate(ctx context.Context, source, destination string, amount decimal.Decimal) (*Validated, error) {
	// 1. format
	if source == destination {
		return nil, domainerrors.ErrSameNumber
	}
	lengths := v.settings.Strings(ctx, KeyPhoneLengths, defaultPhoneLengths)
	if !validNumber(source, lengths) {
		return nil, domainerrors.ErrInvalidSourcePhone
	}
	if !validNumber(destination, lengths) {
		return nil, domainerrors.ErrInvalidDestPhone
	}
	if !amount.IsPositive() {
		return nil, domainerrors.ErrAmountBelowMinimum
	}

	// 2. subscription classification
	sourceType, err := v.classify(ctx, source, domainerrors.ErrSourceNotFound)
	if err != nil {
		return nil, err
	}
	destType, err := v.classify(ctx, destination, domainerrors.ErrDestinationNotFound)
	if err != nil {
		return nil, err
	}

	// 3. per type configuration
	sourceCfg, err := v.transferConfig(ctx, sourceType, domainerrors.ErrSourceNotFound)
	if err != nil {
		return nil, err
	}
	destCfg, err := v.transferConfig(ctx, destType, domainerrors.ErrDestinationNotFound)
	if err != nil {
		return nil, err
	}

	// 4. rule gate
	country := v.settings.String(ctx, KeyCountry, defaultCountry)
	if decision := v.rules.Evaluate(ctx, country, sourceType, destType); !decision.Allowed {
		v.logger.Info("transfer denied by rule",
			zap.String("country", country),
			zap.String("source_type", sourceType),
			zap.String("destination_type", destType),
			zap.Int("code", decision.Code),
			zap.Uint("rule_id", decision.RuleID))
		return nil, decision.Err()
	}

	// 5. balance and percentage of balance
	balance, code, err := v.ledger.GetBalance(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("get balance: %w", err)
	}
	if code != 0 {
		return nil, domainerrors.ErrSourceNotFound.Wrap(fmt.Errorf("balance lookup returned %d", code))
	}
	pct := v.settings.Decimal(ctx, KeyMaxBalancePercentage, percentageDisabled)
	if pct.IsPositive() && !pct.Equal(percentageDisabled) {
		if balance.Sub(amount).LessThan(balance.Div(pct)) {
			return nil, domainerrors.ErrHalfBalance
		}
	}

	// 6. source block status
	sourceState, code, err := v.ledger.GetAccountState(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("get source account state: %w", err)
	}
	if code != 0 {
		return nil, domainerrors.ErrSourceNotFound.Wrap(fmt.Errorf("account state lookup returned %d", code))
	}
	if sourceState.BlockStatus != "" && sourceState.BlockStatus != ledger.BlockStatusNone {
		return nil, domainerrors.ErrNotAuthorized.Wrap(fmt.Errorf("source block status %s", sourceState.BlockStatus))
	}

	// 7. destination lifecycle status
	destState, code, err := v.ledger.GetAccountState(ctx, destination)
	if err != nil {
		return nil, fmt.Errorf("get destination account state: %w", err)
	}
	if code != 0 {
		return nil, domainerrors.ErrDestinationNotFound.Wrap(fmt.Errorf("account state lookup returned %d", code))
	}
	if destState.Status == ledger.StatusActiveBeforeFirstUse {
		return nil, domainerrors.ErrDestinationNotFound.Wrap(errors.New("destination not yet activated"))
	}

	// 8. effective maximum
	maxAmount, err := v.effectiveMax(ctx, source, sourceCfg)
	if err != nil {
		return nil, err
	}
	if amount.GreaterThan(maxAmount) {
		return nil, domainerrors.ErrAmountAboveMaximum
	}

	// 9. minimum
	if amount.LessThan(sourceCfg.MinAmount) {
		return nil, domainerrors.ErrAmountBelowMinimum
	}

	// 10. daily count, only when configured
	if sourceCfg.DailyCountLimit != nil {
		count, err := v.audit.DailyCount(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("daily count: %w", err)
		}
		if count >= *sourceCfg.DailyCountLimit {
			return nil, domainerrors.ErrDailyCountExceeded
		}
	}

	// 11. daily cap, only when configured
	if sourceCfg.DailyCapLimit.Valid {
		total, err := v.audit.DailyAmountSum(ctx, source)
		if err != nil {
			return nil, fmt.Errorf("daily amount: %w", err)
		}
		if total.GreaterThanOrEqual(sourceCfg.DailyCapLimit.Decimal) {
			return nil, domainerrors.ErrDailyCapExceeded
		}
	}

	// 12. minimum post transfer balance
	if balance.Sub(amount).LessThan(sourceCfg.MinPostBalance) {
		return nil, domainerrors.ErrRemainingBalance
	}

	return &Validated{
		Source:          source,
		Destination:     destination,
		Amount:          amount,
		SourceType:      sourceType,
		DestinationType: destType,
		SourceConfig:    sourceCfg,
		DestConfig:      destCfg,
		Balance:         balance,
	}, nil
}

func (v *Validator) classify(ctx context.Context, account string, notFound *domainerrors.DomainError) (string, error) {
	subType, code, err := v.ledger.GetSubscriptionClassification(ctx, account)
	if err != nil {
		return "", fmt.Errorf("classify %s: %w", account, err)
	}
	if code != 0 || strings.TrimSpace(subType) == "" {
		return "", notFound.Wrap(fmt.Errorf("classification returned %d", code))
	}
	return subType, nil
}

func (v *Validator) transferConfig(ctx context.Context, subType string, notFound *domainerrors.DomainError) (*models.TransferConfig, error) {
	cfg, err := v.configs.TransferConfigByType(ctx, subType)
	if err != nil {
		if errors.Is(err, repositories.ErrTransferConfigNotFound) {
			return nil, notFound.Wrap(fmt.Errorf("no transfer config for %s", subType))
		}
		return nil, fmt.Errorf("transfer config %s: %w", subType, err)
	}
	if cfg == nil {
		return nil, notFound.Wrap(fmt.Errorf("no transfer config for %s", subType))
	}
	return cfg, nil
}

// effectiveMax prefers the ledger's per service maximum, then the type's
// configured maximum, then the global default.
func (v *Validator) effectiveMax(ctx context.Context, source string, cfg *models.TransferConfig) (decimal.Decimal, error) {
	raw, code, err := v.ledger.GetMaxAmountByService(ctx, source, cfg.ServiceName)
	if err != nil {
		return decimal.Zero, fmt.Errorf("get max amount: %w", err)
	}
	if code == 0 && strings.TrimSpace(raw) != "" {
		limit, perr := decimal.NewFromString(strings.TrimSpace(raw))
		if perr == nil {
			return limit, nil
		}
		v.logger.Warn("ledger returned unparsable max amount", zap.String("value", raw))
	}
	if cfg.MaxAmount.IsPositive() {
		return cfg.MaxAmount, nil
	}
	return v.settings.Decimal(ctx, KeyDefaultMaxAmount, defaultMaxAmount), nil
}

func validNumber(number string, lengths []string) bool {
	if number == "" {
		return false
	}
	for _, r := range number {
		if r < '0' || r > '9' {
			return false
		}
	}
	for _, l := range lengths {
		if n, err := strconv.Atoi(l); err == nil && n == len(number) {
			return true
		}
	}
	return false
}
