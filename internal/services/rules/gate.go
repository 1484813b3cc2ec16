// Package rules decides whether a transfer between two subscription types is
// permitted, from a rule table that can be reloaded at runtime.
package rules

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	domainerrors "airtime/internal/errors"
	"airtime/internal/logging"
	"airtime/internal/models"
)

// Wildcard matches any country or subscription type.
const Wildcard = "*"

// RuleSource returns the active transfer rules.
type RuleSource interface {
	ActiveRules(ctx context.Context) ([]models.TransferRule, error)
}

// ConfigLookup resolves the setting a conditional rule depends on.
type ConfigLookup interface {
	Lookup(ctx context.Context, key string) (string, bool)
}

// Decision is the outcome of a rule evaluation. Message may be empty, in
// which case callers resolve it from the error catalog by Code.
type Decision struct {
	Allowed bool
	Code    int
	Message string
	RuleID  uint
}

// Err returns nil for an allowed decision and the denial as a DomainError
// otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return domainerrors.New(d.Code, d.Message)
}

// Gate evaluates transfer rules against an in-memory snapshot. The snapshot
// is loaded on first use and replaced atomically by Reload.
type Gate struct {
	source RuleSource
	config ConfigLookup
	logger *zap.Logger

	mu    sync.Mutex
	rules atomic.Pointer[[]models.TransferRule]
}

func NewGate(source RuleSource, config ConfigLookup, logger *zap.Logger) *Gate {
	return &Gate{source: source, config: config, logger: logging.OrNop(logger)}
}

// Reload fetches the rule table and swaps it in. On failure the previous
// snapshot stays in place.
func (g *Gate) Reload(ctx context.Context) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.load(ctx)
}

func (g *Gate) load(ctx context.Context) error {
	rules, err := g.source.ActiveRules(ctx)
	if err != nil {
		return err
	}
	active := make([]models.TransferRule, 0, len(rules))
	for _, r := range rules {
		if r.Active {
			active = append(active, r)
		}
	}
	g.rules.Store(&active)
	g.logger.Info("transfer rules loaded", zap.Int("count", len(active)))
	return nil
}

func (g *Gate) snapshot(ctx context.Context) ([]models.TransferRule, error) {
	if rules := g.rules.Load(); rules != nil {
		return *rules, nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if rules := g.rules.Load(); rules != nil {
		return *rules, nil
	}
	if err := g.load(ctx); err != nil {
		return nil, err
	}
	return *g.rules.Load(), nil
}

// Evaluate returns the decision of the highest priority matching rule. A
// deny wins a priority tie. No matching rule is a denial, and so is a rule
// table that cannot be loaded.
func (g *Gate) Evaluate(ctx context.Context, country, sourceType, destinationType string) Decision {
	rules, err := g.snapshot(ctx)
	if err != nil {
		g.logger.Error("transfer rules unavailable", zap.Error(err))
		return Decision{Code: domainerrors.CodeServiceUnavailable}
	}

	var best *models.TransferRule
	for i := range rules {
		r := &rules[i]
		if !matches(r.Country, country) || !matches(r.SourceType, sourceType) || !matches(r.DestinationType, destinationType) {
			continue
		}
		if !g.conditionHolds(ctx, r) {
			continue
		}
		if best == nil || r.Priority > best.Priority || (r.Priority == best.Priority && best.Allowed && !r.Allowed) {
			best = r
		}
	}

	if best == nil {
		g.logger.Debug("no transfer rule matched",
			zap.String("country", country),
			zap.String("source_type", sourceType),
			zap.String("destination_type", destinationType))
		return Decision{Code: domainerrors.CodeTransferNotAllowed}
	}

	if best.Allowed {
		return Decision{Allowed: true, RuleID: best.ID}
	}

	code := best.ErrorCode
	if code == domainerrors.CodeSuccess {
		code = domainerrors.CodeTransferNotAllowed
	}
	return Decision{Code: code, Message: best.ErrorMessage, RuleID: best.ID}
}

func (g *Gate) conditionHolds(ctx context.Context, r *models.TransferRule) bool {
	if r.RequiredConfigKey == "" {
		return true
	}
	if g.config == nil {
		return false
	}
	v, ok := g.config.Lookup(ctx, r.RequiredConfigKey)
	return ok && v == r.RequiredConfigValue
}

func matches(pattern, value string) bool {
	return pattern == Wildcard || pattern == value
}
