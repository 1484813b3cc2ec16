package transfer

import (
	"context"
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	domainerrors "airtime/internal/errors"
	"airtime/internal/logging"
)

// service implements the transfer Service interface.
type service struct {
	validator    *Validator
	orchestrator *Orchestrator
	catalog      *domainerrors.Catalog
	settings     Settings
	logger       *zap.Logger
}

// NewService creates a new transfer service instance.
func NewService(validator *Validator, orchestrator *Orchestrator, catalog *domainerrors.Catalog, settings Settings, logger *zap.Logger) Service {
	return &service{
		validator:    validator,
		orchestrator: orchestrator,
		catalog:      catalog,
		settings:     settings,
		logger:       logging.OrNop(logger),
	}
}

// Transfer moves a PIN protected amount between two subscribers.
func (s *service) Transfer(ctx context.Context, req Request) Outcome {
	req.AdjustmentReason = ""
	return s.execute(ctx, "transfer", req)
}

// TransferWithReason is Transfer with a caller supplied adjustment reason.
func (s *service) TransferWithReason(ctx context.Context, req Request) Outcome {
	if strings.TrimSpace(req.AdjustmentReason) == "" {
		return s.outcome(ctx, domainerrors.ErrPropertyNotFound.Wrap(fmt.Errorf("adjustment reason is required")), 0)
	}
	return s.execute(ctx, "transfer_with_reason", req)
}

// TransferWithoutPin is the service center path: the caller already
// authenticated the subscriber, so the configured default PIN stands in.
func (s *service) TransferWithoutPin(ctx context.Context, req PinlessRequest) Outcome {
	defaultPin := s.settings.String(ctx, KeyDefaultPin, "")
	if defaultPin == "" {
		return s.outcome(ctx, domainerrors.ErrConfiguration.Wrap(fmt.Errorf("%s is not set", KeyDefaultPin)), 0)
	}
	major, minor := SplitAmount(req.Amount, s.factor(ctx))
	return s.execute(ctx, "transfer_without_pin", Request{
		Source:      req.Source,
		Destination: req.Destination,
		AmountMajor: major,
		AmountMinor: minor,
		Pin:         defaultPin,
		Actor:       req.Actor,
		RequestID:   req.RequestID,
	})
}

// Validate runs validation only. It also requires the amount to be a
// multiple of the configured step.
func (s *service) Validate(ctx context.Context, req Request) (out Outcome) {
	log := s.requestLogger(&req)
	defer s.recoverOutcome(ctx, log, &out)

	amount := CombineAmount(req.AmountMajor, req.AmountMinor, s.factor(ctx))
	if _, err := s.validator.Validate(ctx, req.Source, req.Destination, amount); err != nil {
		log.Info("validation rejected", zap.Int("code", domainerrors.CodeOf(err)), zap.Error(err))
		return s.outcome(ctx, err, 0)
	}

	step := s.settings.Int(ctx, KeyValidateMultipleOf, defaultMultipleOf)
	if step > 0 && !amount.Mod(decimal.NewFromInt(int64(step))).IsZero() {
		return s.outcome(ctx, domainerrors.ErrAmountNotMultiple, 0)
	}
	return s.outcome(ctx, nil, 0)
}

func (s *service) execute(ctx context.Context, op string, req Request) (out Outcome) {
	log := s.requestLogger(&req).With(zap.String("op", op))
	defer s.recoverOutcome(ctx, log, &out)

	amount := CombineAmount(req.AmountMajor, req.AmountMinor, s.factor(ctx))
	validated, err := s.validator.Validate(ctx, req.Source, req.Destination, amount)
	if err == nil && (req.AmountMajor < 0 || req.AmountMinor < 0) {
		err = domainerrors.ErrAmountBelowMinimum
	}
	if err != nil {
		log.Info("transfer rejected", zap.String("amount", amount.String()),
			zap.Int("code", domainerrors.CodeOf(err)), zap.Error(err))
		return s.outcome(ctx, err, 0)
	}

	id, err := s.orchestrator.Execute(ctx, validated, Execution{
		Pin:              req.Pin,
		AdjustmentReason: req.AdjustmentReason,
		Actor:            req.Actor,
		RequestID:        req.RequestID,
	})
	out = s.outcome(ctx, err, id)
	log.Info("transfer finished", zap.String("amount", amount.String()),
		zap.Int("code", out.Code), zap.Uint("transaction_id", out.TransactionID))
	return out
}

func (s *service) outcome(ctx context.Context, err error, id uint) Outcome {
	code, message := s.catalog.Resolve(ctx, err)
	out := Outcome{Code: code, Message: message}
	if code == domainerrors.CodeSuccess {
		out.TransactionID = id
	}
	return out
}

func (s *service) recoverOutcome(ctx context.Context, log *zap.Logger, out *Outcome) {
	if r := recover(); r != nil {
		log.Error("transfer panicked", zap.Any("panic", r), zap.ByteString("stack", debug.Stack()))
		*out = s.outcome(ctx, domainerrors.ErrMiscellaneous.Wrap(fmt.Errorf("panic: %v", r)), 0)
	}
}

func (s *service) requestLogger(req *Request) *zap.Logger {
	if req.RequestID == "" {
		req.RequestID = uuid.NewString()
	}
	return s.logger.With(
		zap.String("request_id", req.RequestID),
		zap.String("source", req.Source),
		zap.String("destination", req.Destination))
}

func (s *service) factor(ctx context.Context) int {
	f := s.settings.Int(ctx, KeyMinorUnitFactor, defaultMinorUnitFactor)
	if f <= 0 {
		return defaultMinorUnitFactor
	}
	return f
}
