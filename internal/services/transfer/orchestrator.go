package transfer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	domainerrors "airtime/internal/errors"
	"airtime/internal/logging"
	"airtime/internal/models"
)

// Ledger response codes per call, translated to outcome errors. Codes not
// listed map to a miscellaneous failure.
var (
	reserveCodes = map[int]*domainerrors.DomainError{
		3: domainerrors.ErrMiscellaneous,
		5: domainerrors.ErrInsufficientCredit,
	}
	moveCodes = map[int]*domainerrors.DomainError{
		3:  domainerrors.ErrMiscellaneous,
		7:  domainerrors.ErrSourceNotFound,
		8:  domainerrors.ErrSameNumber,
		9:  domainerrors.ErrDestinationNotFound,
		10: domainerrors.ErrInsufficientCredit,
		16: domainerrors.ErrInsufficientCredit,
	}
	chargeCodes = map[int]*domainerrors.DomainError{
		3: domainerrors.ErrMiscellaneous,
		6: domainerrors.ErrExpiredReservation,
	}
	extendCodes = map[int]*domainerrors.DomainError{
		3:  domainerrors.ErrMiscellaneous,
		7:  domainerrors.ErrDestinationNotFound,
		13: domainerrors.ErrConcurrentUpdate,
	}
)

func ledgerErr(op string, code int, table map[int]*domainerrors.DomainError) error {
	if code == 0 {
		return nil
	}
	base, ok := table[code]
	if !ok {
		base = domainerrors.ErrMiscellaneous
	}
	return base.Wrap(fmt.Errorf("%s returned %d", op, code))
}

// Execution is the input of one attempt beyond what validation resolved.
type Execution struct {
	Pin              string
	AdjustmentReason string
	Actor            string
	RequestID        string
}

// attempt is the in-memory state of one transfer. It is owned by a single
// goroutine.
type attempt struct {
	tx        *models.Transaction
	v         *Validated
	pin       string
	explicit  bool
	cross     bool
	forward   bool
	persisted bool
	log       *zap.Logger
}

// Orchestrator runs the reserve, move, charge, extend and audit sequence
// against the ledger and compensates on failure.
type Orchestrator struct {
	ledger   Ledger
	audit    AuditStore
	settings Settings
	notifier Notifier
	logger   *zap.Logger
	now      func() time.Time
}

func NewOrchestrator(l Ledger, audit AuditStore, settings Settings, notifier Notifier, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		ledger:   l,
		audit:    audit,
		settings: settings,
		notifier: notifier,
		logger:   logging.OrNop(logger),
		now:      time.Now,
	}
}

// Execute runs a validated transfer and returns the id of the persisted
// success record.
func (o *Orchestrator) Execute(ctx context.Context, v *Validated, in Execution) (uint, error) {
	a := &attempt{
		v:        v,
		pin:      in.Pin,
		explicit: strings.TrimSpace(in.AdjustmentReason) != "",
		log: o.logger.With(
			zap.String("request_id", in.RequestID),
			zap.String("source", v.Source),
			zap.String("destination", v.Destination),
			zap.String("amount", v.Amount.String())),
		tx: &models.Transaction{
			RequestID:        in.RequestID,
			Source:           v.Source,
			Destination:      v.Destination,
			Amount:           v.Amount,
			ReservationID:    models.NoReservation,
			Status:           models.StatusPending,
			AdjustmentReason: strings.TrimSpace(in.AdjustmentReason),
			CreatedBy:        in.Actor,
			CreatedAt:        o.now(),
		},
	}

	// A. credential
	if err := o.checkCredential(ctx, a); err != nil {
		return 0, err
	}
	a.tx.CredentialHash = hashCredential(a.pin)
	a.tx.Stage = models.StageCredential

	// B. reason
	if err := o.resolveReason(ctx, a); err != nil {
		return 0, err
	}

	extendEnabled := o.settings.Bool(ctx, KeyExtendExpiryEnabled, false)
	if extendEnabled {
		band, err := loadBand(ctx, o.settings, KeyExtensionThresholds, KeyExtensionDays)
		if err != nil {
			return 0, err
		}
		days, err := band.ResolveInt(v.Amount)
		if err != nil {
			return 0, bandErr("extension", err)
		}
		a.tx.ExtensionDays = days
	}

	// C to F. Anything failing from here on is persisted.
	if err := o.run(ctx, a, extendEnabled); err != nil {
		o.rollback(ctx, a, err)
		return 0, err
	}

	// G. finalize
	before := *a.tx
	now := o.now()
	a.tx.Reserved = true
	a.tx.FundsMoved = true
	a.tx.EventCharged = true
	a.tx.EventCancelled = true
	a.tx.ExpiryExtended = true
	a.tx.Stage = models.StageCompleted
	a.tx.CompletedAt = &now
	id, err := o.persist(ctx, a, models.StatusSucceeded)
	if err != nil {
		*a.tx = before
		o.rollback(ctx, a, err)
		return 0, domainerrors.ErrMiscellaneous.Wrap(err)
	}
	a.log.Info("transfer succeeded", zap.Uint("transaction_id", id), zap.String("reason", a.tx.TransferReason))

	// H. notify
	if o.notifier != nil {
		if err := o.notifier.NotifyTransfer(ctx, a.tx); err != nil {
			a.log.Warn("transfer notification failed", zap.Error(err))
		}
	}
	return id, nil
}

func (o *Orchestrator) checkCredential(ctx context.Context, a *attempt) error {
	defaultPin := o.settings.String(ctx, KeyDefaultPin, "")
	if defaultPin != "" && a.pin == defaultPin {
		return nil
	}
	if !validPin(a.pin, o.settings.Int(ctx, KeyPinLength, defaultPinLength)) {
		return domainerrors.ErrInvalidPinFormat
	}

	stored, code, err := o.ledger.GetPinByService(ctx, a.v.Source, a.v.SourceConfig.ServiceName)
	if err != nil {
		return fmt.Errorf("get pin: %w", err)
	}
	if code != 0 || stored == "" {
		return nil
	}
	if stored != a.pin {
		a.log.Info("credential mismatch")
		return domainerrors.ErrInvalidPin
	}
	return nil
}

func (o *Orchestrator) resolveReason(ctx context.Context, a *attempt) error {
	srcPartition, code, err := o.ledger.GetNetworkPartition(ctx, a.v.Source)
	if err != nil {
		return fmt.Errorf("source partition: %w", err)
	}
	if code != 0 {
		return domainerrors.ErrSourceNotFound.Wrap(fmt.Errorf("partition lookup returned %d", code))
	}
	dstPartition, code, err := o.ledger.GetNetworkPartition(ctx, a.v.Destination)
	if err != nil {
		return fmt.Errorf("destination partition: %w", err)
	}
	if code != 0 {
		return domainerrors.ErrDestinationNotFound.Wrap(fmt.Errorf("partition lookup returned %d", code))
	}

	a.cross = srcPartition != dstPartition
	a.forward = dstPartition == o.settings.String(ctx, KeyNewNetwork, "")

	if a.explicit {
		a.tx.TransferReason = a.tx.AdjustmentReason
		return nil
	}

	reason := o.settings.String(ctx, KeyDefaultReason, defaultReason)
	if a.cross {
		band, err := loadDirectional(ctx, o.settings, KeyAdjustReasonThresholds, KeyAdjustReasonOldToNew, KeyAdjustReasonNewToOld)
		if err != nil {
			return err
		}
		if reason, err = band.Resolve(a.v.Amount, a.forward); err != nil {
			return bandErr("adjustment reason", err)
		}
	}
	a.tx.AdjustmentReason = reason
	a.tx.TransferReason = reason
	return nil
}

func (o *Orchestrator) run(ctx context.Context, a *attempt, extendEnabled bool) error {
	tx, v := a.tx, a.v

	// C. path selection
	if v.SourceConfig.IsCustomer() {
		tx.ExtensionDays = 0
		tx.FromCustomerAccount = true
		if err := o.reserve(ctx, a); err != nil {
			return err
		}
	} else if (v.DestConfig.IsCustomer() || v.DestConfig.IsData()) && !a.explicit {
		band, err := loadDirectional(ctx, o.settings, KeyTransferReasonThresholds, KeyTransferReasonCross, KeyTransferReasonSame)
		if err != nil {
			return err
		}
		reason, err := band.Resolve(v.Amount, a.cross)
		if err != nil {
			return bandErr("transfer reason", err)
		}
		tx.TransferReason = reason
	}

	// D. move funds
	if err := o.moveFunds(ctx, a); err != nil {
		return err
	}
	tx.FundsMoved = true
	tx.Stage = models.StageFundsMoved

	// E. commit the reservation
	if tx.Reserved {
		code, err := o.ledger.ChargeReservedEvent(ctx, v.Source, tx.ReservationID)
		if err != nil {
			return fmt.Errorf("charge reservation: %w", err)
		}
		if err := ledgerErr("charge reservation", code, chargeCodes); err != nil {
			return err
		}
		tx.EventCharged = true
		tx.Stage = models.StageCharged
	}

	// F. extend expiry
	if extendEnabled && !v.SourceConfig.IsCustomer() && v.DestConfig.IsCustomer() && tx.ExtensionDays > 0 {
		code, err := o.ledger.ExtendExpiry(ctx, v.Destination, tx.ExtensionDays)
		if err != nil {
			return fmt.Errorf("extend expiry: %w", err)
		}
		err = ledgerErr("extend expiry", code, extendCodes)
		switch {
		case err == nil:
			tx.ExpiryExtended = true
			tx.Stage = models.StageExtended
		case domainerrors.CodeOf(err) == domainerrors.CodeConcurrentUpdate:
			a.log.Warn("concurrent update detected while extending expiry", zap.Int("days", tx.ExtensionDays))
			tx.ErrorText = err.Error()
		default:
			return err
		}
	}
	return nil
}

func (o *Orchestrator) reserve(ctx context.Context, a *attempt) error {
	tx, v := a.tx, a.v
	if v.SourceConfig.FeeEventID == 0 {
		tx.ReservationID = models.NoReservation
		return nil
	}

	handle, code, err := o.ledger.ReserveEvent(ctx, v.Source, v.SourceConfig.FeeEventID)
	if err != nil {
		return fmt.Errorf("reserve event: %w", err)
	}
	if err := ledgerErr("reserve event", code, reserveCodes); err != nil {
		return err
	}
	tx.Reserved = true
	tx.ReservationID = handle
	tx.Stage = models.StageReserved
	return nil
}

func (o *Orchestrator) moveFunds(ctx context.Context, a *attempt) error {
	tx, v := a.tx, a.v
	if !a.cross {
		code, err := o.ledger.TransferFunds(ctx, v.Source, v.Destination, v.Amount, tx.TransferReason, tx.CreatedBy)
		if err != nil {
			return fmt.Errorf("transfer funds: %w", err)
		}
		return ledgerErr("transfer funds", code, moveCodes)
	}

	adjustType := o.settings.String(ctx, KeyAdjustType, defaultAdjustType)
	note := fmt.Sprintf("transfer %s to %s", v.Source, v.Destination)

	code, err := o.ledger.AdjustBalance(ctx, v.Source, v.Amount.Neg(), tx.AdjustmentReason, adjustType, note)
	if err != nil {
		return fmt.Errorf("debit source: %w", err)
	}
	if err := ledgerErr("debit source", code, moveCodes); err != nil {
		return err
	}

	code, err = o.ledger.AdjustBalance(ctx, v.Destination, v.Amount, tx.AdjustmentReason, adjustType, note)
	if err == nil {
		err = ledgerErr("credit destination", code, moveCodes)
	} else {
		err = fmt.Errorf("credit destination: %w", err)
	}
	if err != nil {
		o.compensateDebit(ctx, a, adjustType, note)
		return err
	}
	return nil
}

// compensateDebit credits the source back after a failed credit leg. A failed
// compensation is logged and left for reconciliation.
func (o *Orchestrator) compensateDebit(ctx context.Context, a *attempt, adjustType, note string) {
	code, err := o.ledger.AdjustBalance(ctx, a.v.Source, a.v.Amount, a.tx.AdjustmentReason, adjustType, "reversal: "+note)
	if err != nil || code != 0 {
		a.log.Error("compensating credit failed, manual reconciliation required",
			zap.Int("ledger_code", code), zap.Error(err))
		a.tx.ErrorText = joinText(a.tx.ErrorText, "compensating credit failed")
	}
}

// rollback records the failed attempt, cancelling the reservation when
// funds never moved.
func (o *Orchestrator) rollback(ctx context.Context, a *attempt, cause error) {
	if a.persisted {
		return
	}
	tx := a.tx
	tx.ErrorCode = domainerrors.CodeOf(cause)
	tx.ErrorText = joinText(tx.ErrorText, cause.Error())

	switch {
	case tx.FundsMoved:
		a.log.Error("transfer failed after funds moved", zap.Error(cause))
	case tx.Reserved:
		code, err := o.ledger.CancelReservation(ctx, tx.Source, tx.ReservationID)
		if err != nil || code != 0 {
			a.log.Error("reservation cancel failed",
				zap.Int64("handle", tx.ReservationID), zap.Int("ledger_code", code), zap.Error(err))
			tx.ErrorText = joinText(tx.ErrorText, fmt.Sprintf("cancel reservation failed (code %d)", code))
		}
		tx.EventCancelled = true
		a.log.Warn("transfer rolled back", zap.Error(cause))
	default:
		a.log.Warn("transfer failed before any reservation", zap.Error(cause))
	}

	if _, err := o.persist(ctx, a, models.StatusTransferFailed); err != nil {
		a.log.Error("failed to persist failed transfer", zap.Error(err))
	}
}

// persist writes the attempt at most once.
func (o *Orchestrator) persist(ctx context.Context, a *attempt, status models.TransactionStatus) (uint, error) {
	if a.persisted {
		return a.tx.ID, nil
	}
	a.tx.Status = status
	id, err := o.audit.Insert(ctx, a.tx)
	if err != nil {
		return 0, err
	}
	a.persisted = true

	if o.notifier != nil {
		if err := o.notifier.PublishOutcome(ctx, a.tx); err != nil {
			a.log.Warn("transfer event publish failed", zap.Error(err))
		}
	}
	return id, nil
}

func hashCredential(pin string) string {
	if pin == "" {
		return ""
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.MinCost)
	if err != nil {
		return ""
	}
	return string(hash)
}

func validPin(pin string, length int) bool {
	if len(pin) != length {
		return false
	}
	for _, r := range pin {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func joinText(existing, add string) string {
	if existing == "" {
		return add
	}
	return existing + "; " + add
}
