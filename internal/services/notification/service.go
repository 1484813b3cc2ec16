// Package notification tells subscribers about completed transfers by SMS
// and publishes every recorded attempt as an event.
package notification

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	domainerrors "airtime/internal/errors"
	"airtime/internal/logging"
	"airtime/internal/models"
	"airtime/pkg/rabbitmq"
)

const (
	KeySender         = "sms.sender"
	KeyDefaultLocale  = "sms.default_locale"
	keySenderDebited  = "sms.sender_debited."
	keyReceiverCredit = "sms.receiver_credited."

	defaultSender           = "Transfer"
	defaultLocale           = "en"
	defaultSenderDebited    = "You transferred {amount} to {destination}. Ref {id}."
	defaultReceiverCredited = "You received {amount} from {source}. Ref {id}."
)

// rtlLocales are rendered right to left.
var rtlLocales = map[string]bool{"ar": true}

// SMSGateway is the part of the ledger that sends SMS.
type SMSGateway interface {
	GetLocale(ctx context.Context, account string) (string, int, error)
	SendSMS(ctx context.Context, from, to, text string, rtl bool) (int, error)
}

// Templates resolves localized message templates.
type Templates interface {
	String(ctx context.Context, key, def string) string
}

// TransferEvent is published once per recorded transfer attempt.
type TransferEvent struct {
	TransactionID uint      `json:"transaction_id"`
	RequestID     string    `json:"request_id"`
	Source        string    `json:"source"`
	Destination   string    `json:"destination"`
	Amount        string    `json:"amount"`
	Status        string    `json:"status"`
	Stage         string    `json:"stage"`
	Code          int       `json:"code"`
	Reason        string    `json:"reason,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Service struct {
	gateway   SMSGateway
	templates Templates
	publisher rabbitmq.Publisher
	exchange  string
	logger    *zap.Logger
}

// NewService creates a notification service. A nil publisher drops events.
func NewService(gateway SMSGateway, templates Templates, publisher rabbitmq.Publisher, exchange string, logger *zap.Logger) *Service {
	logger = logging.OrNop(logger)
	if publisher == nil {
		publisher = rabbitmq.NewEventProducerFallback(logger)
	}
	return &Service{
		gateway:   gateway,
		templates: templates,
		publisher: publisher,
		exchange:  exchange,
		logger:    logger,
	}
}

// NotifyTransfer sends the debit SMS to the source and the credit SMS to the
// destination. Both are attempted even if the first fails.
func (s *Service) NotifyTransfer(ctx context.Context, tx *models.Transaction) error {
	sender := s.templates.String(ctx, KeySender, defaultSender)
	errs := []error{
		s.send(ctx, sender, tx.Source, keySenderDebited, defaultSenderDebited, tx),
		s.send(ctx, sender, tx.Destination, keyReceiverCredit, defaultReceiverCredited, tx),
	}
	if err := errors.Join(errs...); err != nil {
		return domainerrors.ErrSMSFailure.Wrap(err)
	}
	return nil
}

func (s *Service) send(ctx context.Context, sender, to, templatePrefix, fallback string, tx *models.Transaction) error {
	locale := s.locale(ctx, to)
	template := s.templates.String(ctx, templatePrefix+locale, "")
	if template == "" {
		template = s.templates.String(ctx, templatePrefix+defaultLocale, fallback)
	}

	code, err := s.gateway.SendSMS(ctx, sender, to, render(template, tx), rtlLocales[locale])
	if err != nil {
		return fmt.Errorf("sms to %s: %w", to, err)
	}
	if code != 0 {
		return fmt.Errorf("sms to %s returned %d", to, code)
	}
	return nil
}

func (s *Service) locale(ctx context.Context, account string) string {
	def := s.templates.String(ctx, KeyDefaultLocale, defaultLocale)
	locale, code, err := s.gateway.GetLocale(ctx, account)
	if err != nil || code != 0 || strings.TrimSpace(locale) == "" {
		return def
	}
	return strings.ToLower(strings.TrimSpace(locale))
}

// PublishOutcome emits the attempt under "transfer.<status>".
func (s *Service) PublishOutcome(ctx context.Context, tx *models.Transaction) error {
	event := TransferEvent{
		TransactionID: tx.ID,
		RequestID:     tx.RequestID,
		Source:        tx.Source,
		Destination:   tx.Destination,
		Amount:        tx.Amount.String(),
		Status:        string(tx.Status),
		Stage:         tx.Stage,
		Code:          tx.ErrorCode,
		Reason:        tx.TransferReason,
		OccurredAt:    time.Now().UTC(),
	}
	routingKey := "transfer." + strings.ToLower(string(tx.Status))
	if err := s.publisher.Publish(ctx, s.exchange, routingKey, event); err != nil {
		return fmt.Errorf("publish %s: %w", routingKey, err)
	}
	return nil
}

func render(template string, tx *models.Transaction) string {
	return strings.NewReplacer(
		"{amount}", tx.Amount.String(),
		"{source}", tx.Source,
		"{destination}", tx.Destination,
		"{id}", strconv.FormatUint(uint64(tx.ID), 10),
	).Replace(template)
}
