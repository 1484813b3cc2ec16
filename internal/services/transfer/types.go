package transfer

import (
	"github.com/shopspring/decimal"

	"airtime/internal/models"
)

// Request is a PIN protected transfer. The amount is split into a major and
// a minor unit combined through the configured minor unit factor.
type Request struct {
	Source           string `json:"source"`
	Destination      string `json:"destination"`
	AmountMajor      int64  `json:"amount_major"`
	AmountMinor      int64  `json:"amount_minor"`
	Pin              string `json:"pin"`
	AdjustmentReason string `json:"reason,omitempty"`

	Actor     string `json:"-"`
	RequestID string `json:"-"`
}

// PinlessRequest is a service center transfer with a decimal amount.
type PinlessRequest struct {
	Source      string          `json:"source"`
	Destination string          `json:"destination"`
	Amount      decimal.Decimal `json:"amount"`

	Actor     string `json:"-"`
	RequestID string `json:"-"`
}

// Outcome is the stable result of every operation. TransactionID is set
// only on success.
type Outcome struct {
	Code          int    `json:"code"`
	Message       string `json:"message"`
	TransactionID uint   `json:"transaction_id,omitempty"`
}

// Validated carries what validation resolved so execution does not look it
// up again.
type Validated struct {
	Source          string
	Destination     string
	Amount          decimal.Decimal
	SourceType      string
	DestinationType string
	SourceConfig    *models.TransferConfig
	DestConfig      *models.TransferConfig
	Balance         decimal.Decimal
}

// CombineAmount returns major + minor/factor.
func CombineAmount(major, minor int64, factor int) decimal.Decimal {
	if factor <= 0 {
		factor = 1
	}
	return decimal.NewFromInt(major).Add(decimal.NewFromInt(minor).Div(decimal.NewFromInt(int64(factor))))
}

// SplitAmount is the inverse of CombineAmount. Precision finer than the
// factor is rounded half away from zero.
func SplitAmount(amount decimal.Decimal, factor int) (major, minor int64) {
	if factor <= 0 {
		factor = 1
	}
	whole := amount.Truncate(0)
	frac := amount.Sub(whole).Mul(decimal.NewFromInt(int64(factor))).Round(0)
	if frac.Equal(decimal.NewFromInt(int64(factor))) {
		return whole.IntPart() + 1, 0
	}
	return whole.IntPart(), frac.IntPart()
}
