package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionStatus is the lifecycle status of a transfer attempt.
type TransactionStatus string

const (
	StatusPending        TransactionStatus = "Pending"
	StatusReserved       TransactionStatus = "Reserved"
	StatusSucceeded      TransactionStatus = "Succeeded"
	StatusFailed         TransactionStatus = "Failed"
	StatusCancelled      TransactionStatus = "Cancelled"
	StatusTransferFailed TransactionStatus = "TransferFailed"
)

// Stages name the last saga step an attempt reached.
const (
	StageCredential = "credential"
	StageReserved   = "reserved"
	StageFundsMoved = "funds_moved"
	StageCharged    = "charged"
	StageExtended   = "extended"
	StageCompleted  = "completed"
)

// NoReservation is the reservation handle of an attempt that never reserved.
const NoReservation int64 = -1

// ErrImmutableTransaction is returned when an update targets a finished record.
var ErrImmutableTransaction = errors.New("transaction is final and cannot be modified")

// Transaction is the audit record of one transfer attempt. Rows are only
// ever inserted.
type Transaction struct {
	ID                  uint              `gorm:"primarykey"`
	RequestID           string            `gorm:"size:36;index"`
	Source              string            `gorm:"size:20;not null;index:idx_tx_source_created,priority:1"`
	Destination         string            `gorm:"size:20;not null"`
	Amount              decimal.Decimal   `gorm:"type:numeric(18,3);not null"`
	CredentialHash      string            `gorm:"size:100"`
	Reserved            bool              `gorm:"not null"`
	FundsMoved          bool              `gorm:"not null"`
	EventCharged        bool              `gorm:"not null"`
	EventCancelled      bool              `gorm:"not null"`
	ExpiryExtended      bool              `gorm:"not null"`
	FromCustomerAccount bool              `gorm:"not null"`
	ExtensionDays       int               `gorm:"not null"`
	ReservationID       int64             `gorm:"not null"`
	Status              TransactionStatus `gorm:"size:20;not null;index"`
	Stage               string            `gorm:"size:20"`
	RetryCount          int               `gorm:"not null"`
	TransferReason      string            `gorm:"size:100"`
	AdjustmentReason    string            `gorm:"size:100"`
	CreatedBy           string            `gorm:"size:100"`
	CreatedAt           time.Time         `gorm:"index:idx_tx_source_created,priority:2"`
	CompletedAt         *time.Time
	ErrorCode           int
	ErrorText           string `gorm:"type:text"`
}

// IsFinal reports whether the record can no longer change.
func (t *Transaction) IsFinal() bool {
	return t.Status == StatusSucceeded || t.Status == StatusCancelled
}

func (t *Transaction) BeforeUpdate(tx *gorm.DB) error {
	if t.IsFinal() {
		return ErrImmutableTransaction
	}
	return nil
}
