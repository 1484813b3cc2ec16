package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account classes a subscription type can belong to.
const (
	ClassCustomer = "customer"
	ClassDealer   = "dealer"
	ClassData     = "data"
)

// TransferConfig holds the transfer limits of one subscription type.
// Nil DailyCountLimit and invalid DailyCapLimit mean "unconfigured", which is
// not the same as zero.
type TransferConfig struct {
	ID               uint                `gorm:"primarykey" json:"id"`
	SubscriptionType string              `gorm:"size:50;uniqueIndex;not null" json:"subscription_type"`
	Class            string              `gorm:"size:20;not null" json:"class"`
	MinAmount        decimal.Decimal     `gorm:"type:numeric(18,3);not null" json:"min_amount"`
	MaxAmount        decimal.Decimal     `gorm:"type:numeric(18,3);not null" json:"max_amount"`
	DailyCountLimit  *int                `json:"daily_count_limit"`
	DailyCapLimit    decimal.NullDecimal `gorm:"type:numeric(18,3)" json:"daily_cap_limit"`
	MinPostBalance   decimal.Decimal     `gorm:"type:numeric(18,3);not null" json:"min_post_balance"`
	FeeEventID       int64               `json:"fee_event_id"`
	ServiceName      string              `gorm:"size:50" json:"service_name"`
	CreatedAt        time.Time           `json:"created_at"`
	UpdatedAt        time.Time           `json:"updated_at"`
}

func (c *TransferConfig) IsCustomer() bool { return c != nil && c.Class == ClassCustomer }

func (c *TransferConfig) IsData() bool { return c != nil && c.Class == ClassData }

// TransferRule allows or denies transfers between two subscription types in a
// country. RequiredConfigKey makes the rule conditional on a setting value.
// "*" matches any type.
type TransferRule struct {
	ID                  uint      `gorm:"primarykey" json:"id"`
	Country             string    `gorm:"size:8;not null;index:idx_rule_lookup,priority:1" json:"country"`
	SourceType          string    `gorm:"size:50;not null;index:idx_rule_lookup,priority:2" json:"source_type"`
	DestinationType     string    `gorm:"size:50;not null;index:idx_rule_lookup,priority:3" json:"destination_type"`
	Allowed             bool      `gorm:"not null" json:"allowed"`
	ErrorCode           int       `json:"error_code"`
	ErrorMessage        string    `gorm:"size:255" json:"error_message"`
	RequiredConfigKey   string    `gorm:"size:100" json:"required_config_key"`
	RequiredConfigValue string    `gorm:"size:255" json:"required_config_value"`
	Priority            int       `gorm:"not null" json:"priority"`
	Active              bool      `gorm:"not null;index" json:"active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// Setting is one key-value entry of the business configuration store.
type Setting struct {
	ID        uint      `gorm:"primarykey"`
	Category  string    `gorm:"size:50;not null;index"`
	Key       string    `gorm:"size:150;not null;uniqueIndex"`
	Value     string    `gorm:"type:text"`
	UpdatedAt time.Time
}
