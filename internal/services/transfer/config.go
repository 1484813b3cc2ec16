package transfer

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	domainerrors "airtime/internal/errors"
	"airtime/internal/services/bands"
)

// Setting keys read by the transfer core.
const (
	KeyCountry              = "transfer.country"
	KeyPhoneLengths         = "transfer.phone_lengths"
	KeyMinorUnitFactor      = "transfer.minor_unit_factor"
	KeyDefaultPin           = "transfer.default_pin"
	KeyPinLength            = "transfer.pin_length"
	KeyMaxBalancePercentage = "transfer.max_balance_percentage"
	KeyDefaultMaxAmount     = "transfer.default_max_amount"
	KeyDefaultReason        = "transfer.reason.default"
	KeyExtendExpiryEnabled  = "transfer.extend_expiry.enabled"
	KeyNewNetwork           = "transfer.network.new"
	KeyAdjustType           = "transfer.adjust.type"
	KeyValidateMultipleOf   = "transfer.validate.multiple_of"

	KeyExtensionThresholds      = "bands.extension.thresholds"
	KeyExtensionDays            = "bands.extension.days"
	KeyAdjustReasonThresholds   = "bands.adjust_reason.thresholds"
	KeyAdjustReasonOldToNew     = "bands.adjust_reason.old_to_new"
	KeyAdjustReasonNewToOld     = "bands.adjust_reason.new_to_old"
	KeyTransferReasonThresholds = "bands.transfer_reason.thresholds"
	KeyTransferReasonCross      = "bands.transfer_reason.cross"
	KeyTransferReasonSame       = "bands.transfer_reason.same"
)

const (
	defaultCountry         = "OM"
	defaultMinorUnitFactor = 1000
	defaultPinLength       = 4
	defaultReason          = "C2C"
	defaultAdjustType      = "TRANSFER"
	defaultMultipleOf      = 5
)

var (
	defaultPhoneLengths = []string{"8", "11"}
	defaultMaxAmount    = decimal.NewFromInt(50)
	// A percentage of exactly one disables the balance percentage check.
	percentageDisabled = decimal.NewFromInt(1)
)

func loadBand(ctx context.Context, s Settings, thresholdsKey, valuesKey string) (bands.Band, error) {
	thresholds, err := s.Decimals(ctx, thresholdsKey)
	if err != nil {
		return bands.Band{}, domainerrors.ErrConfiguration.Wrap(fmt.Errorf("%s: %w", thresholdsKey, err))
	}
	return bands.Band{Thresholds: thresholds, Values: s.Strings(ctx, valuesKey, nil)}, nil
}

func loadDirectional(ctx context.Context, s Settings, thresholdsKey, forwardKey, reverseKey string) (bands.Directional, error) {
	thresholds, err := s.Decimals(ctx, thresholdsKey)
	if err != nil {
		return bands.Directional{}, domainerrors.ErrConfiguration.Wrap(fmt.Errorf("%s: %w", thresholdsKey, err))
	}
	return bands.Directional{
		Thresholds: thresholds,
		Forward:    s.Strings(ctx, forwardKey, nil),
		Reverse:    s.Strings(ctx, reverseKey, nil),
	}, nil
}

// bandErr surfaces a band lookup failure as a configuration error.
func bandErr(name string, err error) error {
	return domainerrors.ErrConfiguration.Wrap(fmt.Errorf("%s band: %w", name, err))
}
