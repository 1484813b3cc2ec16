package main

import (
	"context"
	"time"

	"airtime/internal/config"
	"airtime/internal/logging"
	"airtime/internal/models"
	"airtime/internal/repositories"
	"airtime/internal/services/notification"
	"airtime/internal/services/transfer"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

func main() {
	config.LoadEnv()

	zl, err := logging.New(config.IsProduction())
	if err != nil {
		panic(err)
	}
	defer func() { _ = zl.Sync() }()

	if err := repositories.InitDB(zl); err != nil {
		zl.Fatal("failed to initialize storage", zap.Error(err))
	}
	defer repositories.Close(zl)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	repo := repositories.NewConfigRepository(repositories.DB, repositories.CacheService, zl)

	for _, s := range defaultSettings() {
		s := s
		if err := repo.UpsertSetting(ctx, &s); err != nil {
			zl.Fatal("failed to seed setting", zap.String("key", s.Key), zap.Error(err))
		}
	}

	for _, c := range defaultConfigs() {
		c := c
		if err := repo.UpsertTransferConfig(ctx, &c); err != nil {
			zl.Fatal("failed to seed transfer config", zap.String("type", c.SubscriptionType), zap.Error(err))
		}
	}

	if err := repo.ReplaceRules(ctx, defaultRules()); err != nil {
		zl.Fatal("failed to seed transfer rules", zap.Error(err))
	}

	if err := repo.InvalidateCache(ctx); err != nil {
		zl.Warn("failed to invalidate config cache", zap.Error(err))
	}

	zl.Info("✅ transfer configuration seeded")
}

func defaultSettings() []models.Setting {
	setting := func(category, key, value string) models.Setting {
		return models.Setting{Category: category, Key: key, Value: value}
	}
	return []models.Setting{
		setting("transfer", transfer.KeyCountry, "OM"),
		setting("transfer", transfer.KeyPhoneLengths, "8,11"),
		setting("transfer", transfer.KeyMinorUnitFactor, "1000"),
		setting("transfer", transfer.KeyDefaultPin, config.GetEnv("SEED_DEFAULT_PIN", "0000")),
		setting("transfer", transfer.KeyPinLength, "4"),
		setting("transfer", transfer.KeyMaxBalancePercentage, "1"),
		setting("transfer", transfer.KeyDefaultMaxAmount, "50"),
		setting("transfer", transfer.KeyDefaultReason, "C2C"),
		setting("transfer", transfer.KeyExtendExpiryEnabled, "true"),
		setting("transfer", transfer.KeyNewNetwork, "NGIN"),
		setting("transfer", transfer.KeyAdjustType, "TRANSFER"),
		setting("transfer", transfer.KeyValidateMultipleOf, "5"),

		setting("bands", transfer.KeyExtensionThresholds, "0.5,1,5,10"),
		setting("bands", transfer.KeyExtensionDays, "1,3,7,15"),
		setting("bands", transfer.KeyAdjustReasonThresholds, "0.5,5"),
		setting("bands", transfer.KeyAdjustReasonOldToNew, "C2C_LEGACY_TO_NGIN_LOW,C2C_LEGACY_TO_NGIN_HIGH"),
		setting("bands", transfer.KeyAdjustReasonNewToOld, "C2C_NGIN_TO_LEGACY_LOW,C2C_NGIN_TO_LEGACY_HIGH"),
		setting("bands", transfer.KeyTransferReasonThresholds, "0.5,5"),
		setting("bands", transfer.KeyTransferReasonCross, "D2C_CROSS_LOW,D2C_CROSS_HIGH"),
		setting("bands", transfer.KeyTransferReasonSame, "D2C_LOW,D2C_HIGH"),

		setting("messages", notification.KeySender, "Transfer"),
		setting("messages", notification.KeyDefaultLocale, "en"),
		setting("messages", "sms.sender_debited.en", "You sent {amount} to {destination}. Ref {id}."),
		setting("messages", "sms.receiver_credited.en", "You received {amount} from {source}. Ref {id}."),
		setting("messages", "sms.sender_debited.ar", "تم تحويل {amount} إلى {destination}. المرجع {id}."),
		setting("messages", "sms.receiver_credited.ar", "استلمت {amount} من {source}. المرجع {id}."),
	}
}

func defaultConfigs() []models.TransferConfig {
	dailyCount := 10
	return []models.TransferConfig{
		{
			SubscriptionType: "Prepaid", Class: models.ClassCustomer,
			MinAmount: decimal.RequireFromString("0.1"), MaxAmount: decimal.NewFromInt(50),
			DailyCountLimit: &dailyCount,
			DailyCapLimit:   decimal.NewNullDecimal(decimal.NewFromInt(100)),
			MinPostBalance:  decimal.RequireFromString("0.5"),
			FeeEventID:      9001, ServiceName: "C2C",
		},
		{
			SubscriptionType: "Postpaid", Class: models.ClassCustomer,
			MinAmount: decimal.RequireFromString("0.1"), MaxAmount: decimal.NewFromInt(50),
			DailyCountLimit: &dailyCount,
			FeeEventID:      9001, ServiceName: "C2C",
		},
		{
			SubscriptionType: "Dealer", Class: models.ClassDealer,
			MinAmount: decimal.NewFromInt(1), MaxAmount: decimal.NewFromInt(1000),
			ServiceName: "D2C",
		},
		{
			SubscriptionType: "Distributor", Class: models.ClassDealer,
			MinAmount: decimal.NewFromInt(10), MaxAmount: decimal.NewFromInt(10000),
			ServiceName: "D2D",
		},
		{
			SubscriptionType: "Data", Class: models.ClassData,
			MinAmount: decimal.RequireFromString("0.1"), MaxAmount: decimal.NewFromInt(50),
			ServiceName: "DATA",
		},
	}
}

func defaultRules() []models.TransferRule {
	rule := func(src, dst string, allowed bool, priority int) models.TransferRule {
		return models.TransferRule{
			Country: "OM", SourceType: src, DestinationType: dst,
			Allowed: allowed, Priority: priority, Active: true,
		}
	}
	return []models.TransferRule{
		rule("Prepaid", "Prepaid", true, 10),
		rule("Prepaid", "Postpaid", true, 10),
		rule("Postpaid", "Prepaid", true, 10),
		rule("Dealer", "*", true, 5),
		rule("Distributor", "Dealer", true, 10),
		rule("*", "Data", true, 1),
		{
			Country: "OM", SourceType: "Distributor", DestinationType: "Prepaid",
			Allowed: false, ErrorCode: 33, ErrorMessage: "Distributors cannot transfer to subscribers",
			Priority: 20, Active: true,
		},
	}
}
