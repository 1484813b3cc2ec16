package repositories

import (
	"context"
	"errors"
	"fmt"

	"airtime/internal/models"
	"airtime/internal/repositories/cache"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

var ErrTransferConfigNotFound = errors.New("transfer config not found")

const (
	transferConfigEntity = "transfer_config"
	transferRuleEntity   = "transfer_rule"
)

// ConfigRepository reads the externally owned business configuration:
// settings, per subscription type transfer configs and transfer rules.
type ConfigRepository interface {
	AllSettings(ctx context.Context) ([]models.Setting, error)
	TransferConfigByType(ctx context.Context, subscriptionType string) (*models.TransferConfig, error)
	ActiveRules(ctx context.Context) ([]models.TransferRule, error)

	UpsertSetting(ctx context.Context, setting *models.Setting) error
	UpsertTransferConfig(ctx context.Context, cfg *models.TransferConfig) error
	ReplaceRules(ctx context.Context, rules []models.TransferRule) error

	// InvalidateCache drops every cached config and rule entry.
	InvalidateCache(ctx context.Context) error
}

type configRepository struct {
	db     *gorm.DB
	cache  *cache.CacheService
	logger *zap.Logger
}

// NewConfigRepository returns a repository that caches configs and rules in
// Redis when cacheSvc is not nil.
func NewConfigRepository(db *gorm.DB, cacheSvc *cache.CacheService, logger *zap.Logger) ConfigRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &configRepository{db: db, cache: cacheSvc, logger: logger}
}

func (r *configRepository) AllSettings(ctx context.Context) ([]models.Setting, error) {
	var settings []models.Setting
	if err := r.db.WithContext(ctx).Order("key").Find(&settings).Error; err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	return settings, nil
}

func (r *configRepository) TransferConfigByType(ctx context.Context, subscriptionType string) (*models.TransferConfig, error) {
	key := r.configKey(subscriptionType)
	if r.cache != nil {
		var cached models.TransferConfig
		found, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.Warn("transfer config cache read failed", zap.String("key", key), zap.Error(err))
		} else if found {
			return &cached, nil
		}
	}

	var cfg models.TransferConfig
	err := r.db.WithContext(ctx).Where("subscription_type = ?", subscriptionType).First(&cfg).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransferConfigNotFound
		}
		return nil, fmt.Errorf("failed to load transfer config: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, &cfg); err != nil {
			r.logger.Warn("transfer config cache write failed", zap.String("key", key), zap.Error(err))
		}
	}
	return &cfg, nil
}

func (r *configRepository) ActiveRules(ctx context.Context) ([]models.TransferRule, error) {
	key := r.rulesKey()
	if r.cache != nil {
		var cached []models.TransferRule
		found, err := r.cache.Get(ctx, key, &cached)
		if err != nil {
			r.logger.Warn("transfer rule cache read failed", zap.Error(err))
		} else if found {
			return cached, nil
		}
	}

	var rules []models.TransferRule
	err := r.db.WithContext(ctx).
		Where("active = ?", true).
		Order("priority DESC, id").
		Find(&rules).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load transfer rules: %w", err)
	}

	if r.cache != nil {
		if err := r.cache.Set(ctx, key, rules); err != nil {
			r.logger.Warn("transfer rule cache write failed", zap.Error(err))
		}
	}
	return rules, nil
}

func (r *configRepository) UpsertSetting(ctx context.Context, setting *models.Setting) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"category", "value", "updated_at"}),
	}).Create(setting).Error
}

func (r *configRepository) UpsertTransferConfig(ctx context.Context, cfg *models.TransferConfig) error {
	err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "subscription_type"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"class", "min_amount", "max_amount", "daily_count_limit", "daily_cap_limit",
			"min_post_balance", "fee_event_id", "service_name", "updated_at",
		}),
	}).Create(cfg).Error
	if err != nil {
		return err
	}
	if r.cache != nil {
		return r.cache.Delete(ctx, r.configKey(cfg.SubscriptionType))
	}
	return nil
}

// ReplaceRules swaps the whole rule table in one database transaction.
func (r *configRepository) ReplaceRules(ctx context.Context, rules []models.TransferRule) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.TransferRule{}).Error; err != nil {
			return err
		}
		if len(rules) == 0 {
			return nil
		}
		return tx.Create(&rules).Error
	})
	if err != nil {
		return fmt.Errorf("failed to replace transfer rules: %w", err)
	}
	if r.cache != nil {
		return r.cache.Delete(ctx, r.rulesKey())
	}
	return nil
}

func (r *configRepository) InvalidateCache(ctx context.Context) error {
	if r.cache == nil {
		return nil
	}
	if err := r.cache.DeleteMany(ctx, transferConfigEntity+":*"); err != nil {
		return err
	}
	return r.cache.DeleteMany(ctx, transferRuleEntity+":*")
}

func (r *configRepository) configKey(subscriptionType string) string {
	return r.cache.GenerateKey(transferConfigEntity, "type", subscriptionType)
}

func (r *configRepository) rulesKey() string {
	return r.cache.GenerateKey(transferRuleEntity, "active", "all")
}
