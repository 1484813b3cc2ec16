// Package repositories provides data access layer implementations.
// It handles all database operations and data persistence logic.
package repositories

import (
	"fmt"
	"log"
	"os"
	"time"

	"airtime/internal/config"
	"airtime/internal/models"
	"airtime/internal/repositories/cache"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// DB is the global database instance used across the application.
var DB *gorm.DB
var CacheService *cache.CacheService

// DBConfig holds database connection pool configuration
type DBConfig struct {
	MaxIdleConns    int
	MaxOpenConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

func loadDBConfig() DBConfig {
	return DBConfig{
		MaxIdleConns:    config.GetIntEnv("DB_MAX_IDLE_CONNS", 10),
		MaxOpenConns:    config.GetIntEnv("DB_MAX_OPEN_CONNS", 100),
		ConnMaxLifetime: config.GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour),
		ConnMaxIdleTime: config.GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute),
	}
}

// InitDB connects Postgres and Redis and migrates the schema.
func InitDB(zl *zap.Logger) error {
	if err := initPostgres(zl); err != nil {
		return err
	}

	redisCfg := &cache.RedisConfig{
		Host:     config.GetEnv("REDIS_HOST", "localhost"),
		Port:     config.GetEnv("REDIS_PORT", "6379"),
		Password: config.GetEnv("REDIS_PASSWORD", ""),
		DB:       config.GetIntEnv("REDIS_DB", 0),
	}
	redisClient := cache.NewRedisClient(redisCfg)
	CacheService = cache.NewCacheService(redisClient, config.GetDurationEnv("SETTINGS_CACHE_TTL", 10*time.Minute))

	return Migrate(DB)
}

// Migrate creates or updates every table the service owns.
func Migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.Transaction{},
		&models.TransferConfig{},
		&models.TransferRule{},
		&models.Setting{},
	)
}

func initPostgres(zl *zap.Logger) error {
	dsn := fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=disable",
		config.GetEnv("DB_HOST", "localhost"),
		config.GetEnv("DB_USER", "postgres"),
		config.GetEnv("DB_PASSWORD", "postgres"),
		config.GetEnv("DB_NAME", "airtime"),
		config.GetEnv("DB_PORT", "5432"),
	)

	// Configure GORM logger to ignore "record not found" errors
	gormLogger := logger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		logger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  logger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  !config.IsProduction(),
		},
	)

	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get database instance: %w", err)
	}

	pool := loadDBConfig()
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(pool.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(pool.ConnMaxIdleTime)

	DB = db
	zl.Info("postgres connected",
		zap.Int("max_idle_conns", pool.MaxIdleConns),
		zap.Int("max_open_conns", pool.MaxOpenConns))
	return nil
}

// Close releases the Postgres pool and the Redis client.
func Close(zl *zap.Logger) {
	if DB != nil {
		if sqlDB, err := DB.DB(); err != nil {
			zl.Warn("failed to get database instance", zap.Error(err))
		} else if err := sqlDB.Close(); err != nil {
			zl.Warn("failed to close database connection", zap.Error(err))
		}
	}
	if CacheService != nil {
		if err := CacheService.Close(); err != nil {
			zl.Warn("failed to close redis connection", zap.Error(err))
		}
	}
}

// ResetDatabase drops and recreates the service tables.
func ResetDatabase() error {
	err := DB.Migrator().DropTable(
		&models.Transaction{},
		&models.TransferConfig{},
		&models.TransferRule{},
		&models.Setting{},
	)
	if err != nil {
		return err
	}
	return Migrate(DB)
}
