package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"airtime/internal/models"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var ErrTransactionNotFound = errors.New("transaction not found")

// TransactionRepository is the append-only audit store of transfer attempts.
type TransactionRepository interface {
	Insert(ctx context.Context, tx *models.Transaction) (uint, error)
	GetByID(ctx context.Context, id uint) (*models.Transaction, error)
	// DailyCount and DailyAmountSum cover today's succeeded transfers from source.
	DailyCount(ctx context.Context, source string) (int, error)
	DailyAmountSum(ctx context.Context, source string) (decimal.Decimal, error)
}

type transactionRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewTransactionRepository(db *gorm.DB) TransactionRepository {
	return &transactionRepository{db: db, now: time.Now}
}

func (r *transactionRepository) Insert(ctx context.Context, tx *models.Transaction) (uint, error) {
	if tx.ID != 0 {
		return 0, fmt.Errorf("transaction %d already persisted", tx.ID)
	}
	if err := r.db.WithContext(ctx).Create(tx).Error; err != nil {
		return 0, fmt.Errorf("failed to insert transaction: %w", err)
	}
	return tx.ID, nil
}

func (r *transactionRepository) GetByID(ctx context.Context, id uint) (*models.Transaction, error) {
	var tx models.Transaction
	err := r.db.WithContext(ctx).First(&tx, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTransactionNotFound
		}
		return nil, err
	}
	return &tx, nil
}

func (r *transactionRepository) today(ctx context.Context, source string) *gorm.DB {
	now := r.now()
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	return r.db.WithContext(ctx).Model(&models.Transaction{}).
		Where("source = ? AND status = ? AND created_at >= ? AND created_at < ?",
			source, models.StatusSucceeded, start, start.AddDate(0, 0, 1))
}

func (r *transactionRepository) DailyCount(ctx context.Context, source string) (int, error) {
	var count int64
	if err := r.today(ctx, source).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("failed to count daily transfers: %w", err)
	}
	return int(count), nil
}

func (r *transactionRepository) DailyAmountSum(ctx context.Context, source string) (decimal.Decimal, error) {
	var total decimal.Decimal
	err := r.today(ctx, source).
		Select("COALESCE(SUM(amount), 0)").
		Row().
		Scan(&total)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to sum daily transfers: %w", err)
	}
	return total, nil
}
