package settlement

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/fatflowers/payflow/internal/models"
	"github.com/fatflowers/payflow/pkg/logctx"
)

var ErrNotFound = errors.New("settlement entry not found")

// Repository owns the settlements dedup table.
type Repository struct {
	db  *gorm.DB
	log *zap.SugaredLogger
}

func NewRepository(db *gorm.DB, log *zap.SugaredLogger) *Repository {
	return &Repository{db: db, log: log}
}

// Record inserts entry unless a row for its transaction id already exists.
// inserted is false for a duplicate, which is not an error.
func (r *Repository) Record(ctx context.Context, entry *models.SettlementEntry) (inserted bool, err error) {
	if entry == nil || entry.TransactionID == "" {
		return false, fmt.Errorf("settlement entry without transaction id")
	}
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "transaction_id"}}, DoNothing: true}).
		Create(entry)
	if res.Error != nil {
		return false, fmt.Errorf("failed to record settlement %s: %w", entry.TransactionID, res.Error)
	}
	inserted = res.RowsAffected > 0
	if !inserted {
		logctx.FromCtx(ctx, r.log).Debugw("settlement already recorded", "transaction_id", entry.TransactionID)
	}
	return inserted, nil
}

func (r *Repository) Get(ctx context.Context, transactionID string) (*models.SettlementEntry, error) {
	var e models.SettlementEntry
	err := r.db.WithContext(ctx).Where("transaction_id = ?", transactionID).First(&e).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrNotFound, transactionID)
		}
		return nil, fmt.Errorf("failed to get settlement %s: %w", transactionID, err)
	}
	return &e, nil
}

// List returns the entries matching every filter, oldest settlement first.
func (r *Repository) List(ctx context.Context, filters ...Filter) ([]*models.SettlementEntry, error) {
	q := r.db.WithContext(ctx)
	for _, f := range filters {
		if err := f.validate(); err != nil {
			return nil, err
		}
		q = q.Where(f.Expression())
	}
	var rows []*models.SettlementEntry
	if err := q.Order("settled_at ASC").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to list settlements: %w", err)
	}
	return rows, nil
}

func (r *Repository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := r.db.WithContext(ctx).Model(&models.SettlementEntry{}).Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count settlements: %w", err)
	}
	return n, nil
}
