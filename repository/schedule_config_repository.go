package repository

import (
	"context"
	"errors"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// ScheduleConfigRepositoryImpl implements ScheduleConfigRepository interface.
type ScheduleConfigRepositoryImpl struct {
	db *gorm.DB
}

// NewScheduleConfigRepository creates a new schedule config repository.
func NewScheduleConfigRepository(db *gorm.DB) ScheduleConfigRepository {
	return &ScheduleConfigRepositoryImpl{db: db}
}

func (r *ScheduleConfigRepositoryImpl) getDB(ctx context.Context) *gorm.DB {
	if tx, ok := ctx.Value(TxContextKey).(*gorm.DB); ok && tx != nil {
		return tx
	}
	return r.db
}

// Get retrieves the single schedule config row, creating the default row on
// first use so callers never see a missing configuration.
func (r *ScheduleConfigRepositoryImpl) Get(ctx context.Context) (*models.ScheduleConfig, error) {
	db := r.getDB(ctx)
	var row models.ScheduleConfig
	err := db.Where("id = ?", models.ScheduleConfigID).Last(&row).Error
	if err == nil {
		return &row, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	row = models.ScheduleConfig{
		ID:           models.ScheduleConfigID,
		ScheduleDays: pq.StringArray{},
		ScheduleTime: utils.DefaultScheduleTime,
		UpdatedAt:    utils.UTCNow(),
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// SetScheduleDays replaces the configured days of week.
func (r *ScheduleConfigRepositoryImpl) SetScheduleDays(ctx context.Context, days []string) error {
	if _, err := r.Get(ctx); err != nil {
		return err
	}
	db := r.getDB(ctx)
	return db.Model(&models.ScheduleConfig{}).
		Where("id = ?", models.ScheduleConfigID).
		Updates(map[string]any{
			"schedule_days": pq.StringArray(days),
			"updated_at":    utils.UTCNow(),
		}).Error
}

// SetScheduleTime replaces the configured time of day ("HH:MM").
func (r *ScheduleConfigRepositoryImpl) SetScheduleTime(ctx context.Context, timeOfDay string) error {
	if _, err := r.Get(ctx); err != nil {
		return err
	}
	db := r.getDB(ctx)
	return db.Model(&models.ScheduleConfig{}).
		Where("id = ?", models.ScheduleConfigID).
		Updates(map[string]any{
			"schedule_time": timeOfDay,
			"updated_at":    utils.UTCNow(),
		}).Error
}

// AdvanceLastRun records the completion time of the most recent successful
// run so the next due-check skips the just-completed window.
func (r *ScheduleConfigRepositoryImpl) AdvanceLastRun(ctx context.Context, lastRunAt time.Time) error {
	if _, err := r.Get(ctx); err != nil {
		return err
	}
	db := r.getDB(ctx)
	return db.Model(&models.ScheduleConfig{}).
		Where("id = ?", models.ScheduleConfigID).
		Updates(map[string]any{
			"last_run_at": lastRunAt,
			"updated_at":  utils.UTCNow(),
		}).Error
}
