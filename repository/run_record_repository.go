package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/convivio/convivio/models"
	"gorm.io/gorm"
)

// RunRecordRepositoryImpl implements RunRecordRepository interface.
type RunRecordRepositoryImpl struct {
	*BaseRepository[models.RunRecord, models.RunRecordFilter]
}

// NewRunRecordRepository creates a new run record repository.
func NewRunRecordRepository(db *gorm.DB) RunRecordRepository {
	return &RunRecordRepositoryImpl{
		BaseRepository: NewBaseRepository[models.RunRecord, models.RunRecordFilter](db),
	}
}

// InProgressByKind retrieves the single in-progress record for a run kind,
// or nil when no run is underway.
func (r *RunRecordRepositoryImpl) InProgressByKind(ctx context.Context, kind models.RunKind) (*models.RunRecord, error) {
	db := r.getDB(ctx)
	var row models.RunRecord
	err := db.Where("run_kind = ? AND status = ?", kind, models.RunStatusInProgress).Last(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// LastCompletedByKind retrieves the most recently started completed run of
// the given kind, or nil when none has completed yet. The scheduled
// due-check keys its once-per-day dedup on this record, so each run kind
// gets its own cycle window.
func (r *RunRecordRepositoryImpl) LastCompletedByKind(ctx context.Context, kind models.RunKind) (*models.RunRecord, error) {
	completed := models.RunStatusCompleted
	rows, err := r.ByFilter(ctx, models.RunRecordFilter{RunKind: &kind, Status: &completed}, "started_at DESC", 1, 0)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// Finalize transitions an in-progress record to its terminal status. It
// refuses to touch records that already completed or failed.
func (r *RunRecordRepositoryImpl) Finalize(ctx context.Context, id uint, status models.RunStatus, pairCount int, errorText *string, finishedAt time.Time) error {
	if status != models.RunStatusCompleted && status != models.RunStatusFailed {
		return fmt.Errorf("cannot finalize run record %d to non-terminal status %s", id, status)
	}

	db := r.getDB(ctx)
	res := db.Model(&models.RunRecord{}).
		Where("id = ? AND status = ?", id, models.RunStatusInProgress).
		Updates(map[string]any{
			"status":      status,
			"pair_count":  pairCount,
			"error_text":  errorText,
			"finished_at": finishedAt,
			"updated_at":  finishedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("run record %d is not in progress", id)
	}
	return nil
}

// ListRecent retrieves the most recently started run records.
func (r *RunRecordRepositoryImpl) ListRecent(ctx context.Context, limit int) ([]*models.RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	return r.ByFilter(ctx, models.RunRecordFilter{}, "started_at DESC", limit, 0)
}

// applyFilter applies filter criteria to a GORM query.
func (r *RunRecordRepositoryImpl) applyFilter(query *gorm.DB, filter models.RunRecordFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UUID != nil {
		query = query.Where("uuid = ?", *filter.UUID)
	}
	if filter.RunKind != nil {
		query = query.Where("run_kind = ?", *filter.RunKind)
	}
	if filter.RunType != nil {
		query = query.Where("run_type = ?", *filter.RunType)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.StartedAfter != nil {
		query = query.Where("started_at > ?", *filter.StartedAfter)
	}
	if filter.StartedBefore != nil {
		query = query.Where("started_at < ?", *filter.StartedBefore)
	}
	return query
}

// ByFilter retrieves run records based on filter criteria.
func (r *RunRecordRepositoryImpl) ByFilter(ctx context.Context, filter models.RunRecordFilter, orderBy string, limit, offset int) ([]*models.RunRecord, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RunRecord{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id DESC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.RunRecord
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of run records matching filter.
func (r *RunRecordRepositoryImpl) Count(ctx context.Context, filter models.RunRecordFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.RunRecord{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
