package repository

import (
	"context"
	"time"

	"github.com/convivio/convivio/models"
	"gorm.io/gorm"
)

// WeeklyMatchRepositoryImpl implements WeeklyMatchRepository interface.
type WeeklyMatchRepositoryImpl struct {
	*BaseRepository[models.WeeklyMatch, models.WeeklyMatchFilter]
}

// NewWeeklyMatchRepository creates a new weekly match repository.
func NewWeeklyMatchRepository(db *gorm.DB) WeeklyMatchRepository {
	return &WeeklyMatchRepositoryImpl{
		BaseRepository: NewBaseRepository[models.WeeklyMatch, models.WeeklyMatchFilter](db),
	}
}

// ListByCycleDate retrieves all matches recorded for one cycle.
func (r *WeeklyMatchRepositoryImpl) ListByCycleDate(ctx context.Context, cycleDate time.Time) ([]*models.WeeklyMatch, error) {
	return r.ByFilter(ctx, models.WeeklyMatchFilter{CycleDate: &cycleDate}, "user_a ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query.
func (r *WeeklyMatchRepositoryImpl) applyFilter(query *gorm.DB, filter models.WeeklyMatchFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.CycleDate != nil {
		query = query.Where("cycle_date = ?", filter.CycleDate.Format("2006-01-02"))
	}
	if filter.UserA != nil {
		query = query.Where("user_a = ?", *filter.UserA)
	}
	if filter.UserB != nil {
		query = query.Where("user_b = ?", *filter.UserB)
	}
	return query
}

// ByFilter retrieves weekly matches based on filter criteria.
func (r *WeeklyMatchRepositoryImpl) ByFilter(ctx context.Context, filter models.WeeklyMatchFilter, orderBy string, limit, offset int) ([]*models.WeeklyMatch, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.WeeklyMatch{})

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

	var rows []*models.WeeklyMatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of weekly matches matching filter.
func (r *WeeklyMatchRepositoryImpl) Count(ctx context.Context, filter models.WeeklyMatchFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.WeeklyMatch{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
