package repository

import (
	"context"
	"errors"

	"github.com/convivio/convivio/models"
	"gorm.io/gorm"
)

// MentorRepositoryImpl implements MentorRepository interface.
type MentorRepositoryImpl struct {
	*BaseRepository[models.Mentor, models.MentorFilter]
}

// NewMentorRepository creates a new mentor repository.
func NewMentorRepository(db *gorm.DB) MentorRepository {
	return &MentorRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Mentor, models.MentorFilter](db),
	}
}

// ByUserID retrieves a mentor profile by directory user id.
func (r *MentorRepositoryImpl) ByUserID(ctx context.Context, userID int64) (*models.Mentor, error) {
	db := r.getDB(ctx)
	var row models.Mentor
	if err := db.Where("user_id = ?", userID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListAll retrieves every mentor profile.
func (r *MentorRepositoryImpl) ListAll(ctx context.Context) ([]*models.Mentor, error) {
	return r.ByFilter(ctx, models.MentorFilter{}, "user_id ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query.
func (r *MentorRepositoryImpl) applyFilter(query *gorm.DB, filter models.MentorFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	if filter.MinCapacity != nil {
		query = query.Where("monthly_capacity >= ?", *filter.MinCapacity)
	}
	return query
}

// ByFilter retrieves mentors based on filter criteria.
func (r *MentorRepositoryImpl) ByFilter(ctx context.Context, filter models.MentorFilter, orderBy string, limit, offset int) ([]*models.Mentor, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Mentor{})

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

	var rows []*models.Mentor
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of mentors matching filter.
func (r *MentorRepositoryImpl) Count(ctx context.Context, filter models.MentorFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Mentor{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
