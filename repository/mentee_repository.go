package repository

import (
	"context"
	"errors"

	"github.com/convivio/convivio/models"
	"gorm.io/gorm"
)

// MenteeRepositoryImpl implements MenteeRepository interface.
type MenteeRepositoryImpl struct {
	*BaseRepository[models.Mentee, models.MenteeFilter]
}

// NewMenteeRepository creates a new mentee repository.
func NewMenteeRepository(db *gorm.DB) MenteeRepository {
	return &MenteeRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Mentee, models.MenteeFilter](db),
	}
}

// ByUserID retrieves a mentee profile by directory user id.
func (r *MenteeRepositoryImpl) ByUserID(ctx context.Context, userID int64) (*models.Mentee, error) {
	db := r.getDB(ctx)
	var row models.Mentee
	if err := db.Where("user_id = ?", userID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListByWaitingPriority retrieves all mentees, longest-waiting first.
func (r *MenteeRepositoryImpl) ListByWaitingPriority(ctx context.Context) ([]*models.Mentee, error) {
	return r.ByFilter(ctx, models.MenteeFilter{}, "created_at ASC, user_id ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query.
func (r *MenteeRepositoryImpl) applyFilter(query *gorm.DB, filter models.MenteeFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserID != nil {
		query = query.Where("user_id = ?", *filter.UserID)
	}
	return query
}

// ByFilter retrieves mentees based on filter criteria.
func (r *MenteeRepositoryImpl) ByFilter(ctx context.Context, filter models.MenteeFilter, orderBy string, limit, offset int) ([]*models.Mentee, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Mentee{})

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

	var rows []*models.Mentee
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of mentees matching filter.
func (r *MenteeRepositoryImpl) Count(ctx context.Context, filter models.MenteeFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Mentee{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
