package repository

import (
	"context"
	"errors"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
	"gorm.io/gorm"
)

// UserRepositoryImpl implements UserRepository interface.
type UserRepositoryImpl struct {
	*BaseRepository[models.User, models.UserFilter]
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &UserRepositoryImpl{
		BaseRepository: NewBaseRepository[models.User, models.UserFilter](db),
	}
}

// ByUserID retrieves a user by its directory identifier.
func (r *UserRepositoryImpl) ByUserID(ctx context.Context, userID int64) (*models.User, error) {
	db := r.getDB(ctx)
	var row models.User
	if err := db.Where("id = ?", userID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListEligible returns every approved, subscribed user.
func (r *UserRepositoryImpl) ListEligible(ctx context.Context) ([]*models.User, error) {
	return r.ByFilter(ctx, models.UserFilter{
		Status:     utils.ToPtr(models.UserStatusApproved),
		Subscribed: utils.ToPtr(true),
	}, "id ASC", 0, 0)
}

// applyFilter applies filter criteria to a GORM query.
func (r *UserRepositoryImpl) applyFilter(query *gorm.DB, filter models.UserFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.Username != nil {
		query = query.Where("username = ?", *filter.Username)
	}
	if filter.Email != nil {
		query = query.Where("email = ?", *filter.Email)
	}
	if filter.Subscribed != nil {
		query = query.Where("subscribed = ?", *filter.Subscribed)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.Segment != nil {
		query = query.Where("segment = ?", *filter.Segment)
	}
	if filter.Affiliation != nil {
		query = query.Where("affiliation = ?", *filter.Affiliation)
	}
	if filter.MentorFlag != nil {
		query = query.Where("mentor_flag = ?", *filter.MentorFlag)
	}
	if filter.MenteeFlag != nil {
		query = query.Where("mentee_flag = ?", *filter.MenteeFlag)
	}
	if filter.CreatedAfter != nil {
		query = query.Where("created_at > ?", *filter.CreatedAfter)
	}
	if filter.CreatedBefore != nil {
		query = query.Where("created_at < ?", *filter.CreatedBefore)
	}
	return query
}

// ByFilter retrieves users based on filter criteria.
func (r *UserRepositoryImpl) ByFilter(ctx context.Context, filter models.UserFilter, orderBy string, limit, offset int) ([]*models.User, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.User{})

	query = r.applyFilter(query, filter)

	if orderBy == "" {
		orderBy = "id ASC"
	}
	query = query.Order(orderBy)

	if limit > 0 {
		query = query.Limit(limit)
	}
	if offset > 0 {
		query = query.Offset(offset)
	}

	var rows []*models.User
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of users matching filter.
func (r *UserRepositoryImpl) Count(ctx context.Context, filter models.UserFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.User{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
