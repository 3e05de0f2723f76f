package repository

import (
	"context"
	"errors"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// MentorshipMatchRepositoryImpl implements MentorshipMatchRepository interface.
type MentorshipMatchRepositoryImpl struct {
	*BaseRepository[models.MentorshipMatch, models.MentorshipMatchFilter]
}

// NewMentorshipMatchRepository creates a new mentorship match repository.
func NewMentorshipMatchRepository(db *gorm.DB) MentorshipMatchRepository {
	return &MentorshipMatchRepositoryImpl{
		BaseRepository: NewBaseRepository[models.MentorshipMatch, models.MentorshipMatchFilter](db),
	}
}

// ByPair retrieves the assignment row for one mentor-mentee pair.
func (r *MentorshipMatchRepositoryImpl) ByPair(ctx context.Context, mentorID, menteeID int64) (*models.MentorshipMatch, error) {
	db := r.getDB(ctx)
	var row models.MentorshipMatch
	if err := db.Where("mentor_id = ? AND mentee_id = ?", mentorID, menteeID).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// ListActive retrieves all currently active assignments.
func (r *MentorshipMatchRepositoryImpl) ListActive(ctx context.Context) ([]*models.MentorshipMatch, error) {
	return r.ByFilter(ctx, models.MentorshipMatchFilter{Active: utils.ToPtr(true)}, "mentor_id ASC, mentee_id ASC", 0, 0)
}

// ActiveCountByMentor returns the number of active mentees per mentor.
// Mentors with no active match are absent from the map.
func (r *MentorshipMatchRepositoryImpl) ActiveCountByMentor(ctx context.Context) (map[int64]int, error) {
	db := r.getDB(ctx)
	var rows []struct {
		MentorID int64
		Total    int
	}
	err := db.Model(&models.MentorshipMatch{}).
		Select("mentor_id, COUNT(*) AS total").
		Where("active = ?", true).
		Group("mentor_id").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[int64]int, len(rows))
	for _, row := range rows {
		counts[row.MentorID] = row.Total
	}
	return counts, nil
}

// UpsertActive inserts the assignment or reactivates an existing row for the
// same pair. Reactivation refreshes matched_at and clears deactivated_at.
func (r *MentorshipMatchRepositoryImpl) UpsertActive(ctx context.Context, mentorID, menteeID int64, matchedAt time.Time) error {
	db := r.getDB(ctx)
	row := models.MentorshipMatch{
		MentorID:  mentorID,
		MenteeID:  menteeID,
		Active:    utils.ToPtr(true),
		MatchedAt: matchedAt,
		UpdatedAt: matchedAt,
	}
	return db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "mentor_id"}, {Name: "mentee_id"}},
		DoUpdates: clause.Assignments(map[string]any{
			"active":         true,
			"matched_at":     matchedAt,
			"deactivated_at": nil,
			"updated_at":     matchedAt,
		}),
	}).Create(&row).Error
}

// Deactivate marks an assignment inactive without deleting its row.
func (r *MentorshipMatchRepositoryImpl) Deactivate(ctx context.Context, mentorID, menteeID int64, at time.Time) error {
	db := r.getDB(ctx)
	return db.Model(&models.MentorshipMatch{}).
		Where("mentor_id = ? AND mentee_id = ? AND active = ?", mentorID, menteeID, true).
		Updates(map[string]any{
			"active":         false,
			"deactivated_at": at,
			"updated_at":     at,
		}).Error
}

// applyFilter applies filter criteria to a GORM query.
func (r *MentorshipMatchRepositoryImpl) applyFilter(query *gorm.DB, filter models.MentorshipMatchFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.MentorID != nil {
		query = query.Where("mentor_id = ?", *filter.MentorID)
	}
	if filter.MenteeID != nil {
		query = query.Where("mentee_id = ?", *filter.MenteeID)
	}
	if filter.Active != nil {
		query = query.Where("active = ?", *filter.Active)
	}
	if filter.MatchedAfter != nil {
		query = query.Where("matched_at > ?", *filter.MatchedAfter)
	}
	if filter.MatchedBefore != nil {
		query = query.Where("matched_at < ?", *filter.MatchedBefore)
	}
	return query
}

// ByFilter retrieves mentorship matches based on filter criteria.
func (r *MentorshipMatchRepositoryImpl) ByFilter(ctx context.Context, filter models.MentorshipMatchFilter, orderBy string, limit, offset int) ([]*models.MentorshipMatch, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.MentorshipMatch{})

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

	var rows []*models.MentorshipMatch
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of mentorship matches matching filter.
func (r *MentorshipMatchRepositoryImpl) Count(ctx context.Context, filter models.MentorshipMatchFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.MentorshipMatch{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
