package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/convivio/convivio/models"
	"github.com/convivio/convivio/utils"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PairingRepositoryImpl implements PairingRepository interface.
type PairingRepositoryImpl struct {
	*BaseRepository[models.Pairing, models.PairingFilter]
}

// NewPairingRepository creates a new pairing history repository.
func NewPairingRepository(db *gorm.DB) PairingRepository {
	return &PairingRepositoryImpl{
		BaseRepository: NewBaseRepository[models.Pairing, models.PairingFilter](db),
	}
}

// ByPair retrieves the history row for one unordered pair. Arguments may be
// given in either order.
func (r *PairingRepositoryImpl) ByPair(ctx context.Context, userA, userB int64) (*models.Pairing, error) {
	a, b := utils.CanonicalPair(userA, userB)
	db := r.getDB(ctx)
	var row models.Pairing
	if err := db.Where("user_a = ? AND user_b = ?", a, b).Last(&row).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// HistoryForPool loads last-matched timestamps for every pair whose both
// members are in the given pool. Pairs with no row are simply absent from
// the map (never matched).
func (r *PairingRepositoryImpl) HistoryForPool(ctx context.Context, userIDs []int64) (map[PairKey]time.Time, error) {
	history := make(map[PairKey]time.Time)
	if len(userIDs) < 2 {
		return history, nil
	}

	db := r.getDB(ctx)
	var rows []*models.Pairing
	if err := db.Where("user_a IN ? AND user_b IN ?", userIDs, userIDs).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, row := range rows {
		history[PairKey{A: row.UserA, B: row.UserB}] = row.LastMatchedAt
	}
	return history, nil
}

// UpsertLastMatched inserts or refreshes the history row for one pair,
// enforcing canonical ordering on write.
func (r *PairingRepositoryImpl) UpsertLastMatched(ctx context.Context, userA, userB int64, matchedAt time.Time) error {
	a, b := utils.CanonicalPair(userA, userB)
	if a == b {
		return fmt.Errorf("cannot pair user %d with itself", a)
	}

	db := r.getDB(ctx)
	row := models.Pairing{
		UserA:         a,
		UserB:         b,
		LastMatchedAt: matchedAt,
		UpdatedAt:     matchedAt,
	}
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_a"}, {Name: "user_b"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_matched_at", "updated_at"}),
	}).Create(&row).Error
}

// applyFilter applies filter criteria to a GORM query.
func (r *PairingRepositoryImpl) applyFilter(query *gorm.DB, filter models.PairingFilter) *gorm.DB {
	if filter.ID != nil {
		query = query.Where("id = ?", *filter.ID)
	}
	if filter.UserA != nil {
		query = query.Where("user_a = ?", *filter.UserA)
	}
	if filter.UserB != nil {
		query = query.Where("user_b = ?", *filter.UserB)
	}
	if filter.MatchedAfter != nil {
		query = query.Where("last_matched_at > ?", *filter.MatchedAfter)
	}
	if filter.MatchedBefore != nil {
		query = query.Where("last_matched_at < ?", *filter.MatchedBefore)
	}
	return query
}

// ByFilter retrieves pairings based on filter criteria.
func (r *PairingRepositoryImpl) ByFilter(ctx context.Context, filter models.PairingFilter, orderBy string, limit, offset int) ([]*models.Pairing, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Pairing{})

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

	var rows []*models.Pairing
	if err := query.Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Count returns number of pairings matching filter.
func (r *PairingRepositoryImpl) Count(ctx context.Context, filter models.PairingFilter) (int64, error) {
	db := r.getDB(ctx)
	query := db.Model(&models.Pairing{})
	query = r.applyFilter(query, filter)
	var count int64
	if err := query.Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}
