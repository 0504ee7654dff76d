package postgres

import (
	"context"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProgressPostgreSQL implements the ProgressRepository interface.
type ProgressPostgreSQL struct {
	db *gorm.DB
}

func NewProgressPostgreSQL(db *gorm.DB) repositories.ProgressRepository {
	return &ProgressPostgreSQL{db: db}
}

// UpsertCompletion inserts with ON CONFLICT DO NOTHING so marking the same
// item twice stays idempotent under concurrency. RowsAffected distinguishes
// a fresh completion from a replay.
func (p *ProgressPostgreSQL) UpsertCompletion(ctx context.Context, tx *gorm.DB, record *models.CompletionRecord) (bool, error) {
	db := p.getDB(tx)
	result := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "course_id"},
				{Name: "item_type"},
				{Name: "item_id"},
			},
			DoNothing: true,
		}).
		Create(record)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (p *ProgressPostgreSQL) CountCompleted(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error) {
	db := p.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.CompletionRecord{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error
	return count, err
}

func (p *ProgressPostgreSQL) ListCompleted(ctx context.Context, tx *gorm.DB, userID string, courseID uint) ([]*models.CompletionRecord, error) {
	db := p.getDB(tx)
	var records []*models.CompletionRecord
	err := db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Order("completed_at ASC").
		Find(&records).Error
	return records, err
}

func (p *ProgressPostgreSQL) DeleteByUserCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error) {
	db := p.getDB(tx)
	result := db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.CompletionRecord{})
	return result.RowsAffected, result.Error
}

func (p *ProgressPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}
