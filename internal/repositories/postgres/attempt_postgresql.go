package postgres

import (
	"context"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// AttemptPostgreSQL implements the AttemptRepository interface. Attempt
// rows are the mutable hot path of a session, so they are never cached.
type AttemptPostgreSQL struct {
	db      *gorm.DB
	helpers *SharedHelpers
}

func NewAttemptPostgreSQL(db *gorm.DB) repositories.AttemptRepository {
	return &AttemptPostgreSQL{
		db:      db,
		helpers: NewSharedHelpers(db),
	}
}

func (a *AttemptPostgreSQL) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Create(attempt).Error
}

func (a *AttemptPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	if err := db.WithContext(ctx).First(&attempt, id).Error; err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	db := a.getDB(tx)
	return db.WithContext(ctx).Save(attempt).Error
}

// GetActive relies on the status index: there is at most one in-progress
// attempt per user+exam by construction.
func (a *AttemptPostgreSQL) GetActive(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	err := db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ? AND status = ?", userID, examID, models.AttemptInProgress).
		Order("attempt_number DESC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) GetMaxAttemptNumber(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int, error) {
	db := a.getDB(tx)
	var max int
	err := db.WithContext(ctx).Model(&models.ExamAttempt{}).
		Select("COALESCE(MAX(attempt_number), 0)").
		Where("user_id = ? AND exam_id = ?", userID, examID).
		Scan(&max).Error
	return max, err
}

// Submit performs the write-once transition: the UPDATE is conditioned on
// status so two racing submissions cannot both win. RowsAffected tells the
// caller whether this submission took effect.
func (a *AttemptPostgreSQL) Submit(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) (bool, error) {
	db := a.getDB(tx)
	now := time.Now().UTC()

	result := db.WithContext(ctx).Model(&models.ExamAttempt{}).
		Where("id = ? AND status = ?", attempt.ID, models.AttemptInProgress).
		Updates(map[string]interface{}{
			"answers":        attempt.Answers,
			"achieved_score": attempt.AchievedScore,
			"status":         models.AttemptSubmitted,
			"submitted_at":   now,
			"updated_at":     now,
		})
	if result.Error != nil {
		return false, result.Error
	}
	if result.RowsAffected == 0 {
		return false, nil
	}

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &now
	return true, nil
}

func (a *AttemptPostgreSQL) ListByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint, filters repositories.HistoryFilters) ([]*models.ExamAttempt, int64, error) {
	filters.ExamID = &examID
	return a.ListByUser(ctx, tx, userID, filters)
}

func (a *AttemptPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.HistoryFilters) ([]*models.ExamAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.ExamAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.ExamAttempt{}).Where("user_id = ?", userID)
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "submitted_at"
	}
	query = a.helpers.ApplyPaginationAndSort(query, sortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) ListAll(ctx context.Context, tx *gorm.DB, filters repositories.HistoryFilters) ([]*models.ExamAttempt, int64, error) {
	db := a.getDB(tx)
	var attempts []*models.ExamAttempt
	var total int64

	query := db.WithContext(ctx).Model(&models.ExamAttempt{})
	query = a.applyFilters(query, filters)

	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	sortBy := filters.SortBy
	if sortBy == "" {
		sortBy = "submitted_at"
	}
	query = a.helpers.ApplyPaginationAndSort(query, sortBy, filters.SortOrder, filters.Limit, filters.Offset)

	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, err
	}

	return attempts, total, nil
}

func (a *AttemptPostgreSQL) DeleteByUserAndCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error) {
	db := a.getDB(tx)
	result := db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Delete(&models.ExamAttempt{})
	return result.RowsAffected, result.Error
}

func (a *AttemptPostgreSQL) GetBestSubmitted(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.ExamAttempt, error) {
	db := a.getDB(tx)
	var attempt models.ExamAttempt
	err := db.WithContext(ctx).
		Where("user_id = ? AND exam_id = ? AND status = ?", userID, examID, models.AttemptSubmitted).
		Order("achieved_score DESC, submitted_at ASC").
		First(&attempt).Error
	if err != nil {
		return nil, err
	}
	return &attempt, nil
}

func (a *AttemptPostgreSQL) applyFilters(query *gorm.DB, filters repositories.HistoryFilters) *gorm.DB {
	if filters.Status != nil {
		query = query.Where("status = ?", *filters.Status)
	}
	if filters.ExamID != nil {
		query = query.Where("exam_id = ?", *filters.ExamID)
	}
	if filters.CourseID != nil {
		query = query.Where("course_id = ?", *filters.CourseID)
	}
	if filters.DateFrom != nil {
		query = query.Where("created_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("created_at <= ?", *filters.DateTo)
	}
	return query
}

func (a *AttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return a.db
}
