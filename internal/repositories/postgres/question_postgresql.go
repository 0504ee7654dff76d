package postgres

import (
	"context"
	"fmt"

	"github.com/learnsphere/exam-service/internal/cache"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// QuestionPostgreSQL implements the QuestionRepository interface.
type QuestionPostgreSQL struct {
	db           *gorm.DB
	helpers      *SharedHelpers
	cacheManager *cache.CacheManager
}

func NewQuestionPostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.QuestionRepository {
	return &QuestionPostgreSQL{
		db:           db,
		helpers:      NewSharedHelpers(db),
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

func (q *QuestionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Create(question).Error; err != nil {
		return err
	}
	cache.InvalidateExamCache(ctx, q.cacheManager, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamQuestion, error) {
	db := q.getDB(tx)
	var question models.ExamQuestion
	if err := db.WithContext(ctx).First(&question, id).Error; err != nil {
		return nil, err
	}
	return &question, nil
}

// GetByExam returns an exam's questions in authored order. The full
// question list is what attempt creation snapshots from, so it is cached.
func (q *QuestionPostgreSQL) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	db := q.getDB(tx)
	cacheKey := fmt.Sprintf("exam:%d:all", examID)
	var questions []*models.ExamQuestion

	err := q.cacheManager.Question.CacheOrExecute(ctx, cacheKey, &questions, cache.QuestionCacheConfig.TTL, func() (interface{}, error) {
		var dbQuestions []*models.ExamQuestion
		err := db.WithContext(ctx).
			Where("exam_id = ?", examID).
			Order("item_order ASC, id ASC").
			Find(&dbQuestions).Error
		if err != nil {
			return nil, err
		}
		return dbQuestions, nil
	})
	if err != nil {
		return nil, err
	}

	return questions, nil
}

func (q *QuestionPostgreSQL) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.ExamQuestion, error) {
	db := q.getDB(tx)
	if len(ids) == 0 {
		return nil, nil
	}
	var questions []*models.ExamQuestion
	err := db.WithContext(ctx).Where("id IN ?", ids).Find(&questions).Error
	return questions, err
}

func (q *QuestionPostgreSQL) Update(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).Save(question).Error; err != nil {
		return err
	}
	cache.InvalidateExamCache(ctx, q.cacheManager, question.ExamID)
	return nil
}

func (q *QuestionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	db := q.getDB(tx)

	question, err := q.GetByID(ctx, tx, id)
	if err != nil {
		return err
	}

	if err := db.WithContext(ctx).Delete(&models.ExamQuestion{}, id).Error; err != nil {
		return err
	}
	cache.InvalidateExamCache(ctx, q.cacheManager, question.ExamID)
	return nil
}

// DeleteByExam clears an exam's question set, used by the builder's bulk
// replace.
func (q *QuestionPostgreSQL) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	db := q.getDB(tx)
	if err := db.WithContext(ctx).
		Where("exam_id = ?", examID).
		Delete(&models.ExamQuestion{}).Error; err != nil {
		return err
	}
	cache.InvalidateExamCache(ctx, q.cacheManager, examID)
	return nil
}

func (q *QuestionPostgreSQL) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	db := q.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.ExamQuestion{}).
		Where("exam_id = ?", examID).
		Count(&count).Error
	return count, err
}

func (q *QuestionPostgreSQL) SumScores(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	db := q.getDB(tx)
	var total int
	err := db.WithContext(ctx).Model(&models.ExamQuestion{}).
		Select("COALESCE(SUM(score), 0)").
		Where("exam_id = ?", examID).
		Scan(&total).Error
	return total, err
}

func (q *QuestionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}
