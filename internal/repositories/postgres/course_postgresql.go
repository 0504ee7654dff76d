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

// CoursePostgreSQL implements the CourseRepository interface. Course
// structure is owned by the course service; this repository only reads it.
type CoursePostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewCoursePostgreSQL(db *gorm.DB, redisClient *redis.Client) repositories.CourseRepository {
	return &CoursePostgreSQL{
		db:           db,
		cacheManager: cache.NewCacheManager(redisClient),
	}
}

// GetByID reads a course through the cache. Course rows are owned by the
// course service and change rarely, so a short TTL is enough to keep the
// ownership checks on the authoring hot path off the database.
func (c *CoursePostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	db := c.getDB(tx)
	cacheKey := fmt.Sprintf("course:%d", id)
	var course models.Course

	err := c.cacheManager.Fast.CacheOrExecute(ctx, cacheKey, &course, cache.FastCacheConfig.TTL, func() (interface{}, error) {
		var dbCourse models.Course
		if err := db.WithContext(ctx).First(&dbCourse, id).Error; err != nil {
			return nil, err
		}
		return dbCourse, nil
	})
	if err != nil {
		return nil, err
	}

	return &course, nil
}

func (c *CoursePostgreSQL) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	db := c.getDB(tx)
	var count int64
	err := db.WithContext(ctx).Model(&models.Course{}).Where("id = ?", id).Count(&count).Error
	return count > 0, err
}

// CountItems totals the completable items of a course: every lesson and
// every exam under its sections.
func (c *CoursePostgreSQL) CountItems(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
	db := c.getDB(tx)

	var lessons int64
	err := db.WithContext(ctx).Model(&models.Lesson{}).
		Joins("JOIN sections ON sections.id = lessons.section_id").
		Where("sections.course_id = ?", courseID).
		Count(&lessons).Error
	if err != nil {
		return 0, err
	}

	var exams int64
	err = db.WithContext(ctx).Model(&models.Exam{}).
		Joins("JOIN sections ON sections.id = exams.section_id").
		Where("sections.course_id = ?", courseID).
		Count(&exams).Error
	if err != nil {
		return 0, err
	}

	return lessons + exams, nil
}

func (c *CoursePostgreSQL) ItemExists(ctx context.Context, tx *gorm.DB, courseID uint, itemType models.CompletionItemType, itemID uint) (bool, error) {
	db := c.getDB(tx)
	var count int64
	var err error

	switch itemType {
	case models.ItemLesson:
		err = db.WithContext(ctx).Model(&models.Lesson{}).
			Joins("JOIN sections ON sections.id = lessons.section_id").
			Where("sections.course_id = ? AND lessons.id = ?", courseID, itemID).
			Count(&count).Error
	case models.ItemExam:
		err = db.WithContext(ctx).Model(&models.Exam{}).
			Joins("JOIN sections ON sections.id = exams.section_id").
			Where("sections.course_id = ? AND exams.id = ?", courseID, itemID).
			Count(&count).Error
	default:
		return false, nil
	}

	return count > 0, err
}

func (c *CoursePostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return c.db
}

// EnrollmentPostgreSQL implements the EnrollmentRepository interface.
type EnrollmentPostgreSQL struct {
	db *gorm.DB
}

func NewEnrollmentPostgreSQL(db *gorm.DB) repositories.EnrollmentRepository {
	return &EnrollmentPostgreSQL{db: db}
}

func (e *EnrollmentPostgreSQL) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (*models.Enrollment, error) {
	db := e.getDB(tx)
	var enrollment models.Enrollment
	err := db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&enrollment).Error
	if err != nil {
		return nil, err
	}
	return &enrollment, nil
}

func (e *EnrollmentPostgreSQL) UpdateProgress(ctx context.Context, tx *gorm.DB, userID string, courseID uint, completed, total, progress int) error {
	db := e.getDB(tx)
	return db.WithContext(ctx).Model(&models.Enrollment{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Updates(map[string]interface{}{
			"completed_count": completed,
			"total_count":     total,
			"progress":        progress,
		}).Error
}

func (e *EnrollmentPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return e.db
}
