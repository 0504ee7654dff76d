package repositories

import (
	"context"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
	"gorm.io/gorm"
)

// ===== SHARED FILTER STRUCTS =====

// HistoryFilters narrows and pages attempt history queries.
type HistoryFilters struct {
	Status    *models.AttemptStatus `json:"status"`
	ExamID    *uint                 `json:"exam_id"`
	CourseID  *uint                 `json:"course_id"`
	DateFrom  *time.Time            `json:"date_from"`
	DateTo    *time.Time            `json:"date_to"`
	Limit     int                   `json:"limit"`
	Offset    int                   `json:"offset"`
	SortBy    string                `json:"sort_by"`    // "created_at", "submitted_at", "achieved_score"
	SortOrder string                `json:"sort_order"` // "asc", "desc"
}

// ExamFilters narrows exam listings.
type ExamFilters struct {
	SectionID *uint  `json:"section_id"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
}

// ===== REPOSITORY INTERFACES =====

// ExamRepository manages exam metadata rows.
type ExamRepository interface {
	Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error)
	Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	List(ctx context.Context, tx *gorm.DB, filters ExamFilters) ([]*models.Exam, int64, error)
	Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)

	// UpdateTotalScore persists the denormalized sum of question scores.
	UpdateTotalScore(ctx context.Context, tx *gorm.DB, examID uint, total int) error

	// CourseID resolves the owning course through the exam's section.
	CourseID(ctx context.Context, tx *gorm.DB, examID uint) (uint, error)

	// CountBySection counts exams across all sections of a course.
	CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error)
}

// QuestionRepository manages exam questions with their jsonb options.
type QuestionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamQuestion, error)
	GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error)
	GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.ExamQuestion, error)
	Update(ctx context.Context, tx *gorm.DB, question *models.ExamQuestion) error
	Delete(ctx context.Context, tx *gorm.DB, id uint) error
	DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error
	CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error)
	SumScores(ctx context.Context, tx *gorm.DB, examID uint) (int, error)
}

// AttemptRepository manages exam attempt rows and their state machine.
type AttemptRepository interface {
	Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error)
	Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error

	// GetActive returns the single in-progress attempt for user+exam,
	// or gorm.ErrRecordNotFound.
	GetActive(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.ExamAttempt, error)

	// GetMaxAttemptNumber returns 0 when the user has no attempts yet.
	GetMaxAttemptNumber(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int, error)

	// Submit transitions an in-progress attempt to submitted, writing the
	// graded fields in the same statement. Returns false when the attempt
	// was not in progress (already submitted or missing).
	Submit(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) (bool, error)

	// ListByUserAndExam returns submitted attempts, newest first.
	ListByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint, filters HistoryFilters) ([]*models.ExamAttempt, int64, error)

	// ListByUser returns submitted attempts across all exams.
	ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters HistoryFilters) ([]*models.ExamAttempt, int64, error)

	// ListAll pages attempts across every user, for admin history views.
	ListAll(ctx context.Context, tx *gorm.DB, filters HistoryFilters) ([]*models.ExamAttempt, int64, error)

	// DeleteByUserAndCourse removes every attempt for user+course.
	DeleteByUserAndCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error)

	// GetBestSubmitted returns the submitted attempt with the highest
	// achieved score, or gorm.ErrRecordNotFound when none exist.
	GetBestSubmitted(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.ExamAttempt, error)
}

// CourseRepository reads course structure owned by the course service.
type CourseRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error)
	Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error)

	// CountItems counts the lessons plus exams across a course's sections.
	CountItems(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error)

	// ItemExists reports whether a lesson or exam belongs to the course.
	ItemExists(ctx context.Context, tx *gorm.DB, courseID uint, itemType models.CompletionItemType, itemID uint) (bool, error)
}

// EnrollmentRepository manages a user's membership and rolled-up progress.
type EnrollmentRepository interface {
	GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (*models.Enrollment, error)
	UpdateProgress(ctx context.Context, tx *gorm.DB, userID string, courseID uint, completed, total, progress int) error
}

// ProgressRepository manages per-item completion records.
type ProgressRepository interface {
	// UpsertCompletion inserts a completion record, ignoring duplicates.
	// Returns true when a new row was inserted.
	UpsertCompletion(ctx context.Context, tx *gorm.DB, record *models.CompletionRecord) (bool, error)

	CountCompleted(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error)
	ListCompleted(ctx context.Context, tx *gorm.DB, userID string, courseID uint) ([]*models.CompletionRecord, error)

	// DeleteByUserCourse removes all completion records for user+course.
	DeleteByUserCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error)
}

// UserRepository reads user identities.
type UserRepository interface {
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	Exists(ctx context.Context, tx *gorm.DB, id string) (bool, error)
}
