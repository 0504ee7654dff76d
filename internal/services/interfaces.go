package services

import (
	"context"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"github.com/xuri/excelize/v2"
)

// ===== VIEW / RESULT DTOS =====

// ActiveQuestionView is one question as presented to the student: options
// already permuted per the attempt snapshot, correctness never included.
type ActiveQuestionView struct {
	QuestionID uint     `json:"question_id"`
	Text       string   `json:"text"`
	Options    []string `json:"options"`
	Score      int      `json:"score"`

	// OptionOrder maps display position -> original option index; clients
	// echo original indexes back at submit time.
	OptionOrder []int `json:"option_order"`
}

// ActiveExamView is the resumable presentation of an in-progress attempt.
type ActiveExamView struct {
	AttemptID       uint                 `json:"attempt_id"`
	ExamID          uint                 `json:"exam_id"`
	CourseID        uint                 `json:"course_id"`
	AttemptNumber   int                  `json:"attempt_number"`
	Title           string               `json:"title"`
	Description     *string              `json:"description,omitempty"`
	TotalScore      int                  `json:"total_score"`
	PassPercent     int                  `json:"pass_percent"`
	DurationMinutes *int                 `json:"duration_minutes,omitempty"`
	StartedAt       time.Time            `json:"started_at"`
	Questions       []ActiveQuestionView `json:"questions"`
}

// SubmissionResult reports the outcome of grading one submitted attempt.
type SubmissionResult struct {
	AttemptID     uint      `json:"attempt_id"`
	ExamID        uint      `json:"exam_id"`
	AttemptNumber int       `json:"attempt_number"`
	AchievedScore int       `json:"achieved_score"`
	TotalScore    int       `json:"total_score"`
	PassPercent   int       `json:"pass_percent"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// AttemptStatusView summarizes the latest submitted attempt for an exam.
type AttemptStatusView struct {
	ExamID        uint      `json:"exam_id"`
	AttemptID     uint      `json:"attempt_id"`
	AttemptNumber int       `json:"attempt_number"`
	AchievedScore int       `json:"achieved_score"`
	TotalScore    int       `json:"total_score"`
	PassPercent   int       `json:"pass_percent"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// HistoryEntry is one row of paginated attempt history.
type HistoryEntry struct {
	AttemptID     uint       `json:"attempt_id"`
	UserID        string     `json:"user_id"`
	ExamID        uint       `json:"exam_id"`
	CourseID      uint       `json:"course_id"`
	AttemptNumber int        `json:"attempt_number"`
	AchievedScore int        `json:"achieved_score"`
	TotalScore    int        `json:"total_score"`
	Percentage    float64    `json:"percentage"`
	Passed        bool       `json:"passed"`
	StartedAt     time.Time  `json:"started_at"`
	SubmittedAt   *time.Time `json:"submitted_at,omitempty"`
}

// HistoryPage wraps history rows with pagination totals.
type HistoryPage struct {
	Entries []HistoryEntry `json:"entries"`
	Total   int64          `json:"total"`
	Limit   int            `json:"limit"`
	Offset  int            `json:"offset"`
}

// CompletionItem identifies one completable course item.
type CompletionItem struct {
	Type models.CompletionItemType `json:"item_type"`
	ID   uint                      `json:"item_id"`
}

// ProgressResult is the recomputed aggregate after a completion upsert.
type ProgressResult struct {
	UserID         string `json:"user_id"`
	CourseID       uint   `json:"course_id"`
	CompletedCount int    `json:"completed_count"`
	TotalCount     int    `json:"total_count"`
	Progress       int    `json:"progress"`
	NewlyCompleted bool   `json:"newly_completed"`
}

// ExamView is the builder-facing exam representation, correctness included.
type ExamView struct {
	Exam      *models.Exam           `json:"exam"`
	Questions []*models.ExamQuestion `json:"questions,omitempty"`
}

// ===== SERVICE INTERFACES =====

// ExamSessionService drives the attempt lifecycle: resume-or-create,
// submission with grading, status, and history.
type ExamSessionService interface {
	GetOrCreateActive(ctx context.Context, userID string, examID uint) (*ActiveExamView, error)
	Submit(ctx context.Context, userID string, examID uint, attemptNumber int, answers []validator.SubmittedAnswer) (*SubmissionResult, error)
	GetStatus(ctx context.Context, userID string, examID uint) (*AttemptStatusView, error)
	History(ctx context.Context, userID string, filters repositories.HistoryFilters) (*HistoryPage, error)
	HistoryAll(ctx context.Context, filters repositories.HistoryFilters) (*HistoryPage, error)
	CheckExamPassed(ctx context.Context, userID string, examID uint) (bool, error)
}

// ProgressService aggregates per-item completions into course progress.
type ProgressService interface {
	MarkItemCompleted(ctx context.Context, userID string, courseID uint, item CompletionItem) (*ProgressResult, error)
	GetProgress(ctx context.Context, callerID string, callerRole models.UserRole, targetUserID string, courseID uint) ([]*models.CompletionRecord, error)
	PurgeUserCourse(ctx context.Context, userID string, courseID uint) error
}

// ExamService is the authoring surface for exam metadata.
type ExamService interface {
	Create(ctx context.Context, req *validator.ExamCreateRequest, creatorID string, creatorRole models.UserRole) (*models.Exam, error)
	GetByID(ctx context.Context, examID uint) (*ExamView, error)
	Update(ctx context.Context, examID uint, req *validator.ExamUpdateRequest, callerID string, callerRole models.UserRole) (*models.Exam, error)
	Delete(ctx context.Context, examID uint, callerID string, callerRole models.UserRole) error
	ListBySection(ctx context.Context, sectionID uint, filters repositories.ExamFilters) ([]*models.Exam, int64, error)
}

// QuestionService is the authoring surface for exam questions. Every
// mutation refreshes the exam's denormalized total score.
type QuestionService interface {
	Create(ctx context.Context, examID uint, req *validator.QuestionCreateRequest, callerID string, callerRole models.UserRole) (*models.ExamQuestion, error)
	ReplaceForExam(ctx context.Context, examID uint, reqs []validator.QuestionCreateRequest, callerID string, callerRole models.UserRole) ([]*models.ExamQuestion, error)
	Update(ctx context.Context, questionID uint, req *validator.QuestionUpdateRequest, callerID string, callerRole models.UserRole) (*models.ExamQuestion, error)
	Delete(ctx context.Context, questionID uint, callerID string, callerRole models.UserRole) error
	ListByExam(ctx context.Context, examID uint) ([]*models.ExamQuestion, error)
}

// ExportService renders attempt history as a spreadsheet.
type ExportService interface {
	ExportHistory(ctx context.Context, filters repositories.HistoryFilters) (*excelize.File, error)
}
