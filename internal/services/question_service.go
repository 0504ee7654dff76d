package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/gorm"
)

type questionService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	exams     ExamService
}

func NewQuestionService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, exams ExamService) QuestionService {
	return &questionService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		exams:     exams,
	}
}

func (s *questionService) Create(ctx context.Context, examID uint, req *validator.QuestionCreateRequest, callerID string, callerRole models.UserRole) (*models.ExamQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exists, err := s.repo.Exam().Exists(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}

	if err := s.ensureCanManage(ctx, examID, callerID, callerRole); err != nil {
		return nil, err
	}

	options, err := s.buildOptions(req.Options)
	if err != nil {
		return nil, err
	}
	optionsJSON, err := models.EncodeOptions(options)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}

	question := &models.ExamQuestion{
		ExamID:      examID,
		Order:       req.Order,
		Text:        req.Text,
		Options:     optionsJSON,
		Score:       1,
		Explanation: req.Explanation,
	}
	if req.Score != nil {
		question.Score = *req.Score
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if terr := txRepo.Question().Create(ctx, nil, question); terr != nil {
			return terr
		}
		return s.refreshTotalScore(ctx, txRepo, examID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create question: %w", err)
	}

	return question, nil
}

// ReplaceForExam swaps an exam's entire question set in one transaction,
// the way the builder saves: delete everything, insert the new set, refresh
// the total. In-flight attempts keep grading against their snapshots, so a
// replace only affects attempts started afterwards.
func (s *questionService) ReplaceForExam(ctx context.Context, examID uint, reqs []validator.QuestionCreateRequest, callerID string, callerRole models.UserRole) ([]*models.ExamQuestion, error) {
	if len(reqs) == 0 {
		return nil, ErrValidationFailed
	}
	for i := range reqs {
		if err := s.validator.Validate(&reqs[i]); err != nil {
			return nil, err
		}
	}

	exists, err := s.repo.Exam().Exists(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}

	if err := s.ensureCanManage(ctx, examID, callerID, callerRole); err != nil {
		return nil, err
	}

	questions := make([]*models.ExamQuestion, 0, len(reqs))
	for i, req := range reqs {
		options, berr := s.buildOptions(req.Options)
		if berr != nil {
			return nil, berr
		}
		optionsJSON, eerr := models.EncodeOptions(options)
		if eerr != nil {
			return nil, fmt.Errorf("failed to encode options: %w", eerr)
		}

		question := &models.ExamQuestion{
			ExamID:      examID,
			Order:       req.Order,
			Text:        req.Text,
			Options:     optionsJSON,
			Score:       1,
			Explanation: req.Explanation,
		}
		if req.Order == 0 {
			question.Order = i
		}
		if req.Score != nil {
			question.Score = *req.Score
		}
		questions = append(questions, question)
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if terr := txRepo.Question().DeleteByExam(ctx, nil, examID); terr != nil {
			return terr
		}
		for _, q := range questions {
			if terr := txRepo.Question().Create(ctx, nil, q); terr != nil {
				return terr
			}
		}
		return s.refreshTotalScore(ctx, txRepo, examID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace questions: %w", err)
	}

	s.logger.Info("Exam question set replaced",
		"exam_id", examID,
		"question_count", len(questions),
		"caller_id", callerID)

	return questions, nil
}

func (s *questionService) Update(ctx context.Context, questionID uint, req *validator.QuestionUpdateRequest, callerID string, callerRole models.UserRole) (*models.ExamQuestion, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	question, err := s.repo.Question().GetByID(ctx, s.db, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.ensureCanManage(ctx, question.ExamID, callerID, callerRole); err != nil {
		return nil, err
	}

	if req.Text != nil {
		question.Text = *req.Text
	}
	if req.Options != nil {
		options, berr := s.buildOptions(req.Options)
		if berr != nil {
			return nil, berr
		}
		optionsJSON, eerr := models.EncodeOptions(options)
		if eerr != nil {
			return nil, fmt.Errorf("failed to encode options: %w", eerr)
		}
		question.Options = optionsJSON
	}
	if req.Score != nil {
		question.Score = *req.Score
	}
	if req.Order != nil {
		question.Order = *req.Order
	}
	if req.Explanation != nil {
		question.Explanation = req.Explanation
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if terr := txRepo.Question().Update(ctx, nil, question); terr != nil {
			return terr
		}
		return s.refreshTotalScore(ctx, txRepo, question.ExamID)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update question: %w", err)
	}

	return question, nil
}

func (s *questionService) Delete(ctx context.Context, questionID uint, callerID string, callerRole models.UserRole) error {
	question, err := s.repo.Question().GetByID(ctx, s.db, questionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get question: %w", err)
	}

	if err := s.ensureCanManage(ctx, question.ExamID, callerID, callerRole); err != nil {
		return err
	}

	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if terr := txRepo.Question().Delete(ctx, nil, questionID); terr != nil {
			return terr
		}
		return s.refreshTotalScore(ctx, txRepo, question.ExamID)
	})
	if err != nil {
		return fmt.Errorf("failed to delete question: %w", err)
	}

	return nil
}

func (s *questionService) ListByExam(ctx context.Context, examID uint) ([]*models.ExamQuestion, error) {
	exists, err := s.repo.Exam().Exists(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return nil, ErrExamNotFound
	}
	return s.repo.Question().GetByExam(ctx, s.db, examID)
}

// buildOptions converts request options, enforcing the option invariants.
func (s *questionService) buildOptions(reqOptions []validator.QuestionOptionRequest) ([]models.ExamOption, error) {
	options := make([]models.ExamOption, 0, len(reqOptions))
	for _, o := range reqOptions {
		options = append(options, models.ExamOption{
			Text:      o.Text,
			IsCorrect: o.IsCorrect,
		})
	}
	if errs := s.validator.ValidateQuestionOptions(options); len(errs) > 0 {
		return nil, errs
	}
	return options, nil
}

// refreshTotalScore rewrites the exam's denormalized total after any
// question mutation, inside the same transaction.
func (s *questionService) refreshTotalScore(ctx context.Context, repo repositories.Repository, examID uint) error {
	total, err := repo.Question().SumScores(ctx, nil, examID)
	if err != nil {
		return fmt.Errorf("failed to sum question scores: %w", err)
	}
	return repo.Exam().UpdateTotalScore(ctx, nil, examID, total)
}

func (s *questionService) ensureCanManage(ctx context.Context, examID uint, callerID string, callerRole models.UserRole) error {
	if callerRole == models.RoleAdmin {
		return nil
	}
	if callerRole != models.RoleTeacher {
		return NewPermissionError(callerID, examID, "question", "manage", "requires teacher or admin role")
	}

	courseID, err := s.repo.Exam().CourseID(ctx, s.db, examID)
	if err != nil {
		return fmt.Errorf("failed to resolve exam course: %w", err)
	}
	course, err := s.repo.Course().GetByID(ctx, s.db, courseID)
	if err != nil {
		return fmt.Errorf("failed to load course: %w", err)
	}
	if course.TeacherID != callerID {
		return NewPermissionError(callerID, examID, "question", "manage", "not the course teacher")
	}
	return nil
}
