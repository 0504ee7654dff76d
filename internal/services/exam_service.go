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

type examService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
}

func NewExamService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator) ExamService {
	return &examService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
	}
}

func (s *examService) Create(ctx context.Context, req *validator.ExamCreateRequest, creatorID string, creatorRole models.UserRole) (*models.Exam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam := &models.Exam{
		SectionID:       req.SectionID,
		Order:           req.Order,
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: req.DurationMinutes,
		PassPercent:     50,
	}
	if req.PassPercent != nil {
		exam.PassPercent = *req.PassPercent
	}

	if err := s.repo.Exam().Create(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to create exam: %w", err)
	}

	s.logger.Info("Exam created",
		"exam_id", exam.ID,
		"section_id", exam.SectionID,
		"creator_id", creatorID)

	return exam, nil
}

func (s *examService) GetByID(ctx context.Context, examID uint) (*ExamView, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	questions, err := s.repo.Question().GetByExam(ctx, s.db, examID)
	if err != nil {
		return nil, fmt.Errorf("failed to load exam questions: %w", err)
	}

	return &ExamView{Exam: exam, Questions: questions}, nil
}

func (s *examService) Update(ctx context.Context, examID uint, req *validator.ExamUpdateRequest, callerID string, callerRole models.UserRole) (*models.Exam, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, err
	}

	exam, err := s.repo.Exam().GetByID(ctx, s.db, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrExamNotFound
		}
		return nil, fmt.Errorf("failed to get exam: %w", err)
	}

	if err := s.ensureCanManage(ctx, examID, callerID, callerRole, "update"); err != nil {
		return nil, err
	}

	if req.Title != nil {
		exam.Title = *req.Title
	}
	if req.Description != nil {
		exam.Description = req.Description
	}
	if req.Order != nil {
		exam.Order = *req.Order
	}
	if req.DurationMinutes != nil {
		exam.DurationMinutes = req.DurationMinutes
	}
	if req.PassPercent != nil {
		exam.PassPercent = *req.PassPercent
	}

	if err := s.repo.Exam().Update(ctx, s.db, exam); err != nil {
		return nil, fmt.Errorf("failed to update exam: %w", err)
	}

	return exam, nil
}

func (s *examService) Delete(ctx context.Context, examID uint, callerID string, callerRole models.UserRole) error {
	exists, err := s.repo.Exam().Exists(ctx, s.db, examID)
	if err != nil {
		return fmt.Errorf("failed to check exam: %w", err)
	}
	if !exists {
		return ErrExamNotFound
	}

	if err := s.ensureCanManage(ctx, examID, callerID, callerRole, "delete"); err != nil {
		return err
	}

	if err := s.repo.Exam().Delete(ctx, s.db, examID); err != nil {
		return fmt.Errorf("failed to delete exam: %w", err)
	}

	s.logger.Info("Exam deleted",
		"exam_id", examID,
		"caller_id", callerID)
	return nil
}

func (s *examService) ListBySection(ctx context.Context, sectionID uint, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	filters.SectionID = &sectionID
	if filters.SortBy == "" {
		filters.SortBy = "item_order"
		filters.SortOrder = "asc"
	}
	return s.repo.Exam().List(ctx, s.db, filters)
}

// ensureCanManage allows admins everywhere and teachers on their own
// courses only.
func (s *examService) ensureCanManage(ctx context.Context, examID uint, callerID string, callerRole models.UserRole, action string) error {
	if callerRole == models.RoleAdmin {
		return nil
	}
	if callerRole != models.RoleTeacher {
		return NewPermissionError(callerID, examID, "exam", action, "requires teacher or admin role")
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
		return NewPermissionError(callerID, examID, "exam", action, "not the course teacher")
	}
	return nil
}
