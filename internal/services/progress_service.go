package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
)

type progressService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewProgressService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, publisher events.EventPublisher) ProgressService {
	return &progressService{
		repo:      repo,
		db:        db,
		logger:    logger,
		publisher: publisher,
	}
}

// MarkItemCompleted records one finished item and recomputes the enrollment
// aggregate. Replays are idempotent: the completion insert is ON CONFLICT DO
// NOTHING and the recount always reflects actual rows.
func (s *progressService) MarkItemCompleted(ctx context.Context, userID string, courseID uint, item CompletionItem) (*ProgressResult, error) {
	if !item.Type.Valid() {
		return nil, ErrInvalidItemType
	}

	belongs, err := s.repo.Course().ItemExists(ctx, s.db, courseID, item.Type, item.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course item: %w", err)
	}
	if !belongs {
		return nil, ErrItemNotInCourse
	}

	if _, err := s.repo.Enrollment().GetByUserAndCourse(ctx, s.db, userID, courseID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("failed to load enrollment: %w", err)
	}

	var result *ProgressResult
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		inserted, terr := txRepo.Progress().UpsertCompletion(ctx, nil, &models.CompletionRecord{
			UserID:   userID,
			CourseID: courseID,
			ItemType: item.Type,
			ItemID:   item.ID,
		})
		if terr != nil {
			return terr
		}

		aggregate, terr := s.recomputeProgress(ctx, txRepo, userID, courseID)
		if terr != nil {
			return terr
		}

		aggregate.NewlyCompleted = inserted
		result = aggregate
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to mark item completed: %w", err)
	}

	s.publishProgressUpdated(ctx, result)

	return result, nil
}

// recomputeProgress recounts completions and rewrites the enrollment row.
// Percentage floors, clamps at 100, and an itemless course stays at 0.
func (s *progressService) recomputeProgress(ctx context.Context, repo repositories.Repository, userID string, courseID uint) (*ProgressResult, error) {
	completed, err := repo.Progress().CountCompleted(ctx, nil, userID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to count completions: %w", err)
	}

	total, err := repo.Course().CountItems(ctx, nil, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to count course items: %w", err)
	}

	progress := 0
	if total > 0 {
		progress = int(completed * 100 / total)
		if progress > 100 {
			progress = 100
		}
	}

	err = repo.Enrollment().UpdateProgress(ctx, nil, userID, courseID, int(completed), int(total), progress)
	if err != nil {
		return nil, fmt.Errorf("failed to update enrollment progress: %w", err)
	}

	return &ProgressResult{
		UserID:         userID,
		CourseID:       courseID,
		CompletedCount: int(completed),
		TotalCount:     int(total),
		Progress:       progress,
	}, nil
}

// GetProgress lists completion records. Students may only read their own;
// teachers and admins may inspect any user.
func (s *progressService) GetProgress(ctx context.Context, callerID string, callerRole models.UserRole, targetUserID string, courseID uint) ([]*models.CompletionRecord, error) {
	if targetUserID == "" {
		targetUserID = callerID
	}
	if targetUserID != callerID && callerRole == models.RoleStudent {
		return nil, NewPermissionError(callerID, courseID, "course_progress", "read", "students may only view their own progress")
	}

	exists, err := s.repo.Course().Exists(ctx, s.db, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to check course: %w", err)
	}
	if !exists {
		return nil, ErrCourseNotFound
	}

	records, err := s.repo.Progress().ListCompleted(ctx, s.db, targetUserID, courseID)
	if err != nil {
		return nil, fmt.Errorf("failed to list completions: %w", err)
	}
	return records, nil
}

// PurgeUserCourse removes every attempt and completion record for the user
// in one course and zeroes the enrollment counters. Attempt numbering
// restarts from 1 afterwards.
func (s *progressService) PurgeUserCourse(ctx context.Context, userID string, courseID uint) error {
	s.logger.Info("Purging user course data",
		"user_id", userID,
		"course_id", courseID)

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		attempts, terr := txRepo.Attempt().DeleteByUserAndCourse(ctx, nil, userID, courseID)
		if terr != nil {
			return terr
		}

		records, terr := txRepo.Progress().DeleteByUserCourse(ctx, nil, userID, courseID)
		if terr != nil {
			return terr
		}

		total, terr := txRepo.Course().CountItems(ctx, nil, courseID)
		if terr != nil {
			return terr
		}

		terr = txRepo.Enrollment().UpdateProgress(ctx, nil, userID, courseID, 0, int(total), 0)
		if terr != nil && !repositories.IsNotFoundError(terr) {
			return terr
		}

		s.logger.Info("Purged user course data",
			"user_id", userID,
			"course_id", courseID,
			"attempts_deleted", attempts,
			"completions_deleted", records)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to purge user course data: %w", err)
	}

	return nil
}

func (s *progressService) publishProgressUpdated(ctx context.Context, result *ProgressResult) {
	event := events.NewDomainEvent(events.EventCourseProgressUpdated, events.CourseProgressUpdatedEvent{
		UserID:         result.UserID,
		CourseID:       result.CourseID,
		CompletedCount: result.CompletedCount,
		TotalCount:     result.TotalCount,
		Progress:       result.Progress,
		UpdatedAt:      nowUTC(),
	})
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish progress updated event",
			"user_id", result.UserID,
			"course_id", result.CourseID,
			"error", err)
	}

	if result.Progress == 100 && result.NewlyCompleted {
		completedEvent := events.NewDomainEvent(events.EventCourseCompleted, events.CourseCompletedEvent{
			UserID:      result.UserID,
			CourseID:    result.CourseID,
			CompletedAt: nowUTC(),
		})
		if err := s.publisher.PublishEvent(ctx, completedEvent); err != nil {
			s.logger.Warn("Failed to publish course completed event",
				"user_id", result.UserID,
				"course_id", result.CourseID,
				"error", err)
		}
	}
}
