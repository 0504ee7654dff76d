package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/gorm"
)

// ServiceManager owns every service instance and their lifecycle.
type ServiceManager interface {
	Session() ExamSessionService
	Progress() ProgressService
	Exam() ExamService
	Question() QuestionService
	Export() ExportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}

type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher

	sessionService  ExamSessionService
	progressService ProgressService
	examService     ExamService
	questionService QuestionService
	exportService   ExportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
	}
}

func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing services")

	sm.progressService = NewProgressService(sm.repo, sm.db, sm.logger, sm.publisher)
	sm.sessionService = NewExamSessionService(
		sm.repo, sm.db, sm.logger, sm.validator,
		NewRandomizer(), sm.progressService, sm.publisher)
	sm.examService = NewExamService(sm.repo, sm.db, sm.logger, sm.validator)
	sm.questionService = NewQuestionService(sm.repo, sm.db, sm.logger, sm.validator, sm.examService)
	sm.exportService = NewExportService(sm.repo, sm.db, sm.logger)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sm.repo.Ping(pingCtx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}

	sm.initialized = true
	sm.logger.Info("Services initialized")
	return nil
}

func (sm *serviceManager) Session() ExamSessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.sessionService
}

func (sm *serviceManager) Progress() ProgressService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.progressService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.examService
}

func (sm *serviceManager) Question() QuestionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.questionService
}

func (sm *serviceManager) Export() ExportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return sm.exportService
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}
	return sm.repo.Ping(ctx)
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down services")

	if err := sm.publisher.Close(); err != nil {
		sm.logger.Warn("Failed to close event publisher", "error", err)
	}

	sm.shutdown = true
	return nil
}
