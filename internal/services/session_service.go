package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type examSessionService struct {
	repo       repositories.Repository
	db         *gorm.DB
	logger     *slog.Logger
	validator  *validator.Validator
	randomizer *Randomizer
	progress   ProgressService
	publisher  events.EventPublisher
}

func NewExamSessionService(
	repo repositories.Repository,
	db *gorm.DB,
	logger *slog.Logger,
	validator *validator.Validator,
	randomizer *Randomizer,
	progress ProgressService,
	publisher events.EventPublisher,
) ExamSessionService {
	return &examSessionService{
		repo:       repo,
		db:         db,
		logger:     logger,
		validator:  validator,
		randomizer: randomizer,
		progress:   progress,
		publisher:  publisher,
	}
}

// ===== RESUME OR CREATE =====

func (s *examSessionService) GetOrCreateActive(ctx context.Context, userID string, examID uint) (*ActiveExamView, error) {
	s.logger.Info("Resolving active attempt",
		"exam_id", examID,
		"user_id", userID)

	// Resume path: an in-progress attempt always wins, its snapshot is
	// already fixed.
	active, err := s.repo.Attempt().GetActive(ctx, s.db, userID, examID)
	if err == nil {
		return s.buildActiveView(ctx, active)
	}
	if !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to look up active attempt: %w", err)
	}

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
	if len(questions) == 0 {
		return nil, ErrEmptyExam
	}

	courseID, err := s.repo.Exam().CourseID(ctx, s.db, examID)
	if err != nil {
		s.logger.Error("Exam has no resolvable course",
			"exam_id", examID,
			"error", err)
		return nil, ErrDataIntegrity
	}

	attempt, err := s.createAttempt(ctx, userID, exam, courseID, questions)
	if err != nil {
		return nil, err
	}

	s.publishAttemptStarted(ctx, attempt)

	return s.buildActiveView(ctx, attempt)
}

// createAttempt builds and persists a fresh snapshot. A duplicate-key
// failure means a concurrent request created the attempt first; the winner
// is refetched and returned transparently.
func (s *examSessionService) createAttempt(ctx context.Context, userID string, exam *models.Exam, courseID uint, questions []*models.ExamQuestion) (*models.ExamAttempt, error) {
	attempt, err := s.newAttemptSnapshot(ctx, userID, exam, courseID, questions)
	if err != nil {
		return nil, err
	}

	err = s.repo.Attempt().Create(ctx, s.db, attempt)
	if err == nil {
		return attempt, nil
	}
	if !repositories.IsDuplicateKeyError(err) {
		return nil, fmt.Errorf("failed to create attempt: %w", err)
	}

	s.logger.Info("Attempt create race detected, refetching winner",
		"exam_id", exam.ID,
		"user_id", userID)

	winner, ferr := s.repo.Attempt().GetActive(ctx, s.db, userID, exam.ID)
	if ferr == nil {
		return winner, nil
	}
	if !repositories.IsNotFoundError(ferr) {
		return nil, fmt.Errorf("failed to refetch racing attempt: %w", ferr)
	}

	// The racing attempt was already submitted between our create and the
	// refetch. Take the next number, once.
	attempt, err = s.newAttemptSnapshot(ctx, userID, exam, courseID, questions)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Attempt().Create(ctx, s.db, attempt); err != nil {
		return nil, fmt.Errorf("%w: %v", errDuplicateAttempt, err)
	}
	return attempt, nil
}

// newAttemptSnapshot draws fresh question and option permutations and copies
// the grading parameters off the exam definition.
func (s *examSessionService) newAttemptSnapshot(ctx context.Context, userID string, exam *models.Exam, courseID uint, questions []*models.ExamQuestion) (*models.ExamAttempt, error) {
	questionOrder := s.randomizer.ShuffleQuestions(questions)

	byID := make(map[uint]*models.ExamQuestion, len(questions))
	totalScore := 0
	for _, q := range questions {
		byID[q.ID] = q
		totalScore += q.Score
	}

	optionOrder := make([]models.QuestionOptionOrder, 0, len(questionOrder))
	for _, qid := range questionOrder {
		perm, err := s.randomizer.ShuffleOptions(byID[qid])
		if err != nil {
			s.logger.Error("Question options failed to decode",
				"question_id", qid,
				"error", err)
			return nil, ErrDataIntegrity
		}
		optionOrder = append(optionOrder, models.QuestionOptionOrder{
			QuestionID: qid,
			Order:      perm,
		})
	}

	questionOrderJSON, err := json.Marshal(questionOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode question order: %w", err)
	}
	optionOrderJSON, err := json.Marshal(optionOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to encode option order: %w", err)
	}

	maxNumber, err := s.repo.Attempt().GetMaxAttemptNumber(ctx, s.db, userID, exam.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve attempt number: %w", err)
	}

	return &models.ExamAttempt{
		UserID:          userID,
		ExamID:          exam.ID,
		CourseID:        courseID,
		AttemptNumber:   maxNumber + 1,
		QuestionOrder:   datatypes.JSON(questionOrderJSON),
		OptionOrder:     datatypes.JSON(optionOrderJSON),
		TotalScore:      totalScore,
		DurationMinutes: exam.DurationMinutes,
		PassPercent:     exam.PassPercent,
		Status:          models.AttemptInProgress,
		StartedAt:       nowUTC(),
	}, nil
}

// ===== SUBMIT =====

func (s *examSessionService) Submit(ctx context.Context, userID string, examID uint, attemptNumber int, answers []validator.SubmittedAnswer) (*SubmissionResult, error) {
	s.logger.Info("Submitting attempt",
		"exam_id", examID,
		"user_id", userID,
		"attempt_number", attemptNumber)

	if hasDuplicateQuestions(answers) {
		return nil, ErrInvalidAttempt
	}

	attempt, err := s.repo.Attempt().GetActive(ctx, s.db, userID, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidAttempt
		}
		return nil, fmt.Errorf("failed to look up active attempt: %w", err)
	}
	if attempt.AttemptNumber != attemptNumber {
		return nil, ErrInvalidAttempt
	}

	gradedAnswers, achieved, err := s.gradeSubmission(ctx, attempt, answers)
	if err != nil {
		return nil, err
	}

	answersJSON, err := json.Marshal(gradedAnswers)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}
	attempt.Answers = datatypes.JSON(answersJSON)
	attempt.AchievedScore = achieved

	var submitted bool
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		ok, serr := txRepo.Attempt().Submit(ctx, nil, attempt)
		if serr != nil {
			return serr
		}
		submitted = ok
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to submit attempt: %w", err)
	}
	if !submitted {
		// Lost the write-once race: another submission landed first.
		return nil, ErrInvalidAttempt
	}

	result := &SubmissionResult{
		AttemptID:     attempt.ID,
		ExamID:        examID,
		AttemptNumber: attempt.AttemptNumber,
		AchievedScore: attempt.AchievedScore,
		TotalScore:    attempt.TotalScore,
		PassPercent:   attempt.PassPercent,
		Percentage:    attempt.Percentage(),
		Passed:        attemptPassed(attempt),
		SubmittedAt:   *attempt.SubmittedAt,
	}

	s.publishAttemptSubmitted(ctx, attempt, result.Passed)
	s.recordPassIfEarned(ctx, attempt)

	return result, nil
}

// gradeSubmission drops answers for questions outside the snapshot, then
// grades the rest against the live question records.
func (s *examSessionService) gradeSubmission(ctx context.Context, attempt *models.ExamAttempt, answers []validator.SubmittedAnswer) ([]models.AttemptAnswer, int, error) {
	questionOrder, err := attempt.DecodeQuestionOrder()
	if err != nil {
		s.logger.Error("Attempt snapshot failed to decode",
			"attempt_id", attempt.ID,
			"error", err)
		return nil, 0, ErrDataIntegrity
	}

	inSnapshot := make(map[uint]bool, len(questionOrder))
	for _, qid := range questionOrder {
		inSnapshot[qid] = true
	}

	kept := make([]validator.SubmittedAnswer, 0, len(answers))
	keptIDs := make([]uint, 0, len(answers))
	for _, ans := range answers {
		if inSnapshot[ans.QuestionID] {
			kept = append(kept, ans)
			keptIDs = append(keptIDs, ans.QuestionID)
		}
	}

	questions, err := s.repo.Question().GetByIDs(ctx, s.db, keptIDs)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to load questions for grading: %w", err)
	}
	byID := make(map[uint]*models.ExamQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	graded := make([]models.AttemptAnswer, 0, len(kept))
	achieved := 0
	for _, ans := range kept {
		question, ok := byID[ans.QuestionID]
		if !ok {
			// Question deleted mid-attempt; treat as stale and drop.
			continue
		}

		correct, score, gerr := GradeQuestion(question, ans.SelectedIndexes)
		if gerr != nil {
			s.logger.Error("Question options failed to decode during grading",
				"question_id", question.ID,
				"error", gerr)
			return nil, 0, ErrDataIntegrity
		}

		selected := append([]int(nil), ans.SelectedIndexes...)
		sort.Ints(selected)

		graded = append(graded, models.AttemptAnswer{
			QuestionID:      ans.QuestionID,
			SelectedIndexes: selected,
			IsCorrect:       correct,
			Score:           score,
		})
		achieved += score
	}

	return graded, achieved, nil
}

// recordPassIfEarned runs the best-attempt pass rule and feeds course
// progress. Progress failures are logged, never surfaced: the submission
// already committed.
func (s *examSessionService) recordPassIfEarned(ctx context.Context, attempt *models.ExamAttempt) {
	passed, err := s.CheckExamPassed(ctx, attempt.UserID, attempt.ExamID)
	if err != nil {
		s.logger.Error("Pass check failed after submit",
			"attempt_id", attempt.ID,
			"error", err)
		return
	}
	if !passed {
		return
	}

	_, err = s.progress.MarkItemCompleted(ctx, attempt.UserID, attempt.CourseID, CompletionItem{
		Type: models.ItemExam,
		ID:   attempt.ExamID,
	})
	if err != nil {
		s.logger.Error("Failed to record exam completion",
			"attempt_id", attempt.ID,
			"exam_id", attempt.ExamID,
			"error", err)
		return
	}

	s.publishExamPassed(ctx, attempt)
}

// ===== STATUS / PASS / HISTORY =====

func (s *examSessionService) GetStatus(ctx context.Context, userID string, examID uint) (*AttemptStatusView, error) {
	status := models.AttemptSubmitted
	attempts, _, err := s.repo.Attempt().ListByUserAndExam(ctx, s.db, userID, examID, repositories.HistoryFilters{
		Status:    &status,
		Limit:     1,
		SortBy:    "submitted_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt status: %w", err)
	}
	if len(attempts) == 0 {
		return nil, ErrAttemptNotFound
	}

	latest := attempts[0]
	return &AttemptStatusView{
		ExamID:        examID,
		AttemptID:     latest.ID,
		AttemptNumber: latest.AttemptNumber,
		AchievedScore: latest.AchievedScore,
		TotalScore:    latest.TotalScore,
		PassPercent:   latest.PassPercent,
		Percentage:    latest.Percentage(),
		Passed:        attemptPassed(latest),
		SubmittedAt:   *latest.SubmittedAt,
	}, nil
}

// CheckExamPassed applies the best-attempt rule: the highest-scoring
// submitted attempt decides, judged against its own snapshot threshold.
func (s *examSessionService) CheckExamPassed(ctx context.Context, userID string, examID uint) (bool, error) {
	best, err := s.repo.Attempt().GetBestSubmitted(ctx, s.db, userID, examID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to load best attempt: %w", err)
	}
	return attemptPassed(best), nil
}

func (s *examSessionService) History(ctx context.Context, userID string, filters repositories.HistoryFilters) (*HistoryPage, error) {
	status := models.AttemptSubmitted
	filters.Status = &status
	normalizeHistoryFilters(&filters)

	attempts, total, err := s.repo.Attempt().ListByUser(ctx, s.db, userID, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt history: %w", err)
	}

	return buildHistoryPage(attempts, total, filters), nil
}

func (s *examSessionService) HistoryAll(ctx context.Context, filters repositories.HistoryFilters) (*HistoryPage, error) {
	status := models.AttemptSubmitted
	filters.Status = &status
	normalizeHistoryFilters(&filters)

	attempts, total, err := s.repo.Attempt().ListAll(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempt history: %w", err)
	}

	return buildHistoryPage(attempts, total, filters), nil
}
