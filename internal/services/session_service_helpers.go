package services

import (
	"context"
	"fmt"
	"time"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/validator"
)

func nowUTC() time.Time {
	return time.Now().UTC()
}

// attemptPassed applies the per-attempt threshold. A zero-total snapshot can
// never pass.
func attemptPassed(attempt *models.ExamAttempt) bool {
	if attempt.TotalScore == 0 {
		return false
	}
	return attempt.Percentage() >= float64(attempt.PassPercent)
}

func hasDuplicateQuestions(answers []validator.SubmittedAnswer) bool {
	seen := make(map[uint]bool, len(answers))
	for _, ans := range answers {
		if seen[ans.QuestionID] {
			return true
		}
		seen[ans.QuestionID] = true
	}
	return false
}

func normalizeHistoryFilters(filters *repositories.HistoryFilters) {
	if filters.Limit <= 0 || filters.Limit > 100 {
		filters.Limit = 20
	}
	if filters.Offset < 0 {
		filters.Offset = 0
	}
	if filters.SortBy == "" {
		filters.SortBy = "submitted_at"
	}
}

func buildHistoryPage(attempts []*models.ExamAttempt, total int64, filters repositories.HistoryFilters) *HistoryPage {
	entries := make([]HistoryEntry, 0, len(attempts))
	for _, a := range attempts {
		entries = append(entries, HistoryEntry{
			AttemptID:     a.ID,
			UserID:        a.UserID,
			ExamID:        a.ExamID,
			CourseID:      a.CourseID,
			AttemptNumber: a.AttemptNumber,
			AchievedScore: a.AchievedScore,
			TotalScore:    a.TotalScore,
			Percentage:    a.Percentage(),
			Passed:        attemptPassed(a),
			StartedAt:     a.StartedAt,
			SubmittedAt:   a.SubmittedAt,
		})
	}
	return &HistoryPage{
		Entries: entries,
		Total:   total,
		Limit:   filters.Limit,
		Offset:  filters.Offset,
	}
}

// buildActiveView renders an attempt for the client: questions in snapshot
// order, options permuted per snapshot, correctness stripped.
func (s *examSessionService) buildActiveView(ctx context.Context, attempt *models.ExamAttempt) (*ActiveExamView, error) {
	exam, err := s.repo.Exam().GetByID(ctx, s.db, attempt.ExamID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			s.logger.Error("Attempt references missing exam",
				"attempt_id", attempt.ID,
				"exam_id", attempt.ExamID)
			return nil, ErrDataIntegrity
		}
		return nil, fmt.Errorf("failed to load exam for view: %w", err)
	}

	questionOrder, err := attempt.DecodeQuestionOrder()
	if err != nil {
		return nil, ErrDataIntegrity
	}
	optionOrder, err := attempt.DecodeOptionOrder()
	if err != nil {
		return nil, ErrDataIntegrity
	}

	permByQuestion := make(map[uint][]int, len(optionOrder))
	for _, entry := range optionOrder {
		permByQuestion[entry.QuestionID] = entry.Order
	}

	questions, err := s.repo.Question().GetByIDs(ctx, s.db, questionOrder)
	if err != nil {
		return nil, fmt.Errorf("failed to load questions for view: %w", err)
	}
	byID := make(map[uint]*models.ExamQuestion, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}

	views := make([]ActiveQuestionView, 0, len(questionOrder))
	for _, qid := range questionOrder {
		question, ok := byID[qid]
		if !ok {
			// Question deleted mid-attempt; the snapshot keeps its slot out
			// of the view rather than failing the whole resume.
			s.logger.Warn("Snapshot question no longer exists",
				"attempt_id", attempt.ID,
				"question_id", qid)
			continue
		}

		opts, derr := question.DecodeOptions()
		if derr != nil {
			s.logger.Error("Question options failed to decode for view",
				"question_id", qid,
				"error", derr)
			return nil, ErrDataIntegrity
		}

		perm := permByQuestion[qid]
		texts := make([]string, 0, len(perm))
		for _, origIdx := range perm {
			if origIdx < 0 || origIdx >= len(opts) {
				s.logger.Error("Option permutation out of range",
					"question_id", qid,
					"index", origIdx)
				return nil, ErrDataIntegrity
			}
			texts = append(texts, opts[origIdx].Text)
		}

		views = append(views, ActiveQuestionView{
			QuestionID:  qid,
			Text:        question.Text,
			Options:     texts,
			Score:       question.Score,
			OptionOrder: perm,
		})
	}

	return &ActiveExamView{
		AttemptID:       attempt.ID,
		ExamID:          attempt.ExamID,
		CourseID:        attempt.CourseID,
		AttemptNumber:   attempt.AttemptNumber,
		Title:           exam.Title,
		Description:     exam.Description,
		TotalScore:      attempt.TotalScore,
		PassPercent:     attempt.PassPercent,
		DurationMinutes: attempt.DurationMinutes,
		StartedAt:       attempt.StartedAt,
		Questions:       views,
	}, nil
}

// ===== EVENT EMISSION =====

func (s *examSessionService) publishAttemptStarted(ctx context.Context, attempt *models.ExamAttempt) {
	event := events.NewDomainEvent(events.EventAttemptStarted, events.AttemptStartedEvent{
		AttemptID:       attempt.ID,
		ExamID:          attempt.ExamID,
		CourseID:        attempt.CourseID,
		UserID:          attempt.UserID,
		AttemptNumber:   attempt.AttemptNumber,
		StartedAt:       attempt.StartedAt,
		DurationMinutes: attempt.DurationMinutes,
	})
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish attempt started event",
			"attempt_id", attempt.ID,
			"error", err)
	}
}

func (s *examSessionService) publishAttemptSubmitted(ctx context.Context, attempt *models.ExamAttempt, passed bool) {
	event := events.NewDomainEvent(events.EventAttemptSubmitted, events.AttemptSubmittedEvent{
		AttemptID:     attempt.ID,
		ExamID:        attempt.ExamID,
		CourseID:      attempt.CourseID,
		UserID:        attempt.UserID,
		AttemptNumber: attempt.AttemptNumber,
		SubmittedAt:   *attempt.SubmittedAt,
		AchievedScore: attempt.AchievedScore,
		TotalScore:    attempt.TotalScore,
		Percentage:    attempt.Percentage(),
		Passed:        passed,
	})
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish attempt submitted event",
			"attempt_id", attempt.ID,
			"error", err)
	}
}

func (s *examSessionService) publishExamPassed(ctx context.Context, attempt *models.ExamAttempt) {
	event := events.NewDomainEvent(events.EventExamPassed, events.ExamPassedEvent{
		ExamID:     attempt.ExamID,
		CourseID:   attempt.CourseID,
		UserID:     attempt.UserID,
		AttemptID:  attempt.ID,
		Percentage: attempt.Percentage(),
		PassedAt:   nowUTC(),
	})
	if err := s.publisher.PublishEvent(ctx, event); err != nil {
		s.logger.Warn("Failed to publish exam passed event",
			"exam_id", attempt.ExamID,
			"error", err)
	}
}
