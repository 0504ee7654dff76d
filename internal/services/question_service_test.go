package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/validator"
)

type authoringFixture struct {
	repo      *fakeRepo
	exams     ExamService
	questions QuestionService
}

func newAuthoringFixture(t *testing.T) *authoringFixture {
	t.Helper()
	repo := newFakeRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	v := validator.New()
	exams := NewExamService(repo, nil, logger, v)
	questions := NewQuestionService(repo, nil, logger, v, exams)

	repo.seedCourse(&models.Course{ID: 1, Title: "Go Basics", TeacherID: "teacher-1"})
	repo.seedExam(&models.Exam{ID: 1, SectionID: 1, Title: "Final Exam", PassPercent: 50}, 1)

	return &authoringFixture{repo: repo, exams: exams, questions: questions}
}

func questionPayload(text string, score int) *validator.QuestionCreateRequest {
	return &validator.QuestionCreateRequest{
		Text: text,
		Options: []validator.QuestionOptionRequest{
			{Text: "Right", IsCorrect: true},
			{Text: "Wrong"},
		},
		Score: &score,
	}
}

func TestCreateQuestionRefreshesTotalScore(t *testing.T) {
	fx := newAuthoringFixture(t)
	ctx := context.Background()

	q, err := fx.questions.Create(ctx, 1, questionPayload("What is a goroutine?", 3), "teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.NotZero(t, q.ID)
	assert.Equal(t, 3, q.Score)

	_, err = fx.questions.Create(ctx, 1, questionPayload("What is a channel?", 2), "teacher-1", models.RoleTeacher)
	require.NoError(t, err)

	view, err := fx.exams.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Exam.TotalScore)
	assert.Len(t, view.Questions, 2)
}

func TestCreateQuestionRejectsForeignTeacher(t *testing.T) {
	fx := newAuthoringFixture(t)

	_, err := fx.questions.Create(context.Background(), 1, questionPayload("Q", 1), "teacher-2", models.RoleTeacher)
	require.Error(t, err)

	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}

func TestCreateQuestionRequiresCorrectOption(t *testing.T) {
	fx := newAuthoringFixture(t)

	req := &validator.QuestionCreateRequest{
		Text: "Q",
		Options: []validator.QuestionOptionRequest{
			{Text: "A"},
			{Text: "B"},
		},
	}
	_, err := fx.questions.Create(context.Background(), 1, req, "teacher-1", models.RoleTeacher)
	require.Error(t, err)

	var errs ValidationErrors
	assert.ErrorAs(t, err, &errs)
}

func TestReplaceQuestionsSwapsSetAndTotal(t *testing.T) {
	fx := newAuthoringFixture(t)
	ctx := context.Background()

	old, err := fx.questions.Create(ctx, 1, questionPayload("Old question", 4), "teacher-1", models.RoleTeacher)
	require.NoError(t, err)

	replaced, err := fx.questions.ReplaceForExam(ctx, 1, []validator.QuestionCreateRequest{
		*questionPayload("New question one", 2),
		*questionPayload("New question two", 3),
	}, "teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	require.Len(t, replaced, 2)

	listed, err := fx.questions.ListByExam(ctx, 1)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, q := range listed {
		assert.NotEqual(t, old.ID, q.ID)
	}

	view, err := fx.exams.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 5, view.Exam.TotalScore)
}

func TestReplaceQuestionsRejectsEmptySet(t *testing.T) {
	fx := newAuthoringFixture(t)

	_, err := fx.questions.ReplaceForExam(context.Background(), 1, nil, "teacher-1", models.RoleTeacher)
	assert.ErrorIs(t, err, ErrValidationFailed)
}

func TestDeleteQuestionRefreshesTotalScore(t *testing.T) {
	fx := newAuthoringFixture(t)
	ctx := context.Background()

	q, err := fx.questions.Create(ctx, 1, questionPayload("Q", 4), "teacher-1", models.RoleTeacher)
	require.NoError(t, err)

	require.NoError(t, fx.questions.Delete(ctx, q.ID, "teacher-1", models.RoleTeacher))

	view, err := fx.exams.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, view.Exam.TotalScore)
	assert.Empty(t, view.Questions)
}

func TestCreateExamDefaultsPassPercent(t *testing.T) {
	fx := newAuthoringFixture(t)

	exam, err := fx.exams.Create(context.Background(), &validator.ExamCreateRequest{
		SectionID: 2,
		Title:     "Midterm",
	}, "teacher-1", models.RoleTeacher)
	require.NoError(t, err)
	assert.Equal(t, 50, exam.PassPercent)
}

func TestUpdateExamAdminBypassesOwnership(t *testing.T) {
	fx := newAuthoringFixture(t)
	title := "Renamed"

	exam, err := fx.exams.Update(context.Background(), 1, &validator.ExamUpdateRequest{
		Title: &title,
	}, "someone-else", models.RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, "Renamed", exam.Title)
}

func TestDeleteExamRejectsStudent(t *testing.T) {
	fx := newAuthoringFixture(t)

	err := fx.exams.Delete(context.Background(), 1, "user-1", models.RoleStudent)
	require.Error(t, err)

	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)
}
