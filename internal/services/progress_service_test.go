package services

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/learnsphere/exam-service/internal/events"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type progressFixture struct {
	repo      *fakeRepo
	publisher *events.MockEventPublisher
	progress  ProgressService
}

func newProgressFixture(t *testing.T) *progressFixture {
	t.Helper()
	repo := newFakeRepo()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	publisher := events.NewMockEventPublisher(logger)
	return &progressFixture{
		repo:      repo,
		publisher: publisher,
		progress:  NewProgressService(repo, nil, logger, publisher),
	}
}

// seedCourseWithItems sets up course 1 with one exam and two lessons and
// enrolls user-1.
func (f *progressFixture) seedCourseWithItems(t *testing.T) {
	t.Helper()
	f.repo.seedCourse(&models.Course{ID: 1, TeacherID: "teacher-1"})
	f.repo.seedExam(&models.Exam{ID: 10, SectionID: 1, Title: "Quiz", PassPercent: 50}, 1)
	f.repo.seedLesson(1, 20)
	f.repo.seedLesson(1, 21)
	f.repo.seedEnrollment(&models.Enrollment{ID: 1, UserID: "user-1", CourseID: 1, Role: models.EnrollStudent})
}

func TestMarkItemCompletedFloorsPercentage(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)

	result, err := f.progress.MarkItemCompleted(context.Background(), "user-1", 1, CompletionItem{
		Type: models.ItemLesson, ID: 20,
	})
	require.NoError(t, err)

	// 1 of 3 items floors to 33
	assert.True(t, result.NewlyCompleted)
	assert.Equal(t, 1, result.CompletedCount)
	assert.Equal(t, 3, result.TotalCount)
	assert.Equal(t, 33, result.Progress)

	enrollment := f.repo.enrollment("user-1", 1)
	require.NotNil(t, enrollment)
	assert.Equal(t, 33, enrollment.Progress)

	assert.Len(t, f.publisher.EventsOfType(events.EventCourseProgressUpdated), 1)
	assert.Empty(t, f.publisher.EventsOfType(events.EventCourseCompleted))
}

func TestMarkItemCompletedIsIdempotent(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)
	ctx := context.Background()
	item := CompletionItem{Type: models.ItemLesson, ID: 20}

	first, err := f.progress.MarkItemCompleted(ctx, "user-1", 1, item)
	require.NoError(t, err)
	assert.True(t, first.NewlyCompleted)

	second, err := f.progress.MarkItemCompleted(ctx, "user-1", 1, item)
	require.NoError(t, err)
	assert.False(t, second.NewlyCompleted)
	assert.Equal(t, first.CompletedCount, second.CompletedCount)
	assert.Equal(t, first.Progress, second.Progress)
	assert.Equal(t, 1, f.repo.completionCount())
}

func TestMarkItemCompletedFullCourse(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)
	ctx := context.Background()

	items := []CompletionItem{
		{Type: models.ItemExam, ID: 10},
		{Type: models.ItemLesson, ID: 20},
		{Type: models.ItemLesson, ID: 21},
	}
	var last *ProgressResult
	for _, item := range items {
		result, err := f.progress.MarkItemCompleted(ctx, "user-1", 1, item)
		require.NoError(t, err)
		last = result
	}

	assert.Equal(t, 100, last.Progress)
	assert.Equal(t, 3, last.CompletedCount)
	assert.Len(t, f.publisher.EventsOfType(events.EventCourseCompleted), 1)

	// replaying the final item must not emit a second completion event
	_, err := f.progress.MarkItemCompleted(ctx, "user-1", 1, items[2])
	require.NoError(t, err)
	assert.Len(t, f.publisher.EventsOfType(events.EventCourseCompleted), 1)
}

func TestMarkItemCompletedRejectsUnknownType(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)

	_, err := f.progress.MarkItemCompleted(context.Background(), "user-1", 1, CompletionItem{
		Type: "quiz", ID: 10,
	})
	assert.ErrorIs(t, err, ErrInvalidItemType)
}

func TestMarkItemCompletedRejectsForeignItem(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)

	_, err := f.progress.MarkItemCompleted(context.Background(), "user-1", 1, CompletionItem{
		Type: models.ItemLesson, ID: 999,
	})
	assert.ErrorIs(t, err, ErrItemNotInCourse)
	assert.Zero(t, f.repo.completionCount())
}

func TestMarkItemCompletedRequiresEnrollment(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)

	_, err := f.progress.MarkItemCompleted(context.Background(), "stranger", 1, CompletionItem{
		Type: models.ItemLesson, ID: 20,
	})
	assert.ErrorIs(t, err, ErrEnrollmentNotFound)
}

func TestGetProgressPermissions(t *testing.T) {
	f := newProgressFixture(t)
	f.seedCourseWithItems(t)
	ctx := context.Background()

	_, err := f.progress.MarkItemCompleted(ctx, "user-1", 1, CompletionItem{Type: models.ItemLesson, ID: 20})
	require.NoError(t, err)

	// own progress, empty target defaults to caller
	records, err := f.progress.GetProgress(ctx, "user-1", models.RoleStudent, "", 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	// a student may not read another user's progress
	_, err = f.progress.GetProgress(ctx, "user-2", models.RoleStudent, "user-1", 1)
	var permErr *PermissionError
	assert.ErrorAs(t, err, &permErr)

	// teachers and admins may
	records, err = f.progress.GetProgress(ctx, "teacher-1", models.RoleTeacher, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)

	records, err = f.progress.GetProgress(ctx, "admin-1", models.RoleAdmin, "user-1", 1)
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestGetProgressCourseNotFound(t *testing.T) {
	f := newProgressFixture(t)

	_, err := f.progress.GetProgress(context.Background(), "user-1", models.RoleStudent, "", 99)
	assert.ErrorIs(t, err, ErrCourseNotFound)
}

func TestPurgeUserCourseResetsEverything(t *testing.T) {
	f := newSessionFixture(t, 1)
	f.seedStandardExam(t)
	ctx := context.Background()

	// build up state: a passed attempt plus its completion record
	view, err := f.session.GetOrCreateActive(ctx, "user-1", 1)
	require.NoError(t, err)
	_, err = f.session.Submit(ctx, "user-1", 1, view.AttemptNumber, correctAnswers())
	require.NoError(t, err)

	require.Equal(t, 1, f.repo.attemptCount())
	require.Equal(t, 1, f.repo.completionCount())

	require.NoError(t, f.progress.PurgeUserCourse(ctx, "user-1", 1))

	assert.Zero(t, f.repo.attemptCount())
	assert.Zero(t, f.repo.completionCount())

	enrollment := f.repo.enrollment("user-1", 1)
	require.NotNil(t, enrollment)
	assert.Zero(t, enrollment.CompletedCount)
	assert.Zero(t, enrollment.Progress)
	assert.Equal(t, 1, enrollment.TotalCount)

	// attempt numbering restarts after the purge
	view, err = f.session.GetOrCreateActive(ctx, "user-1", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, view.AttemptNumber)
}

func TestPurgeUserCourseWithoutEnrollment(t *testing.T) {
	f := newProgressFixture(t)
	f.repo.seedCourse(&models.Course{ID: 1, TeacherID: "teacher-1"})

	// missing enrollment row is tolerated
	assert.NoError(t, f.progress.PurgeUserCourse(context.Background(), "ghost", 1))
}
