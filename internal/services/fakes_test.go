package services

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"gorm.io/gorm"
)

// fakeState is the shared in-memory store behind the fake repositories. It
// enforces the same unique constraints the postgres schema does.
type fakeState struct {
	mu sync.Mutex

	exams       map[uint]*models.Exam
	questions   map[uint]*models.ExamQuestion
	attempts    map[uint]*models.ExamAttempt
	courses     map[uint]*models.Course
	enrollments map[string]*models.Enrollment
	completions map[string]*models.CompletionRecord
	users       map[string]*models.User

	examCourse  map[uint]uint             // examID -> courseID
	courseItems map[uint][]CompletionItem // courseID -> completable items

	nextAttemptID    uint
	nextCompletionID uint
	nextQuestionID   uint

	// onAttemptCreate, when set, intercepts the next attempt Create call;
	// used to simulate the duplicate-key race.
	onAttemptCreate func(*models.ExamAttempt) error
}

// fakeRepo implements repositories.Repository over fakeState.
type fakeRepo struct {
	st *fakeState
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{st: &fakeState{
		exams:       make(map[uint]*models.Exam),
		questions:   make(map[uint]*models.ExamQuestion),
		attempts:    make(map[uint]*models.ExamAttempt),
		courses:     make(map[uint]*models.Course),
		enrollments: make(map[string]*models.Enrollment),
		completions: make(map[string]*models.CompletionRecord),
		users:       make(map[string]*models.User),
		examCourse:  make(map[uint]uint),
		courseItems: make(map[uint][]CompletionItem),
	}}
}

func (f *fakeRepo) Course() repositories.CourseRepository         { return &fakeCourseRepo{f.st} }
func (f *fakeRepo) Enrollment() repositories.EnrollmentRepository { return &fakeEnrollmentRepo{f.st} }
func (f *fakeRepo) Exam() repositories.ExamRepository             { return &fakeExamRepo{f.st} }
func (f *fakeRepo) Question() repositories.QuestionRepository     { return &fakeQuestionRepo{f.st} }
func (f *fakeRepo) Attempt() repositories.AttemptRepository       { return &fakeAttemptRepo{f.st} }
func (f *fakeRepo) Progress() repositories.ProgressRepository     { return &fakeProgressRepo{f.st} }
func (f *fakeRepo) User() repositories.UserRepository             { return &fakeUserRepo{f.st} }

func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}

func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

// ===== seeding helpers =====

func (f *fakeRepo) seedCourse(course *models.Course) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.courses[course.ID] = course
}

func (f *fakeRepo) seedExam(exam *models.Exam, courseID uint) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.exams[exam.ID] = exam
	f.st.examCourse[exam.ID] = courseID
	f.st.courseItems[courseID] = append(f.st.courseItems[courseID], CompletionItem{Type: models.ItemExam, ID: exam.ID})
}

func (f *fakeRepo) seedLesson(courseID, lessonID uint) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.courseItems[courseID] = append(f.st.courseItems[courseID], CompletionItem{Type: models.ItemLesson, ID: lessonID})
}

func (f *fakeRepo) seedQuestion(q *models.ExamQuestion) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.questions[q.ID] = q
}

func (f *fakeRepo) seedEnrollment(e *models.Enrollment) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.enrollments[enrollKey(e.UserID, e.CourseID)] = e
}

func (f *fakeRepo) enrollment(userID string, courseID uint) *models.Enrollment {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.enrollments[enrollKey(userID, courseID)]
}

func (f *fakeRepo) attemptByID(id uint) *models.ExamAttempt {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return f.st.attempts[id]
}

func (f *fakeRepo) completionCount() int {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return len(f.st.completions)
}

func (f *fakeRepo) attemptCount() int {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	return len(f.st.attempts)
}

func (f *fakeRepo) interceptAttemptCreate(fn func(*models.ExamAttempt) error) {
	f.st.mu.Lock()
	defer f.st.mu.Unlock()
	f.st.onAttemptCreate = fn
}

func enrollKey(userID string, courseID uint) string {
	return fmt.Sprintf("%s|%d", userID, courseID)
}

func completionKey(r *models.CompletionRecord) string {
	return fmt.Sprintf("%s|%d|%s|%d", r.UserID, r.CourseID, r.ItemType, r.ItemID)
}

// ===== exam repository =====

type fakeExamRepo struct{ st *fakeState }

func (r *fakeExamRepo) Create(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if exam.ID == 0 {
		exam.ID = uint(len(r.st.exams) + 1)
	}
	r.st.exams[exam.ID] = exam
	return nil
}

func (r *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Exam, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	exam, ok := r.st.exams[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *exam
	return &copied, nil
}

func (r *fakeExamRepo) Update(ctx context.Context, tx *gorm.DB, exam *models.Exam) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.exams[exam.ID] = exam
	return nil
}

func (r *fakeExamRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	delete(r.st.exams, id)
	return nil
}

func (r *fakeExamRepo) List(ctx context.Context, tx *gorm.DB, filters repositories.ExamFilters) ([]*models.Exam, int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.Exam
	for _, e := range r.st.exams {
		if filters.SectionID != nil && e.SectionID != *filters.SectionID {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, int64(len(out)), nil
}

func (r *fakeExamRepo) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	_, ok := r.st.exams[id]
	return ok, nil
}

func (r *fakeExamRepo) UpdateTotalScore(ctx context.Context, tx *gorm.DB, examID uint, total int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if exam, ok := r.st.exams[examID]; ok {
		exam.TotalScore = total
	}
	return nil
}

func (r *fakeExamRepo) CourseID(ctx context.Context, tx *gorm.DB, examID uint) (uint, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	courseID, ok := r.st.examCourse[examID]
	if !ok {
		return 0, gorm.ErrRecordNotFound
	}
	return courseID, nil
}

func (r *fakeExamRepo) CountByCourse(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for examID, cid := range r.st.examCourse {
		if cid == courseID {
			if _, ok := r.st.exams[examID]; ok {
				n++
			}
		}
	}
	return n, nil
}

// ===== question repository =====

type fakeQuestionRepo struct{ st *fakeState }

func (r *fakeQuestionRepo) Create(ctx context.Context, tx *gorm.DB, q *models.ExamQuestion) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if q.ID == 0 {
		r.st.nextQuestionID++
		q.ID = r.st.nextQuestionID
	}
	r.st.questions[q.ID] = q
	return nil
}

func (r *fakeQuestionRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamQuestion, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	q, ok := r.st.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *q
	return &copied, nil
}

func (r *fakeQuestionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID uint) ([]*models.ExamQuestion, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.ExamQuestion
	for _, q := range r.st.questions {
		if q.ExamID == examID {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeQuestionRepo) GetByIDs(ctx context.Context, tx *gorm.DB, ids []uint) ([]*models.ExamQuestion, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.ExamQuestion
	for _, id := range ids {
		if q, ok := r.st.questions[id]; ok {
			out = append(out, q)
		}
	}
	return out, nil
}

func (r *fakeQuestionRepo) Update(ctx context.Context, tx *gorm.DB, q *models.ExamQuestion) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.questions[q.ID] = q
	return nil
}

func (r *fakeQuestionRepo) Delete(ctx context.Context, tx *gorm.DB, id uint) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	delete(r.st.questions, id)
	return nil
}

func (r *fakeQuestionRepo) DeleteByExam(ctx context.Context, tx *gorm.DB, examID uint) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for id, q := range r.st.questions {
		if q.ExamID == examID {
			delete(r.st.questions, id)
		}
	}
	return nil
}

func (r *fakeQuestionRepo) CountByExam(ctx context.Context, tx *gorm.DB, examID uint) (int64, error) {
	out, _ := r.GetByExam(ctx, tx, examID)
	return int64(len(out)), nil
}

func (r *fakeQuestionRepo) SumScores(ctx context.Context, tx *gorm.DB, examID uint) (int, error) {
	out, _ := r.GetByExam(ctx, tx, examID)
	total := 0
	for _, q := range out {
		total += q.Score
	}
	return total, nil
}

// ===== attempt repository =====

type fakeAttemptRepo struct{ st *fakeState }

func (r *fakeAttemptRepo) Create(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.st.mu.Lock()
	hook := r.st.onAttemptCreate
	r.st.onAttemptCreate = nil
	r.st.mu.Unlock()
	if hook != nil {
		if err := hook(attempt); err != nil {
			return err
		}
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, existing := range r.st.attempts {
		if existing.UserID == attempt.UserID && existing.ExamID == attempt.ExamID && existing.AttemptNumber == attempt.AttemptNumber {
			return gorm.ErrDuplicatedKey
		}
	}
	r.st.nextAttemptID++
	attempt.ID = r.st.nextAttemptID
	r.st.attempts[attempt.ID] = attempt
	return nil
}

func (r *fakeAttemptRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.ExamAttempt, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	a, ok := r.st.attempts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *a
	return &copied, nil
}

func (r *fakeAttemptRepo) Update(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	r.st.attempts[attempt.ID] = attempt
	return nil
}

func (r *fakeAttemptRepo) GetActive(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.ExamAttempt, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var found *models.ExamAttempt
	for _, a := range r.st.attempts {
		if a.UserID == userID && a.ExamID == examID && a.Status == models.AttemptInProgress {
			if found == nil || a.AttemptNumber > found.AttemptNumber {
				found = a
			}
		}
	}
	if found == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *found
	return &copied, nil
}

func (r *fakeAttemptRepo) GetMaxAttemptNumber(ctx context.Context, tx *gorm.DB, userID string, examID uint) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	max := 0
	for _, a := range r.st.attempts {
		if a.UserID == userID && a.ExamID == examID && a.AttemptNumber > max {
			max = a.AttemptNumber
		}
	}
	return max, nil
}

func (r *fakeAttemptRepo) Submit(ctx context.Context, tx *gorm.DB, attempt *models.ExamAttempt) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	stored, ok := r.st.attempts[attempt.ID]
	if !ok || stored.Status != models.AttemptInProgress {
		return false, nil
	}
	now := time.Now().UTC()
	stored.Answers = attempt.Answers
	stored.AchievedScore = attempt.AchievedScore
	stored.Status = models.AttemptSubmitted
	stored.SubmittedAt = &now

	attempt.Status = models.AttemptSubmitted
	attempt.SubmittedAt = &now
	return true, nil
}

func (r *fakeAttemptRepo) ListByUserAndExam(ctx context.Context, tx *gorm.DB, userID string, examID uint, filters repositories.HistoryFilters) ([]*models.ExamAttempt, int64, error) {
	filters.ExamID = &examID
	return r.ListByUser(ctx, tx, userID, filters)
}

func (r *fakeAttemptRepo) ListByUser(ctx context.Context, tx *gorm.DB, userID string, filters repositories.HistoryFilters) ([]*models.ExamAttempt, int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.ExamAttempt
	for _, a := range r.st.attempts {
		if a.UserID != userID {
			continue
		}
		if !matchHistoryFilters(a, filters) {
			continue
		}
		out = append(out, a)
	}
	sortAttemptsBySubmittedDesc(out)
	total := int64(len(out))
	return pageAttempts(out, filters), total, nil
}

func (r *fakeAttemptRepo) ListAll(ctx context.Context, tx *gorm.DB, filters repositories.HistoryFilters) ([]*models.ExamAttempt, int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.ExamAttempt
	for _, a := range r.st.attempts {
		if matchHistoryFilters(a, filters) {
			out = append(out, a)
		}
	}
	sortAttemptsBySubmittedDesc(out)
	total := int64(len(out))
	return pageAttempts(out, filters), total, nil
}

func (r *fakeAttemptRepo) DeleteByUserAndCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for id, a := range r.st.attempts {
		if a.UserID == userID && a.CourseID == courseID {
			delete(r.st.attempts, id)
			n++
		}
	}
	return n, nil
}

func (r *fakeAttemptRepo) GetBestSubmitted(ctx context.Context, tx *gorm.DB, userID string, examID uint) (*models.ExamAttempt, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var best *models.ExamAttempt
	for _, a := range r.st.attempts {
		if a.UserID == userID && a.ExamID == examID && a.Status == models.AttemptSubmitted {
			if best == nil || a.AchievedScore > best.AchievedScore {
				best = a
			}
		}
	}
	if best == nil {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *best
	return &copied, nil
}

func matchHistoryFilters(a *models.ExamAttempt, filters repositories.HistoryFilters) bool {
	if filters.Status != nil && a.Status != *filters.Status {
		return false
	}
	if filters.ExamID != nil && a.ExamID != *filters.ExamID {
		return false
	}
	if filters.CourseID != nil && a.CourseID != *filters.CourseID {
		return false
	}
	return true
}

func sortAttemptsBySubmittedDesc(attempts []*models.ExamAttempt) {
	sort.Slice(attempts, func(i, j int) bool {
		ti, tj := attempts[i].SubmittedAt, attempts[j].SubmittedAt
		if ti == nil || tj == nil {
			return attempts[i].ID > attempts[j].ID
		}
		if ti.Equal(*tj) {
			return attempts[i].ID > attempts[j].ID
		}
		return ti.After(*tj)
	})
}

func pageAttempts(attempts []*models.ExamAttempt, filters repositories.HistoryFilters) []*models.ExamAttempt {
	if filters.Offset > 0 {
		if filters.Offset >= len(attempts) {
			return nil
		}
		attempts = attempts[filters.Offset:]
	}
	if filters.Limit > 0 && filters.Limit < len(attempts) {
		attempts = attempts[:filters.Limit]
	}
	return attempts
}

// ===== course repository =====

type fakeCourseRepo struct{ st *fakeState }

func (r *fakeCourseRepo) GetByID(ctx context.Context, tx *gorm.DB, id uint) (*models.Course, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	course, ok := r.st.courses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *course
	return &copied, nil
}

func (r *fakeCourseRepo) Exists(ctx context.Context, tx *gorm.DB, id uint) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	_, ok := r.st.courses[id]
	return ok, nil
}

func (r *fakeCourseRepo) CountItems(ctx context.Context, tx *gorm.DB, courseID uint) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	return int64(len(r.st.courseItems[courseID])), nil
}

func (r *fakeCourseRepo) ItemExists(ctx context.Context, tx *gorm.DB, courseID uint, itemType models.CompletionItemType, itemID uint) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	for _, item := range r.st.courseItems[courseID] {
		if item.Type == itemType && item.ID == itemID {
			return true, nil
		}
	}
	return false, nil
}

// ===== enrollment repository =====

type fakeEnrollmentRepo struct{ st *fakeState }

func (r *fakeEnrollmentRepo) GetByUserAndCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (*models.Enrollment, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	enrollment, ok := r.st.enrollments[enrollKey(userID, courseID)]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *enrollment
	return &copied, nil
}

func (r *fakeEnrollmentRepo) UpdateProgress(ctx context.Context, tx *gorm.DB, userID string, courseID uint, completed, total, progress int) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	enrollment, ok := r.st.enrollments[enrollKey(userID, courseID)]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	enrollment.CompletedCount = completed
	enrollment.TotalCount = total
	enrollment.Progress = progress
	return nil
}

// ===== progress repository =====

type fakeProgressRepo struct{ st *fakeState }

func (r *fakeProgressRepo) UpsertCompletion(ctx context.Context, tx *gorm.DB, record *models.CompletionRecord) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	key := completionKey(record)
	if _, exists := r.st.completions[key]; exists {
		return false, nil
	}
	r.st.nextCompletionID++
	record.ID = r.st.nextCompletionID
	record.CompletedAt = time.Now().UTC()
	r.st.completions[key] = record
	return true, nil
}

func (r *fakeProgressRepo) CountCompleted(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for _, rec := range r.st.completions {
		if rec.UserID == userID && rec.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (r *fakeProgressRepo) ListCompleted(ctx context.Context, tx *gorm.DB, userID string, courseID uint) ([]*models.CompletionRecord, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.CompletionRecord
	for _, rec := range r.st.completions {
		if rec.UserID == userID && rec.CourseID == courseID {
			out = append(out, rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeProgressRepo) DeleteByUserCourse(ctx context.Context, tx *gorm.DB, userID string, courseID uint) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var n int64
	for key, rec := range r.st.completions {
		if rec.UserID == userID && rec.CourseID == courseID {
			delete(r.st.completions, key)
			n++
		}
	}
	return n, nil
}

// ===== user repository =====

type fakeUserRepo struct{ st *fakeState }

func (r *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	user, ok := r.st.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) Exists(ctx context.Context, tx *gorm.DB, id string) (bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	_, ok := r.st.users[id]
	return ok, nil
}
