package services

import (
	"sync"
	"testing"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeQuestion(t *testing.T, id uint, opts []models.ExamOption) *models.ExamQuestion {
	t.Helper()
	encoded, err := models.EncodeOptions(opts)
	require.NoError(t, err)
	return &models.ExamQuestion{ID: id, Options: encoded, Score: 1}
}

func TestShuffleQuestionsIsPermutation(t *testing.T) {
	questions := []*models.ExamQuestion{
		{ID: 10}, {ID: 20}, {ID: 30}, {ID: 40}, {ID: 50},
	}

	for seed := int64(0); seed < 20; seed++ {
		r := NewSeededRandomizer(seed)
		order := r.ShuffleQuestions(questions)

		require.Len(t, order, len(questions))
		seen := make(map[uint]bool, len(order))
		for _, id := range order {
			seen[id] = true
		}
		for _, q := range questions {
			assert.True(t, seen[q.ID], "question %d missing from shuffle", q.ID)
		}
	}
}

func TestShuffleQuestionsDoesNotMutateInput(t *testing.T) {
	questions := []*models.ExamQuestion{{ID: 1}, {ID: 2}, {ID: 3}}
	NewSeededRandomizer(7).ShuffleQuestions(questions)

	assert.Equal(t, uint(1), questions[0].ID)
	assert.Equal(t, uint(2), questions[1].ID)
	assert.Equal(t, uint(3), questions[2].ID)
}

func TestShuffleQuestionsEmptyAndSingle(t *testing.T) {
	r := NewSeededRandomizer(1)

	assert.Empty(t, r.ShuffleQuestions(nil))
	assert.Equal(t, []uint{42}, r.ShuffleQuestions([]*models.ExamQuestion{{ID: 42}}))
}

func TestShuffleOptionsIsPermutationOfIndexes(t *testing.T) {
	q := makeQuestion(t, 1, []models.ExamOption{
		{Text: "a"}, {Text: "b", IsCorrect: true}, {Text: "c"}, {Text: "d"},
	})

	for seed := int64(0); seed < 20; seed++ {
		order, err := NewSeededRandomizer(seed).ShuffleOptions(q)
		require.NoError(t, err)

		require.Len(t, order, 4)
		seen := make(map[int]bool, 4)
		for _, idx := range order {
			assert.GreaterOrEqual(t, idx, 0)
			assert.Less(t, idx, 4)
			seen[idx] = true
		}
		assert.Len(t, seen, 4)
	}
}

func TestShuffleConcurrentUse(t *testing.T) {
	questions := []*models.ExamQuestion{
		{ID: 10}, {ID: 20}, {ID: 30}, {ID: 40}, {ID: 50},
	}
	q := makeQuestion(t, 1, []models.ExamOption{
		{Text: "a"}, {Text: "b", IsCorrect: true}, {Text: "c"},
	})

	// One shared instance, many goroutines, the way the session service
	// uses it under concurrent attempt creation.
	r := NewRandomizer()

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				order := r.ShuffleQuestions(questions)
				assert.Len(t, order, len(questions))

				optOrder, err := r.ShuffleOptions(q)
				assert.NoError(t, err)
				assert.Len(t, optOrder, 3)
			}
		}()
	}
	wg.Wait()
}

func TestShuffleOptionsNoOptions(t *testing.T) {
	order, err := NewSeededRandomizer(1).ShuffleOptions(&models.ExamQuestion{ID: 1})
	require.NoError(t, err)
	assert.Empty(t, order)
}

func TestShuffleOptionsMalformedJSON(t *testing.T) {
	q := &models.ExamQuestion{ID: 5, Options: []byte("{not json")}
	_, err := NewSeededRandomizer(1).ShuffleOptions(q)
	assert.Error(t, err)
}
