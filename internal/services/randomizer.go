package services

import (
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/learnsphere/exam-service/internal/models"
)

// Randomizer produces the per-attempt shuffle snapshots. Every call draws a
// fresh rand.Rand from an atomically advanced seed, so one shared instance
// is safe under concurrent attempt creation; nothing is cached between
// attempts.
type Randomizer struct {
	seed atomic.Int64
}

func NewRandomizer() *Randomizer {
	r := &Randomizer{}
	r.seed.Store(time.Now().UnixNano())
	return r
}

// NewSeededRandomizer pins the shuffle sequence for deterministic tests.
func NewSeededRandomizer(seed int64) *Randomizer {
	r := &Randomizer{}
	r.seed.Store(seed)
	return r
}

func (r *Randomizer) rng() *rand.Rand {
	return rand.New(rand.NewSource(r.seed.Add(1)))
}

// ShuffleQuestions returns the question IDs in randomized presentation order.
func (r *Randomizer) ShuffleQuestions(questions []*models.ExamQuestion) []uint {
	order := make([]uint, len(questions))
	for i, q := range questions {
		order[i] = q.ID
	}
	r.rng().Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order
}

// ShuffleOptions returns a permutation of a question's option indexes:
// position in the slice is the display position, the value is the original
// index. Zero options yields an empty permutation.
func (r *Randomizer) ShuffleOptions(question *models.ExamQuestion) ([]int, error) {
	opts, err := question.DecodeOptions()
	if err != nil {
		return nil, err
	}

	order := make([]int, len(opts))
	for i := range order {
		order[i] = i
	}
	r.rng().Shuffle(len(order), func(i, j int) {
		order[i], order[j] = order[j], order[i]
	})
	return order, nil
}
