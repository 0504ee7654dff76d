package services

import (
	"sort"

	"github.com/learnsphere/exam-service/internal/models"
)

// GradeQuestion grades one answer with all-or-nothing set semantics: the
// selected original option indexes must equal the correct set exactly.
// Duplicate selections collapse before comparison. Returns the correctness
// flag and the points awarded (full question score or zero).
func GradeQuestion(question *models.ExamQuestion, selected []int) (bool, int, error) {
	correct, err := question.CorrectIndexes()
	if err != nil {
		return false, 0, err
	}

	if !sameIndexSet(selected, correct) {
		return false, 0, nil
	}
	return true, question.Score, nil
}

// sameIndexSet compares two index slices as sets.
func sameIndexSet(a, b []int) bool {
	setA := dedupeSorted(a)
	setB := dedupeSorted(b)

	if len(setA) != len(setB) {
		return false
	}
	for i := range setA {
		if setA[i] != setB[i] {
			return false
		}
	}
	return true
}

func dedupeSorted(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	out := make([]int, len(in))
	copy(out, in)
	sort.Ints(out)

	n := 0
	for i, v := range out {
		if i == 0 || v != out[n-1] {
			out[n] = v
			n++
		}
	}
	return out[:n]
}
