package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptInProgress AttemptStatus = "in_progress"
	AttemptSubmitted  AttemptStatus = "submitted"
)

// QuestionOptionOrder is one entry of the per-attempt option shuffle: the
// permutation of option indexes shown for a single question. The snapshot is
// an ordered association list rather than a map so the question sequence and
// its option orders travel together.
type QuestionOptionOrder struct {
	QuestionID uint  `json:"question_id"`
	Order      []int `json:"order"`
}

// AttemptAnswer is one graded answer inside the submitted snapshot.
// SelectedIndexes are original option indexes (pre-shuffle) as sent by the
// client, stored sorted.
type AttemptAnswer struct {
	QuestionID      uint  `json:"question_id"`
	SelectedIndexes []int `json:"selected_indexes"`
	IsCorrect       bool  `json:"is_correct"`
	Score           int   `json:"score"`
}

// ExamAttempt is one instance of a user taking an exam. QuestionOrder and
// OptionOrder are the immutable randomized snapshot fixed at creation;
// Answers, AchievedScore, Status and SubmittedAt are written exactly once at
// submission. TotalScore, DurationMinutes and PassPercent are copied from the
// exam definition at creation so later edits to the bank never change an
// in-flight attempt.
type ExamAttempt struct {
	ID            uint   `json:"id" gorm:"primaryKey"`
	UserID        string `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_user_exam_attempt;index"`
	ExamID        uint   `json:"exam_id" gorm:"not null;uniqueIndex:idx_user_exam_attempt;index"`
	CourseID      uint   `json:"course_id" gorm:"not null;index"`
	AttemptNumber int    `json:"attempt_number" gorm:"not null;uniqueIndex:idx_user_exam_attempt"`

	QuestionOrder datatypes.JSON `json:"question_order" gorm:"type:jsonb;not null"`
	OptionOrder   datatypes.JSON `json:"option_order" gorm:"type:jsonb;not null"`
	Answers       datatypes.JSON `json:"answers" gorm:"type:jsonb"`

	TotalScore      int  `json:"total_score" gorm:"not null"`
	AchievedScore   int  `json:"achieved_score" gorm:"default:0"`
	DurationMinutes *int `json:"duration_minutes"`
	PassPercent     int  `json:"pass_percent" gorm:"default:50"`

	Status      AttemptStatus `json:"status" gorm:"size:20;default:in_progress;index"`
	StartedAt   time.Time     `json:"started_at"`
	SubmittedAt *time.Time    `json:"submitted_at"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Exam   Exam   `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
	Course Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (ExamAttempt) TableName() string {
	return "exam_attempts"
}

// Percentage returns the attempt's score as a 0-100 percentage; zero when the
// snapshot total is zero.
func (a *ExamAttempt) Percentage() float64 {
	if a.TotalScore == 0 {
		return 0
	}
	return float64(a.AchievedScore) / float64(a.TotalScore) * 100
}

func (a *ExamAttempt) DecodeQuestionOrder() ([]uint, error) {
	var order []uint
	if len(a.QuestionOrder) == 0 {
		return order, nil
	}
	if err := json.Unmarshal(a.QuestionOrder, &order); err != nil {
		return nil, fmt.Errorf("failed to decode question order for attempt %d: %w", a.ID, err)
	}
	return order, nil
}

func (a *ExamAttempt) DecodeOptionOrder() ([]QuestionOptionOrder, error) {
	var order []QuestionOptionOrder
	if len(a.OptionOrder) == 0 {
		return order, nil
	}
	if err := json.Unmarshal(a.OptionOrder, &order); err != nil {
		return nil, fmt.Errorf("failed to decode option order for attempt %d: %w", a.ID, err)
	}
	return order, nil
}

func (a *ExamAttempt) DecodeAnswers() ([]AttemptAnswer, error) {
	var answers []AttemptAnswer
	if len(a.Answers) == 0 {
		return answers, nil
	}
	if err := json.Unmarshal(a.Answers, &answers); err != nil {
		return nil, fmt.Errorf("failed to decode answers for attempt %d: %w", a.ID, err)
	}
	return answers, nil
}
