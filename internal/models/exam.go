package models

import (
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/datatypes"
)

// Exam is a question container attached to a course section. TotalScore is
// denormalized from the question set and refreshed by the question service on
// every mutation. DurationMinutes nil means unlimited time.
type Exam struct {
	ID          uint    `json:"id" gorm:"primaryKey"`
	SectionID   uint    `json:"section_id" gorm:"not null;index"`
	Order       int     `json:"order" gorm:"column:item_order;not null"`
	Title       string  `json:"title" gorm:"not null;size:200"`
	Description *string `json:"description" gorm:"type:text"`

	TotalScore      int  `json:"total_score" gorm:"default:0"`
	DurationMinutes *int `json:"duration_minutes"`
	PassPercent     int  `json:"pass_percent" gorm:"default:50"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Section   Section        `json:"section,omitempty" gorm:"foreignKey:SectionID"`
	Questions []ExamQuestion `json:"questions,omitempty" gorm:"foreignKey:ExamID"`
}

func (Exam) TableName() string {
	return "exams"
}

// ExamOption is one answer choice. Options are stored as a JSONB array on the
// question row; their position in that array is the canonical option index
// clients submit back.
type ExamOption struct {
	Text      string `json:"text"`
	IsCorrect bool   `json:"is_correct"`
}

type ExamQuestion struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	ExamID uint   `json:"exam_id" gorm:"not null;index"`
	Order  int    `json:"order" gorm:"column:item_order;not null"`
	Text   string `json:"text" gorm:"type:text;not null"`

	// At least 2 options, at least 1 correct; enforced by the validator on
	// every create/update.
	Options datatypes.JSON `json:"options" gorm:"type:jsonb;not null"`

	Score       int     `json:"score" gorm:"default:1"`
	Explanation *string `json:"explanation" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Exam Exam `json:"exam,omitempty" gorm:"foreignKey:ExamID"`
}

func (ExamQuestion) TableName() string {
	return "exam_questions"
}

// DecodeOptions unmarshals the JSONB option array.
func (q *ExamQuestion) DecodeOptions() ([]ExamOption, error) {
	var opts []ExamOption
	if len(q.Options) == 0 {
		return opts, nil
	}
	if err := json.Unmarshal(q.Options, &opts); err != nil {
		return nil, fmt.Errorf("failed to decode options for question %d: %w", q.ID, err)
	}
	return opts, nil
}

// EncodeOptions marshals an option set into the JSONB column value.
func EncodeOptions(opts []ExamOption) (datatypes.JSON, error) {
	raw, err := json.Marshal(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to encode options: %w", err)
	}
	return datatypes.JSON(raw), nil
}

// CorrectIndexes returns the sorted positions of options flagged correct.
func (q *ExamQuestion) CorrectIndexes() ([]int, error) {
	opts, err := q.DecodeOptions()
	if err != nil {
		return nil, err
	}
	var correct []int
	for i, opt := range opts {
		if opt.IsCorrect {
			correct = append(correct, i)
		}
	}
	return correct, nil
}
