package models

import "time"

// CompletionItemType distinguishes the two item kinds that count toward a
// course's progress percentage.
type CompletionItemType string

const (
	ItemLesson CompletionItemType = "lesson"
	ItemExam   CompletionItemType = "exam"
)

// Valid reports whether t is one of the known item types. Handlers reject
// anything else before it reaches the progress service.
func (t CompletionItemType) Valid() bool {
	return t == ItemLesson || t == ItemExam
}

// CompletionRecord marks one course item as finished by one user. The unique
// index makes the upsert idempotent: repeated completion signals for the same
// item never double-count.
type CompletionRecord struct {
	ID       uint               `json:"id" gorm:"primaryKey"`
	UserID   string             `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_completion_item"`
	CourseID uint               `json:"course_id" gorm:"not null;uniqueIndex:idx_completion_item"`
	ItemType CompletionItemType `json:"item_type" gorm:"size:20;not null;uniqueIndex:idx_completion_item"`
	ItemID   uint               `json:"item_id" gorm:"not null;uniqueIndex:idx_completion_item"`

	CompletedAt time.Time `json:"completed_at"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (CompletionRecord) TableName() string {
	return "completion_records"
}
