package models

import "time"

// Lesson is owned by the content-builder service. The exam service only
// counts lessons when computing a course's total item count for progress.
type Lesson struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	SectionID uint   `json:"section_id" gorm:"not null;index"`
	Order     int    `json:"order" gorm:"column:item_order;not null"`
	Title     string `json:"title" gorm:"not null;size:200"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Section Section `json:"section,omitempty" gorm:"foreignKey:SectionID"`
}

func (Lesson) TableName() string {
	return "lessons"
}
