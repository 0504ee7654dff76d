package models

import "time"

type PublishStatus string

const (
	PublishDraft     PublishStatus = "draft"
	PublishPending   PublishStatus = "pending"
	PublishPublished PublishStatus = "published"
	PublishRejected  PublishStatus = "rejected"
)

// Course and Section are owned by the content-builder service. The exam
// service reads them to resolve an exam back to its course and to count the
// items that feed the progress percentage.
type Course struct {
	ID            uint          `json:"id" gorm:"primaryKey"`
	Title         string        `json:"title" gorm:"not null;size:200"`
	Description   *string       `json:"description" gorm:"type:text"`
	TeacherID     string        `json:"teacher_id" gorm:"not null;index;size:255"`
	PublishStatus PublishStatus `json:"publish_status" gorm:"size:20;default:draft;index"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Teacher  User      `json:"teacher,omitempty" gorm:"foreignKey:TeacherID"`
	Sections []Section `json:"sections,omitempty" gorm:"foreignKey:CourseID"`
}

func (Course) TableName() string {
	return "courses"
}

type Section struct {
	ID       uint   `json:"id" gorm:"primaryKey"`
	CourseID uint   `json:"course_id" gorm:"not null;index"`
	Order    int    `json:"order" gorm:"column:item_order;not null"`
	Title    string `json:"title" gorm:"not null;size:200"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Course Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (Section) TableName() string {
	return "sections"
}

type EnrollmentRole string

const (
	EnrollStudent   EnrollmentRole = "student"
	EnrollTeacher   EnrollmentRole = "teacher"
	EnrollAssistant EnrollmentRole = "assistant"
)

// Enrollment carries the cached progress aggregate. CompletedCount,
// TotalCount and Progress are derived from completion records and recomputed
// by the progress service on every completion upsert.
type Enrollment struct {
	ID       uint           `json:"id" gorm:"primaryKey"`
	UserID   string         `json:"user_id" gorm:"not null;size:255;uniqueIndex:idx_enrollment_user_course"`
	CourseID uint           `json:"course_id" gorm:"not null;uniqueIndex:idx_enrollment_user_course"`
	Role     EnrollmentRole `json:"role" gorm:"size:20;default:student"`

	CompletedCount int `json:"completed_count" gorm:"default:0"`
	TotalCount     int `json:"total_count" gorm:"default:0"`
	Progress       int `json:"progress" gorm:"default:0"`

	EnrolledAt time.Time `json:"enrolled_at"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	User   User   `json:"user,omitempty" gorm:"foreignKey:UserID"`
	Course Course `json:"course,omitempty" gorm:"foreignKey:CourseID"`
}

func (Enrollment) TableName() string {
	return "enrollments"
}
