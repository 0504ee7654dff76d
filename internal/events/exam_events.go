package events

import (
	"time"

	"github.com/google/uuid"
)

// EventType identifies the domain events this service emits.
type EventType string

const (
	// Attempt events
	EventAttemptStarted   EventType = "exam.attempt_started"
	EventAttemptSubmitted EventType = "exam.attempt_submitted"
	EventExamPassed       EventType = "exam.passed"

	// Progress events
	EventCourseProgressUpdated EventType = "course.progress_updated"
	EventCourseCompleted       EventType = "course.completed"
)

// DomainEvent is the envelope shared by all published events.
type DomainEvent struct {
	ID        string                 `json:"id"`
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Data      interface{}            `json:"data"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
}

// NewDomainEvent wraps a payload in the standard envelope.
func NewDomainEvent(eventType EventType, data interface{}) *DomainEvent {
	return &DomainEvent{
		ID:        uuid.NewString(),
		Type:      eventType,
		Timestamp: time.Now().UTC(),
		Source:    "exam-service",
		Version:   "1.0",
		Data:      data,
	}
}

// Attempt event payloads

type AttemptStartedEvent struct {
	AttemptID       uint      `json:"attempt_id"`
	ExamID          uint      `json:"exam_id"`
	CourseID        uint      `json:"course_id"`
	UserID          string    `json:"user_id"`
	AttemptNumber   int       `json:"attempt_number"`
	StartedAt       time.Time `json:"started_at"`
	DurationMinutes *int      `json:"duration_minutes,omitempty"`
}

type AttemptSubmittedEvent struct {
	AttemptID     uint      `json:"attempt_id"`
	ExamID        uint      `json:"exam_id"`
	CourseID      uint      `json:"course_id"`
	UserID        string    `json:"user_id"`
	AttemptNumber int       `json:"attempt_number"`
	SubmittedAt   time.Time `json:"submitted_at"`
	AchievedScore int       `json:"achieved_score"`
	TotalScore    int       `json:"total_score"`
	Percentage    float64   `json:"percentage"`
	Passed        bool      `json:"passed"`
}

type ExamPassedEvent struct {
	ExamID     uint      `json:"exam_id"`
	CourseID   uint      `json:"course_id"`
	UserID     string    `json:"user_id"`
	AttemptID  uint      `json:"attempt_id"`
	Percentage float64   `json:"percentage"`
	PassedAt   time.Time `json:"passed_at"`
}

// Progress event payloads

type CourseProgressUpdatedEvent struct {
	UserID         string    `json:"user_id"`
	CourseID       uint      `json:"course_id"`
	CompletedCount int       `json:"completed_count"`
	TotalCount     int       `json:"total_count"`
	Progress       int       `json:"progress"`
	UpdatedAt      time.Time `json:"updated_at"`
}

type CourseCompletedEvent struct {
	UserID      string    `json:"user_id"`
	CourseID    uint      `json:"course_id"`
	CompletedAt time.Time `json:"completed_at"`
}
