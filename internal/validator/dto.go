package validator

// SubmitAttemptRequest is the payload for submitting an in-progress attempt.
// AttemptNumber guards against submitting a stale client against a newer
// attempt.
type SubmitAttemptRequest struct {
	AttemptNumber int               `json:"attempt_number" validate:"required,gt=0"`
	Answers       []SubmittedAnswer `json:"answers" validate:"required,dive"`
}

// SubmittedAnswer pairs a question with the option indexes the student
// selected, expressed against that attempt's shuffled option order.
type SubmittedAnswer struct {
	QuestionID      uint  `json:"question_id" validate:"required"`
	SelectedIndexes []int `json:"selected_indexes" validate:"omitempty,dive,min=0"`
}

// ExamCreateRequest is the payload for authoring a new exam.
type ExamCreateRequest struct {
	SectionID       uint    `json:"section_id" validate:"required"`
	Title           string  `json:"title" validate:"required,min=1,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	Order           int     `json:"order" validate:"omitempty,min=0"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gt=0"`
	PassPercent     *int    `json:"pass_percent" validate:"omitempty,pass_percent"`
}

// ExamUpdateRequest is the payload for editing exam metadata.
type ExamUpdateRequest struct {
	Title           *string `json:"title" validate:"omitempty,min=1,max=200"`
	Description     *string `json:"description" validate:"omitempty,max=2000"`
	Order           *int    `json:"order" validate:"omitempty,min=0"`
	DurationMinutes *int    `json:"duration_minutes" validate:"omitempty,gt=0"`
	PassPercent     *int    `json:"pass_percent" validate:"omitempty,pass_percent"`
}

// QuestionOptionRequest is a single authored option.
type QuestionOptionRequest struct {
	Text      string `json:"text" validate:"required,min=1,max=1000"`
	IsCorrect bool   `json:"is_correct"`
}

// QuestionCreateRequest is the payload for adding a question to an exam.
type QuestionCreateRequest struct {
	Text        string                  `json:"text" validate:"required,min=1,max=2000"`
	Options     []QuestionOptionRequest `json:"options" validate:"required,min=2,dive"`
	Score       *int                    `json:"score" validate:"omitempty,gt=0"`
	Order       int                     `json:"order" validate:"omitempty,min=0"`
	Explanation *string                 `json:"explanation" validate:"omitempty,max=2000"`
}

// QuestionReplaceRequest swaps an exam's whole question set in one save.
type QuestionReplaceRequest struct {
	Questions []QuestionCreateRequest `json:"questions" validate:"required,min=1,dive"`
}

// QuestionUpdateRequest is the payload for editing a question.
type QuestionUpdateRequest struct {
	Text        *string                 `json:"text" validate:"omitempty,min=1,max=2000"`
	Options     []QuestionOptionRequest `json:"options" validate:"omitempty,min=2,dive"`
	Score       *int                    `json:"score" validate:"omitempty,gt=0"`
	Order       *int                    `json:"order" validate:"omitempty,min=0"`
	Explanation *string                 `json:"explanation" validate:"omitempty,max=2000"`
}

// MarkItemCompletedRequest records one finished course item for the caller.
type MarkItemCompletedRequest struct {
	CourseID uint   `json:"course_id" validate:"required"`
	ItemType string `json:"item_type" validate:"required,completion_item_type"`
	ItemID   uint   `json:"item_id" validate:"required"`
}
