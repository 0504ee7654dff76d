package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

// ExamHandler is the authoring surface for exams and their questions.
type ExamHandler struct {
	BaseHandler
	examService     services.ExamService
	questionService services.QuestionService
	validator       *validator.Validator
}

func NewExamHandler(
	examService services.ExamService,
	questionService services.QuestionService,
	validator *validator.Validator,
	logger utils.Logger,
) *ExamHandler {
	return &ExamHandler{
		BaseHandler:     NewBaseHandler(logger),
		examService:     examService,
		questionService: questionService,
		validator:       validator,
	}
}

func (h *ExamHandler) caller(c *gin.Context) (string, bool) {
	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return "", false
	}
	return userID, true
}

// CreateExam adds an exam to a section
// POST /sections/:id/exams
func (h *ExamHandler) CreateExam(c *gin.Context) {
	sectionID := h.parseIDParam(c, "id")
	if sectionID == 0 {
		return
	}

	h.LogRequest(c, "Creating exam", "section_id", sectionID)

	var req validator.ExamCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.SectionID = sectionID

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	exam, err := h.examService.Create(c.Request.Context(), &req, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Exam created successfully",
		Data:    exam,
	})
}

// ListExams lists a section's exams
// GET /sections/:id/exams
func (h *ExamHandler) ListExams(c *gin.Context) {
	sectionID := h.parseIDParam(c, "id")
	if sectionID == 0 {
		return
	}

	h.LogRequest(c, "Listing exams", "section_id", sectionID)

	page := h.parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := h.parseIntQuery(c, "size", 20)

	exams, total, err := h.examService.ListBySection(c.Request.Context(), sectionID, repositories.ExamFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "item_order"),
		SortOrder: c.DefaultQuery("sort_order", "asc"),
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exams retrieved successfully",
		Data: gin.H{
			"exams": exams,
			"total": total,
		},
	})
}

// GetExam returns an exam with its question bank, correctness included
// GET /exams/:id
func (h *ExamHandler) GetExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Getting exam", "exam_id", examID)

	view, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exam retrieved successfully",
		Data:    view,
	})
}

// UpdateExam edits exam metadata
// PUT /exams/:id
func (h *ExamHandler) UpdateExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Updating exam", "exam_id", examID)

	var req validator.ExamUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	exam, err := h.examService.Update(c.Request.Context(), examID, &req, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exam updated successfully",
		Data:    exam,
	})
}

// DeleteExam removes an exam
// DELETE /exams/:id
func (h *ExamHandler) DeleteExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Deleting exam", "exam_id", examID)

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	if err := h.examService.Delete(c.Request.Context(), examID, userID, role); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exam deleted successfully",
	})
}

// ===== QUESTION AUTHORING =====

// CreateQuestion adds a question to an exam
// POST /exams/:id/questions
func (h *ExamHandler) CreateQuestion(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Creating question", "exam_id", examID)

	var req validator.QuestionCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	question, err := h.questionService.Create(c.Request.Context(), examID, &req, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, SuccessResponse{
		Message: "Question created successfully",
		Data:    question,
	})
}

// ReplaceQuestions swaps an exam's entire question set in one save
// PUT /exams/:id/questions
func (h *ExamHandler) ReplaceQuestions(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Replacing exam questions", "exam_id", examID)

	var req validator.QuestionReplaceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	questions, err := h.questionService.ReplaceForExam(c.Request.Context(), examID, req.Questions, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions replaced successfully",
		Data:    questions,
	})
}

// ListQuestions lists an exam's questions, correctness included
// GET /exams/:id/questions
func (h *ExamHandler) ListQuestions(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Listing questions", "exam_id", examID)

	questions, err := h.questionService.ListByExam(c.Request.Context(), examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Questions retrieved successfully",
		Data:    questions,
	})
}

// UpdateQuestion edits a question
// PUT /questions/:id
func (h *ExamHandler) UpdateQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	h.LogRequest(c, "Updating question", "question_id", questionID)

	var req validator.QuestionUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	question, err := h.questionService.Update(c.Request.Context(), questionID, &req, userID, role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question updated successfully",
		Data:    question,
	})
}

// DeleteQuestion removes a question and refreshes the exam total
// DELETE /questions/:id
func (h *ExamHandler) DeleteQuestion(c *gin.Context) {
	questionID := h.parseIDParam(c, "id")
	if questionID == 0 {
		return
	}

	h.LogRequest(c, "Deleting question", "question_id", questionID)

	userID, ok := h.caller(c)
	if !ok {
		return
	}
	role, _ := GetUserRoleFromContext(c)

	if err := h.questionService.Delete(c.Request.Context(), questionID, userID, role); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Question deleted successfully",
	})
}
