package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

// SessionHandler exposes the attempt lifecycle: resume-or-create, submit,
// and the latest result.
type SessionHandler struct {
	BaseHandler
	sessionService services.ExamSessionService
	validator      *validator.Validator
}

func NewSessionHandler(
	sessionService services.ExamSessionService,
	validator *validator.Validator,
	logger utils.Logger,
) *SessionHandler {
	return &SessionHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		validator:      validator,
	}
}

// GetActiveExam resumes the caller's in-progress attempt or starts a new one
// GET /exams/:id/active
func (h *SessionHandler) GetActiveExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Resolving active exam attempt", "exam_id", examID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	view, err := h.sessionService.GetOrCreateActive(c.Request.Context(), userID, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Active attempt ready",
		Data:    view,
	})
}

// SubmitExam grades and finalizes the caller's in-progress attempt
// POST /exams/:id/submit
func (h *SessionHandler) SubmitExam(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Submitting exam attempt", "exam_id", examID)

	var req validator.SubmitAttemptRequest
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

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	result, err := h.sessionService.Submit(c.Request.Context(), userID, examID, req.AttemptNumber, req.Answers)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt submitted successfully",
		Data:    result,
	})
}

// GetExamStatus returns the caller's latest submitted result for an exam
// GET /exams/:id/status
func (h *SessionHandler) GetExamStatus(c *gin.Context) {
	examID := h.parseIDParam(c, "id")
	if examID == 0 {
		return
	}

	h.LogRequest(c, "Getting exam status", "exam_id", examID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	status, err := h.sessionService.GetStatus(c.Request.Context(), userID, examID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Exam status retrieved successfully",
		Data:    status,
	})
}
