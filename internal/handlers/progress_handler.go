package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

// ProgressHandler exposes course completion tracking.
type ProgressHandler struct {
	BaseHandler
	progressService services.ProgressService
	validator       *validator.Validator
}

func NewProgressHandler(
	progressService services.ProgressService,
	validator *validator.Validator,
	logger utils.Logger,
) *ProgressHandler {
	return &ProgressHandler{
		BaseHandler:     NewBaseHandler(logger),
		progressService: progressService,
		validator:       validator,
	}
}

// MarkItemCompleted records one finished lesson or exam for the caller
// POST /courses/:id/progress
func (h *ProgressHandler) MarkItemCompleted(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}

	h.LogRequest(c, "Marking course item completed", "course_id", courseID)

	var req validator.MarkItemCompletedRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	req.CourseID = courseID

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

	result, err := h.progressService.MarkItemCompleted(c.Request.Context(), userID, courseID, services.CompletionItem{
		Type: models.CompletionItemType(req.ItemType),
		ID:   req.ItemID,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Item marked completed",
		Data:    result,
	})
}

// GetProgress lists completion records for a user in a course. Students may
// only read their own; teachers and admins may pass ?user_id=.
// GET /courses/:id/progress
func (h *ProgressHandler) GetProgress(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}

	h.LogRequest(c, "Getting course progress", "course_id", courseID)

	callerID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}
	callerRole, err := GetUserRoleFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	records, err := h.progressService.GetProgress(c.Request.Context(), callerID, callerRole, c.Query("user_id"), courseID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Course progress retrieved successfully",
		Data:    records,
	})
}

// Unenroll purges the caller's attempts, completions, and progress for a
// course. Attempt numbering restarts on re-enrollment.
// DELETE /courses/:id/enrollment
func (h *ProgressHandler) Unenroll(c *gin.Context) {
	courseID := h.parseIDParam(c, "id")
	if courseID == 0 {
		return
	}

	h.LogRequest(c, "Unenrolling from course", "course_id", courseID)

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	if err := h.progressService.PurgeUserCourse(c.Request.Context(), userID, courseID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Course data removed",
	})
}
