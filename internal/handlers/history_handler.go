package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
)

// HistoryHandler serves paginated attempt history and spreadsheet exports.
type HistoryHandler struct {
	BaseHandler
	sessionService services.ExamSessionService
	exportService  services.ExportService
}

func NewHistoryHandler(
	sessionService services.ExamSessionService,
	exportService services.ExportService,
	logger utils.Logger,
) *HistoryHandler {
	return &HistoryHandler{
		BaseHandler:    NewBaseHandler(logger),
		sessionService: sessionService,
		exportService:  exportService,
	}
}

// GetHistory returns the caller's submitted attempts
// GET /exam-history
func (h *HistoryHandler) GetHistory(c *gin.Context) {
	h.LogRequest(c, "Getting attempt history")

	userID, err := GetUserIDFromContext(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, ErrorResponse{
			Message: "User not authenticated",
		})
		return
	}

	page, err := h.sessionService.History(c.Request.Context(), userID, h.parseHistoryFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt history retrieved successfully",
		Data:    page,
	})
}

// GetHistoryAll returns attempts across every user; admin only (enforced in
// the router)
// GET /exam-history/all
func (h *HistoryHandler) GetHistoryAll(c *gin.Context) {
	h.LogRequest(c, "Getting full attempt history")

	page, err := h.sessionService.HistoryAll(c.Request.Context(), h.parseHistoryFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "Attempt history retrieved successfully",
		Data:    page,
	})
}

// ExportHistory streams attempt history as an xlsx workbook; admin only
// GET /exam-history/export
func (h *HistoryHandler) ExportHistory(c *gin.Context) {
	h.LogRequest(c, "Exporting attempt history")

	file, err := h.exportService.ExportHistory(c.Request.Context(), h.parseHistoryFilters(c))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	filename := fmt.Sprintf("attempt-history-%s.xlsx", time.Now().UTC().Format("2006-01-02"))
	c.Header("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))

	if err := file.Write(c.Writer); err != nil {
		h.LogError(c, err, "Failed to stream export")
	}
}

func (h *HistoryHandler) parseHistoryFilters(c *gin.Context) repositories.HistoryFilters {
	page := h.parseIntQuery(c, "page", 1)
	if page < 1 {
		page = 1
	}
	size := h.parseIntQuery(c, "size", 20)

	filters := repositories.HistoryFilters{
		Limit:     size,
		Offset:    (page - 1) * size,
		SortBy:    c.DefaultQuery("sort_by", "submitted_at"),
		SortOrder: c.DefaultQuery("sort_order", "desc"),
	}

	if examID := h.parseIntQuery(c, "exam_id", 0); examID > 0 {
		id := uint(examID)
		filters.ExamID = &id
	}
	if courseID := h.parseIntQuery(c, "course_id", 0); courseID > 0 {
		id := uint(courseID)
		filters.CourseID = &id
	}
	if status := c.Query("status"); status != "" {
		attemptStatus := models.AttemptStatus(status)
		filters.Status = &attemptStatus
	}

	return filters
}
