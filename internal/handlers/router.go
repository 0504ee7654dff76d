package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/learnsphere/exam-service/internal/config"
	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/learnsphere/exam-service/internal/services"
	"github.com/learnsphere/exam-service/internal/utils"
	"github.com/learnsphere/exam-service/internal/validator"
)

type HandlerManager struct {
	sessionHandler  *SessionHandler
	examHandler     *ExamHandler
	progressHandler *ProgressHandler
	historyHandler  *HistoryHandler
	authMiddleware  *CasdoorAuthMiddleware
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	casdoorConfig config.CasdoorConfig,
	userRepo repositories.UserRepository,
) *HandlerManager {
	authMiddleware := NewCasdoorAuthMiddleware(casdoorConfig, userRepo)

	return &HandlerManager{
		sessionHandler:  NewSessionHandler(serviceManager.Session(), validator, logger),
		examHandler:     NewExamHandler(serviceManager.Exam(), serviceManager.Question(), validator, logger),
		progressHandler: NewProgressHandler(serviceManager.Progress(), validator, logger),
		historyHandler:  NewHistoryHandler(serviceManager.Session(), serviceManager.Export(), logger),
		authMiddleware:  authMiddleware,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")
	v1.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Exam taking - all authenticated users
		exams := v1.Group("/exams")
		{
			exams.GET("/:id/active", hm.sessionHandler.GetActiveExam)
			exams.POST("/:id/submit", hm.sessionHandler.SubmitExam)
			exams.GET("/:id/status", hm.sessionHandler.GetExamStatus)

			// Exam authoring - teachers and admins
			exams.GET("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.GetExam)
			exams.PUT("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.UpdateExam)
			exams.DELETE("/:id", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.DeleteExam)
			exams.POST("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.CreateQuestion)
			exams.GET("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.ListQuestions)
			exams.PUT("/:id/questions", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.ReplaceQuestions)
		}

		// Section-scoped exam authoring
		sections := v1.Group("/sections")
		{
			sections.GET("/:id/exams", hm.examHandler.ListExams)
			sections.POST("/:id/exams", hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin), hm.examHandler.CreateExam)
		}

		// Question authoring
		questions := v1.Group("/questions")
		questions.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleTeacher, models.RoleAdmin))
		{
			questions.PUT("/:id", hm.examHandler.UpdateQuestion)
			questions.DELETE("/:id", hm.examHandler.DeleteQuestion)
		}

		// Course progress
		courses := v1.Group("/courses")
		{
			courses.POST("/:id/progress", hm.progressHandler.MarkItemCompleted)
			courses.GET("/:id/progress", hm.progressHandler.GetProgress)
			courses.DELETE("/:id/enrollment", hm.progressHandler.Unenroll)
		}

		// Attempt history
		history := v1.Group("/exam-history")
		{
			history.GET("", hm.historyHandler.GetHistory)
			history.GET("/all", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.historyHandler.GetHistoryAll)
			history.GET("/export", hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin), hm.historyHandler.ExportHistory)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
