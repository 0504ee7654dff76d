package services

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/learnsphere/exam-service/internal/models"
	"github.com/learnsphere/exam-service/internal/repositories"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

type exportService struct {
	repo   repositories.Repository
	db     *gorm.DB
	logger *slog.Logger
}

func NewExportService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger) ExportService {
	return &exportService{
		repo:   repo,
		db:     db,
		logger: logger,
	}
}

// ExportHistory renders the submitted-attempt history matching filters as a
// spreadsheet, one row per attempt.
func (s *exportService) ExportHistory(ctx context.Context, filters repositories.HistoryFilters) (*excelize.File, error) {
	status := models.AttemptSubmitted
	filters.Status = &status
	if filters.Limit <= 0 {
		filters.Limit = 10000
	}
	if filters.SortBy == "" {
		filters.SortBy = "submitted_at"
	}

	attempts, _, err := s.repo.Attempt().ListAll(ctx, s.db, filters)
	if err != nil {
		return nil, fmt.Errorf("failed to load attempts for export: %w", err)
	}

	f := excelize.NewFile()
	sheetName := "Attempt History"

	index, err := f.NewSheet(sheetName)
	if err != nil {
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	headers := []string{
		"User ID", "Exam ID", "Course ID", "Attempt", "Achieved Score",
		"Total Score", "Percentage", "Result", "Started At", "Submitted At",
	}
	for i, header := range headers {
		cell := fmt.Sprintf("%c1", 'A'+i)
		f.SetCellValue(sheetName, cell, header)
	}

	for rowIndex, attempt := range attempts {
		result := "Fail"
		if attemptPassed(attempt) {
			result = "Pass"
		}
		submittedAt := ""
		if attempt.SubmittedAt != nil {
			submittedAt = attempt.SubmittedAt.Format("2006-01-02 15:04:05")
		}

		row := []interface{}{
			attempt.UserID,
			attempt.ExamID,
			attempt.CourseID,
			attempt.AttemptNumber,
			attempt.AchievedScore,
			attempt.TotalScore,
			fmt.Sprintf("%.1f%%", attempt.Percentage()),
			result,
			attempt.StartedAt.Format("2006-01-02 15:04:05"),
			submittedAt,
		}
		for colIndex, value := range row {
			cell := fmt.Sprintf("%c%d", 'A'+colIndex, rowIndex+2)
			f.SetCellValue(sheetName, cell, value)
		}
	}

	s.logger.Info("Exported attempt history", "rows", len(attempts))
	return f, nil
}
