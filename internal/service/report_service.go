package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/thdev-org/marks-daybook/internal/models"
	"github.com/thdev-org/marks-daybook/pkg/config"
	apperrors "github.com/thdev-org/marks-daybook/pkg/errors"
	"github.com/thdev-org/marks-daybook/pkg/export"
)

type gradeLister interface {
	ListByUser(ctx context.Context, userID string, filter models.GradeFilter) ([]models.Grade, error)
}

type subjectLister interface {
	ListByUser(ctx context.Context, userID string) ([]models.Subject, error)
}

// ReportService renders a user's grade history to a file in the configured
// reports directory.
type ReportService struct {
	grades   gradeLister
	subjects subjectLister
	csv      *export.CSVExporter
	pdf      *export.PDFExporter
	cfg      config.ReportsConfig
	logger   *zap.Logger
	now      func() time.Time
}

// NewReportService constructs ReportService.
func NewReportService(grades gradeLister, subjects subjectLister, cfg config.ReportsConfig, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		grades:   grades,
		subjects: subjects,
		csv:      export.NewCSVExporter(),
		pdf:      export.NewPDFExporter(),
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
	}
}

// Export writes the user's full grade listing to the storage directory and
// returns the file name. Returns NotFound when the user has no grades yet.
func (s *ReportService) Export(ctx context.Context, userID string) (string, error) {
	grades, err := s.grades.ListByUser(ctx, userID, models.GradeFilter{})
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to list grades")
	}
	if len(grades) == 0 {
		return "", apperrors.Clone(apperrors.ErrNotFound, "no grades to export")
	}

	subjects, err := s.subjects.ListByUser(ctx, userID)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to list subjects")
	}
	names := make(map[string]string, len(subjects))
	for _, subject := range subjects {
		names[subject.ID] = subject.Name
	}

	report := export.Report{
		Title:   "Grade Report",
		Headers: []string{"Subject", "Value", "Type", "Date"},
	}
	for _, grade := range grades {
		name := names[grade.SubjectID]
		if name == "" {
			name = "Unknown"
		}
		report.Rows = append(report.Rows, []string{
			name,
			fmt.Sprintf("%d", grade.Value),
			grade.GradeType,
			grade.Date.Format("2006-01-02"),
		})
	}

	var payload []byte
	ext := s.cfg.Format
	switch ext {
	case "pdf":
		payload, err = s.pdf.Render(report)
	default:
		ext = "csv"
		payload, err = s.csv.Render(report)
	}
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to render report")
	}

	if err := os.MkdirAll(s.cfg.StorageDir, 0o755); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to create reports directory")
	}
	name := fmt.Sprintf("grades_%s_%s.%s", userID, s.now().Format("20060102_150405"), ext)
	path := filepath.Join(s.cfg.StorageDir, name)
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrInternal.Code, "failed to write report")
	}

	s.logger.Info("report exported",
		zap.String("user_id", userID),
		zap.String("file", name),
		zap.Int("grades", len(grades)),
	)
	return name, nil
}
