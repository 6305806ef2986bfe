package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/pkg/cache"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
	"github.com/noah-isme/fourset-checker/pkg/export"
)

// ConflictExport is a rendered conflict report ready to be served.
type ConflictExport struct {
	Filename    string
	ContentType string
	Body        []byte
}

// ConflictReportService reads and exports the conflict logs written by merges.
type ConflictReportService struct {
	cache     *CacheService
	keyPrefix string
	renderers map[string]export.Renderer
}

// NewConflictReportService constructs a ConflictReportService with CSV and PDF renderers.
func NewConflictReportService(cache *CacheService, keyPrefix string) *ConflictReportService {
	return &ConflictReportService{
		cache:     cache,
		keyPrefix: keyPrefix,
		renderers: map[string]export.Renderer{
			"csv": export.NewCSVRenderer(),
			"pdf": export.NewPDFRenderer(),
		},
	}
}

// Get loads the conflict log of the latest merge for a student in a grade.
func (s *ConflictReportService) Get(ctx context.Context, grade, studentID string) (*models.ConflictReport, error) {
	var report models.ConflictReport
	found, err := s.cache.Get(ctx, cache.NewKeyspace(s.keyPrefix, grade).Conflicts(studentID), &report)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("no conflict report for student %s in grade %s", studentID, grade))
	}
	return &report, nil
}

// Export renders a report in the requested format (csv or pdf).
func (s *ConflictReportService) Export(report *models.ConflictReport, format string) (*ConflictExport, error) {
	renderer, ok := s.renderers[strings.ToLower(format)]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}
	body, err := renderer.Render(conflictDataset(report))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render conflict report")
	}
	return &ConflictExport{
		Filename:    fmt.Sprintf("conflicts_%s_%s.%s", filenameSafe.Replace(report.Grade), filenameSafe.Replace(report.StudentID), renderer.Extension()),
		ContentType: renderer.ContentType(),
		Body:        body,
	}, nil
}

var filenameSafe = strings.NewReplacer("/", "-", "\\", "-", " ", "_", "\"", "")

func conflictDataset(report *models.ConflictReport) export.Dataset {
	rows := make([]map[string]string, 0, len(report.Conflicts))
	for _, c := range report.Conflicts {
		chosen := c.PrimaryValue
		if c.Resolution == models.ResolutionSecondaryWins || c.Resolution == models.ResolutionSecondaryOverride {
			chosen = c.SecondaryValue
		}
		rows = append(rows, map[string]string{
			"question":   c.QuestionID,
			"primary":    c.PrimaryValue,
			"secondary":  c.SecondaryValue,
			"resolution": string(c.Resolution),
			"chosen":     chosen,
		})
	}
	return export.Dataset{
		Title: "Merge conflicts",
		Notes: []string{
			fmt.Sprintf("student %s, grade %s", report.StudentID, report.Grade),
			fmt.Sprintf("merged at %s", report.MergedAt.Format("2006-01-02 15:04:05 MST")),
		},
		Headers: []string{"question", "primary", "secondary", "resolution", "chosen"},
		Rows:    rows,
	}
}
