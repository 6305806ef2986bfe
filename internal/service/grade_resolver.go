package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/fourset-checker/internal/models"
)

// GradeResolver assigns the assessment-cycle label a record is merged under.
type GradeResolver interface {
	Resolve(record models.AnswerRecord) string
}

// SchoolYearResolver labels records by the school year of their submission,
// e.g. "2024-25" for anything submitted from August 2024 to July 2025. A label
// already present on the record wins.
type SchoolYearResolver struct {
	startMonth time.Month
}

// NewSchoolYearResolver returns a resolver whose school year begins on startMonth.
func NewSchoolYearResolver(startMonth time.Month) *SchoolYearResolver {
	if startMonth < time.January || startMonth > time.December {
		startMonth = time.August
	}
	return &SchoolYearResolver{startMonth: startMonth}
}

func (r *SchoolYearResolver) Resolve(record models.AnswerRecord) string {
	if record.Grade != "" {
		return record.Grade
	}
	if record.SubmittedAt.IsZero() {
		return ""
	}
	year := record.SubmittedAt.Year()
	if record.SubmittedAt.Month() < r.startMonth {
		year--
	}
	return fmt.Sprintf("%d-%02d", year, (year+1)%100)
}
