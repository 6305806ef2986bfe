package models

import (
	"strings"
	"time"
)

// Source identifies the collection pipeline an answer came from.
type Source string

const (
	// SourcePrimary is the form-upload pipeline.
	SourcePrimary Source = "primary"
	// SourceSecondary is the web-survey platform.
	SourceSecondary Source = "secondary"
)

// Valid reports whether s is one of the two known sources.
func (s Source) Valid() bool {
	return s == SourcePrimary || s == SourceSecondary
}

// AnswerRecord is one answer of one submission. Value is always a plain string.
type AnswerRecord struct {
	QuestionID   string    `json:"question_id"`
	Value        string    `json:"value"`
	Source       Source    `json:"source"`
	SubmittedAt  time.Time `json:"submitted_at"`
	SubmissionID string    `json:"submission_id"`
	// Grade is stamped by the merger with the partition the record was placed in.
	// A collaborator may pre-set it; the merger then refuses to move the record.
	Grade string `json:"grade,omitempty"`
}

// Answered reports whether the record carries a non-blank value.
func (r AnswerRecord) Answered() bool {
	return strings.TrimSpace(r.Value) != ""
}

// Resolution names how a conflicting question was settled.
type Resolution string

const (
	ResolutionPrimaryWins       Resolution = "primary-wins"
	ResolutionSecondaryWins     Resolution = "secondary-wins"
	ResolutionPrimaryOverride   Resolution = "primary-override"
	ResolutionSecondaryOverride Resolution = "secondary-override"
)

// Conflict records a question for which both sources gave different non-empty values.
type Conflict struct {
	QuestionID     string     `json:"question_id"`
	PrimaryValue   string     `json:"primary_value"`
	SecondaryValue string     `json:"secondary_value"`
	Resolution     Resolution `json:"resolution"`
}

// MergedAnswerSet is the canonical answer set of one student for one grade.
type MergedAnswerSet struct {
	StudentID string                  `json:"student_id"`
	Grade     string                  `json:"grade"`
	Answers   map[string]AnswerRecord `json:"answers"`
	Conflicts []Conflict              `json:"conflicts"`
}

// Value returns the trimmed answer for a question and whether it is answered.
func (m MergedAnswerSet) Value(questionID string) (string, bool) {
	rec, ok := m.Answers[questionID]
	if !ok || !rec.Answered() {
		return "", false
	}
	return strings.TrimSpace(rec.Value), true
}

// ConflictReport is the persisted conflict log of the latest merge run.
type ConflictReport struct {
	StudentID string     `json:"student_id"`
	Grade     string     `json:"grade"`
	Conflicts []Conflict `json:"conflicts"`
	MergedAt  time.Time  `json:"merged_at"`
}

// SourceSubmission is one raw submission as stored by an ingestion collaborator.
// Payload maps question IDs to values of whatever shape the source produced.
type SourceSubmission struct {
	SubmissionID string    `db:"submission_id" json:"submission_id"`
	Source       Source    `db:"source" json:"source"`
	StudentID    string    `db:"student_id" json:"student_id"`
	Grade        string    `db:"grade" json:"grade,omitempty"`
	SubmittedAt  time.Time `db:"submitted_at" json:"submitted_at"`
	Payload      []byte    `db:"payload" json:"payload"`
}
