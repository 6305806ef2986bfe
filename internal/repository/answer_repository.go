package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fourset-checker/internal/models"
)

// AnswerRepository reads raw submissions written by the two ingestion collaborators.
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository constructs an AnswerRepository.
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// ListByStudent returns every submission of one source for a student, oldest first.
func (r *AnswerRepository) ListByStudent(ctx context.Context, source models.Source, studentID string) ([]models.SourceSubmission, error) {
	const query = `SELECT submission_id, source, student_id, grade, submitted_at, payload
        FROM source_submissions
        WHERE source = $1 AND student_id = $2
        ORDER BY submitted_at ASC, submission_id ASC`
	var subs []models.SourceSubmission
	if err := r.db.SelectContext(ctx, &subs, query, string(source), studentID); err != nil {
		return nil, fmt.Errorf("list %s submissions for %s: %w", source, studentID, err)
	}
	return subs, nil
}

// Save upserts a submission. Re-ingesting the same submission replaces it.
func (r *AnswerRepository) Save(ctx context.Context, sub models.SourceSubmission) error {
	const query = `INSERT INTO source_submissions (submission_id, source, student_id, grade, submitted_at, payload)
        VALUES (:submission_id, :source, :student_id, :grade, :submitted_at, :payload)
        ON CONFLICT (source, submission_id) DO UPDATE SET
            student_id = EXCLUDED.student_id,
            grade = EXCLUDED.grade,
            submitted_at = EXCLUDED.submitted_at,
            payload = EXCLUDED.payload`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("save submission %s/%s: %w", sub.Source, sub.SubmissionID, err)
	}
	return nil
}
