package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/fourset-checker/internal/models"
	appErrors "github.com/noah-isme/fourset-checker/pkg/errors"
)

// RosterRepository maps students onto classes, schools, groups and districts.
type RosterRepository struct {
	db *sqlx.DB
}

// NewRosterRepository constructs a RosterRepository.
func NewRosterRepository(db *sqlx.DB) *RosterRepository {
	return &RosterRepository{db: db}
}

const rosterSelect = `SELECT st.id AS student_id, st.gender, st.class_id, c.school_id, sc.group_no, sc.district
        FROM students st
        JOIN classes c ON c.id = st.class_id
        JOIN schools sc ON sc.id = c.school_id`

// FindStudent returns the placement of one student.
func (r *RosterRepository) FindStudent(ctx context.Context, studentID string) (*models.RosterStudent, error) {
	var student models.RosterStudent
	if err := r.db.GetContext(ctx, &student, rosterSelect+" WHERE st.id = $1", studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("student %s is not on the roster", studentID))
		}
		return nil, fmt.Errorf("find roster student %s: %w", studentID, err)
	}
	return &student, nil
}

// ListStudents returns the full roster ordered by class then student.
func (r *RosterRepository) ListStudents(ctx context.Context) ([]models.RosterStudent, error) {
	var students []models.RosterStudent
	if err := r.db.SelectContext(ctx, &students, rosterSelect+" ORDER BY st.class_id, st.id"); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return students, nil
}

// ListClassStudents returns the IDs of every student enrolled in a class.
func (r *RosterRepository) ListClassStudents(ctx context.Context, classID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM students WHERE class_id = $1 ORDER BY id", classID); err != nil {
		return nil, fmt.Errorf("list students of class %s: %w", classID, err)
	}
	return ids, nil
}

// ListSchoolClasses returns the IDs of every class of a school.
func (r *RosterRepository) ListSchoolClasses(ctx context.Context, schoolID string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM classes WHERE school_id = $1 ORDER BY id", schoolID); err != nil {
		return nil, fmt.Errorf("list classes of school %s: %w", schoolID, err)
	}
	return ids, nil
}

// ListGroupSchools returns the IDs of every school in a group.
func (r *RosterRepository) ListGroupSchools(ctx context.Context, group int) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM schools WHERE group_no = $1 ORDER BY id", group); err != nil {
		return nil, fmt.Errorf("list schools of group %d: %w", group, err)
	}
	return ids, nil
}

// ListDistrictSchools returns the IDs of every school in a district.
func (r *RosterRepository) ListDistrictSchools(ctx context.Context, district string) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, "SELECT id FROM schools WHERE district = $1 ORDER BY id", district); err != nil {
		return nil, fmt.Errorf("list schools of district %s: %w", district, err)
	}
	return ids, nil
}

// ListSchools returns every school with its placement.
func (r *RosterRepository) ListSchools(ctx context.Context) ([]models.RosterSchool, error) {
	var schools []models.RosterSchool
	if err := r.db.SelectContext(ctx, &schools, "SELECT id, name, group_no, district FROM schools ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list schools: %w", err)
	}
	return schools, nil
}

// ListClasses returns every class.
func (r *RosterRepository) ListClasses(ctx context.Context) ([]models.RosterClass, error) {
	var classes []models.RosterClass
	if err := r.db.SelectContext(ctx, &classes, "SELECT id, school_id, name FROM classes ORDER BY id"); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}
