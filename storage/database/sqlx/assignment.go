package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/assignment"
)

const assignmentColumns = `id, learner_id, course_id, title, status, due_at, submitted_at, created_at`

type assignmentRow struct {
	ID          string      `db:"id"`
	LearnerID   string      `db:"learner_id"`
	CourseID    null.String `db:"course_id"`
	Title       string      `db:"title"`
	Status      string      `db:"status"`
	DueAt       null.Time   `db:"due_at"`
	SubmittedAt null.Time   `db:"submitted_at"`
	CreatedAt   time.Time   `db:"created_at"`
}

func boilAssignment(a assignment.Assignment) assignmentRow {
	return assignmentRow{
		ID:          a.ID,
		LearnerID:   a.LearnerID,
		CourseID:    null.NewString(a.CourseID, a.CourseID != ""),
		Title:       a.Title,
		Status:      string(a.Status),
		DueAt:       a.DueAt,
		SubmittedAt: a.SubmittedAt,
		CreatedAt:   a.CreatedAt,
	}
}

func (row assignmentRow) unboil() assignment.Assignment {
	return assignment.Assignment{
		ID:          row.ID,
		LearnerID:   row.LearnerID,
		CourseID:    row.CourseID.String,
		Title:       row.Title,
		Status:      assignment.Status(row.Status),
		DueAt:       utcTime(row.DueAt),
		SubmittedAt: utcTime(row.SubmittedAt),
		CreatedAt:   row.CreatedAt.UTC(),
	}
}

type assignmentRepository struct {
	db core.DB
}

var _ assignment.Repository = (*assignmentRepository)(nil) // interface compliance check

func NewAssignmentRepository(db core.DB) assignment.Repository {
	return &assignmentRepository{db: db}
}

func (repo *assignmentRepository) CreateAssignment(ctx context.Context, a assignment.Assignment) (assignment.Assignment, error) {
	q := `INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (:id, :learner_id, :course_id, :title, :status, :due_at, :submitted_at, :created_at)`
	if _, err := namedExec(ctx, repo.db, q, boilAssignment(a)); err != nil {
		return assignment.Assignment{}, wrapDBErr(err, "inserting assignment")
	}
	return a, nil
}

func (repo *assignmentRepository) GetAssignment(ctx context.Context, id string) (assignment.Assignment, error) {
	var row assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return assignment.Assignment{}, assignment.ErrNotFound
		}
		return assignment.Assignment{}, wrapDBErr(err, "selecting assignment")
	}
	return row.unboil(), nil
}

func (repo *assignmentRepository) ListAssignments(ctx context.Context, learnerID string) ([]assignment.Assignment, error) {
	var rows []assignmentRow
	q := `SELECT ` + assignmentColumns + ` FROM assignments WHERE learner_id = $1 ORDER BY created_at, id`
	if err := repo.db.SelectContext(ctx, &rows, q, learnerID); err != nil {
		return nil, wrapDBErr(err, "selecting assignments")
	}
	list := make([]assignment.Assignment, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.unboil())
	}
	return list, nil
}

// SubmitAssignment only writes while the row is still pending, so concurrent submits keep the first time.
func (repo *assignmentRepository) SubmitAssignment(ctx context.Context, id, learnerID string, at time.Time) (assignment.Assignment, error) {
	var row assignmentRow
	q := `UPDATE assignments SET status = $4, submitted_at = $5
		WHERE id = $1 AND learner_id = $2 AND status = $3
		RETURNING ` + assignmentColumns
	err := repo.db.GetContext(ctx, &row, q, id, learnerID, string(assignment.StatusPending), string(assignment.StatusSubmitted), at)
	if err == nil {
		return row.unboil(), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return assignment.Assignment{}, wrapDBErr(err, "submitting assignment")
	}

	// missing, someone else's, or submitted already
	a, err := repo.GetAssignment(ctx, id)
	if err != nil {
		return assignment.Assignment{}, err
	}
	if a.LearnerID != learnerID {
		return assignment.Assignment{}, assignment.ErrNotFound
	}
	return a, nil
}
