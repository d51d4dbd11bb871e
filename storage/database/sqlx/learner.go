package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
)

const learnerColumns = `id, name, email, role, manager_id, is_active,
	readiness_score, readiness_score_quiz_count, readiness_score_updated_at, readiness_version,
	created_at, updated_at`

var learnerOrderings = map[string]string{
	"name":            "name",
	"email":           "email",
	"readiness_score": "readiness_score",
	"created_at":      "created_at",
}

type learnerRow struct {
	ID             string      `db:"id"`
	Name           string      `db:"name"`
	Email          string      `db:"email"`
	Role           string      `db:"role"`
	ManagerID      null.String `db:"manager_id"`
	IsActive       bool        `db:"is_active"`
	Score          float64     `db:"readiness_score"`
	QuizCount      int         `db:"readiness_score_quiz_count"`
	ScoreUpdatedAt null.Time   `db:"readiness_score_updated_at"`
	Version        int         `db:"readiness_version"`
	CreatedAt      time.Time   `db:"created_at"`
	UpdatedAt      time.Time   `db:"updated_at"`
}

func boilLearner(l learner.Learner) learnerRow {
	return learnerRow{
		ID:             l.ID,
		Name:           l.Name,
		Email:          l.Email,
		Role:           l.Role,
		ManagerID:      l.ManagerID,
		IsActive:       l.IsActive,
		Score:          l.ReadinessScore,
		QuizCount:      l.ReadinessScoreQuizCount,
		ScoreUpdatedAt: l.ReadinessScoreUpdatedAt,
		CreatedAt:      l.CreatedAt,
		UpdatedAt:      l.UpdatedAt,
	}
}

func (row learnerRow) unboil() learner.Learner {
	return learner.Learner{
		ID:                      row.ID,
		Name:                    row.Name,
		Email:                   row.Email,
		Role:                    row.Role,
		ManagerID:               row.ManagerID,
		IsActive:                row.IsActive,
		ReadinessScore:          row.Score,
		ReadinessScoreQuizCount: row.QuizCount,
		ReadinessScoreUpdatedAt: utcTime(row.ScoreUpdatedAt),
		CreatedAt:               row.CreatedAt.UTC(),
		UpdatedAt:               row.UpdatedAt.UTC(),
	}
}

type learnerRepository struct {
	db core.DB
}

var _ learner.Repository = (*learnerRepository)(nil) // interface compliance check

func NewLearnerRepository(db core.DB) learner.Repository {
	return &learnerRepository{db: db}
}

func (repo *learnerRepository) CreateLearner(ctx context.Context, l learner.Learner) (learner.Learner, error) {
	q := `INSERT INTO learners (` + learnerColumns + `)
		VALUES (:id, :name, :email, :role, :manager_id, :is_active,
			:readiness_score, :readiness_score_quiz_count, :readiness_score_updated_at, :readiness_version,
			:created_at, :updated_at)`
	if _, err := namedExec(ctx, repo.db, q, boilLearner(l)); err != nil {
		if pqCode(err) == uniqueViolation {
			return learner.Learner{}, learner.ErrEmailExists
		}
		return learner.Learner{}, wrapDBErr(err, "inserting learner")
	}
	return l, nil
}

func (repo *learnerRepository) getBy(ctx context.Context, column, value string) (learner.Learner, error) {
	var row learnerRow
	q := `SELECT ` + learnerColumns + ` FROM learners WHERE ` + column + ` = $1`
	if err := repo.db.GetContext(ctx, &row, q, value); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return learner.Learner{}, learner.ErrNotFound
		}
		return learner.Learner{}, wrapDBErr(err, "selecting learner")
	}
	return row.unboil(), nil
}

func (repo *learnerRepository) GetLearner(ctx context.Context, id string) (learner.Learner, error) {
	return repo.getBy(ctx, "id", id)
}

func (repo *learnerRepository) GetLearnerByEmail(ctx context.Context, email string) (learner.Learner, error) {
	return repo.getBy(ctx, "email", email)
}

func (repo *learnerRepository) QueryLearners(ctx context.Context, filter *learner.QueryFilter, ordering []core.DBOrdering) ([]learner.Learner, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("(name ILIKE ? OR email ILIKE ?)", likePattern(filter.Search))
		}
		if len(filter.Roles) > 0 {
			w.add("role = ANY(?)", pq.Array(filter.Roles))
		}
		if filter.ManagerID != "" {
			w.add("manager_id = ?", filter.ManagerID)
		}
		if filter.IsActive != nil {
			w.add("is_active = ?", *filter.IsActive)
		}
	}
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}

	q := `SELECT ` + learnerColumns + ` FROM learners` + w.String() + orderBy(ordering, learnerOrderings, "id ASC")
	var rows []learnerRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, wrapDBErr(err, "selecting learners")
	}
	learners := make([]learner.Learner, 0, len(rows))
	for _, row := range rows {
		learners = append(learners, row.unboil())
	}
	return learners, nil
}

// UpdateLearner leaves the rolling quiz average alone; only the quiz repository writes it.
func (repo *learnerRepository) UpdateLearner(ctx context.Context, l learner.Learner) (learner.Learner, error) {
	var row learnerRow
	q := `UPDATE learners SET name = $2, role = $3, manager_id = $4, is_active = $5, updated_at = $6
		WHERE id = $1 RETURNING ` + learnerColumns
	err := repo.db.GetContext(ctx, &row, q, l.ID, l.Name, l.Role, l.ManagerID, l.IsActive, l.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return learner.Learner{}, learner.ErrNotFound
		}
		return learner.Learner{}, wrapDBErr(err, "updating learner")
	}
	return row.unboil(), nil
}
