package sqlxrepos

import (
	"context"
	"database/sql"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/quizscore"
)

const rollingAverageColumns = `id, readiness_score, readiness_score_quiz_count, readiness_score_updated_at, readiness_version`

type rollingAverageRow struct {
	LearnerID string    `db:"id"`
	Score     float64   `db:"readiness_score"`
	QuizCount int       `db:"readiness_score_quiz_count"`
	UpdatedAt null.Time `db:"readiness_score_updated_at"`
	Version   int       `db:"readiness_version"`
}

func (row rollingAverageRow) unboil() quizscore.RollingAverage {
	return quizscore.RollingAverage{
		LearnerID: row.LearnerID,
		Score:     row.Score,
		QuizCount: row.QuizCount,
		UpdatedAt: utcTime(row.UpdatedAt),
		Version:   row.Version,
	}
}

type quizScoreRepository struct {
	db core.DB
}

var _ quizscore.Repository = (*quizScoreRepository)(nil) // interface compliance check

func NewQuizScoreRepository(db core.DB) quizscore.Repository {
	return &quizScoreRepository{db: db}
}

func (repo *quizScoreRepository) GetRollingAverage(ctx context.Context, learnerID string) (quizscore.RollingAverage, error) {
	var row rollingAverageRow
	q := `SELECT ` + rollingAverageColumns + ` FROM learners WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, learnerID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return quizscore.RollingAverage{}, learner.ErrNotFound
		}
		return quizscore.RollingAverage{}, wrapDBErr(err, "selecting rolling average")
	}
	return row.unboil(), nil
}

// SaveSubmission records the submission, then bumps the average only if the version still matches.
func (repo *quizScoreRepository) SaveSubmission(
	ctx context.Context,
	sub quizscore.Submission,
	next quizscore.RollingAverage,
	expectedVersion int,
) (quizscore.RollingAverage, error) {
	var out quizscore.RollingAverage
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		q := `INSERT INTO quiz_submissions (learner_id, submission_id, score, submitted_at, quiz_id) VALUES ($1, $2, $3, $4, $5)`
		quizID := null.NewString(sub.QuizID, sub.QuizID != "")
		if _, err := tx.ExecContext(ctx, q, sub.LearnerID, sub.ID, sub.Score, sub.SubmittedAt, quizID); err != nil {
			switch pqCode(err) {
			case uniqueViolation:
				return quizscore.ErrDuplicateSubmission
			case foreignKeyViolation:
				return learner.ErrNotFound
			}
			return wrapDBErr(err, "inserting quiz submission")
		}

		var row rollingAverageRow
		q = `UPDATE learners
			SET readiness_score = $3, readiness_score_quiz_count = $4, readiness_score_updated_at = $5,
				readiness_version = readiness_version + 1, updated_at = $6
			WHERE id = $1 AND readiness_version = $2
			RETURNING ` + rollingAverageColumns
		err := tx.GetContext(ctx, &row, q,
			sub.LearnerID, expectedVersion, next.Score, next.QuizCount, next.UpdatedAt, core.Now())
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return core.ErrVersionConflict
			}
			return wrapDBErr(err, "updating rolling average")
		}
		out = row.unboil()
		return nil
	})
	if err != nil {
		return quizscore.RollingAverage{}, err
	}
	return out, nil
}
