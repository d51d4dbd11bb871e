package dummydb

import (
	"context"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
	"github.com/trezcool/tayari/core/quizscore"
)

type quizScoreRepository struct {
	learner    *learnerTable
	submission *submissionTable
}

var _ quizscore.Repository = (*quizScoreRepository)(nil) // interface compliance check

func NewQuizScoreRepository(db *DB) quizscore.Repository {
	return &quizScoreRepository{learner: db.learner, submission: db.submission}
}

func rollingAverage(row *learnerRow) quizscore.RollingAverage {
	return quizscore.RollingAverage{
		LearnerID: row.ID,
		Score:     row.ReadinessScore,
		QuizCount: row.ReadinessScoreQuizCount,
		UpdatedAt: row.ReadinessScoreUpdatedAt,
		Version:   row.version,
	}
}

func (repo *quizScoreRepository) GetRollingAverage(_ context.Context, learnerID string) (quizscore.RollingAverage, error) {
	repo.learner.RLock()
	defer repo.learner.RUnlock()

	row, ok := repo.learner.table[learnerID]
	if !ok {
		return quizscore.RollingAverage{}, learner.ErrNotFound
	}
	return rollingAverage(row), nil
}

func (repo *quizScoreRepository) SaveSubmission(
	_ context.Context,
	sub quizscore.Submission,
	next quizscore.RollingAverage,
	expectedVersion int,
) (quizscore.RollingAverage, error) {
	repo.learner.Lock()
	defer repo.learner.Unlock()
	repo.submission.Lock()
	defer repo.submission.Unlock()

	row, ok := repo.learner.table[sub.LearnerID]
	if !ok {
		return quizscore.RollingAverage{}, learner.ErrNotFound
	}
	key := pairKey{sub.LearnerID, sub.ID}
	if _, seen := repo.submission.table[key]; seen {
		return quizscore.RollingAverage{}, quizscore.ErrDuplicateSubmission
	}
	if row.version != expectedVersion {
		return quizscore.RollingAverage{}, core.ErrVersionConflict
	}

	repo.submission.table[key] = sub
	row.ReadinessScore = next.Score
	row.ReadinessScoreQuizCount = next.QuizCount
	row.ReadinessScoreUpdatedAt = next.UpdatedAt
	row.version = expectedVersion + 1
	return rollingAverage(row), nil
}
