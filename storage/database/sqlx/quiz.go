package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core/catalog"
)

const quizConfigColumns = `id, course_id, module_id, title, passing_score, question_count, time_limit, created_at, updated_at`

type quizConfigRow struct {
	ID            string    `db:"id"`
	CourseID      string    `db:"course_id"`
	ModuleID      string    `db:"module_id"`
	Title         string    `db:"title"`
	PassingScore  float64   `db:"passing_score"`
	QuestionCount int       `db:"question_count"`
	TimeLimit     int       `db:"time_limit"`
	CreatedAt     time.Time `db:"created_at"`
	UpdatedAt     time.Time `db:"updated_at"`
}

func boilQuizConfig(q catalog.QuizConfig) quizConfigRow {
	return quizConfigRow{
		ID:            q.ID,
		CourseID:      q.CourseID,
		ModuleID:      q.ModuleID,
		Title:         q.Title,
		PassingScore:  q.PassingScore,
		QuestionCount: q.QuestionCount,
		TimeLimit:     q.TimeLimit,
		CreatedAt:     q.CreatedAt,
		UpdatedAt:     q.UpdatedAt,
	}
}

func (row quizConfigRow) unboil() catalog.QuizConfig {
	return catalog.QuizConfig{
		ID:            row.ID,
		CourseID:      row.CourseID,
		ModuleID:      row.ModuleID,
		Title:         row.Title,
		PassingScore:  row.PassingScore,
		QuestionCount: row.QuestionCount,
		TimeLimit:     row.TimeLimit,
		CreatedAt:     row.CreatedAt.UTC(),
		UpdatedAt:     row.UpdatedAt.UTC(),
	}
}

// SaveQuizConfig upserts on id. The course of an existing config never changes.
func (repo *courseRepository) SaveQuizConfig(ctx context.Context, q catalog.QuizConfig) (catalog.QuizConfig, error) {
	var row quizConfigRow
	query := `INSERT INTO quiz_configs (` + quizConfigColumns + `)
		VALUES (:id, :course_id, :module_id, :title, :passing_score, :question_count, :time_limit, :created_at, :updated_at)
		ON CONFLICT (id) DO UPDATE
			SET module_id = EXCLUDED.module_id, title = EXCLUDED.title, passing_score = EXCLUDED.passing_score,
				question_count = EXCLUDED.question_count, time_limit = EXCLUDED.time_limit, updated_at = EXCLUDED.updated_at
			WHERE quiz_configs.course_id = EXCLUDED.course_id
		RETURNING ` + quizConfigColumns
	if err := namedGet(ctx, repo.db, &row, query, boilQuizConfig(q)); err != nil {
		switch {
		case errors.Is(err, sql.ErrNoRows):
			return catalog.QuizConfig{}, catalog.ErrQuizIDTaken
		case pqCode(err) == uniqueViolation:
			return catalog.QuizConfig{}, catalog.ErrQuizModuleTaken
		case pqCode(err) == foreignKeyViolation:
			return catalog.QuizConfig{}, catalog.ErrCourseNotFound
		}
		return catalog.QuizConfig{}, wrapDBErr(err, "saving quiz config")
	}
	return row.unboil(), nil
}

func (repo *courseRepository) GetQuizConfig(ctx context.Context, id string) (catalog.QuizConfig, error) {
	var row quizConfigRow
	q := `SELECT ` + quizConfigColumns + ` FROM quiz_configs WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.QuizConfig{}, catalog.ErrQuizNotFound
		}
		return catalog.QuizConfig{}, wrapDBErr(err, "selecting quiz config")
	}
	return row.unboil(), nil
}

func (repo *courseRepository) ListQuizConfigs(ctx context.Context, courseID string) ([]catalog.QuizConfig, error) {
	var rows []quizConfigRow
	q := `SELECT ` + quizConfigColumns + ` FROM quiz_configs WHERE course_id = $1 ORDER BY id`
	if err := repo.db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, wrapDBErr(err, "selecting quiz configs")
	}
	list := make([]catalog.QuizConfig, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.unboil())
	}
	return list, nil
}
