package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/progress"
)

const (
	progressColumns = `learner_id, course_id, completed_module_ids, total_modules, course_completed,
	last_accessed_module_id, last_accessed_at, completed_at, created_at, updated_at`
	enrollmentColumns = `learner_id, course_id, path_slug, due_at, enrolled_at`
	checkpointColumns = `learner_id, course_id, module_id, position_seconds, updated_at`
)

type progressRow struct {
	LearnerID            string         `db:"learner_id"`
	CourseID             string         `db:"course_id"`
	CompletedModuleIDs   pq.StringArray `db:"completed_module_ids"`
	TotalModules         int            `db:"total_modules"`
	CourseCompleted      bool           `db:"course_completed"`
	LastAccessedModuleID null.String    `db:"last_accessed_module_id"`
	LastAccessedAt       null.Time      `db:"last_accessed_at"`
	CompletedAt          null.Time      `db:"completed_at"`
	CreatedAt            time.Time      `db:"created_at"`
	UpdatedAt            time.Time      `db:"updated_at"`
}

func boilProgress(p progress.CourseProgress) progressRow {
	ids := pq.StringArray(p.CompletedModuleIDs)
	if ids == nil {
		ids = pq.StringArray{}
	}
	return progressRow{
		LearnerID:            p.LearnerID,
		CourseID:             p.CourseID,
		CompletedModuleIDs:   ids,
		TotalModules:         p.TotalModules,
		CourseCompleted:      p.CourseCompleted,
		LastAccessedModuleID: p.LastAccessedModuleID,
		LastAccessedAt:       p.LastAccessedAt,
		CompletedAt:          p.CompletedAt,
		CreatedAt:            p.CreatedAt,
		UpdatedAt:            p.UpdatedAt,
	}
}

func (row progressRow) unboil() progress.CourseProgress {
	ids := make([]string, len(row.CompletedModuleIDs))
	copy(ids, row.CompletedModuleIDs)
	return progress.CourseProgress{
		LearnerID:            row.LearnerID,
		CourseID:             row.CourseID,
		CompletedModuleIDs:   ids,
		TotalModules:         row.TotalModules,
		CourseCompleted:      row.CourseCompleted,
		LastAccessedModuleID: row.LastAccessedModuleID,
		LastAccessedAt:       utcTime(row.LastAccessedAt),
		CompletedAt:          utcTime(row.CompletedAt),
		CreatedAt:            row.CreatedAt.UTC(),
		UpdatedAt:            row.UpdatedAt.UTC(),
	}
}

type enrollmentRow struct {
	LearnerID  string    `db:"learner_id"`
	CourseID   string    `db:"course_id"`
	PathSlug   string    `db:"path_slug"`
	DueAt      null.Time `db:"due_at"`
	EnrolledAt time.Time `db:"enrolled_at"`
}

func (row enrollmentRow) unboil() progress.Enrollment {
	return progress.Enrollment{
		LearnerID:  row.LearnerID,
		CourseID:   row.CourseID,
		PathSlug:   row.PathSlug,
		DueAt:      utcTime(row.DueAt),
		EnrolledAt: row.EnrolledAt.UTC(),
	}
}

type checkpointRow struct {
	LearnerID       string    `db:"learner_id"`
	CourseID        string    `db:"course_id"`
	ModuleID        string    `db:"module_id"`
	PositionSeconds float64   `db:"position_seconds"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (row checkpointRow) unboil() progress.VideoCheckpoint {
	return progress.VideoCheckpoint{
		LearnerID:       row.LearnerID,
		CourseID:        row.CourseID,
		ModuleID:        row.ModuleID,
		PositionSeconds: row.PositionSeconds,
		UpdatedAt:       row.UpdatedAt.UTC(),
	}
}

type progressRepository struct {
	db core.DB
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db core.DB) progress.Repository {
	return &progressRepository{db: db}
}

func (repo *progressRepository) GetCourseProgress(ctx context.Context, learnerID, courseID string) (progress.CourseProgress, error) {
	var row progressRow
	q := `SELECT ` + progressColumns + ` FROM course_progress WHERE learner_id = $1 AND course_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, learnerID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progress.CourseProgress{}, progress.ErrProgressNotFound
		}
		return progress.CourseProgress{}, wrapDBErr(err, "selecting course progress")
	}
	return row.unboil(), nil
}

func (repo *progressRepository) ListCourseProgress(ctx context.Context, learnerID string) ([]progress.CourseProgress, error) {
	var rows []progressRow
	q := `SELECT ` + progressColumns + ` FROM course_progress WHERE learner_id = $1 ORDER BY course_id`
	if err := repo.db.SelectContext(ctx, &rows, q, learnerID); err != nil {
		return nil, wrapDBErr(err, "selecting course progress")
	}
	list := make([]progress.CourseProgress, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.unboil())
	}
	return list, nil
}

// UpdateCourseProgress locks the row with SELECT ... FOR UPDATE so concurrent writers queue up.
func (repo *progressRepository) UpdateCourseProgress(
	ctx context.Context,
	learnerID, courseID string,
	fn func(p *progress.CourseProgress) error,
) (progress.CourseProgress, error) {
	var out progress.CourseProgress
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		now := core.Now()
		_, err := tx.ExecContext(ctx, `INSERT INTO course_progress (learner_id, course_id, created_at, updated_at)
			VALUES ($1, $2, $3, $3) ON CONFLICT (learner_id, course_id) DO NOTHING`, learnerID, courseID, now)
		if err != nil {
			return wrapDBErr(err, "inserting course progress")
		}

		var row progressRow
		q := `SELECT ` + progressColumns + ` FROM course_progress WHERE learner_id = $1 AND course_id = $2 FOR UPDATE`
		if err = tx.GetContext(ctx, &row, q, learnerID, courseID); err != nil {
			return wrapDBErr(err, "locking course progress")
		}

		out = row.unboil()
		working := row.unboil()
		if err = fn(&working); err != nil {
			if errors.Cause(err) == progress.ErrUnchanged {
				return nil
			}
			return err
		}

		q = `UPDATE course_progress SET completed_module_ids = :completed_module_ids, total_modules = :total_modules,
				course_completed = :course_completed, last_accessed_module_id = :last_accessed_module_id,
				last_accessed_at = :last_accessed_at, completed_at = :completed_at, updated_at = :updated_at
			WHERE learner_id = :learner_id AND course_id = :course_id
			RETURNING ` + progressColumns
		if err = namedGet(ctx, tx, &row, q, boilProgress(working)); err != nil {
			return wrapDBErr(err, "updating course progress")
		}
		// the stored row, at the database's timestamp precision
		out = row.unboil()
		return nil
	})
	if err != nil {
		return progress.CourseProgress{}, err
	}
	return out, nil
}

func (repo *progressRepository) SaveVideoCheckpoint(ctx context.Context, cp progress.VideoCheckpoint) (progress.VideoCheckpoint, error) {
	q := `INSERT INTO video_checkpoints (` + checkpointColumns + `) VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (learner_id, course_id, module_id)
		DO UPDATE SET position_seconds = EXCLUDED.position_seconds, updated_at = EXCLUDED.updated_at`
	_, err := repo.db.ExecContext(ctx, q, cp.LearnerID, cp.CourseID, cp.ModuleID, cp.PositionSeconds, cp.UpdatedAt)
	if err != nil {
		return progress.VideoCheckpoint{}, wrapDBErr(err, "saving video checkpoint")
	}
	return cp, nil
}

func (repo *progressRepository) GetVideoCheckpoint(ctx context.Context, learnerID, courseID, moduleID string) (progress.VideoCheckpoint, error) {
	var row checkpointRow
	q := `SELECT ` + checkpointColumns + ` FROM video_checkpoints
		WHERE learner_id = $1 AND course_id = $2 AND module_id = $3`
	if err := repo.db.GetContext(ctx, &row, q, learnerID, courseID, moduleID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progress.VideoCheckpoint{}, progress.ErrCheckpointNotFound
		}
		return progress.VideoCheckpoint{}, wrapDBErr(err, "selecting video checkpoint")
	}
	return row.unboil(), nil
}

func (repo *progressRepository) CreateEnrollment(ctx context.Context, e progress.Enrollment, totalModules int) (progress.Enrollment, error) {
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		q := `INSERT INTO enrollments (` + enrollmentColumns + `) VALUES ($1, $2, $3, $4, $5)`
		if _, err := tx.ExecContext(ctx, q, e.LearnerID, e.CourseID, e.PathSlug, e.DueAt, e.EnrolledAt); err != nil {
			if pqCode(err) == uniqueViolation {
				return progress.ErrAlreadyEnrolled
			}
			return wrapDBErr(err, "inserting enrollment")
		}

		q = `INSERT INTO course_progress (learner_id, course_id, total_modules, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $4)
			ON CONFLICT (learner_id, course_id) DO UPDATE
				SET total_modules = EXCLUDED.total_modules, updated_at = EXCLUDED.updated_at
				WHERE course_progress.total_modules <> EXCLUDED.total_modules`
		_, err := tx.ExecContext(ctx, q, e.LearnerID, e.CourseID, totalModules, e.EnrolledAt)
		return wrapDBErr(err, "upserting course progress")
	})
	if err != nil {
		return progress.Enrollment{}, err
	}
	return e, nil
}

func (repo *progressRepository) GetEnrollment(ctx context.Context, learnerID, courseID string) (progress.Enrollment, error) {
	var row enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE learner_id = $1 AND course_id = $2`
	if err := repo.db.GetContext(ctx, &row, q, learnerID, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return progress.Enrollment{}, progress.ErrEnrollmentNotFound
		}
		return progress.Enrollment{}, wrapDBErr(err, "selecting enrollment")
	}
	return row.unboil(), nil
}

func (repo *progressRepository) ListEnrollments(ctx context.Context, learnerID string) ([]progress.Enrollment, error) {
	var rows []enrollmentRow
	q := `SELECT ` + enrollmentColumns + ` FROM enrollments WHERE learner_id = $1 ORDER BY enrolled_at, course_id`
	if err := repo.db.SelectContext(ctx, &rows, q, learnerID); err != nil {
		return nil, wrapDBErr(err, "selecting enrollments")
	}
	list := make([]progress.Enrollment, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.unboil())
	}
	return list, nil
}
