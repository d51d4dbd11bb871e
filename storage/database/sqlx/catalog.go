package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
)

const (
	courseColumns = `id, title, description, path_slug, instructor_id, is_mandatory, status,
	created_at, updated_at, published_at`
	moduleColumns = `course_id, id, title, position, type, mandatory, duration`
)

var courseOrderings = map[string]string{
	"title":      "title",
	"created_at": "created_at",
	"updated_at": "updated_at",
}

type courseRow struct {
	ID           string    `db:"id"`
	Title        string    `db:"title"`
	Description  string    `db:"description"`
	PathSlug     string    `db:"path_slug"`
	InstructorID string    `db:"instructor_id"`
	IsMandatory  bool      `db:"is_mandatory"`
	Status       string    `db:"status"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
	PublishedAt  null.Time `db:"published_at"`
}

type moduleRow struct {
	CourseID  string `db:"course_id"`
	ID        string `db:"id"`
	Title     string `db:"title"`
	Position  int    `db:"position"`
	Type      string `db:"type"`
	Mandatory bool   `db:"mandatory"`
	Duration  int    `db:"duration"`
}

func boilCourse(c catalog.Course) courseRow {
	return courseRow{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		PathSlug:     c.PathSlug,
		InstructorID: c.InstructorID,
		IsMandatory:  c.IsMandatory,
		Status:       string(c.Status),
		CreatedAt:    c.CreatedAt,
		UpdatedAt:    c.UpdatedAt,
		PublishedAt:  c.PublishedAt,
	}
}

func (row courseRow) unboil() catalog.Course {
	return catalog.Course{
		ID:           row.ID,
		Title:        row.Title,
		Description:  row.Description,
		PathSlug:     row.PathSlug,
		InstructorID: row.InstructorID,
		IsMandatory:  row.IsMandatory,
		Status:       catalog.Status(row.Status),
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		PublishedAt:  utcTime(row.PublishedAt),
	}
}

func boilModules(courseID string, modules []catalog.Module) []moduleRow {
	rows := make([]moduleRow, 0, len(modules))
	for _, m := range modules {
		rows = append(rows, moduleRow{
			CourseID:  courseID,
			ID:        m.ID,
			Title:     m.Title,
			Position:  m.Order,
			Type:      string(m.Type),
			Mandatory: m.Mandatory,
			Duration:  m.Duration,
		})
	}
	return rows
}

func (row moduleRow) unboil() catalog.Module {
	return catalog.Module{
		ID:        row.ID,
		CourseID:  row.CourseID,
		Title:     row.Title,
		Order:     row.Position,
		Type:      catalog.ModuleType(row.Type),
		Mandatory: row.Mandatory,
		Duration:  row.Duration,
	}
}

type courseRepository struct {
	db core.DB
}

var _ catalog.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db core.DB) catalog.Repository {
	return &courseRepository{db: db}
}

func insertModules(ctx context.Context, db core.DBExecutor, courseID string, modules []catalog.Module) error {
	if len(modules) == 0 {
		return nil
	}
	q := `INSERT INTO course_modules (` + moduleColumns + `)
		VALUES (:course_id, :id, :title, :position, :type, :mandatory, :duration)`
	if _, err := namedExec(ctx, db, q, boilModules(courseID, modules)); err != nil {
		return wrapDBErr(err, "inserting modules")
	}
	return nil
}

func selectModules(ctx context.Context, db core.DBExecutor, courseID string) ([]catalog.Module, error) {
	var rows []moduleRow
	q := `SELECT ` + moduleColumns + ` FROM course_modules WHERE course_id = $1 ORDER BY position, id`
	if err := db.SelectContext(ctx, &rows, q, courseID); err != nil {
		return nil, wrapDBErr(err, "selecting modules")
	}
	modules := make([]catalog.Module, 0, len(rows))
	for _, row := range rows {
		modules = append(modules, row.unboil())
	}
	return modules, nil
}

func (repo *courseRepository) CreateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	err := withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		q := `INSERT INTO courses (` + courseColumns + `)
			VALUES (:id, :title, :description, :path_slug, :instructor_id, :is_mandatory, :status,
				:created_at, :updated_at, :published_at)`
		if _, err := namedExec(ctx, tx, q, boilCourse(c)); err != nil {
			return wrapDBErr(err, "inserting course")
		}
		return insertModules(ctx, tx, c.ID, c.Modules)
	})
	if err != nil {
		return catalog.Course{}, err
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) GetCourse(ctx context.Context, id string) (catalog.Course, error) {
	var row courseRow
	q := `SELECT ` + courseColumns + ` FROM courses WHERE id = $1`
	if err := repo.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return catalog.Course{}, catalog.ErrCourseNotFound
		}
		return catalog.Course{}, wrapDBErr(err, "selecting course")
	}
	course := row.unboil()
	modules, err := selectModules(ctx, repo.db, id)
	if err != nil {
		return catalog.Course{}, err
	}
	course.Modules = modules
	return course, nil
}

func (repo *courseRepository) QueryCourses(ctx context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering) ([]catalog.Course, error) {
	var w where
	if filter != nil {
		if filter.Search != "" {
			w.add("(title ILIKE ? OR description ILIKE ?)", likePattern(filter.Search))
		}
		if len(filter.Statuses) > 0 {
			statuses := make([]string, 0, len(filter.Statuses))
			for _, st := range filter.Statuses {
				statuses = append(statuses, string(st))
			}
			w.add("status = ANY(?)", pq.Array(statuses))
		}
		if filter.PathSlug != "" {
			w.add("path_slug = ?", filter.PathSlug)
		}
		if filter.InstructorID != "" {
			w.add("instructor_id = ?", filter.InstructorID)
		}
		if filter.IsMandatory != nil {
			w.add("is_mandatory = ?", *filter.IsMandatory)
		}
	}

	q := `SELECT ` + courseColumns + ` FROM courses` + w.String() + orderBy(ordering, courseOrderings, "id ASC")
	var rows []courseRow
	if err := repo.db.SelectContext(ctx, &rows, q, w.args...); err != nil {
		return nil, wrapDBErr(err, "selecting courses")
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.unboil())
	}
	return courses, nil
}

func (repo *courseRepository) UpdateCourse(ctx context.Context, c catalog.Course) (catalog.Course, error) {
	q := `UPDATE courses SET title = :title, description = :description, path_slug = :path_slug,
			is_mandatory = :is_mandatory, status = :status, updated_at = :updated_at, published_at = :published_at
		WHERE id = :id`
	res, err := namedExec(ctx, repo.db, q, boilCourse(c))
	if err != nil {
		return catalog.Course{}, wrapDBErr(err, "updating course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	return repo.GetCourse(ctx, c.ID)
}

func (repo *courseRepository) ReplaceModules(ctx context.Context, courseID string, modules []catalog.Module) error {
	return withTx(ctx, repo.db, func(tx core.DBTransactor) error {
		var id string
		if err := tx.GetContext(ctx, &id, `SELECT id FROM courses WHERE id = $1 FOR UPDATE`, courseID); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return catalog.ErrCourseNotFound
			}
			return wrapDBErr(err, "locking course")
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM course_modules WHERE course_id = $1`, courseID); err != nil {
			return wrapDBErr(err, "deleting modules")
		}
		return insertModules(ctx, tx, courseID, modules)
	})
}

func (repo *courseRepository) DeleteCourse(ctx context.Context, id string) error {
	res, err := repo.db.ExecContext(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return wrapDBErr(err, "deleting course")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return catalog.ErrCourseNotFound
	}
	return nil
}
