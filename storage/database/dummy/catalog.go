package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/catalog"
)

type courseRepository struct {
	db   *courseTable
	quiz *quizTable
}

var _ catalog.Repository = (*courseRepository)(nil) // interface compliance check

func NewCourseRepository(db *DB) catalog.Repository {
	return &courseRepository{db: db.course, quiz: db.quiz}
}

func copyCourse(c *catalog.Course, withModules bool) catalog.Course {
	out := *c
	if withModules {
		out.Modules = make([]catalog.Module, len(c.Modules))
		copy(out.Modules, c.Modules)
	} else {
		out.Modules = nil
	}
	return out
}

func (repo *courseRepository) CreateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored := copyCourse(&c, true)
	repo.db.table[c.ID] = &stored
	return copyCourse(&stored, true), nil
}

func (repo *courseRepository) GetCourse(_ context.Context, id string) (catalog.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if c, ok := repo.db.table[id]; ok {
		return copyCourse(c, true), nil
	}
	return catalog.Course{}, catalog.ErrCourseNotFound
}

func (repo *courseRepository) QueryCourses(_ context.Context, filter *catalog.QueryFilter, ordering []core.DBOrdering) ([]catalog.Course, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	courses := make([]catalog.Course, 0, len(repo.db.table))
	for _, c := range repo.db.table {
		if filter != nil && !matchCourse(c, filter) {
			continue
		}
		courses = append(courses, copyCourse(c, false))
	}

	sort.SliceStable(courses, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "title":
				cmp = strings.Compare(courses[i].Title, courses[j].Title)
			case "created_at":
				cmp = compareTime(courses[i].CreatedAt, courses[j].CreatedAt)
			case "updated_at":
				cmp = compareTime(courses[i].UpdatedAt, courses[j].UpdatedAt)
			default:
				continue
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return courses[i].ID < courses[j].ID
	})
	return courses, nil
}

func matchCourse(c *catalog.Course, filter *catalog.QueryFilter) bool {
	if filter.Search != "" {
		search := strings.ToLower(filter.Search)
		if !strings.Contains(strings.ToLower(c.Title), search) &&
			!strings.Contains(strings.ToLower(c.Description), search) {
			return false
		}
	}
	if len(filter.Statuses) > 0 {
		var ok bool
		for _, st := range filter.Statuses {
			if c.Status == st {
				ok = true
				break
			}
		}
		if !ok {
			return false
		}
	}
	if filter.PathSlug != "" && c.PathSlug != filter.PathSlug {
		return false
	}
	if filter.InstructorID != "" && c.InstructorID != filter.InstructorID {
		return false
	}
	if filter.IsMandatory != nil && c.IsMandatory != *filter.IsMandatory {
		return false
	}
	return true
}

func (repo *courseRepository) UpdateCourse(_ context.Context, c catalog.Course) (catalog.Course, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[c.ID]
	if !ok {
		return catalog.Course{}, catalog.ErrCourseNotFound
	}
	modules := stored.Modules
	*stored = copyCourse(&c, false)
	stored.Modules = modules
	return copyCourse(stored, true), nil
}

func (repo *courseRepository) ReplaceModules(_ context.Context, courseID string, modules []catalog.Module) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	stored, ok := repo.db.table[courseID]
	if !ok {
		return catalog.ErrCourseNotFound
	}
	stored.Modules = make([]catalog.Module, len(modules))
	copy(stored.Modules, modules)
	catalog.SortModules(stored.Modules)
	return nil
}

func (repo *courseRepository) DeleteCourse(_ context.Context, id string) error {
	repo.db.Lock()
	defer repo.db.Unlock()

	if _, ok := repo.db.table[id]; !ok {
		return catalog.ErrCourseNotFound
	}
	delete(repo.db.table, id)

	repo.quiz.Lock()
	defer repo.quiz.Unlock()
	for qid, q := range repo.quiz.table {
		if q.CourseID == id {
			delete(repo.quiz.table, qid)
		}
	}
	return nil
}

func (repo *courseRepository) SaveQuizConfig(_ context.Context, q catalog.QuizConfig) (catalog.QuizConfig, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()
	if _, ok := repo.db.table[q.CourseID]; !ok {
		return catalog.QuizConfig{}, catalog.ErrCourseNotFound
	}

	repo.quiz.Lock()
	defer repo.quiz.Unlock()
	if prev, ok := repo.quiz.table[q.ID]; ok && prev.CourseID != q.CourseID {
		return catalog.QuizConfig{}, catalog.ErrQuizIDTaken
	}
	for _, other := range repo.quiz.table {
		if other.ID != q.ID && other.CourseID == q.CourseID && other.ModuleID == q.ModuleID {
			return catalog.QuizConfig{}, catalog.ErrQuizModuleTaken
		}
	}
	repo.quiz.table[q.ID] = q
	return q, nil
}

func (repo *courseRepository) GetQuizConfig(_ context.Context, id string) (catalog.QuizConfig, error) {
	repo.quiz.RLock()
	defer repo.quiz.RUnlock()

	if q, ok := repo.quiz.table[id]; ok {
		return q, nil
	}
	return catalog.QuizConfig{}, catalog.ErrQuizNotFound
}

func (repo *courseRepository) ListQuizConfigs(_ context.Context, courseID string) ([]catalog.QuizConfig, error) {
	repo.quiz.RLock()
	defer repo.quiz.RUnlock()

	list := make([]catalog.QuizConfig, 0)
	for _, q := range repo.quiz.table {
		if q.CourseID == courseID {
			list = append(list, q)
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}
