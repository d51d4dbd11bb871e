package dummydb

import (
	"context"
	"sort"

	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/progress"
)

type progressRepository struct {
	progress   *progressTable
	enrollment *enrollmentTable
	checkpoint *checkpointTable
}

var _ progress.Repository = (*progressRepository)(nil) // interface compliance check

func NewProgressRepository(db *DB) progress.Repository {
	return &progressRepository{
		progress:   db.progress,
		enrollment: db.enrollment,
		checkpoint: db.checkpoint,
	}
}

func copyProgress(p *progress.CourseProgress) progress.CourseProgress {
	out := *p
	out.CompletedModuleIDs = cloneStrings(p.CompletedModuleIDs)
	return out
}

func (repo *progressRepository) GetCourseProgress(_ context.Context, learnerID, courseID string) (progress.CourseProgress, error) {
	repo.progress.RLock()
	defer repo.progress.RUnlock()

	if p, ok := repo.progress.table[pairKey{learnerID, courseID}]; ok {
		return copyProgress(p), nil
	}
	return progress.CourseProgress{}, progress.ErrProgressNotFound
}

func (repo *progressRepository) ListCourseProgress(_ context.Context, learnerID string) ([]progress.CourseProgress, error) {
	repo.progress.RLock()
	defer repo.progress.RUnlock()

	list := make([]progress.CourseProgress, 0)
	for key, p := range repo.progress.table {
		if key.learnerID == learnerID {
			list = append(list, copyProgress(p))
		}
	}
	sort.Slice(list, func(i, j int) bool { return list[i].CourseID < list[j].CourseID })
	return list, nil
}

// UpdateCourseProgress holds the table lock for the whole read-modify-write.
func (repo *progressRepository) UpdateCourseProgress(
	_ context.Context,
	learnerID, courseID string,
	fn func(p *progress.CourseProgress) error,
) (progress.CourseProgress, error) {
	repo.progress.Lock()
	defer repo.progress.Unlock()

	key := pairKey{learnerID, courseID}
	stored, ok := repo.progress.table[key]
	if !ok {
		fresh := progress.NewCourseProgress(learnerID, courseID, core.Now())
		stored = &fresh
		repo.progress.table[key] = stored
	}

	working := copyProgress(stored)
	if err := fn(&working); err != nil {
		if errors.Cause(err) == progress.ErrUnchanged {
			return copyProgress(stored), nil
		}
		if !ok {
			delete(repo.progress.table, key)
		}
		return progress.CourseProgress{}, err
	}
	*stored = working
	return copyProgress(stored), nil
}

func (repo *progressRepository) SaveVideoCheckpoint(_ context.Context, cp progress.VideoCheckpoint) (progress.VideoCheckpoint, error) {
	repo.checkpoint.Lock()
	defer repo.checkpoint.Unlock()

	repo.checkpoint.table[checkpointKey{cp.LearnerID, cp.CourseID, cp.ModuleID}] = cp
	return cp, nil
}

func (repo *progressRepository) GetVideoCheckpoint(_ context.Context, learnerID, courseID, moduleID string) (progress.VideoCheckpoint, error) {
	repo.checkpoint.RLock()
	defer repo.checkpoint.RUnlock()

	if cp, ok := repo.checkpoint.table[checkpointKey{learnerID, courseID, moduleID}]; ok {
		return cp, nil
	}
	return progress.VideoCheckpoint{}, progress.ErrCheckpointNotFound
}

// CreateEnrollment holds the enrollment then the progress lock, so both rows appear together.
func (repo *progressRepository) CreateEnrollment(_ context.Context, e progress.Enrollment, totalModules int) (progress.Enrollment, error) {
	repo.enrollment.Lock()
	defer repo.enrollment.Unlock()

	key := pairKey{e.LearnerID, e.CourseID}
	if _, ok := repo.enrollment.table[key]; ok {
		return progress.Enrollment{}, progress.ErrAlreadyEnrolled
	}

	repo.progress.Lock()
	defer repo.progress.Unlock()

	if p, ok := repo.progress.table[key]; !ok {
		fresh := progress.NewCourseProgress(e.LearnerID, e.CourseID, e.EnrolledAt)
		fresh.TotalModules = totalModules
		repo.progress.table[key] = &fresh
	} else if p.TotalModules != totalModules {
		p.TotalModules = totalModules
		p.UpdatedAt = e.EnrolledAt
	}
	repo.enrollment.table[key] = e
	return e, nil
}

func (repo *progressRepository) GetEnrollment(_ context.Context, learnerID, courseID string) (progress.Enrollment, error) {
	repo.enrollment.RLock()
	defer repo.enrollment.RUnlock()

	if e, ok := repo.enrollment.table[pairKey{learnerID, courseID}]; ok {
		return e, nil
	}
	return progress.Enrollment{}, progress.ErrEnrollmentNotFound
}

func (repo *progressRepository) ListEnrollments(_ context.Context, learnerID string) ([]progress.Enrollment, error) {
	repo.enrollment.RLock()
	defer repo.enrollment.RUnlock()

	list := make([]progress.Enrollment, 0)
	for key, e := range repo.enrollment.table {
		if key.learnerID == learnerID {
			list = append(list, e)
		}
	}
	sort.Slice(list, func(i, j int) bool {
		if list[i].EnrolledAt.Equal(list[j].EnrolledAt) {
			return list[i].CourseID < list[j].CourseID
		}
		return list[i].EnrolledAt.Before(list[j].EnrolledAt)
	})
	return list, nil
}
