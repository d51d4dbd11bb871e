package dummydb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/learner"
)

type learnerRepository struct {
	db *learnerTable
}

var _ learner.Repository = (*learnerRepository)(nil) // interface compliance check

func NewLearnerRepository(db *DB) learner.Repository {
	return &learnerRepository{db: db.learner}
}

func (repo *learnerRepository) query() []learner.Learner {
	learners := make([]learner.Learner, 0, len(repo.db.table))
	for _, row := range repo.db.table {
		learners = append(learners, row.Learner)
	}
	return learners
}

func (repo *learnerRepository) CreateLearner(_ context.Context, l learner.Learner) (learner.Learner, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	for _, row := range repo.db.table {
		if row.Email == l.Email {
			return learner.Learner{}, learner.ErrEmailExists
		}
	}
	repo.db.table[l.ID] = &learnerRow{Learner: l}
	return l, nil
}

func (repo *learnerRepository) GetLearner(_ context.Context, id string) (learner.Learner, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	if row, ok := repo.db.table[id]; ok {
		return row.Learner, nil
	}
	return learner.Learner{}, learner.ErrNotFound
}

func (repo *learnerRepository) GetLearnerByEmail(_ context.Context, email string) (learner.Learner, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	for _, row := range repo.db.table {
		if row.Email == email {
			return row.Learner, nil
		}
	}
	return learner.Learner{}, learner.ErrNotFound
}

func (repo *learnerRepository) QueryLearners(_ context.Context, filter *learner.QueryFilter, ordering []core.DBOrdering) ([]learner.Learner, error) {
	repo.db.RLock()
	defer repo.db.RUnlock()

	learners := repo.query()
	if filter != nil {
		search := strings.ToLower(filter.Search)
		filtered := learners[:0]
		for _, l := range learners {
			// learners with search keyword matching any Name or Email ?
			if search != "" &&
				!strings.Contains(strings.ToLower(l.Name), search) &&
				!strings.Contains(strings.ToLower(l.Email), search) {
				continue
			}
			if len(filter.Roles) > 0 && !l.HasAnyRole(filter.Roles...) {
				continue
			}
			if filter.ManagerID != "" && l.ManagerID.String != filter.ManagerID {
				continue
			}
			if filter.IsActive != nil && l.IsActive != *filter.IsActive {
				continue
			}
			filtered = append(filtered, l)
		}
		learners = filtered
	}

	sortLearners(learners, ordering)
	return learners, nil
}

func sortLearners(learners []learner.Learner, ordering []core.DBOrdering) {
	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(learners, func(i, j int) bool {
		for _, ord := range ordering {
			var cmp int
			switch ord.Field {
			case "name":
				cmp = strings.Compare(learners[i].Name, learners[j].Name)
			case "email":
				cmp = strings.Compare(learners[i].Email, learners[j].Email)
			case "readiness_score":
				cmp = compareFloat(learners[i].ReadinessScore, learners[j].ReadinessScore)
			case "created_at":
				cmp = compareTime(learners[i].CreatedAt, learners[j].CreatedAt)
			default:
				continue
			}
			if cmp != 0 {
				return (cmp < 0) == ord.Ascending
			}
		}
		return learners[i].ID < learners[j].ID
	})
}

// UpdateLearner leaves the rolling quiz average alone; only the quiz repository writes it.
func (repo *learnerRepository) UpdateLearner(_ context.Context, l learner.Learner) (learner.Learner, error) {
	repo.db.Lock()
	defer repo.db.Unlock()

	row, ok := repo.db.table[l.ID]
	if !ok {
		return learner.Learner{}, learner.ErrNotFound
	}
	row.Name = l.Name
	row.Role = l.Role
	row.ManagerID = l.ManagerID
	row.IsActive = l.IsActive
	row.UpdatedAt = l.UpdatedAt
	return row.Learner, nil
}
