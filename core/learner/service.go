package learner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
)

var (
	// errors
	ErrNotFound          = core.NewNotFoundError("learner")
	ErrEmailExists       = errors.New("a learner with this email already exists")
	ErrInvalidManager    = errors.New("manager must be an existing manager or admin")
	ErrSelfManaged       = errors.New("a learner cannot manage themselves")
	errNoPermsToSetRoles = "not enough rights to set this role"
)

type (
	Repository interface {
		CreateLearner(ctx context.Context, l Learner) (Learner, error)
		GetLearner(ctx context.Context, id string) (Learner, error)
		GetLearnerByEmail(ctx context.Context, email string) (Learner, error)
		// QueryLearners applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of Learner.Name or Learner.Email.
		QueryLearners(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Learner, error)
		UpdateLearner(ctx context.Context, l Learner) (Learner, error)
	}

	Service struct {
		repo Repository
		now  func() time.Time
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: core.Now}
}

func (svc *Service) checkEmail(ctx context.Context, email string) error {
	_, err := svc.repo.GetLearnerByEmail(ctx, email)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "checking email uniqueness")
	}
}

func (svc *Service) checkManager(ctx context.Context, id, managerID string) error {
	if managerID == "" {
		return nil
	}
	if managerID == id {
		return core.NewValidationError(ErrSelfManaged, core.FieldError{Field: "manager_id", Error: ErrSelfManaged.Error()})
	}
	mgr, err := svc.repo.GetLearner(ctx, managerID)
	if err != nil {
		if errors.Cause(err) != ErrNotFound {
			return errors.Wrap(err, "finding manager")
		}
	} else if mgr.HasAnyRole(RoleManager, RoleAdmin) {
		return nil
	}
	return core.NewValidationError(ErrInvalidManager, core.FieldError{Field: "manager_id", Error: ErrInvalidManager.Error()})
}

// CheckRolePriority ensures the acting learner does not hand out a role above their own.
func CheckRolePriority(actor Learner, role string) error {
	if RolePriority(role) > RolePriority(actor.Role) {
		return core.NewValidationError(nil, core.FieldError{Field: "role", Error: errNoPermsToSetRoles})
	}
	return nil
}

// Create expects a validated NewLearner.
func (svc *Service) Create(ctx context.Context, nl NewLearner) (Learner, error) {
	if err := svc.checkEmail(ctx, nl.Email); err != nil {
		return Learner{}, err
	}
	id := uuid.New().String()
	if err := svc.checkManager(ctx, id, nl.ManagerID); err != nil {
		return Learner{}, err
	}

	now := svc.now().UTC()
	l := Learner{
		ID:        id,
		Name:      nl.Name,
		Email:     nl.Email,
		Role:      nl.Role,
		ManagerID: null.NewString(nl.ManagerID, nl.ManagerID != ""),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	l, err := svc.repo.CreateLearner(ctx, l)
	return l, errors.Wrap(err, "creating learner")
}

func (svc *Service) GetByID(ctx context.Context, id string) (Learner, error) {
	return svc.repo.GetLearner(ctx, core.CleanString(id))
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (Learner, error) {
	return svc.repo.GetLearnerByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering []core.DBOrdering) ([]Learner, error) {
	return svc.repo.QueryLearners(ctx, filter, ordering)
}

// Team returns the active direct reports of a manager.
func (svc *Service) Team(ctx context.Context, managerID string) ([]Learner, error) {
	active := true
	filter := &QueryFilter{ManagerID: managerID, IsActive: &active}
	return svc.repo.QueryLearners(ctx, filter, []core.DBOrdering{{Field: "name", Ascending: true}})
}

// Update expects a validated UpdateLearner.
func (svc *Service) Update(ctx context.Context, id string, ul UpdateLearner) (Learner, error) {
	l, err := svc.repo.GetLearner(ctx, id)
	if err != nil {
		return Learner{}, err
	}
	if ul.Name != "" {
		l.Name = ul.Name
	}
	if ul.Role != "" {
		l.Role = ul.Role
	}
	if ul.IsActive != nil {
		l.IsActive = *ul.IsActive
	}
	if ul.ManagerID != nil {
		if err := svc.checkManager(ctx, l.ID, *ul.ManagerID); err != nil {
			return Learner{}, err
		}
		l.ManagerID = null.NewString(*ul.ManagerID, *ul.ManagerID != "")
	}
	l.UpdatedAt = svc.now().UTC()

	l, err = svc.repo.UpdateLearner(ctx, l)
	return l, errors.Wrap(err, "updating learner")
}
