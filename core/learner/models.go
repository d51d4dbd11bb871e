package learner

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/tayari/core"
)

// Roles
const (
	RoleAdmin      = "admin"
	RoleManager    = "manager"
	RoleInstructor = "instructor"
	RoleLearner    = "learner"
)

var (
	AllRoles = []string{RoleAdmin, RoleManager, RoleInstructor, RoleLearner}

	rolePriorities = map[string]int{
		RoleAdmin:      30,
		RoleManager:    20,
		RoleInstructor: 11,
		RoleLearner:    1,
	}

	Roles = []Role{
		{Name: "Learner", Value: RoleLearner},
		{Name: "Instructor", Value: RoleInstructor},
		{Name: "Manager", Value: RoleManager},
		{Name: "Admin", Value: RoleAdmin},
	}
)

func RolePriority(role string) int {
	return rolePriorities[role]
}

type Role struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Learner is any person on the platform. Everyone learns, some also manage or author.
// The readiness_score fields hold the rolling quiz average and are only written by the quiz aggregator.
type Learner struct {
	ID                      string      `json:"id"`
	Name                    string      `json:"name"`
	Email                   string      `json:"email"`
	Role                    string      `json:"role"`
	ManagerID               null.String `json:"manager_id"`
	IsActive                bool        `json:"is_active"`
	ReadinessScore          float64     `json:"readiness_score"`
	ReadinessScoreQuizCount int         `json:"readiness_score_quiz_count"`
	ReadinessScoreUpdatedAt null.Time   `json:"readiness_score_updated_at"`
	CreatedAt               time.Time   `json:"created_at"` // UTC
	UpdatedAt               time.Time   `json:"updated_at"` // UTC
}

func (l Learner) HasAnyRole(roles ...string) bool {
	for _, r := range roles {
		if l.Role == r {
			return true
		}
	}
	return false
}

func (l Learner) IsAdmin() bool      { return l.Role == RoleAdmin }
func (l Learner) IsManager() bool    { return l.Role == RoleManager }
func (l Learner) IsInstructor() bool { return l.Role == RoleInstructor }

// Manages reports whether l is the direct manager of other.
func (l Learner) Manages(other Learner) bool {
	return other.ManagerID.Valid && other.ManagerID.String == l.ID
}

// NewLearner contains information needed to create a new Learner.
type NewLearner struct {
	Name      string `json:"name" validate:"required,notblank"`
	Email     string `json:"email" validate:"required,email"`
	Role      string `json:"role" validate:"omitempty,oneof=admin manager instructor learner"`
	ManagerID string `json:"manager_id" validate:"omitempty,ident"`
}

func (nl *NewLearner) Validate(validate *validator.Validate) error {
	nl.Name = core.CleanString(nl.Name)
	nl.Email = core.CleanString(nl.Email, true /* lower */)
	nl.Role = core.CleanString(nl.Role, true /* lower */)
	nl.ManagerID = core.CleanString(nl.ManagerID)
	if nl.Role == "" {
		nl.Role = RoleLearner
	}
	return validate.Struct(nl)
}

// UpdateLearner defines what information may be provided to modify an existing Learner.
type UpdateLearner struct {
	Name      string  `json:"name"`
	Role      string  `json:"role" validate:"omitempty,oneof=admin manager instructor learner"`
	ManagerID *string `json:"manager_id" validate:"omitempty,ident"`
	IsActive  *bool   `json:"is_active"`
}

func (ul *UpdateLearner) Validate(validate *validator.Validate) error {
	ul.Name = core.CleanString(ul.Name)
	ul.Role = core.CleanString(ul.Role, true /* lower */)
	if ul.ManagerID != nil {
		mid := core.CleanString(*ul.ManagerID)
		ul.ManagerID = &mid
	}
	return validate.Struct(ul)
}

type QueryFilter struct {
	Search    string   `query:"search"`
	Roles     []string `query:"role"`
	ManagerID string   `query:"manager_id"`
	IsActive  *bool    `query:"is_active"`
}

func (qf *QueryFilter) Clean() {
	qf.Search = core.CleanString(qf.Search)
	qf.ManagerID = core.CleanString(qf.ManagerID)
}
