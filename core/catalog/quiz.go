package catalog

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/trezcool/tayari/core"
)

// QuizConfig is the instructor-authored setup of a quiz module.
// A course has at most one config per quiz module.
type QuizConfig struct {
	ID            string    `json:"id"`
	CourseID      string    `json:"course_id"`
	ModuleID      string    `json:"module_id"`
	Title         string    `json:"title"`
	PassingScore  float64   `json:"passing_score"`
	QuestionCount int       `json:"question_count"`
	TimeLimit     int       `json:"time_limit"` // minutes, 0 for none
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// SaveQuizConfig adds or replaces a QuizConfig. The id comes from the route.
type SaveQuizConfig struct {
	ID            string  `json:"id" validate:"required,ident"`
	ModuleID      string  `json:"module_id" validate:"required,ident"`
	Title         string  `json:"title" validate:"required,notblank,max=200"`
	PassingScore  float64 `json:"passing_score" validate:"gte=0,lte=100"`
	QuestionCount int     `json:"question_count" validate:"gte=1,lte=500"`
	TimeLimit     int     `json:"time_limit" validate:"gte=0,lte=1440"`
}

func (sq *SaveQuizConfig) Validate(validate *validator.Validate) error {
	sq.ID = core.CleanString(sq.ID)
	sq.ModuleID = core.CleanString(sq.ModuleID)
	sq.Title = core.CleanString(sq.Title)
	return validate.Struct(sq)
}

// Passed reports whether score clears the passing score.
func (q QuizConfig) Passed(score float64) bool {
	return score >= q.PassingScore
}
