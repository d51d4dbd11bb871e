package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core/quizscore"
)

type quizScoreApi struct {
	svc      *quizscore.Service
	validate *validator.Validate
}

func registerQuizScoreAPI(g *echo.Group, svc *quizscore.Service, validate *validator.Validate) {
	api := quizScoreApi{svc: svc, validate: validate}

	g.POST("/quiz-submissions", api.submit)
	g.GET("/quiz-score", api.retrieve)
}

// Handlers

func (api *quizScoreApi) submit(ctx echo.Context) error {
	var data quizscore.NewSubmission
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubmission")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}

	ra, err := api.svc.Submit(ctx.Request().Context(), lrn.ID, data)
	if err != nil {
		return errors.Wrap(err, "recording quiz submission")
	}
	return ctx.JSON(http.StatusCreated, ra)
}

func (api *quizScoreApi) retrieve(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	ra, err := api.svc.Get(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "getting quiz score")
	}
	return ctx.JSON(http.StatusOK, ra)
}
