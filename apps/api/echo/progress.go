package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core"
	"github.com/trezcool/tayari/core/progress"
)

type (
	progressApi struct {
		svc      *progress.Service
		validate *validator.Validate
	}

	AccessRequest struct {
		ModuleID string `json:"module_id" validate:"required,ident"`
	}

	AccessResponse struct {
		ModuleID  string `json:"module_id"`
		CanAccess bool   `json:"can_access"`
	}
)

func (ar *AccessRequest) Validate(validate *validator.Validate) error {
	ar.ModuleID = core.CleanString(ar.ModuleID)
	return validate.Struct(ar)
}

func registerProgressAPI(g *echo.Group, svc *progress.Service, validate *validator.Validate) {
	api := progressApi{svc: svc, validate: validate}

	cg := g.Group("/courses/:courseID")
	cg.GET("/progress", api.courseProgress)
	cg.GET("/modules", api.moduleStates)
	cg.POST("/access", api.recordAccess)
	cg.GET("/modules/:moduleID/access", api.canAccess)
	cg.POST("/modules/:moduleID/complete", api.complete)
	cg.PUT("/modules/:moduleID/checkpoint", api.saveCheckpoint)
	cg.GET("/modules/:moduleID/checkpoint", api.checkpoint)

	g.POST("/enrollments", api.enroll)
	g.GET("/enrollments", api.enrollments)

	pg := g.Group("/progress")
	pg.GET("", api.listProgress)
	pg.GET("/summary", api.summary)
	pg.GET("/recent", api.recent)
}

// Handlers

func (api *progressApi) complete(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	p, err := api.svc.MarkModuleComplete(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"), ctx.Param("moduleID"))
	if err != nil {
		return errors.Wrap(err, "marking module complete")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) canAccess(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	ok, err := api.svc.CanAccess(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"), ctx.Param("moduleID"))
	if err != nil {
		return errors.Wrap(err, "checking module access")
	}
	return ctx.JSON(http.StatusOK, AccessResponse{ModuleID: ctx.Param("moduleID"), CanAccess: ok})
}

func (api *progressApi) courseProgress(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	p, err := api.svc.GetCourseProgress(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "getting course progress")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) moduleStates(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	states, err := api.svc.ModuleStates(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"))
	if err != nil {
		return errors.Wrap(err, "getting module states")
	}
	return ctx.JSON(http.StatusOK, states)
}

func (api *progressApi) recordAccess(ctx echo.Context) error {
	var data AccessRequest
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AccessRequest")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}

	p, err := api.svc.RecordCourseAccess(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"), data.ModuleID)
	if err != nil {
		return errors.Wrap(err, "recording course access")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *progressApi) saveCheckpoint(ctx echo.Context) error {
	var data progress.SaveCheckpoint
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SaveCheckpoint")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}

	cp, err := api.svc.SaveVideoCheckpoint(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"), ctx.Param("moduleID"), data)
	if err != nil {
		return errors.Wrap(err, "saving video checkpoint")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *progressApi) checkpoint(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	cp, err := api.svc.GetVideoCheckpoint(ctx.Request().Context(), lrn.ID, ctx.Param("courseID"), ctx.Param("moduleID"))
	if err != nil {
		return errors.Wrap(err, "getting video checkpoint")
	}
	return ctx.JSON(http.StatusOK, cp)
}

func (api *progressApi) enroll(ctx echo.Context) error {
	var data progress.NewEnrollment
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewEnrollment")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}

	e, err := api.svc.Enroll(ctx.Request().Context(), lrn.ID, data)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusCreated, e)
}

func (api *progressApi) enrollments(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	list, err := api.svc.ListEnrollments(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "listing enrollments")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *progressApi) listProgress(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	list, err := api.svc.ListCourseProgress(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "listing course progress")
	}
	return ctx.JSON(http.StatusOK, list)
}

func (api *progressApi) summary(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	sum, err := api.svc.Summary(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "summarizing progress")
	}
	return ctx.JSON(http.StatusOK, sum)
}

func (api *progressApi) recent(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	p, err := api.svc.MostRecentCourse(ctx.Request().Context(), lrn.ID)
	if err != nil {
		return errors.Wrap(err, "finding most recent course")
	}
	return ctx.JSON(http.StatusOK, p)
}
