package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/tayari/core/learner"
)

type learnerApi struct {
	svc      *learner.Service
	validate *validator.Validate
}

func registerLearnerAPI(g *echo.Group, svc *learner.Service, validate *validator.Validate) {
	api := learnerApi{svc: svc, validate: validate}

	g.GET("/me", api.me)

	lg := g.Group("/learners")
	lg.POST("", api.create, roleMiddleware(learner.RoleAdmin))
	lg.GET("", api.query, roleMiddleware(learner.RoleAdmin, learner.RoleManager))
	lg.GET("/roles", api.queryRoles)
	lg.PUT("/:id", api.update, roleMiddleware(learner.RoleAdmin))
}

// Handlers

func (api *learnerApi) me(ctx echo.Context) error {
	lrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	return ctx.JSON(http.StatusOK, lrn)
}

func (api *learnerApi) create(ctx echo.Context) error {
	var data learner.NewLearner
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewLearner")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	// ctxLearner cannot set a role > their own
	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	if err = learner.CheckRolePriority(ctxLrn, data.Role); err != nil {
		return err
	}

	lrn, err := api.svc.Create(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating learner")
	}
	return ctx.JSON(http.StatusCreated, lrn)
}

func (api *learnerApi) query(ctx echo.Context) error {
	filter := new(learner.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []learner.Learner{})
	}
	filter.Clean()
	ordering := new(Ordering)
	ordering.Bind(ctx)

	// managers only see their direct reports
	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	if !ctxLrn.IsAdmin() {
		filter.ManagerID = ctxLrn.ID
	}

	learners, err := api.svc.Query(ctx.Request().Context(), filter, ordering.Orderings)
	if err != nil {
		return errors.Wrap(err, "querying learners")
	}
	if learners == nil {
		learners = []learner.Learner{}
	}
	return ctx.JSON(http.StatusOK, learners)
}

func (api *learnerApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, learner.Roles)
}

func (api *learnerApi) update(ctx echo.Context) error {
	var data learner.UpdateLearner
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateLearner")
	}
	if err := data.Validate(api.validate); err != nil {
		return err
	}

	ctxLrn, err := getContextLearner(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context learner")
	}
	if data.Role != "" {
		if err = learner.CheckRolePriority(ctxLrn, data.Role); err != nil {
			return err
		}
	}
	// Say No to Suicide! ctxLearner cannot deactivate themselves
	if ctx.Param("id") == ctxLrn.ID && data.IsActive != nil && !*data.IsActive {
		return errHttpForbidden
	}

	lrn, err := api.svc.Update(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating learner")
	}
	return ctx.JSON(http.StatusOK, lrn)
}
