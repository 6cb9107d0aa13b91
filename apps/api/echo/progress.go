package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/somakids/engage/core/progress"
)

type progressApi struct {
	service *progress.Service
}

func registerProgressAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *progress.Service) {
	api := progressApi{service: svc}

	pg := g.Group("/progress", jwt)
	pg.POST("/ping", api.progressPing, studentMiddleware())
	pg.GET("/:lessonId", api.progressRetrieve)
}

// Handlers

func (api *progressApi) progressPing(ctx echo.Context) error {
	data := new(progress.Ping)
	if err := ctx.Bind(data); err != nil {
		return err
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	rec, err := api.service.ApplyPing(claims.Subject, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}

func (api *progressApi) progressRetrieve(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return err
	}

	// admins (teacher/parent dashboards go through them) may read any
	// learner's record; everyone else reads their own
	userID := claims.Subject
	if qUserID := ctx.QueryParam("user_id"); qUserID != "" && qUserID != userID {
		if !claims.IsAdmin {
			return errHttpForbidden
		}
		userID = qUserID
	}

	rec, err := api.service.Get(userID, ctx.Param("lessonId"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, rec)
}
