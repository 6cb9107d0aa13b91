package echoapi

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/somakids/engage/core/session"
	"github.com/somakids/engage/core/telemetry"
)

var errSessionNotFoundInCtx = errors.New("session object not found in echo.Context")

type sessionApi struct {
	service    *session.Service
	aggregator *telemetry.Aggregator
}

func registerSessionAPI(g *echo.Group, jwt echo.MiddlewareFunc, svc *session.Service, agg *telemetry.Aggregator) {
	api := sessionApi{service: svc, aggregator: agg}

	sg := g.Group("/sessions", jwt)
	sg.POST("", api.sessionStart, studentMiddleware())

	// detail endpoints
	dg := sg.Group("/:id", ctxSessionMiddleware(api.service))
	dg.GET("", api.sessionRetrieve)
	dg.POST("/end", api.sessionEnd)
	dg.POST("/telemetry", api.telemetryIngest)
}

// Handlers

func (api *sessionApi) sessionStart(ctx echo.Context) error {
	data := new(session.NewSession)
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

	sess, err := api.service.Start(claims.Subject, *data)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusCreated, sess)
}

func (api *sessionApi) sessionRetrieve(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errSessionNotFoundInCtx
	}
	return ctx.JSON(http.StatusOK, sess)
}

func (api *sessionApi) sessionEnd(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errSessionNotFoundInCtx
	}

	// flush the final engagement reading before the state is discarded
	resp := EndSessionResponse{}
	if snap, ok := api.aggregator.Snapshot(sess.ID); ok && sess.IsOpen() {
		resp.Engagement = &snap
	}

	sess, err := api.service.End(sess.ID)
	if err != nil {
		return err
	}
	resp.Session = sess

	return ctx.JSON(http.StatusOK, resp)
}

func (api *sessionApi) telemetryIngest(ctx echo.Context) error {
	sess, ok := ctx.Get("object").(session.Session)
	if !ok {
		return errSessionNotFoundInCtx
	}
	if !sess.IsOpen() {
		return errHttpSessionClosed
	}

	data := new(IngestRequest)
	if err := ctx.Bind(data); err != nil {
		return err
	}

	// partial-failure semantics: a bad sample is reported in place, never at
	// the expense of its siblings
	results := make([]IngestResult, 0, len(data.Samples))
	for _, raw := range data.Samples {
		raw.SessionID = sess.ID
		smp, err := telemetry.Decode(raw)
		if err != nil {
			results = append(results, IngestResult{Error: err.Error()})
			continue
		}
		decision := api.aggregator.Ingest(smp)
		results = append(results, IngestResult{Decision: &decision})
	}

	return ctx.JSON(http.StatusOK, IngestResponse{Results: results})
}

// ctxSessionMiddleware loads the referenced session and enforces that only
// its owner (or an admin) may touch it. Anything else reads as not found.
func ctxSessionMiddleware(svc *session.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return err
			}

			sess, err := svc.Get(ctx.Param("id"))
			if err != nil {
				if err == session.NotFoundErr {
					return errHttpNotFound
				}
				return err
			}

			if sess.UserID != claims.Subject && !claims.IsAdmin {
				return errHttpNotFound
			}
			ctx.Set("object", sess)
			return next(ctx)
		}
	}
}

type (
	IngestRequest struct {
		Samples []telemetry.RawSample `json:"samples"`
	}

	IngestResult struct {
		Decision *telemetry.Decision `json:"decision,omitempty"`
		Error    string              `json:"error,omitempty"`
	}

	IngestResponse struct {
		Results []IngestResult `json:"results"`
	}

	EndSessionResponse struct {
		Session    session.Session            `json:"session"`
		Engagement *telemetry.EngagementState `json:"engagement,omitempty"`
	}
)
