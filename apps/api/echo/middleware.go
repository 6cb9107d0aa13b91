package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// studentMiddleware restricts an endpoint to learner accounts. Telemetry and
// progress only ever originate from the student portal.
func studentMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsStudent || claims.IsAdmin {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
