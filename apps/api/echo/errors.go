package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/somakids/engage/core"
	"github.com/somakids/engage/core/progress"
	"github.com/somakids/engage/core/session"
	logsvc "github.com/somakids/engage/services/logger"
)

var (
	errHttpForbidden      = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound       = echo.NewHTTPError(http.StatusNotFound, "not found")
	errHttpSessionClosed  = echo.NewHTTPError(http.StatusConflict, "session is closed")
	errHttpStartConflict  = echo.NewHTTPError(http.StatusConflict, session.StartConflictErr.Error())
	errHttpStorageDown    = echo.NewHTTPError(http.StatusServiceUnavailable, "storage temporarily unavailable; retry with backoff")
	errHttpLessonNotFound = echo.NewHTTPError(http.StatusNotFound, progress.LessonNotFoundErr.Error())
)

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(logger core.Logger, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		if core.IsUnavailable(err) {
			writeError(ctx, errHttpStorageDown.Code, errHttpStorageDown.Message)
			return
		}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(core.Translator)
			}
			code = http.StatusBadRequest
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusBadRequest
		default:
			switch origErr {
			case session.NotFoundErr, progress.NotFoundErr:
				code = http.StatusNotFound
				message = origErr.Error()
			case progress.LessonNotFoundErr:
				code = errHttpLessonNotFound.Code
				message = errHttpLessonNotFound.Message
			case session.StartConflictErr:
				code = errHttpStartConflict.Code
				message = errHttpStartConflict.Message
			default: // any other error is a server error
				code = http.StatusInternalServerError
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var person logsvc.Person
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					person.ID = claims.Subject
					person.Username = claims.Username
				}
				logger.Error(msg, errors.Wrap(err, msg), person)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug {
			message = err.Error()
		}
		writeError(ctx, code, message)
	}
}

func writeError(ctx echo.Context, code int, message interface{}) {
	if m, ok := message.(string); ok {
		message = echo.Map{"error": m}
	}

	// Send response
	if !ctx.Response().Committed {
		var err error
		if ctx.Request().Method == http.MethodHead { // Issue #608
			err = ctx.NoContent(code)
		} else {
			err = ctx.JSON(code, message)
		}
		if err != nil {
			ctx.Echo().Logger.Error(err)
		}
	}
}
