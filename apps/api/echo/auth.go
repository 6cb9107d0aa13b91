package echoapi

import (
	"errors"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

var (
	errClaimsNotFound = errors.New("claims not found in echo.Context")

	// set by ConfigureAuth
	appName         string
	secretKey       []byte
	expirationDelta time.Duration

	appJWTConfig middleware.JWTConfig

	contextTokenKey = "userToken"
)

// Claims represents the authorization claims transmitted via a JWT.
// Subject carries the caller's user id; identity issuance lives outside this
// service, we only verify and read.
type Claims struct {
	jwt.StandardClaims
	Username  string   `json:"username,omitempty"`
	IsStudent bool     `json:"is_student,omitempty"`
	IsTeacher bool     `json:"is_teacher,omitempty"`
	IsAdmin   bool     `json:"is_admin,omitempty"`
	Roles     []string `json:"roles,omitempty"`
}

// ConfigureAuth sets up JWT verification and returns the auth middleware.
func ConfigureAuth(name string, secret []byte, delta time.Duration) echo.MiddlewareFunc {
	appName = name
	secretKey = secret
	expirationDelta = delta
	appJWTConfig = middleware.JWTConfig{
		SigningKey:    secretKey,
		SigningMethod: middleware.AlgorithmHS256,
		ContextKey:    contextTokenKey,
		Claims:        new(Claims),
	}
	return middleware.JWTWithConfig(appJWTConfig)
}

func getContextClaims(ctx echo.Context) (*Claims, error) {
	if token, ok := ctx.Get(contextTokenKey).(*jwt.Token); ok {
		if claims, ok := token.Claims.(*Claims); ok {
			return claims, nil
		}
	}
	return nil, errClaimsNotFound
}
