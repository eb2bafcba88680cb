// Package auth verifies who is talking to the decision endpoints.
//
// Admin identity arrives as a JWS (HS256) issued by the operator's identity
// provider. Shepherd only verifies and reads the subject; it issues nothing.
package auth

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	apierr "github.com/cloudpasture/shepherd/pkg/api/types/errors"
)

const adminContextKey = "shepherd.admin"

// AdminOnly rejects requests without a valid admin token.
//
// The verified subject is stored in the request context; read it back with
// AdminFrom.
func AdminOnly(hmacKey []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			token, found := strings.CutPrefix(header, "Bearer ")
			if !found || token == "" {
				return apierr.Unauthorized("admin token is required", nil)
			}

			parsed, err := jwt.Parse(
				token,
				func(t *jwt.Token) (interface{}, error) {
					if t.Method.Alg() != jwt.SigningMethodHS256.Name {
						return nil, fmt.Errorf("unsupported algorithm: %s", t.Method.Alg())
					}
					return hmacKey, nil
				},
				jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
			)
			if err != nil || !parsed.Valid {
				return apierr.Unauthorized("admin token is not valid", err)
			}

			subject, err := parsed.Claims.GetSubject()
			if err != nil || subject == "" {
				return apierr.Unauthorized("admin token has no subject", err)
			}

			c.Set(adminContextKey, subject)
			return next(c)
		}
	}
}

// AdminFrom reads the verified admin subject set by AdminOnly.
func AdminFrom(c echo.Context) string {
	if subject, ok := c.Get(adminContextKey).(string); ok {
		return subject
	}
	return ""
}
