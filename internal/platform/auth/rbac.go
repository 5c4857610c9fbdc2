package auth

import (
	"github.com/labstack/echo/v4"

	"github.com/carelink/carelink/internal/platform/apperr"
)

// RequireRole returns middleware that admits only callers holding one of roles.
func RequireRole(roles ...Role) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			caller, err := Caller(c)
			if err != nil {
				return err
			}
			for _, r := range roles {
				if caller.Role == r {
					return next(c)
				}
			}
			return apperr.ToHTTP(apperr.ErrUnauthorized)
		}
	}
}
