package auth

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// LogoutHandler revokes the token presented with the request. The route must
// sit behind JWTMiddleware.
func LogoutHandler(store RevocationStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		claims, ok := TokenClaims(c)
		if !ok {
			return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
		}

		if err := store.Revoke(c.Request().Context(), claims.ID, claims.ExpiresAt.Time); err != nil {
			return err
		}
		return c.JSON(http.StatusOK, map[string]string{"message": "Logged out"})
	}
}
