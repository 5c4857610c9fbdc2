package auth

import (
	"context"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// Role is the kind of account a token was issued to. It is fixed at login and
// carried in the token, so it is never re-derived from the directory.
type Role string

const (
	RolePatient   Role = "patient"
	RoleClinician Role = "clinician"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RolePatient || r == RoleClinician
}

// Identity is the authenticated caller. Handlers pass it to services as an
// explicit argument.
type Identity struct {
	ID   uuid.UUID `json:"id"`
	Role Role      `json:"role"`
}

func (i Identity) IsPatient() bool   { return i.Role == RolePatient }
func (i Identity) IsClinician() bool { return i.Role == RoleClinician }

type contextKey string

const IdentityKey contextKey = "identity"

// echo context keys, set alongside the request context values.
const (
	identityCtxKey = "auth_identity"
	claimsCtxKey   = "auth_claims"
)

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, IdentityKey, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(IdentityKey).(Identity)
	return id, ok
}

// Caller returns the identity attached by JWTMiddleware. A request that reached
// a handler without one is rejected with 401.
func Caller(c echo.Context) (Identity, error) {
	if id, ok := c.Get(identityCtxKey).(Identity); ok {
		return id, nil
	}
	if id, ok := IdentityFromContext(c.Request().Context()); ok {
		return id, nil
	}
	return Identity{}, echo.NewHTTPError(http.StatusUnauthorized, "missing identity")
}

// SetCaller attaches id to both the echo context and the request context.
func SetCaller(c echo.Context, id Identity) {
	c.Set(identityCtxKey, id)
	c.SetRequest(c.Request().WithContext(WithIdentity(c.Request().Context(), id)))
}

// TokenClaims returns the verified claims of the current request's token.
func TokenClaims(c echo.Context) (*Claims, bool) {
	claims, ok := c.Get(claimsCtxKey).(*Claims)
	return claims, ok
}
