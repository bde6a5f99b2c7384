package http

import (
	"context"

	"github.com/labstack/echo/v4"

	"github.com/example/room-booking/internal/application"
)

type principalKey struct{}

// ContextWithPrincipal attaches the caller authenticated by RequireBearer.
func ContextWithPrincipal(ctx context.Context, principal application.Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, principal)
}

// PrincipalFromContext returns the stored caller. A principal without a user
// id is treated as absent.
func PrincipalFromContext(ctx context.Context) (application.Principal, bool) {
	principal, ok := ctx.Value(principalKey{}).(application.Principal)
	return principal, ok && principal.UserID != ""
}

// caller unpacks the request context and its principal for a handler.
func caller(c echo.Context) (context.Context, application.Principal) {
	ctx := c.Request().Context()
	principal, _ := PrincipalFromContext(ctx)
	return ctx, principal
}
