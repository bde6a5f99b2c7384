package http

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/logging"
)

// Claims is the bearer token payload. Subject identifies the caller.
type Claims struct {
	Admin bool `json:"admin,omitempty"`
	jwt.RegisteredClaims
}

// IssueToken signs an HS256 token for principal valid for ttl.
func IssueToken(secret []byte, principal application.Principal, ttl time.Duration, now time.Time) (string, error) {
	claims := Claims{
		Admin: principal.IsAdmin,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   principal.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

// RequireBearer verifies the Authorization header and stores the principal in
// the request context.
func RequireBearer(secret []byte, logger *zap.Logger) echo.MiddlewareFunc {
	responder := newResponder(logger)
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			header := c.Request().Header.Get(echo.HeaderAuthorization)
			raw, ok := strings.CutPrefix(header, "Bearer ")
			if !ok || strings.TrimSpace(raw) == "" {
				return responder.writeError(c, http.StatusUnauthorized, errMissingToken)
			}

			var claims Claims
			_, err := parser.ParseWithClaims(strings.TrimSpace(raw), &claims, func(*jwt.Token) (any, error) {
				return secret, nil
			})
			if err != nil {
				if errors.Is(err, jwt.ErrTokenExpired) {
					return responder.writeError(c, http.StatusUnauthorized, errors.New("bearer token has expired"))
				}
				return responder.writeError(c, http.StatusUnauthorized, errInvalidToken)
			}
			if strings.TrimSpace(claims.Subject) == "" {
				return responder.writeError(c, http.StatusUnauthorized, errInvalidToken)
			}

			principal := application.Principal{UserID: claims.Subject, IsAdmin: claims.Admin}
			ctx := ContextWithPrincipal(c.Request().Context(), principal)
			if base := logging.FromContext(ctx); base != nil {
				ctx = logging.ContextWithLogger(ctx, base.With(zap.String("principal_id", principal.UserID)))
			}
			c.SetRequest(c.Request().WithContext(ctx))
			return next(c)
		}
	}
}

// RequestLogger assigns a request id, attaches a request scoped logger to the
// context and logs start and completion.
func RequestLogger(base *zap.Logger) echo.MiddlewareFunc {
	base = defaultLogger(base)

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			id := req.Header.Get(echo.HeaderXRequestID)
			if id == "" {
				id = uuid.NewString()
			}
			c.Response().Header().Set(echo.HeaderXRequestID, id)

			logger := base.With(
				zap.String("request_id", id),
				zap.String("method", req.Method),
				zap.String("path", req.URL.Path),
			)
			c.SetRequest(req.WithContext(logging.ContextWithLogger(req.Context(), logger)))

			start := time.Now()
			logger.Info("request started")
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			logger.Info("request completed",
				zap.Int("status", c.Response().Status),
				zap.Duration("duration", time.Since(start)),
			)
			return nil
		}
	}
}
