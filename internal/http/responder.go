package http

import (
	"errors"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/example/room-booking/internal/application"
)

var (
	errBadRequestBody  = errors.New("request body is malformed")
	errMissingToken    = errors.New("bearer token is required")
	errInvalidToken    = errors.New("bearer token is invalid")
	errMissingID       = errors.New("path id is required")
	errInvalidQueryArg = errors.New("query parameters are invalid")
)

type responder struct {
	logger *zap.Logger
}

func newResponder(logger *zap.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) writeJSON(c echo.Context, status int, payload any) error {
	if status == http.StatusNoContent || payload == nil {
		return c.NoContent(status)
	}
	return c.JSON(status, payload)
}

func (r responder) writeError(c echo.Context, status int, err error) error {
	message := http.StatusText(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		handlerLogger(c.Request().Context(), r.logger, "responder", "").
			Warn("request failed", zap.Int("status", status), zap.Error(err))
	}
	return r.writeJSON(c, status, errorResponse{Message: message})
}

// handleServiceError maps application errors onto HTTP statuses.
func (r responder) handleServiceError(c echo.Context, err error) error {
	if err == nil {
		return r.writeError(c, http.StatusInternalServerError, errors.New("unknown error"))
	}

	var vErr *application.ValidationError
	switch {
	case errors.As(err, &vErr):
		return r.writeJSON(c, http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: "VALIDATION_FAILED",
			Message:   "request has invalid fields",
			Errors:    vErr.FieldErrors,
		})
	case errors.Is(err, application.ErrUnauthorized):
		return r.writeJSON(c, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "not allowed to perform this operation",
		})
	case errors.Is(err, application.ErrNotFound):
		return r.writeJSON(c, http.StatusNotFound, errorResponse{Message: "resource not found"})
	case errors.Is(err, application.ErrOverrideNotAllowed):
		return r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "OVERRIDE_NOT_ALLOWED",
			Message:   "request does not outrank every blocking booking",
		})
	case errors.Is(err, application.ErrConcurrentBooking):
		return r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "CONCURRENT_BOOKING",
			Message:   "the room changed while the request was committed; retry",
		})
	case errors.Is(err, application.ErrBookingNotActive):
		return r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "BOOKING_NOT_ACTIVE",
			Message:   "booking is no longer confirmed",
		})
	case errors.Is(err, application.ErrAlreadyExists):
		return r.writeJSON(c, http.StatusConflict, errorResponse{
			ErrorCode: "ALREADY_EXISTS",
			Message:   "resource already exists",
		})
	case errors.Is(err, application.ErrRepositoryUnavailable):
		return r.writeJSON(c, http.StatusServiceUnavailable, errorResponse{Message: "storage is unavailable"})
	default:
		return r.writeJSON(c, http.StatusInternalServerError, errorResponse{Message: "internal server error"})
	}
}

// bindError answers a failed bind: 400 for an unreadable body, 422 otherwise.
func (r responder) bindError(c echo.Context, err error) error {
	if errors.Is(err, errBadRequestBody) {
		return r.writeError(c, http.StatusBadRequest, err)
	}
	return r.handleServiceError(c, err)
}

// bind decodes the body into dst and runs struct validation. Validation
// failures come back as *application.ValidationError keyed by JSON name.
func bind(c echo.Context, dst any) error {
	if err := c.Bind(dst); err != nil {
		return errBadRequestBody
	}
	if err := c.Validate(dst); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		vErr := &application.ValidationError{FieldErrors: make(map[string]string, len(fieldErrs))}
		for _, fieldErr := range fieldErrs {
			vErr.FieldErrors[fieldPath(fieldErr.Namespace())] = validationMessage(fieldErr)
		}
		return vErr
	}
	return nil
}

// fieldPath drops the root struct name from a validator namespace.
func fieldPath(namespace string) string {
	if i := strings.Index(namespace, "."); i >= 0 {
		return namespace[i+1:]
	}
	return namespace
}

func validationMessage(fieldErr validator.FieldError) string {
	switch fieldErr.Tag() {
	case "required":
		return fieldErr.Field() + " is required"
	case "oneof":
		return fieldErr.Field() + " must be one of " + fieldErr.Param()
	case "gte":
		return fieldErr.Field() + " must be at least " + fieldErr.Param()
	case "gt":
		return fieldErr.Field() + " must be greater than " + fieldErr.Param()
	case "lte":
		return fieldErr.Field() + " must be at most " + fieldErr.Param()
	default:
		return fieldErr.Field() + " is invalid"
	}
}

// RequestValidator adapts validator/v10 to echo.Validator.
type RequestValidator struct {
	validate *validator.Validate
}

// NewRequestValidator reports field names by their JSON tag.
func NewRequestValidator() *RequestValidator {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return field.Name
		}
		return name
	})
	return &RequestValidator{validate: validate}
}

// Validate implements echo.Validator.
func (v *RequestValidator) Validate(i any) error {
	return v.validate.Struct(i)
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
