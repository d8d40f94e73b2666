package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"golang.org/x/exp/slog"

	"github.com/MJE43/fortune-wheel-go/internal/lib/logger/sl"
	"github.com/MJE43/fortune-wheel-go/internal/service"
	"github.com/MJE43/fortune-wheel-go/internal/wheel"
)

// APIError is the body of every error response.
type APIError struct {
	Type      string         `json:"type"`
	Message   string         `json:"message"`
	Context   map[string]any `json:"context,omitempty"`
	RequestID string         `json:"request_id,omitempty"`
	Timestamp string         `json:"timestamp,omitempty"`
}

func (e APIError) Error() string {
	return e.Message
}

// Error types outside the wheel error kinds.
const (
	ErrTypeValidation    = "validation_error"
	ErrTypeBadRequest    = "bad_request"
	ErrTypeNotFound      = "wheel_not_found"
	ErrTypeUnauthorized  = "unauthorized"
	ErrTypeTimeout       = "timeout"
	ErrTypeInternal      = "internal_error"
	ErrTypeUnavailable   = "service_unavailable"
	ErrTypeRouteNotFound = "not_found"
)

// ErrorCategory groups error types for logs and the X-Error-Category header.
type ErrorCategory string

const (
	CategoryValidation ErrorCategory = "validation"
	CategoryWheel      ErrorCategory = "wheel"
	CategorySystem     ErrorCategory = "system"
)

// GetErrorCategory returns the category for an error type.
func GetErrorCategory(errType string) ErrorCategory {
	switch errType {
	case ErrTypeValidation, ErrTypeBadRequest, ErrTypeUnauthorized,
		string(wheel.KindInvalidRateTotal), string(wheel.KindInvalidIndex), string(wheel.KindInvalidSlice):
		return CategoryValidation
	case ErrTypeNotFound,
		string(wheel.KindEmptySliceSet), string(wheel.KindInsufficientSlices), string(wheel.KindUnselectableSet):
		return CategoryWheel
	default:
		return CategorySystem
	}
}

// ErrorBuilder assembles an APIError.
type ErrorBuilder struct {
	errType   string
	message   string
	context   map[string]any
	requestID string
}

// NewError starts an error of the given type.
func NewError(errType, message string) *ErrorBuilder {
	return &ErrorBuilder{
		errType: errType,
		message: message,
		context: make(map[string]any),
	}
}

func (eb *ErrorBuilder) WithContext(key string, value any) *ErrorBuilder {
	eb.context[key] = value
	return eb
}

func (eb *ErrorBuilder) WithRequestID(requestID string) *ErrorBuilder {
	eb.requestID = requestID
	return eb
}

func (eb *ErrorBuilder) WithCause(err error) *ErrorBuilder {
	if err != nil {
		eb.context["cause"] = err.Error()
	}
	return eb
}

func (eb *ErrorBuilder) Build() APIError {
	e := APIError{
		Type:      eb.errType,
		Message:   eb.message,
		RequestID: eb.requestID,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if len(eb.context) > 0 {
		e.Context = eb.context
	}
	return e
}

// classify maps an error returned by the service to a status and APIError.
func classify(r *http.Request, err error) (int, APIError) {
	reqID := middleware.GetReqID(r.Context())

	if errors.Is(err, service.ErrWheelNotFound) {
		return http.StatusNotFound, NewError(ErrTypeNotFound, "wheel not found").
			WithRequestID(reqID).
			Build()
	}

	var we *wheel.Error
	if errors.As(err, &we) {
		b := NewError(string(we.Kind), we.Error()).
			WithRequestID(reqID).
			WithContext("op", we.Op)
		switch we.Kind {
		case wheel.KindInvalidRateTotal, wheel.KindInvalidIndex, wheel.KindInvalidSlice:
			return http.StatusUnprocessableEntity, b.Build()
		case wheel.KindEmptySliceSet, wheel.KindInsufficientSlices, wheel.KindUnselectableSet:
			return http.StatusConflict, b.Build()
		default:
			return http.StatusInternalServerError, b.Build()
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, NewError(ErrTypeTimeout, "request timed out").
			WithRequestID(reqID).
			Build()
	}

	return http.StatusInternalServerError, NewError(ErrTypeInternal, "internal server error").
		WithRequestID(reqID).
		Build()
}

// writeError logs and writes an APIError.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, status int, apiErr APIError, cause error) {
	log := s.log.With(
		slog.String("type", apiErr.Type),
		slog.String("category", string(GetErrorCategory(apiErr.Type))),
		slog.Int("status", status),
		slog.String("path", r.URL.Path),
		slog.String("request_id", apiErr.RequestID),
	)
	if cause != nil {
		log = log.With(sl.Err(cause))
	}
	if status >= http.StatusInternalServerError {
		log.Error(apiErr.Message)
	} else {
		log.Warn(apiErr.Message)
	}

	w.Header().Set("X-Wheel-Version", Version)
	w.Header().Set("X-Error-Type", apiErr.Type)
	w.Header().Set("X-Error-Category", string(GetErrorCategory(apiErr.Type)))
	render.Status(r, status)
	render.JSON(w, r, apiErr)
}

// handleError classifies err and writes the response.
func (s *Server) handleError(w http.ResponseWriter, r *http.Request, err error) {
	status, apiErr := classify(r, err)
	s.writeError(w, r, status, apiErr, err)
}

// badRequest writes a 400 validation error for field.
func (s *Server) badRequest(w http.ResponseWriter, r *http.Request, field, message string) {
	apiErr := NewError(ErrTypeValidation, fmt.Sprintf("Validation failed: %s", message)).
		WithRequestID(middleware.GetReqID(r.Context())).
		WithContext("field", field).
		Build()
	s.writeError(w, r, http.StatusBadRequest, apiErr, nil)
}

// recoverer turns a panic into a 500 APIError.
func (s *Server) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rvr := recover()
			if rvr == nil {
				return
			}
			if rvr == http.ErrAbortHandler {
				panic(rvr)
			}
			apiErr := NewError(ErrTypeInternal, "internal server error").
				WithRequestID(middleware.GetReqID(r.Context())).
				WithContext("panic", fmt.Sprintf("%v", rvr)).
				Build()
			s.writeError(w, r, http.StatusInternalServerError, apiErr, nil)
		}()

		next.ServeHTTP(w, r)
	})
}
