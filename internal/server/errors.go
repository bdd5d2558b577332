package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	agendadomain "github.com/smallbiznis/taskboard/internal/agenda/domain"
	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/authorization"
	calendardomain "github.com/smallbiznis/taskboard/internal/calendar/domain"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	signupdomain "github.com/smallbiznis/taskboard/internal/signup/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrConflict           = errors.New("conflict")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrServiceUnavailable = errors.New("service_unavailable")
	ErrTooManyRequests    = errors.New("too_many_requests")
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	switch {
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authdomain.ErrInvalidCredentials),
		errors.Is(err, authdomain.ErrInvalidSession),
		errors.Is(err, authdomain.ErrSessionNotFound),
		errors.Is(err, authdomain.ErrSessionExpired),
		errors.Is(err, authdomain.ErrSessionRevoked):
		return http.StatusUnauthorized, errorPayload{
			Type:    "unauthorized",
			Message: "unauthorized",
		}
	case isForbiddenError(err):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: "forbidden",
		}
	case errors.Is(err, ErrConflict),
		errors.Is(err, authdomain.ErrUserExists),
		errors.Is(err, organizationdomain.ErrAlreadyMember),
		errors.Is(err, organizationdomain.ErrLastAdmin):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrTooManyRequests),
		errors.Is(err, authdomain.ErrTooManyAttempts):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

// classifyErrorForLog feeds the request logger with the same type the client sees.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return "server", payload.Type
	}
	return "client", payload.Type
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, signupdomain.ErrInvalidRequest),
		errors.Is(err, authdomain.ErrInvalidEmail),
		errors.Is(err, authdomain.ErrWeakPassword),
		errors.Is(err, authdomain.ErrInvalidResetToken):
		return true
	case isOrganizationValidationError(err),
		isTeamValidationError(err),
		isProjectValidationError(err),
		isTaskValidationError(err),
		isCalendarValidationError(err):
		return true
	default:
		return false
	}
}

func isOrganizationValidationError(err error) bool {
	switch {
	case errors.Is(err, organizationdomain.ErrInvalidName),
		errors.Is(err, organizationdomain.ErrInvalidUser),
		errors.Is(err, organizationdomain.ErrInvalidEmail),
		errors.Is(err, organizationdomain.ErrInvalidPhone),
		errors.Is(err, organizationdomain.ErrInvalidInvite),
		errors.Is(err, organizationdomain.ErrInviteEmailMismatch):
		return true
	default:
		return false
	}
}

func isTeamValidationError(err error) bool {
	switch {
	case errors.Is(err, teamdomain.ErrInvalidName),
		errors.Is(err, teamdomain.ErrInvalidTeam),
		errors.Is(err, teamdomain.ErrInvalidUser),
		errors.Is(err, teamdomain.ErrNotOrgMember):
		return true
	default:
		return false
	}
}

func isProjectValidationError(err error) bool {
	switch {
	case errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrInvalidProject),
		errors.Is(err, projectdomain.ErrInvalidStatus),
		errors.Is(err, projectdomain.ErrInvalidDates),
		errors.Is(err, projectdomain.ErrTeamNotFound):
		return true
	default:
		return false
	}
}

func isTaskValidationError(err error) bool {
	switch {
	case errors.Is(err, taskdomain.ErrInvalidTask),
		errors.Is(err, taskdomain.ErrTitleRequired),
		errors.Is(err, taskdomain.ErrInvalidStatus),
		errors.Is(err, taskdomain.ErrInvalidPriority),
		errors.Is(err, taskdomain.ErrProjectRequired),
		errors.Is(err, taskdomain.ErrProjectNotFound),
		errors.Is(err, taskdomain.ErrTeamNotFound),
		errors.Is(err, taskdomain.ErrAssigneeNotMember),
		errors.Is(err, taskdomain.ErrParentNotFound):
		return true
	default:
		return false
	}
}

func isCalendarValidationError(err error) bool {
	switch {
	case errors.Is(err, calendardomain.ErrInvalidEvent),
		errors.Is(err, calendardomain.ErrTitleRequired),
		errors.Is(err, calendardomain.ErrInvalidRange),
		errors.Is(err, calendardomain.ErrInvalidRecurrence),
		errors.Is(err, calendardomain.ErrTeamNotFound),
		errors.Is(err, calendardomain.ErrProjectNotFound):
		return true
	default:
		return false
	}
}

func isForbiddenError(err error) bool {
	switch {
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrInvalidOrganization),
		errors.Is(err, organizationdomain.ErrInvalidOrganization),
		errors.Is(err, organizationdomain.ErrNoOrganization),
		errors.Is(err, agendadomain.ErrInvalidOrganization),
		errors.Is(err, repository.ErrMissingOrg),
		errors.Is(err, repository.ErrCrossOrgWrite):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, authdomain.ErrUserNotFound),
		errors.Is(err, organizationdomain.ErrNotFound),
		errors.Is(err, organizationdomain.ErrProfileNotFound),
		errors.Is(err, teamdomain.ErrNotFound),
		errors.Is(err, teamdomain.ErrMemberNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, taskdomain.ErrNotFound),
		errors.Is(err, calendardomain.ErrNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, organizationdomain.ErrLastAdmin):
		return "organization must keep at least one admin"
	case errors.Is(err, organizationdomain.ErrAlreadyMember):
		return "user is already a member"
	case errors.Is(err, authdomain.ErrUserExists):
		return "user already exists"
	default:
		return "conflict"
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, signupdomain.ErrInvalidRequest):
		return "invalid_request"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch {
	case code == "invalid_request":
		return "request"
	case code == "invalid_date_range":
		return "due_date"
	case code == "invalid_time_range":
		return "ends_at"
	case code == "user_not_in_organization", code == "assignee_not_in_organization":
		return "user_id"
	case strings.HasPrefix(code, "invalid_"):
		return strings.TrimPrefix(code, "invalid_")
	case strings.HasSuffix(code, "_required"):
		return strings.TrimSuffix(code, "_required")
	case strings.HasSuffix(code, "_not_found"):
		return strings.TrimSuffix(code, "_not_found") + "_id"
	default:
		return ""
	}
}

func validationErrorMessage(code string) string {
	switch {
	case code == "invalid_request":
		return "invalid request"
	case strings.HasSuffix(code, "_required"):
		return "is required"
	case strings.HasSuffix(code, "_not_found"):
		return "does not exist in this organization"
	default:
		return "invalid value"
	}
}
