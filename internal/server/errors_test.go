package server

import (
	"fmt"
	"net/http"
	"testing"

	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/smallbiznis/taskboard/internal/authorization"
	organizationdomain "github.com/smallbiznis/taskboard/internal/organization/domain"
	projectdomain "github.com/smallbiznis/taskboard/internal/project/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	teamdomain "github.com/smallbiznis/taskboard/internal/team/domain"
	"github.com/smallbiznis/taskboard/pkg/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapErrorStatus(t *testing.T) {
	cases := []struct {
		err    error
		status int
		kind   string
	}{
		{authdomain.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized"},
		{authorization.ErrForbidden, http.StatusForbidden, "forbidden"},
		{repository.ErrCrossOrgWrite, http.StatusForbidden, "forbidden"},
		{teamdomain.ErrNotFound, http.StatusNotFound, "not_found"},
		{fmt.Errorf("load: %w", taskdomain.ErrNotFound), http.StatusNotFound, "not_found"},
		{organizationdomain.ErrLastAdmin, http.StatusConflict, "conflict"},
		{authdomain.ErrTooManyAttempts, http.StatusTooManyRequests, "rate_limited"},
		{taskdomain.ErrTitleRequired, http.StatusBadRequest, "validation_error"},
		{projectdomain.ErrInvalidDates, http.StatusBadRequest, "validation_error"},
		{fmt.Errorf("boom"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		status, payload := mapError(tc.err)
		assert.Equal(t, tc.status, status, tc.err.Error())
		assert.Equal(t, tc.kind, payload.Type, tc.err.Error())
	}
}

func TestValidationErrorFields(t *testing.T) {
	_, payload := mapError(taskdomain.ErrTitleRequired)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "title", payload.Errors[0].Field)
	assert.Equal(t, "title_required", payload.Errors[0].Code)

	_, payload = mapError(taskdomain.ErrAssigneeNotMember)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "user_id", payload.Errors[0].Field)

	_, payload = mapError(taskdomain.ErrProjectNotFound)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "project_id", payload.Errors[0].Field)

	_, payload = mapError(teamdomain.ErrInvalidName)
	require.Len(t, payload.Errors, 1)
	assert.Equal(t, "name", payload.Errors[0].Field)
}

func TestClassifyErrorForLog(t *testing.T) {
	kind, code := classifyErrorForLog(teamdomain.ErrNotFound)
	assert.Equal(t, "client", kind)
	assert.Equal(t, "not_found", code)

	kind, _ = classifyErrorForLog(fmt.Errorf("db down"))
	assert.Equal(t, "server", kind)
}
