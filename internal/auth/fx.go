package auth

import (
	"github.com/smallbiznis/taskboard/internal/auth/repository"
	"github.com/smallbiznis/taskboard/internal/auth/service"
	"github.com/smallbiznis/taskboard/internal/auth/session"
	"github.com/smallbiznis/taskboard/internal/ratelimit"
	"go.uber.org/fx"
)

var Module = fx.Module("auth.service",
	fx.Provide(repository.New),
	fx.Provide(service.New),
	fx.Provide(newAttemptLimiter),
	session.Module,
)

func newAttemptLimiter(l *ratelimit.LoginLimiter) service.AttemptLimiter {
	return l
}
