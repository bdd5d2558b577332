package team

import (
	"github.com/smallbiznis/taskboard/internal/team/repository"
	"github.com/smallbiznis/taskboard/internal/team/service"
	"go.uber.org/fx"
)

var Module = fx.Module("team.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
