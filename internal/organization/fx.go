package organization

import (
	"github.com/smallbiznis/taskboard/internal/cache"
	"github.com/smallbiznis/taskboard/internal/organization/repository"
	"github.com/smallbiznis/taskboard/internal/organization/service"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.service",
	fx.Provide(repository.NewRepository),
	fx.Provide(cache.NewProfileCache),
	fx.Provide(service.NewService),
)
