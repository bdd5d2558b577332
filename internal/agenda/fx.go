package agenda

import (
	"github.com/smallbiznis/taskboard/internal/agenda/service"
	"github.com/smallbiznis/taskboard/internal/cache"
	calendardomain "github.com/smallbiznis/taskboard/internal/calendar/domain"
	taskdomain "github.com/smallbiznis/taskboard/internal/task/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("agenda.service",
	fx.Provide(service.NewService),
	fx.Provide(
		func(c *cache.AgendaCache) taskdomain.AgendaInvalidator { return c },
		func(c *cache.AgendaCache) calendardomain.AgendaInvalidator { return c },
	),
)
