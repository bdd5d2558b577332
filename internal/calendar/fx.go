package calendar

import (
	"github.com/smallbiznis/taskboard/internal/calendar/repository"
	"github.com/smallbiznis/taskboard/internal/calendar/service"
	"go.uber.org/fx"
)

var Module = fx.Module("calendar.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
