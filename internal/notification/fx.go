package notification

import (
	"github.com/smallbiznis/taskboard/internal/notification/domain"
	"github.com/smallbiznis/taskboard/internal/notification/service"
	"go.uber.org/fx"
)

var Module = fx.Module("notification.service",
	fx.Provide(service.NewService),
	fx.Provide(func(s *service.Service) domain.Service { return s }),
)
