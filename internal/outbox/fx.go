package outbox

import (
	"github.com/smallbiznis/taskboard/internal/outbox/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("outbox",
	fx.Provide(repository.Provide),
	fx.Provide(NewPublisher),
)
