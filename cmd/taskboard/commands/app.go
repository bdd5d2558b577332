package commands

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/internal/agenda"
	"github.com/smallbiznis/taskboard/internal/audit"
	"github.com/smallbiznis/taskboard/internal/auth"
	"github.com/smallbiznis/taskboard/internal/authorization"
	"github.com/smallbiznis/taskboard/internal/cache"
	"github.com/smallbiznis/taskboard/internal/calendar"
	"github.com/smallbiznis/taskboard/internal/clock"
	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/notification"
	"github.com/smallbiznis/taskboard/internal/observability"
	"github.com/smallbiznis/taskboard/internal/organization"
	"github.com/smallbiznis/taskboard/internal/outbox"
	"github.com/smallbiznis/taskboard/internal/project"
	"github.com/smallbiznis/taskboard/internal/providers"
	"github.com/smallbiznis/taskboard/internal/ratelimit"
	"github.com/smallbiznis/taskboard/internal/signup"
	"github.com/smallbiznis/taskboard/internal/task"
	"github.com/smallbiznis/taskboard/internal/team"
	"github.com/smallbiznis/taskboard/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

const oneShotTimeout = 2 * time.Minute

// infraModules is the shared base: configuration, logging and tracing, ids
// and the database.
func infraModules() fx.Option {
	return fx.Options(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
	)
}

func domainModules() fx.Option {
	return fx.Options(
		cache.Module,
		ratelimit.Module,
		outbox.Module,
		audit.Module,
		authorization.Module,
		auth.Module,
		organization.Module,
		team.Module,
		project.Module,
		task.Module,
		calendar.Module,
		agenda.Module,
		signup.Module,
		providers.Module,
		notification.Module,
	)
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}

// quietFxLogger routes fx lifecycle events through the application logger
// so one-shot commands keep stdout for their own output.
func quietFxLogger() fx.Option {
	return fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	})
}

// runOnce starts an app, runs fn with the populated targets and stops the
// app again.
func runOnce(opts fx.Option, fn func(ctx context.Context) error) error {
	app := fx.New(opts, quietFxLogger())
	if err := app.Err(); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), oneShotTimeout)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return err
	}
	runErr := fn(ctx)
	if err := app.Stop(context.Background()); err != nil && runErr == nil {
		return err
	}
	return runErr
}
