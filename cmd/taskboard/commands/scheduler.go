package commands

import (
	"context"

	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func schedulerCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "scheduler",
		Short: "Run background jobs without the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if once {
				var sched *scheduler.Scheduler
				return runOnce(fx.Options(
					infraModules(),
					domainModules(),
					fx.Provide(scheduler.ProvideConfig, scheduler.New),
					fx.Populate(&sched),
				), func(ctx context.Context) error {
					return sched.RunOnce(ctx)
				})
			}

			app := fx.New(
				infraModules(),
				domainModules(),
				fx.Decorate(func(cfg config.Config) config.Config {
					cfg.Scheduler.Enabled = true
					return cfg
				}),
				scheduler.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "run every enabled job a single time and exit")
	return cmd
}
