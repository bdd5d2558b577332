package commands

import (
	"github.com/smallbiznis/taskboard/internal/migration"
	"github.com/smallbiznis/taskboard/internal/scheduler"
	"github.com/smallbiznis/taskboard/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, applying migrations first",
		RunE: func(cmd *cobra.Command, args []string) error {
			app := fx.New(
				infraModules(),
				domainModules(),
				server.Module,
				scheduler.Module,
				migration.Module,
			)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}
}
