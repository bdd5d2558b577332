package commands

import (
	"github.com/spf13/cobra"
)

func Execute() error {
	root := &cobra.Command{
		Use:           "taskboard",
		Short:         "Task, project and team board backend",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	root.AddCommand(serveCmd(), schedulerCmd(), migrateCmd(), seedCmd(), usersCmd())
	return root.Execute()
}
