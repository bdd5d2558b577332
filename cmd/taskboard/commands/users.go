package commands

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	authdomain "github.com/smallbiznis/taskboard/internal/auth/domain"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func usersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "users",
		Short: "Inspect accounts",
	}
	cmd.AddCommand(usersListCmd())
	return cmd
}

func usersListCmd() *cobra.Command {
	var (
		page    int
		perPage int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List accounts, oldest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			var svc authdomain.Service
			return runOnce(fx.Options(infraModules(), domainModules(), fx.Populate(&svc)), func(ctx context.Context) error {
				resp, err := svc.ListUsers(ctx, authdomain.ListUsersRequest{Page: page, PerPage: perPage})
				if err != nil {
					return err
				}

				w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(w, "ID\tEMAIL\tCREATED")
				for _, u := range resp.Users {
					fmt.Fprintf(w, "%s\t%s\t%s\n", u.ID, u.Email, u.CreatedAt.Format(time.RFC3339))
				}
				if err := w.Flush(); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "page %d, %d of %d\n", resp.Page, len(resp.Users), resp.Total)
				return nil
			})
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "page number, starting at 1")
	cmd.Flags().IntVar(&perPage, "per-page", 20, "accounts per page")
	return cmd
}
