package commands

import (
	"context"
	"fmt"

	"github.com/smallbiznis/taskboard/internal/config"
	"github.com/smallbiznis/taskboard/internal/seed"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func seedCmd() *cobra.Command {
	var (
		email    string
		password string
	)

	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the default organization, admin account and General team",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				conn *gorm.DB
				cfg  config.Config
			)
			return runOnce(fx.Options(infraModules(), fx.Populate(&conn, &cfg)), func(ctx context.Context) error {
				admin := seed.Admin{Email: cfg.Bootstrap.AdminEmail, Password: cfg.Bootstrap.AdminPassword}
				if email != "" {
					admin.Email = email
				}
				if password != "" {
					admin.Password = password
				}

				if admin.Email == "" && admin.Password == "" {
					org, err := seed.EnsureMainOrg(conn, cfg.DefaultOrgID)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "organization %s (%s)\n", org.ID, org.Slug)
					return nil
				}

				if err := seed.EnsureMainOrgAndAdmin(conn, cfg.DefaultOrgID, admin); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "seeded admin %s\n", admin.Email)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (default BOOTSTRAP_ADMIN_EMAIL)")
	cmd.Flags().StringVar(&password, "password", "", "admin password (default BOOTSTRAP_ADMIN_PASSWORD)")
	return cmd
}
