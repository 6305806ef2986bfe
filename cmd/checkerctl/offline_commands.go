package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/noah-isme/fourset-checker/internal/app"
	"github.com/noah-isme/fourset-checker/internal/models"
	"github.com/noah-isme/fourset-checker/internal/service"
)

func (c *cli) catalogCheckCommand() *cobra.Command {
	var path string
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Load and validate the task catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if path == "" {
				cfg, _, err := c.setup()
				if err != nil {
					return err
				}
				path = cfg.Engine.CatalogPath
			}
			catalog, err := app.LoadCatalog(path, nil)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "catalog %s: %d tasks in %d sets, %d precedence rules\n",
				path, len(catalog.Tasks()), len(catalog.Sets()), len(catalog.Precedence()))
			for _, set := range catalog.Sets() {
				fmt.Fprintf(out, "  %s: %v\n", set.ID, set.TaskIDs)
			}
			for _, warning := range catalog.Warnings() {
				fmt.Fprintf(out, "warning: %s\n", warning)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&path, "path", "", "catalog file (defaults to CATALOG_PATH)")
	return cmd
}

func (c *cli) tokenCommand() *cobra.Command {
	var operatorID, role string
	var ttl time.Duration
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an operator token for the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := models.OperatorRole(role)
			if r != models.RoleViewer && r != models.RoleOperator {
				return fmt.Errorf("role must be %s or %s", models.RoleViewer, models.RoleOperator)
			}
			cfg, _, err := c.setup()
			if err != nil {
				return err
			}
			token, err := service.NewTokenService(cfg.JWT.Secret).Issue(operatorID, r, ttl)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&operatorID, "operator", "", "operator ID")
	cmd.Flags().StringVar(&role, "role", string(models.RoleViewer), "viewer or operator")
	cmd.Flags().DurationVar(&ttl, "ttl", 12*time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("operator")
	return cmd
}
