package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/Shivanand-hulikatti/eventhub/internal/database"
	"github.com/Shivanand-hulikatti/eventhub/internal/model"
)

func newReindexCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild the search index from the event catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.discovery.Reindex(cmd.Context())
			if err != nil {
				return err
			}
			log.Info("search index rebuilt", zap.Int("events", n))
			return nil
		},
	}
}

func newMigrateCmd(load loader) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create any missing tables",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := load()
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			pool, err := database.NewPool(cmd.Context(), cfg.DB, log)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := database.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			log.Info("schema applied")
			return nil
		},
	}
}

// newTokenCmd mints a bearer token for local testing. The user is not looked
// up; the service checks the stored role on every request.
func newTokenCmd(load loader) *cobra.Command {
	var (
		username string
		role     string
	)
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Print a signed bearer token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := load()
			if err != nil {
				return err
			}
			j, err := jwtFromConfig(cfg.Auth)
			if err != nil {
				return err
			}
			r, ok := model.ParseRole(role)
			if !ok {
				return fmt.Errorf("unknown role %q", role)
			}

			tok, exp, err := j.Sign(model.Identity{Username: username, Role: r})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", exp.Format("2006-01-02 15:04:05 MST"))
			return nil
		},
	}
	cmd.Flags().StringVar(&username, "user", "", "username placed in the sub claim")
	cmd.Flags().StringVar(&role, "role", "attendee", "attendee or organizer")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}
