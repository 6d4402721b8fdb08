package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"account-service/cmd/api/app"
	"account-service/cmd/api/server"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "application exited with error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "account-service",
		Short:         "User registration and login service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runServe,
	}

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Start the gRPC, REST gateway and Gin servers",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "Create or update the database schema",
			RunE: func(*cobra.Command, []string) error {
				return app.Migrate()
			},
		},
	)
	return root
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := app.New(cmd.Context())
	if err != nil {
		return err
	}

	ctx, stop := server.WithSignal(cmd.Context(), a.Logger)
	defer stop()

	if err := a.Run(ctx); err != nil {
		a.Logger.Error("application stopped with error", zap.Error(err))
		return err
	}
	return nil
}
