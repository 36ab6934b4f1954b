package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

func newRootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           "komprice",
		Short:         "Marketplace listing scraper and price catalog",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	root.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml or json); KOMPRICE_* env vars override it")

	root.AddCommand(
		newScrapeCommand(),
		newEnqueueCommand(),
		newWorkerCommand(),
		newServeCommand(),
		newMigrateCommand(),
		newBootstrapCommand(),
	)
	return root
}

// execute runs the CLI; SIGINT and SIGTERM cancel the root context.
func execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCommand().ExecuteContext(ctx)
}
