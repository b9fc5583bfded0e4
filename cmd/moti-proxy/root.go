package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/moti-app/moti-proxy/internal/guard"
	"github.com/moti-app/moti-proxy/internal/version"
)

func newRootCommand() *cobra.Command {
	var root string

	serve := newServeCommand(&root)
	rootCmd := &cobra.Command{
		Use:           "moti-proxy",
		Short:         "Chat relay for the Moti assistant",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve.RunE,
	}
	rootCmd.PersistentFlags().StringVar(&root, "root", ".", "Directory holding .env and config/")

	rootCmd.AddCommand(serve)
	rootCmd.AddCommand(newVersionCommand())
	rootCmd.AddCommand(newSimilarCommand())
	return rootCmd
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version.FullInfo())
			return err
		},
	}
}

func newSimilarCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "similar <a> <b>",
		Short: "Report whether two replies would be flagged as repetitive",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), guard.Similar(args[0], args[1]))
			return err
		},
	}
}
