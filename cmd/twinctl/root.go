package main

import (
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/templui/twinboard/internal/logger"
)

func newRootCommand(opts ...contextOption) *cobra.Command {
	var flags rootFlags

	ctx := newCommandContext(&flags, opts...)

	rootCmd := &cobra.Command{
		Use:           "twinctl",
		Short:         "Record, upload and commit digital twin samples",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if flags.verbose {
				slog.SetDefault(logger.New(cmd.ErrOrStderr(), true, ""))
			} else {
				slog.SetDefault(logger.Quiet(cmd.ErrOrStderr()))
			}
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&flags.config, "config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringVar(&flags.server, "server", "", "Server base URL (overrides server_url)")
	rootCmd.PersistentFlags().StringVar(&flags.token, "token", "", "Bearer token (overrides token and TWINCTL_TOKEN)")
	rootCmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Log debug output to stderr")

	rootCmd.AddCommand(newOnboardCommand(ctx))
	rootCmd.AddCommand(newUploadCommand(ctx))
	rootCmd.AddCommand(newProbeCommand(ctx))
	rootCmd.AddCommand(newJobCommand(ctx))
	rootCmd.AddCommand(newTokenCommand())
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
