package main

import (
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var configFlag string
	var storeFlag string

	ctx := newCommandContext(&configFlag, &storeFlag)

	rootCmd := &cobra.Command{
		Use:           "kalonctl",
		Short:         "KalonConnect video service administration",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := ctx.ensureConfig()
			return err
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return ctx.close()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Service configuration file path")
	rootCmd.PersistentFlags().StringVar(&storeFlag, "store", "", "Override video.store (file, redis, memory)")

	rootCmd.AddCommand(newConfigCommand(ctx))
	rootCmd.AddCommand(newTokenCommand(ctx))
	rootCmd.AddCommand(newRecordingsCommand(ctx))

	return rootCmd
}
