package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/fifosk/ebook-tools-sub003/internal/cleanup"
	"github.com/fifosk/ebook-tools-sub003/internal/version"
)

func execute() {
	cmd := newRootCmd()
	err := cmd.Execute()
	if cleanupErr := cleanup.RunAll(); cleanupErr != nil {
		fmt.Fprintln(os.Stderr, cleanupErr)
		if err == nil {
			err = cleanupErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ebook-tools",
		Short: "Sentence-level book and subtitle translation pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			if hasAnyFlagSet(cmd) {
				_ = cmd.Usage()
				return fmt.Errorf("a subcommand is required")
			}
			return cmd.Help()
		},
		SilenceUsage: true,
	}

	cmd.Version = version.Version
	cmd.SetVersionTemplate("{{.Version}}\n")

	cmd.AddCommand(
		newRunCmd(),
		newMetadataCmd(),
		newJobsCmd(),
		newLanguagesCmd(),
		newConfigCmd(),
	)
	return cmd
}

func hasAnyFlagSet(cmd *cobra.Command) bool {
	changed := false
	cmd.Flags().Visit(func(_ *pflag.Flag) {
		changed = true
	})
	return changed
}
