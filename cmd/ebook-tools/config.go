package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/fifosk/ebook-tools-sub003/internal/config"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage configuration and secrets",
	}
	cmd.AddCommand(newConfigInitCmd(), newConfigSetSecretCmd(), newConfigDeleteSecretCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a config file with documented defaults",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := defaultConfigPath()
			if len(args) == 1 {
				path = args[0]
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			}
			if err := config.Save(path, config.Default()); err != nil {
				return err
			}
			fmt.Println("Wrote " + path)
			return nil
		},
		SilenceUsage: true,
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

var secretNames = []string{
	config.SecretGeminiAPIKey,
	config.SecretTMDBAPIKey,
	config.SecretOMDbAPIKey,
}

func knownSecret(name string) bool {
	for _, s := range secretNames {
		if s == name {
			return true
		}
	}
	return false
}

func newConfigSetSecretCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set-secret <name>",
		Short: "Store an API key in the system keyring",
		Long:  "Store an API key in the system keyring.\nKnown names: " + strings.Join(secretNames, ", "),
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !knownSecret(name) {
				return fmt.Errorf("unknown secret %q (known: %s)", name, strings.Join(secretNames, ", "))
			}
			if !term.IsTerminal(int(os.Stdin.Fd())) {
				return fmt.Errorf("set-secret needs an interactive terminal")
			}
			fmt.Printf("Value for %s: ", name)
			value, err := term.ReadPassword(int(os.Stdin.Fd()))
			fmt.Println()
			if err != nil {
				return fmt.Errorf("read secret: %w", err)
			}
			trimmed := strings.TrimSpace(string(value))
			if trimmed == "" {
				return fmt.Errorf("empty value, nothing stored")
			}
			if err := config.StoreSecret(name, trimmed); err != nil {
				return err
			}
			fmt.Println("Stored.")
			return nil
		},
		SilenceUsage: true,
	}
	return cmd
}

func newConfigDeleteSecretCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete-secret <name>",
		Short: "Remove an API key from the system keyring",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := args[0]
			if !knownSecret(name) {
				return fmt.Errorf("unknown secret %q", name)
			}
			if err := config.DeleteSecret(name); err != nil {
				return err
			}
			fmt.Println("Deleted.")
			return nil
		},
		SilenceUsage: true,
	}
}
