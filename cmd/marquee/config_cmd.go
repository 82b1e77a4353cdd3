package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// newConfigCmd returns the "config" subcommand group for configuration management.
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration management",
	}

	cmd.AddCommand(newConfigValidateCmd())
	return cmd
}

// newConfigValidateCmd returns the "config validate" subcommand that checks config file validity.
func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, styleSuccess.Render("✓ Configuration is valid"))
			fmt.Fprintf(out, "%s %s\n", styleDim.Render("TMDb:"), sanitizeURL(cfg.TMDb.BaseURL))
			if cfg.TMDb.CacheTTL > 0 {
				fmt.Fprintf(out, "%s %s\n", styleDim.Render("Cache TTL:"), cfg.TMDb.CacheTTL)
			}
			if cfg.Telegram != nil {
				fmt.Fprintf(out, "%s %s\n", styleDim.Render("Telegram:"), "enabled")
			}
			return nil
		},
	}
}
