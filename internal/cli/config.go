package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"sloganeer/internal/config"
)

func newConfigCmd(root *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage sloganeer configuration",
		Long: `Manage sloganeer configuration files and settings.

Configuration hierarchy (highest to lowest priority):
1. CLI flags
2. Environment variables (SLOGANEER_*)
3. Config file (~/.sloganeer/config.yaml)
4. Defaults`,
	}
	cmd.AddCommand(newConfigShowCmd(root), newConfigInitCmd(root))
	return cmd
}

func newConfigShowCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Show current configuration",
		Long:  `Display the effective configuration after defaults, config file and environment are merged.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, v, err := root.settings()
			if err != nil {
				return err
			}
			if file := v.ConfigFileUsed(); file != "" {
				fmt.Fprintf(cmd.ErrOrStderr(), "Configuration file: %s\n\n", file)
			} else {
				fmt.Fprintf(cmd.ErrOrStderr(), "No configuration file found (using defaults)\n\n")
			}
			return config.WriteYAML(cmd.OutOrStdout(), cfg)
		},
	}
}

func newConfigInitCmd(root *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize default configuration file",
		Long:  `Create a configuration file with every option set to its default, at --config or ~/.sloganeer/config.yaml.`,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			path := root.cfgFile
			if path == "" {
				if path, err = config.DefaultPath(); err != nil {
					return err
				}
			}
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("config file already exists: %s\nUse 'sloganeer config show' to view it, or --force to overwrite", path)
			}
			if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
				return fmt.Errorf("error creating config directory: %w", err)
			}
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("error creating config file: %w", err)
			}
			defer func() {
				if closeErr := f.Close(); closeErr != nil && err == nil {
					err = fmt.Errorf("close config file: %w", closeErr)
				}
			}()
			if err := config.WriteYAML(f, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}
