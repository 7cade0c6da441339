package main

import (
	"fmt"

	"github.com/openmined/assetsync/internal/client/config"
	"github.com/openmined/assetsync/internal/utils"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(newInitCmd())
}

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a config file from the given flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := resolveConfigPath(cmd)
			if utils.FileExists(path) && !force {
				existing, err := config.LoadClientConfig(path)
				if err == nil {
					fmt.Fprintln(cmd.OutOrStdout(), "AssetSync already initialized")
					printConfig(cmd, existing)
					return nil
				}
			}

			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			cfg.Path = path
			if err := cfg.Validate(); err != nil {
				return err
			}
			if err := cfg.Save(); err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), "AssetSync initialized")
			printConfig(cmd, cfg)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")
	return cmd
}

func printConfig(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Config Path: %s\n", green.Render(cfg.Path))
	fmt.Fprintf(out, "Bundled Dir: %s\n", cyan.Render(cfg.BundledDir))
	fmt.Fprintf(out, "Data Dir:    %s\n", cyan.Render(cfg.DataDir))
	fmt.Fprintf(out, "Remote:      %s\n", cyan.Render(cfg.RemoteURL))
}
