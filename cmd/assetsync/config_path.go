package main

import (
	"os"
	"path/filepath"

	"github.com/openmined/assetsync/internal/utils"
	"github.com/spf13/cobra"
)

var home, _ = os.UserHomeDir()

// resolveConfigPath determines which config file path to use, honoring (in order):
// 1) An explicitly set --config flag
// 2) ASSETSYNC_CONFIG_PATH environment variable
// 3) Existing config files in common locations
// 4) The default path
func resolveConfigPath(cmd *cobra.Command) string {
	if cfgFlag := cmd.Flag("config"); cfgFlag != nil && cfgFlag.Changed {
		return cfgFlag.Value.String()
	}

	if envPath := os.Getenv(envPrefix + "_CONFIG_PATH"); envPath != "" {
		return envPath
	}

	dirs := defaultConfigDirs()
	for _, dir := range dirs {
		candidate := filepath.Join(dir, "config.json")
		if utils.FileExists(candidate) {
			return candidate
		}
	}

	return filepath.Join(dirs[0], "config.json")
}
