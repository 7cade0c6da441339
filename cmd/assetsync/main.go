package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/assetsync/internal/client"
	"github.com/openmined/assetsync/internal/client/config"
	"github.com/openmined/assetsync/internal/router"
	"github.com/openmined/assetsync/internal/syncer"
	"github.com/openmined/assetsync/internal/utils"
	"github.com/openmined/assetsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const envPrefix = "ASSETSYNC"

// fileLogger writes to the log file only. The progress view swaps it in so
// log lines do not tear the terminal UI.
var fileLogger *slog.Logger

var rootCmd = &cobra.Command{
	Use:     "assetsync",
	Short:   "Sync versioned game assets from a remote origin",
	Version: version.Detailed(),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if err := cfg.Validate(); err != nil {
			return err
		}

		// all good now
		cmd.SilenceUsage = true

		noTUI, _ := cmd.Flags().GetBool("no-tui")
		useTUI := !noTUI && isatty.IsTerminal(os.Stdout.Fd())

		var opts []client.Option
		if !useTUI {
			opts = append(opts, client.WithReporter(syncer.LogReporter{}))
		}

		c, err := client.New(cmd.Context(), cfg, opts...)
		if err != nil {
			return err
		}
		defer c.Close()

		if useTUI {
			return runSyncTUI(cmd.Context(), c)
		}

		res, err := c.Sync(cmd.Context())
		if err != nil {
			return err
		}
		printResult(cmd.OutOrStdout(), res)
		return nil
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	addClientFlags(rootCmd.PersistentFlags())
	rootCmd.Flags().Bool("no-tui", false, "Log progress instead of drawing a progress view")
}

func addClientFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "c", config.DefaultConfigPath, "AssetSync config file")
	flags.StringP("bundled", "b", "", "Bundled (read-only) asset directory")
	flags.StringP("datadir", "d", config.DefaultDataDir, "Writable directory for downloaded assets")
	flags.StringP("remote", "r", "", "Remote origin URL (http, https or s3)")
	flags.StringSlice("dynamic-only", nil, "Fetch these paths or globs on first use instead of during sync")
	flags.Int("threshold", router.DefaultFullPackageThreshold, "Bundled file count a major downgrade must exceed to run from bundled files")
	flags.String("read-policy", "", "Force the read policy (same_to_remote, bundled_only, remote_only)")
	flags.Bool("offline-fallback", false, "Serve bundled files when the remote is unreachable")
}

func main() {
	// TODO unique log file per data dir once several games share one machine
	logFile := config.DefaultLogFilePath

	if err := utils.EnsureParent(logFile); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create log directory: %v\n", err)
		os.Exit(1)
	}

	file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open log file: %v\n", err)
		os.Exit(1)
	}
	defer file.Close()

	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})
	logInterceptor := utils.NewLogInterceptor(file)
	defer logInterceptor.Close()
	fileHandler := slog.NewTextHandler(logInterceptor, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		// the interceptor stamps the time itself
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey && len(groups) == 0 {
				return slog.Attr{}
			}
			return a
		},
	})

	fileLogger = slog.New(fileHandler)
	slog.SetDefault(slog.New(utils.NewMultiLogHandler(stdoutHandler, fileHandler)))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, lowest first: the config file, ASSETSYNC_* env vars
// and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	v := viper.New()

	configPath := resolveConfigPath(cmd)
	v.SetConfigFile(configPath)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		var notFound viper.ConfigFileNotFoundError
		if !enoent && !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", configPath, err)
		}
	}

	flags := cmd.Flags()
	bind := map[string]string{
		"bundled_dir":            "bundled",
		"data_dir":               "datadir",
		"remote_url":             "remote",
		"dynamic_only":           "dynamic-only",
		"full_package_threshold": "threshold",
		"read_policy":            "read-policy",
		"offline_fallback":       "offline-fallback",
	}
	for key, flag := range bind {
		if f := flags.Lookup(flag); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// AutomaticEnv only covers keys viper already knows about
	for _, key := range []string{
		"manifest_name", "version_name", "progress_interval", "journal_path", "retry_count",
		"s3.region", "s3.access_key", "s3.secret_key", "s3.endpoint",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := &config.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	cfg.Path = configPath
	if cfg.DataDir == "" {
		cfg.DataDir = config.DefaultDataDir
	}
	return cfg, nil
}

func newClient(cmd *cobra.Command, opts ...client.Option) (*client.Client, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cmd.SilenceUsage = true
	return client.New(cmd.Context(), cfg, opts...)
}

func defaultConfigDirs() []string {
	return []string{
		filepath.Dir(config.DefaultConfigPath),
		filepath.Join(home, ".config", "assetsync"),
	}
}
