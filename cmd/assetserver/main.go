package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/openmined/assetsync/internal/server"
	"github.com/openmined/assetsync/internal/server/blob"
	"github.com/openmined/assetsync/internal/version"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	envPrefix      = "ASSETSERVER"
	configFileName = "config"
)

var rootCmd = &cobra.Command{
	Use:     "assetserver",
	Short:   "Serve published asset packages to AssetSync clients",
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
		setLogLevel(cfg.LogLevel)
		slog.Info("assetserver", "version", version.Version, "config", cfg)

		srv, err := server.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer slog.Info("Bye!")
		return srv.Start(cmd.Context())
	},
}

var logLevel = new(slog.LevelVar)

func init() {
	rootCmd.Flags().SortFlags = false
	addServerFlags(rootCmd.Flags())
}

func addServerFlags(flags *pflag.FlagSet) {
	flags.StringP("config", "f", "", "Path to the config file (yaml or json)")
	flags.StringP("bind", "b", server.DefaultAddr, "Address to bind the server")
	flags.StringP("cert", "c", "", "Path to the certificate file")
	flags.StringP("key", "k", "", "Path to the key file")
	flags.StringP("assets", "a", "", "Directory holding the published asset package")
	flags.String("asset-version", "", "Override the published version marker")
	flags.Bool("watch", false, "Rebuild the served manifest when the assets directory changes")
	flags.String("rate-limit", server.DefaultRateLimit, "Per client request rate, e.g. 100-S or 1000-M")
	flags.String("log-level", "info", "Log level: debug, info, warn or error")
}

func main() {
	// a missing .env is fine, anything else is worth knowing about
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "Failed to load .env: %v\n", err)
	}

	logLevel.Set(slog.LevelInfo)
	slog.SetDefault(slog.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevel,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges, lowest first: defaults, the config file,
// ASSETSERVER_* env vars and explicitly set flags.
func loadConfig(cmd *cobra.Command) (*server.Config, error) {
	v := viper.New()

	v.SetDefault("http.addr", server.DefaultAddr)
	v.SetDefault("rate_limit", server.DefaultRateLimit)
	v.SetDefault("log_level", "info")
	v.SetDefault("assets.manifest_name", "filelist.txt")
	v.SetDefault("assets.version_name", "version.txt")
	v.SetDefault("assets.cache_ttl", blob.DefaultCacheTTL)

	if path, _ := cmd.Flags().GetString("config"); path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName(configFileName)
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/assetserver")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config read '%s': %w", v.ConfigFileUsed(), err)
		}
	}

	flags := cmd.Flags()
	bind := map[string]string{
		"http.addr":      "bind",
		"http.cert_file": "cert",
		"http.key_file":  "key",
		"assets.dir":     "assets",
		"assets.version": "asset-version",
		"assets.watch":   "watch",
		"rate_limit":     "rate-limit",
		"log_level":      "log-level",
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
	// s3 has no defaults, so AutomaticEnv alone never sees these keys
	for _, key := range []string{
		"s3.bucket_name", "s3.prefix", "s3.region", "s3.access_key",
		"s3.secret_key", "s3.endpoint", "s3.use_accelerate",
	} {
		if err := v.BindEnv(key); err != nil {
			return nil, err
		}
	}

	cfg := &server.Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config decode: %w", err)
	}
	if cfg.S3 != nil && cfg.S3.BucketName == "" {
		cfg.S3 = nil
	}
	return cfg, nil
}

func setLogLevel(level string) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		slog.Warn("unknown log level, keeping info", "level", level)
		return
	}
	logLevel.Set(l)
}
