// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the gasper CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/gasper/pkg/types"
)

// version is set at build time via ldflags.
var version = "dev"

// logger is configured in PersistentPreRunE from the log flags.
var logger = slog.Default()

// rootCmd is the base command for the gasper CLI.
var rootCmd = &cobra.Command{
	Use:   "gasper",
	Short: "Static site builder with layouts, includes, and data generators",
	Long: `gasper renders a directory of Markdown and HTML documents into a static
site. Documents carry YAML frontmatter, are composed through a chain of
layouts, and may include templates from _include. A generator block in the
frontmatter multiplies one document into one page per database row or post.

Subcommands build the site once, rebuild it on every change, or serve it
with a preview server.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := newLogger(viper.GetString("log_level"), viper.GetString("log_format"))
		if err != nil {
			return err
		}
		logger = l
		slog.SetDefault(l)
		return nil
	},
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("config", "", "config file (default: ./gasper.yaml or ~/.config/gasper/gasper.yaml)")
	rootCmd.PersistentFlags().String("output-dir", "", "output directory (default dist)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().String("log-format", "text", "log format: text or json")

	_ = viper.BindPFlag("output_dir", rootCmd.PersistentFlags().Lookup("output-dir"))
	_ = viper.BindPFlag("log_level", rootCmd.PersistentFlags().Lookup("log-level"))
	_ = viper.BindPFlag("log_format", rootCmd.PersistentFlags().Lookup("log-format"))
}

func initConfig() {
	loadDotEnv(".env")

	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("gasper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "gasper"))
		}
	}

	d := types.DefaultBuildConfig()
	viper.SetDefault("site_dir", d.SiteDir)
	viper.SetDefault("output_dir", d.OutputDir)
	viper.SetDefault("keep", d.Keep)
	viper.SetDefault("layout_dir", d.LayoutDir)
	viper.SetDefault("include_dir", d.IncludeDir)
	viper.SetDefault("static_dir", d.StaticDir)
	viper.SetDefault("posts_dir", d.PostsDir)
	viper.SetDefault("site_config", d.SiteConfig)
	viper.SetDefault("secrets_dir", d.SecretsDir)
	viper.SetDefault("only", "")
	viper.SetDefault("log_level", "info")
	viper.SetDefault("log_format", "text")
	viper.SetDefault("port", 8080)

	viper.SetEnvPrefix("GASPER")
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// loadDotEnv loads path into the environment without overriding variables
// that are already set. A missing file is not an error.
func loadDotEnv(path string) {
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "warning: loading %s: %v\n", path, err)
	}
}

// loadBuildConfig decodes the tool configuration. A positional argument
// names the site directory. The site's own .env is loaded so generator
// credentials can refer to it.
func loadBuildConfig(args []string) (types.BuildConfig, error) {
	var cfg types.BuildConfig
	if err := viper.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decoding configuration: %w", err)
	}
	if len(args) > 0 {
		cfg.SiteDir = args[0]
	}
	cfg = cfg.WithDefaults()
	loadDotEnv(filepath.Join(cfg.SiteDir, ".env"))
	return cfg, nil
}

// newLogger builds the console logger: tint for text, slog's JSON handler
// otherwise.
func newLogger(level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q", level)
	}

	switch strings.ToLower(format) {
	case "", "text":
		return slog.New(tint.NewHandler(os.Stderr, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})), nil
	case "json":
		return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})), nil
	default:
		return nil, fmt.Errorf("invalid log format %q (want text or json)", format)
	}
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
