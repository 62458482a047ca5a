// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"github.com/spf13/cobra"

	"github.com/pdiddy/gasper/internal/site"
	"github.com/pdiddy/gasper/internal/watch"
	"github.com/pdiddy/gasper/pkg/types"
)

var watchCmd = &cobra.Command{
	Use:   "watch [site]",
	Short: "Build the site and rebuild it on every change",
	Long: `Watch builds the site, then runs a full rebuild for every change under the
site directory. A failed rebuild is logged and watching continues.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, err := loadBuildConfig(args)
	if err != nil {
		return err
	}
	w, err := startWatch(cmd, cfg, nil)
	if err != nil {
		return err
	}
	defer w.Close()
	return w.Run(cmd.Context())
}

// startWatch runs the initial build and returns a watcher ready to run.
// onBuild observes every build, including the initial one.
func startWatch(cmd *cobra.Command, cfg types.BuildConfig, onBuild func(site.Summary, error)) (*watch.Watcher, error) {
	cfg.Only = ""
	b := site.NewBuilder(cfg, logger)

	summary, err := b.Build(cmd.Context())
	if err != nil {
		logger.Error("initial build failed", "build.id", summary.ID, "error", err)
	}
	if onBuild != nil {
		onBuild(summary, err)
	}

	w, err := watch.New(cfg.SiteDir, cfg.OutputDir, b, logger)
	if err != nil {
		return nil, err
	}
	w.OnBuild = onBuild
	return w, nil
}
