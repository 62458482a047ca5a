// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/gasper/internal/preview"
)

var serveCmd = &cobra.Command{
	Use:   "serve [site]",
	Short: "Build, watch, and serve the site for preview",
	Long: `Serve builds the site, rebuilds it on every change, and serves the output
directory over HTTP. Build metrics are exposed at /metrics.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func init() {
	serveCmd.Flags().Int("port", 0, "preview port (default 8080)")
	serveCmd.Flags().String("host", "127.0.0.1", "preview listen address")
	_ = viper.BindPFlag("port", serveCmd.Flags().Lookup("port"))

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadBuildConfig(args)
	if err != nil {
		return err
	}
	port := viper.GetInt("port")
	if port == 0 {
		port = 8080
	}
	host, _ := cmd.Flags().GetString("host")

	metrics := preview.NewMetrics()
	w, err := startWatch(cmd, cfg, metrics.Observe)
	if err != nil {
		return err
	}
	defer w.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()
	watchErr := make(chan error, 1)
	go func() { watchErr <- w.Run(ctx) }()

	srv := preview.NewServer(cfg.OutputDir, metrics, logger)
	serveErr := srv.ListenAndServe(ctx, fmt.Sprintf("%s:%d", host, port))
	cancel()
	if err := <-watchErr; err != nil {
		return err
	}
	return serveErr
}
