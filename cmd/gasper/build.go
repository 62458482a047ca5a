// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/gasper/internal/site"
)

var buildCmd = &cobra.Command{
	Use:   "build [site]",
	Short: "Build the site once",
	Long: `Build cleans the output directory (keeping the configured entries), copies
_static to static/, and renders every document under the site directory.
Malformed frontmatter degrades a document to its raw body; any other
document failure is reported and makes the command exit non-zero.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runBuild,
}

func init() {
	buildCmd.Flags().String("only", "", "build a single source file, relative to the site directory")
	_ = viper.BindPFlag("only", buildCmd.Flags().Lookup("only"))

	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := loadBuildConfig(args)
	if err != nil {
		return err
	}

	summary, err := site.NewBuilder(cfg, logger).Build(cmd.Context())
	fmt.Fprintf(cmd.OutOrStdout(), "%d generated, %d degraded, %d failed, %d copied in %s\n",
		summary.Generated, summary.Degraded, summary.Failed, summary.Copied, summary.Duration.Round(time.Millisecond))
	return err
}
