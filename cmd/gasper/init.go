// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/pdiddy/gasper/internal/site"
)

var initCmd = &cobra.Command{
	Use:   "init [site]",
	Short: "Create a starter site",
	Long: `Init writes a starter site: a configuration file, a base layout, a post
layout, an include, a stylesheet, an index listing posts, and a first post.
Existing files are left untouched.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := "."
		if len(args) > 0 {
			dir = args[0]
		}
		written, err := site.Scaffold(dir, time.Now())
		for _, rel := range written {
			fmt.Fprintln(cmd.OutOrStdout(), "  ", rel)
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Site initialized in %s (%d files).\n", dir, len(written))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
