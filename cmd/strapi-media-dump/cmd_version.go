/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"runtime/debug"
	"strings"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		info, ok := debug.ReadBuildInfo()
		if !ok {
			return fmt.Errorf("version: could not read build info")
		}
		fmt.Fprintf(cmd.OutOrStdout(), "strapi-media-dump version %s\n", shortVersion(info))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

// shortVersion renders the module version plus VCS revision, e.g. "v1.2.0-rev-abc123-dirty", or
// "devel" if the binary carries neither.
func shortVersion(info *debug.BuildInfo) string {
	revision := ""
	dirty := false
	for _, kv := range info.Settings {
		switch kv.Key {
		case "vcs.revision":
			revision = kv.Value
		case "vcs.modified":
			dirty = kv.Value == "true"
		}
	}

	parts := make([]string, 0, 4)
	if v := info.Main.Version; v != "" && v != "(devel)" {
		parts = append(parts, v)
	}
	if revision != "" {
		parts = append(parts, "rev", revision)
		if dirty {
			parts = append(parts, "dirty")
		}
	}

	if len(parts) == 0 {
		return "devel"
	}
	return strings.Join(parts, "-")
}
