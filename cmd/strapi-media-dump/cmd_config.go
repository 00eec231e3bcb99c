/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var configUsage = strings.TrimSpace(`
Inspect how strapi-media-dump is configured.  Settings come from ~/.config/strapi-media-dump.yaml (or
whatever --config or STRAPI_MEDIA_DUMP_CONFIG point at), and flags given on the command line win.
Keys mirror the flag names, e.g.:

  api-url: https://cms.example.com
  store: ~/strapi-media
  auth-token-cmd: [pass, show, strapi/token]
  workers: 8
  remote-file-headers:
    X-Cdn-Key: abc
`)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect the config file and its effective settings",
	Long:  configUsage,
}

func init() {
	rootCmd.AddCommand(configCmd)
}
