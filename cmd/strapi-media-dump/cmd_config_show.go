/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v2"
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective settings",
	Long: `
Print the settings strapi-media-dump ends up with after reading the config file and the global
flags, as YAML.  Download-specific settings show as they appear in the config file.
`,
	Args: cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		effective := ParsedConfig
		effective.APIURL = APIURL
		effective.StorePath = LocalStore
		effective.AuthTokenCmd = AuthTokenCmd
		return printConfig(cmd.OutOrStdout(), ConfigActual, Debug, effective)
	},
}

func init() {
	configCmd.AddCommand(showCmd)
}

func printConfig(w io.Writer, path string, debug bool, c YamlConfig) error {
	out, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("config: couldn't render settings: %w", err)
	}
	fmt.Fprintf(w, "# config file: %s\n# debug: %v\n", path, debug)
	_, err = w.Write(out)
	return err
}
