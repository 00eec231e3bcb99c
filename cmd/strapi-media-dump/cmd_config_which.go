/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var whichCmd = &cobra.Command{
	Use:   "which",
	Short: "Print the config file strapi-media-dump reads",
	Long: `
Print the resolved config file path, and whether it exists.  Without one, only flags count.
`,
	Args: cobra.ExactArgs(0),
	Run: func(cmd *cobra.Command, args []string) {
		printConfigPath(cmd.OutOrStdout(), ConfigActual)
	},
}

func init() {
	configCmd.AddCommand(whichCmd)
}

func printConfigPath(w io.Writer, path string) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(w, "%s (missing, using flags only)\n", path)
		return
	}
	fmt.Fprintln(w, path)
}
