/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Explore what the Strapi instance knows about",
	Long: `
Ask Strapi's content-type-builder which content types and components exist, so you know which uid
to pass to download.
`,
}

func init() {
	rootCmd.AddCommand(listCmd)
}
