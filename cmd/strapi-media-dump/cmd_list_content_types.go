/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/spf13/cobra"
	"github.com/toothbrush/strapi-media-dump/strapi"
	"golang.org/x/exp/maps"
)

var listContentTypesUsage = strings.TrimSpace(`
Print the content types and components of your Strapi instance, with the attributes the media
download looks into.
`)

var listContentTypesCmd = &cobra.Command{
	Use:   "content-types",
	Short: "Print content types and their media-bearing attributes",
	Long:  listContentTypesUsage,
	Args:  cobra.ExactArgs(0),
	RunE: func(cmd *cobra.Command, args []string) error {
		api, err := newAPI()
		if err != nil {
			return err
		}

		logger := getLogger("list")
		logger.Info().Str("api_url", api.URL()).Msg("listing content types")
		schemas, err := api.GetSchemas(cmd.Context())
		if err != nil {
			return fmt.Errorf("list: couldn't list content types: %w", err)
		}

		printSchemas(cmd.OutOrStdout(), schemas)
		return nil
	},
}

func init() {
	listCmd.AddCommand(listContentTypesCmd)
}

func printSchemas(w io.Writer, schemas strapi.SchemaSet) {
	uids := maps.Keys(schemas)
	sort.Strings(uids)

	fmt.Fprintf(w, "content-types:\n")
	for _, uid := range uids {
		attrs := schemas[uid].Attributes()
		names := maps.Keys(attrs)
		sort.Strings(names)

		fields := []string{}
		for _, name := range names {
			attr := attrs[name]
			switch attr.Kind() {
			case strapi.KindOpaque:
				continue
			case strapi.KindComponent:
				fields = append(fields, fmt.Sprintf("%s(%s→%s)", name, attr.Kind(), attr.Component))
			case strapi.KindRelation:
				fields = append(fields, fmt.Sprintf("%s(%s→%s)", name, attr.Kind(), attr.Target))
			default:
				fields = append(fields, fmt.Sprintf("%s(%s)", name, attr.Kind()))
			}
		}

		fmt.Fprintf(w, "  - %s: %s\n", uid, strings.Join(fields, ", "))
	}
}
