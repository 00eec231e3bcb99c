/*
Copyright © 2024 paul <paul@denknerd.org>
*/
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"

	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/toothbrush/strapi-media-dump/markdown"
	"github.com/toothbrush/strapi-media-dump/mediadump"
	"github.com/toothbrush/strapi-media-dump/strapi"
	"github.com/vbauerster/mpb/v8"
	"github.com/vbauerster/mpb/v8/decor"
	"gopkg.in/dnaeon/go-vcr.v3/cassette"
	"gopkg.in/dnaeon/go-vcr.v3/recorder"
)

var downloadUsage = strings.TrimSpace(`
Download the media of a batch of entries of one content type.  ENTRIES is a JSON file holding an
array of entries (or Strapi's {"data": [...]} response), "-" for stdin.  The entries, with local file
ids attached, are written to --output.
`)

var downloadCmd = &cobra.Command{
	Use:   "download CONTENT-TYPE-UID ENTRIES",
	Short: "Download media referenced by Strapi entries",
	Long:  downloadUsage,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDownload(cmd.Context(), args[0], args[1])
	},
}

var (
	WithVCR           bool
	HTMLImages        bool
	Prune             bool
	Workers           int
	Output            string
	SchemaFiles       []string
	RemoteFileHeaders map[string]string
)

func init() {
	rootCmd.AddCommand(downloadCmd)

	downloadCmd.Flags().BoolVar(&WithVCR, "with-vcr", false, "use go-vcr to cache Strapi API responses")
	downloadCmd.Flags().BoolVar(&HTMLImages, "html-images", false, "also find <img> tags in rich text")
	downloadCmd.Flags().BoolVar(&Prune, "prune", false, "delete stored files of this content type that these entries no longer reference")
	downloadCmd.Flags().IntVar(&Workers, "workers", 4, "number of entries to process concurrently")
	downloadCmd.Flags().StringVarP(&Output, "output", "o", "-", "where to write the resulting entries")
	downloadCmd.Flags().StringSliceVar(&SchemaFiles, "schemas", []string{}, "read schemas from these files instead of the content-type-builder API")
	downloadCmd.Flags().StringToStringVar(&RemoteFileHeaders, "remote-file-headers", map[string]string{}, "extra HTTP headers for file downloads, KEY=VALUE")
}

func runDownload(ctx context.Context, uid string, entriesPath string) error {
	logger := getLogger("download")

	if LocalStore == "" {
		return fmt.Errorf("download: no location set for the local store.  Use --store or set it in your config file")
	}

	storePath, err := homedir.Expand(LocalStore)
	if err != nil {
		return fmt.Errorf("download: couldn't expand homedir: %w", err)
	}

	store, err := mediadump.OpenStore(storePath)
	if err != nil {
		return fmt.Errorf("download: couldn't open local store: %w", err)
	}
	// downloads and cache hits are claimed for uid, and --prune only looks at uid's claims.
	store.Nodes.Owner = uid

	api, err := newAPI()
	if err != nil {
		return err
	}

	if WithVCR {
		// set up VCR recordings.
		opts := &recorder.Options{
			CassetteName:       "fixtures/strapi-api",
			Mode:               recorder.ModeReplayWithNewEpisodes,
			SkipRequestLatency: true,
			RealTransport:      http.DefaultTransport,
		}
		r, err := recorder.NewWithOptions(opts)
		if err != nil {
			return fmt.Errorf("download: couldn't set up go-vcr recording: %w", err)
		}

		defer r.Stop() // Make sure recorder is stopped once done with it

		// Add a hook which removes Authorization headers from all requests
		hook := func(i *cassette.Interaction) error {
			delete(i.Request.Headers, "Authorization")
			return nil
		}
		r.AddHook(hook, recorder.AfterCaptureHook)
		r.SetReplayableInteractions(true)

		api.Client = r.GetDefaultClient()
	}

	schemas, err := loadSchemas(ctx, api)
	if err != nil {
		return err
	}
	if _, ok := schemas.Lookup(uid); !ok {
		return fmt.Errorf("download: unknown content type %s", uid)
	}

	entities, err := readEntities(entriesPath)
	if err != nil {
		return err
	}
	logger.Info().Int("entries", len(entities)).Str("uid", uid).Msg("downloading media")

	resolver := &mediadump.Resolver{
		APIURL:  api.URL(),
		Headers: RemoteFileHeaders,
		Cache:   store.Cache,
		Nodes:   store.Nodes,
		Fetcher: mediadump.NewHTTPFetcher(store.Nodes, nil, Workers*2),
		Logger:  getLogger("resolver"),
	}

	extractorOpts := []markdown.Option{}
	if HTMLImages {
		extractorOpts = append(extractorOpts, markdown.WithHTMLImages())
	}

	p := mpb.New(mpb.WithWidth(64), mpb.WithOutput(os.Stderr))
	bar := p.AddBar(int64(len(entities)),
		mpb.PrependDecorators(
			decor.Name("entries:", decor.WC{C: decor.DindentRight | decor.DextraSpace}),
		),
		mpb.AppendDecorators(
			decor.CountersNoUnit("(%d/%d) "),
			decor.NewPercentage("%d"),
		),
	)

	walker := &mediadump.Walker{
		APIURL:    api.URL(),
		Schemas:   schemas,
		Files:     api,
		Resolver:  resolver,
		Extractor: markdown.NewExtractor(extractorOpts...),
		Workers:   Workers,
		OnEntity:  bar.Increment,
		Logger:    getLogger("walker"),
	}

	results := walker.DownloadMediaFiles(ctx, entities, uid)

	// wait for our bar to complete and flush
	p.Wait()

	if err := writeEntities(Output, results); err != nil {
		return err
	}

	if Prune {
		pruned, err := mediadump.Prune(store.Nodes, getLogger("prune"))
		if err != nil {
			return fmt.Errorf("download: failed to prune: %w", err)
		}
		logger.Info().Int("files", pruned).Msg("pruned")
	}

	if err := store.Flush(); err != nil {
		return fmt.Errorf("download: couldn't save local store: %w", err)
	}

	stats := resolver.Stats()
	logger.Info().
		Int64("cached", stats.Hits).
		Int64("downloaded", stats.Downloads).
		Int64("failed", stats.Failures).
		Msg("done")

	return nil
}

func loadSchemas(ctx context.Context, api *strapi.API) (strapi.SchemaSet, error) {
	if len(SchemaFiles) > 0 {
		paths := make([]string, 0, len(SchemaFiles))
		for _, f := range SchemaFiles {
			p, err := homedir.Expand(f)
			if err != nil {
				return nil, fmt.Errorf("download: couldn't expand homedir: %w", err)
			}
			paths = append(paths, p)
		}
		schemas, err := strapi.LoadSchemas(paths...)
		if err != nil {
			return nil, fmt.Errorf("download: couldn't load schemas: %w", err)
		}
		return schemas, nil
	}

	schemas, err := api.GetSchemas(ctx)
	if err != nil {
		return nil, fmt.Errorf("download: couldn't fetch schemas: %w", err)
	}
	return schemas, nil
}

func readEntities(p string) ([]mediadump.Entity, error) {
	var source []byte
	var err error
	if p == "-" {
		source, err = io.ReadAll(os.Stdin)
	} else {
		source, err = os.ReadFile(p)
	}
	if err != nil {
		return nil, fmt.Errorf("download: couldn't read entries: %w", err)
	}

	return parseEntities(source)
}

// parseEntities accepts a bare array of entries or a {"data": [...]} envelope.  Numbers are kept
// as json.Number so ids survive the round trip untouched.
func parseEntities(source []byte) ([]mediadump.Entity, error) {
	source = bytes.TrimSpace(source)

	d := json.NewDecoder(bytes.NewReader(source))
	d.UseNumber()

	if len(source) > 0 && source[0] == '[' {
		var entities []mediadump.Entity
		if err := d.Decode(&entities); err != nil {
			return nil, fmt.Errorf("download: couldn't parse entries: %w", err)
		}
		return entities, nil
	}

	var envelope struct {
		Data []mediadump.Entity `json:"data"`
	}
	if err := d.Decode(&envelope); err != nil {
		return nil, fmt.Errorf("download: couldn't parse entries: %w", err)
	}
	return envelope.Data, nil
}

func writeEntities(p string, entities []mediadump.Entity) error {
	out, err := json.MarshalIndent(entities, "", "  ")
	if err != nil {
		return fmt.Errorf("download: couldn't marshal entries: %w", err)
	}
	out = append(out, '\n')

	if p == "-" {
		if _, err := os.Stdout.Write(out); err != nil {
			return fmt.Errorf("download: couldn't write entries: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(p, out, 0644); err != nil {
		return fmt.Errorf("download: couldn't write entries to %s: %w", p, err)
	}
	return nil
}
