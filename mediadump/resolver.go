package mediadump

import (
	"context"
	"strings"
	"sync/atomic"

	"github.com/rs/zerolog"
	"github.com/toothbrush/strapi-media-dump/strapi"
	"golang.org/x/sync/singleflight"
)

// NodeToucher is the part of the node store the resolver needs.
type NodeToucher interface {
	Get(id string) (FileNode, bool)
	Touch(id string) bool
}

// Resolver turns Strapi files into local file node ids, downloading only when the cache has no
// entry for the file's current revision.
type Resolver struct {
	// APIURL prefixes file URLs that aren't absolute.
	APIURL string
	// Headers are sent along with every file download.
	Headers map[string]string

	Cache   Cache
	Nodes   NodeToucher
	Fetcher Fetcher
	Logger  zerolog.Logger

	inflight singleflight.Group

	hits      atomic.Int64
	downloads atomic.Int64
	failures  atomic.Int64
}

type Stats struct {
	Hits      int64
	Downloads int64
	Failures  int64
}

func (r *Resolver) Stats() Stats {
	return Stats{
		Hits:      r.hits.Load(),
		Downloads: r.downloads.Load(),
		Failures:  r.failures.Load(),
	}
}

// Resolve returns the local node id for file.  The second result is false when the file couldn't
// be downloaded; the failure is logged and not returned, so callers carry on with other files.
func (r *Resolver) Resolve(ctx context.Context, file strapi.File) (string, bool) {
	key := CacheKey(string(file.ID))

	// Concurrent walks regularly meet the same file; only one of them does the work.
	v, _, _ := r.inflight.Do(key+"@"+file.UpdatedAt, func() (any, error) {
		return r.resolve(ctx, key, file), nil
	})

	id, _ := v.(string)
	return id, id != ""
}

func (r *Resolver) resolve(ctx context.Context, key string, file strapi.File) string {
	logger := r.Logger.With().Str("file_id", string(file.ID)).Str("url", file.URL).Logger()

	cached, ok, err := r.Cache.Get(ctx, key)
	if err != nil {
		logger.Warn().Err(err).Msg("cache lookup failed, downloading")
		ok = false
	}

	if ok && cached.UpdatedAt == file.UpdatedAt {
		if _, exists := r.Nodes.Get(cached.FileNodeID); exists {
			r.Nodes.Touch(cached.FileNodeID)
			r.hits.Add(1)
			logger.Debug().Str("node_id", cached.FileNodeID).Msg("cached")
			return cached.FileNodeID
		}
		logger.Debug().Str("node_id", cached.FileNodeID).Msg("cached node is gone, downloading again")
	}

	sourceURL := r.sourceURL(file.URL)
	node, err := r.Fetcher.Fetch(ctx, sourceURL, r.Headers)
	if err != nil {
		r.failures.Add(1)
		logger.Error().Err(err).Str("source_url", sourceURL).Msg("download failed, skipping file")
		return ""
	}

	if err := r.Cache.Set(ctx, key, CacheEntry{FileNodeID: node.ID, UpdatedAt: file.UpdatedAt}); err != nil {
		logger.Warn().Err(err).Msg("couldn't remember download")
	}

	r.downloads.Add(1)
	logger.Debug().Str("node_id", node.ID).Msg("downloaded")
	return node.ID
}

func (r *Resolver) sourceURL(fileURL string) string {
	if strings.HasPrefix(fileURL, "http") {
		return fileURL
	}
	return r.APIURL + fileURL
}
