package mediadump

import (
	"fmt"
	"os"
	"path/filepath"
)

const cacheManifest = "cache.yaml"

// Store is a local media directory: downloaded files, their node index, and the download cache.
type Store struct {
	Path  string
	Cache *FileCache
	Nodes *NodeStore
}

// OpenStore opens (creating if needed) the store at path.
func OpenStore(path string) (*Store, error) {
	if err := os.MkdirAll(path, 0750); err != nil {
		return nil, fmt.Errorf("mediadump: couldn't create store %s: %w", path, err)
	}

	nodes, err := OpenNodeStore(path)
	if err != nil {
		return nil, fmt.Errorf("mediadump: couldn't open node index: %w", err)
	}

	cache, err := OpenFileCache(filepath.Join(path, cacheManifest))
	if err != nil {
		return nil, fmt.Errorf("mediadump: couldn't open cache: %w", err)
	}

	return &Store{
		Path:  path,
		Cache: cache,
		Nodes: nodes,
	}, nil
}

func (s *Store) Flush() error {
	if err := s.Nodes.Flush(); err != nil {
		return err
	}
	return s.Cache.Flush()
}
