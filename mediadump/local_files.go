package mediadump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
	"gopkg.in/yaml.v3"
)

// RelativePath is relative to the store location (e.g., ~/strapi-media).
type RelativePath string

// FileNode is a downloaded asset sitting in the local store.
type FileNode struct {
	ID           string       `yaml:"id"`
	URL          string       `yaml:"url"`
	RelativePath RelativePath `yaml:"path"`
	MediaType    string       `yaml:"mediaType,omitempty"`
	Size         int64        `yaml:"size"`
	CreatedAt    time.Time    `yaml:"createdAt"`

	// Owners are the content type uids whose entries referenced this node.
	Owners []string `yaml:"owners,omitempty"`
}

const nodesManifest = "nodes.yaml"

// NodeStore is the index of file nodes in a store directory.  Nodes of Owner that are neither
// created nor touched during a run are candidates for pruning.
type NodeStore struct {
	StorePath string

	// Owner is the content type uid being synced.  Touched and created nodes are claimed for it.
	Owner string

	mu      sync.Mutex
	nodes   map[string]FileNode
	touched map[string]bool
	dirty   bool
}

// OpenNodeStore loads the node index of storePath, which must be an existing directory.
func OpenNodeStore(storePath string) (*NodeStore, error) {
	stat, err := os.Stat(storePath)
	if err != nil {
		return nil, fmt.Errorf("mediadump: cannot stat '%s': %w", storePath, err)
	}
	if !stat.IsDir() {
		return nil, fmt.Errorf("mediadump: local store path not a directory: '%s'", storePath)
	}

	s := &NodeStore{
		StorePath: storePath,
		nodes:     make(map[string]FileNode),
		touched:   make(map[string]bool),
	}

	manifest := filepath.Join(storePath, nodesManifest)
	source, err := os.ReadFile(manifest)
	if errors.Is(err, os.ErrNotExist) {
		// first run, nothing downloaded yet.
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("mediadump: couldn't read %s: %w", manifest, err)
	}

	list := []FileNode{}
	if err := yaml.Unmarshal(source, &list); err != nil {
		return nil, fmt.Errorf("mediadump: couldn't parse %s: %w", manifest, err)
	}
	for _, n := range list {
		if _, ok := s.nodes[n.ID]; ok {
			return nil, fmt.Errorf("mediadump: duplicate node id %s in %s", n.ID, manifest)
		}
		s.nodes[n.ID] = n
	}

	return s, nil
}

// Get returns the node with the given id, provided its file is still on disk.
func (s *NodeStore) Get(id string) (FileNode, bool) {
	s.mu.Lock()
	node, ok := s.nodes[id]
	s.mu.Unlock()
	if !ok {
		return FileNode{}, false
	}

	if _, err := os.Stat(s.AbsPath(node)); err != nil {
		return FileNode{}, false
	}
	return node, true
}

// Touch marks a node as still referenced.  It reports false for unknown ids.
func (s *NodeStore) Touch(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return false
	}
	s.touched[id] = true
	if owners, added := claim(node.Owners, s.Owner); added {
		node.Owners = owners
		s.nodes[id] = node
		s.dirty = true
	}
	return true
}

// Create registers a freshly written node; it counts as touched.
func (s *NodeStore) Create(node FileNode) {
	s.mu.Lock()
	defer s.mu.Unlock()

	owners := node.Owners
	if previous, ok := s.nodes[node.ID]; ok {
		for _, o := range previous.Owners {
			owners, _ = claim(owners, o)
		}
	}
	node.Owners, _ = claim(owners, s.Owner)

	s.nodes[node.ID] = node
	s.touched[node.ID] = true
	s.dirty = true
}

// Disown drops Owner's claim on a node, leaving the node itself alone.
func (s *NodeStore) Disown(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	node, ok := s.nodes[id]
	if !ok {
		return
	}
	owners := make([]string, 0, len(node.Owners))
	for _, o := range node.Owners {
		if o != s.Owner {
			owners = append(owners, o)
		}
	}
	node.Owners = owners
	s.nodes[id] = node
	s.dirty = true
}

// claim returns owners with uid added, and whether it wasn't there yet.  owners is not modified.
func claim(owners []string, uid string) ([]string, bool) {
	if uid == "" {
		return owners, false
	}
	for _, o := range owners {
		if o == uid {
			return owners, false
		}
	}
	out := make([]string, 0, len(owners)+1)
	out = append(out, owners...)
	out = append(out, uid)
	sort.Strings(out)
	return out, true
}

func (s *NodeStore) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.nodes[id]; !ok {
		return
	}
	delete(s.nodes, id)
	delete(s.touched, id)
	s.dirty = true
}

// Untouched lists the nodes nobody referenced since the store was opened, ordered by id.  With an
// Owner set, only nodes claimed by Owner are listed.
func (s *NodeStore) Untouched() []FileNode {
	s.mu.Lock()
	defer s.mu.Unlock()

	stale := []FileNode{}
	for id, n := range s.nodes {
		if s.touched[id] {
			continue
		}
		if s.Owner != "" && !slices.Contains(n.Owners, s.Owner) {
			continue
		}
		stale = append(stale, n)
	}
	sort.Slice(stale, func(i, j int) bool { return stale[i].ID < stale[j].ID })
	return stale
}

func (s *NodeStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.nodes)
}

func (s *NodeStore) AbsPath(node FileNode) string {
	return filepath.Join(s.StorePath, filepath.FromSlash(string(node.RelativePath)))
}

// Flush writes the node index back to disk if anything changed.
func (s *NodeStore) Flush() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return nil
	}

	ids := maps.Keys(s.nodes)
	sort.Strings(ids)
	list := make([]FileNode, 0, len(ids))
	for _, id := range ids {
		list = append(list, s.nodes[id])
	}

	out, err := yaml.Marshal(list)
	if err != nil {
		return fmt.Errorf("mediadump: couldn't marshal node index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(s.StorePath, nodesManifest), out); err != nil {
		return fmt.Errorf("mediadump: couldn't write node index: %w", err)
	}

	s.dirty = false
	return nil
}
