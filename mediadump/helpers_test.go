package mediadump

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/toothbrush/strapi-media-dump/strapi"
)

// fakeFetcher hands out node ids without touching the network.  URLs containing "broken" fail.
type fakeFetcher struct {
	calls atomic.Int64

	mu      sync.Mutex
	fetched []string
	nodes   *fakeNodes

	// if set, Fetch blocks until it's closed.
	gate chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (FileNode, error) {
	f.calls.Add(1)
	if f.gate != nil {
		<-f.gate
	}

	f.mu.Lock()
	f.fetched = append(f.fetched, rawURL)
	f.mu.Unlock()

	if strings.Contains(rawURL, "broken") {
		return FileNode{}, fmt.Errorf("fake: can't fetch %s", rawURL)
	}

	node := FileNode{ID: NodeID(rawURL), URL: rawURL}
	if f.nodes != nil {
		f.nodes.add(node.ID)
	}
	return node, nil
}

func (f *fakeFetcher) URLs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.fetched...)
}

type fakeNodes struct {
	mu      sync.Mutex
	known   map[string]bool
	touched map[string]int
}

func newFakeNodes() *fakeNodes {
	return &fakeNodes{known: map[string]bool{}, touched: map[string]int{}}
}

func (n *fakeNodes) add(id string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.known[id] = true
}

func (n *fakeNodes) Get(id string) (FileNode, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.known[id] {
		return FileNode{}, false
	}
	return FileNode{ID: id}, true
}

func (n *fakeNodes) Touch(id string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	if !n.known[id] {
		return false
	}
	n.touched[id]++
	return true
}

func (n *fakeNodes) Touches(id string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.touched[id]
}

// fakeFiles answers rich-text lookups from a fixed table, keyed by file URL.
type fakeFiles struct {
	files map[string]strapi.File

	mu      sync.Mutex
	queries []string
}

func (f *fakeFiles) GetFileByURL(ctx context.Context, fileURL string) (*strapi.File, error) {
	f.mu.Lock()
	f.queries = append(f.queries, fileURL)
	f.mu.Unlock()

	if fileURL == "/uploads/lookup-error.png" {
		return nil, fmt.Errorf("fake: lookup exploded")
	}
	file, ok := f.files[fileURL]
	if !ok {
		return nil, nil
	}
	return &file, nil
}

func newTestResolver() (*Resolver, *fakeFetcher, *fakeNodes) {
	nodes := newFakeNodes()
	fetcher := &fakeFetcher{nodes: nodes}
	r := &Resolver{
		APIURL:  "https://cms.example",
		Cache:   NewMemoryCache(),
		Nodes:   nodes,
		Fetcher: fetcher,
	}
	return r, fetcher, nodes
}
