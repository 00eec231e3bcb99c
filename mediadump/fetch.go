package mediadump

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Fetcher downloads a URL into the local store and returns the node it created.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string, headers map[string]string) (FileNode, error)
}

// HTTPFetcher writes downloads to <store>/files/<node id>/<file name>.  Node ids are derived from
// the URL, so re-downloading an asset replaces its previous copy in place.
type HTTPFetcher struct {
	Nodes  *NodeStore
	Client *http.Client

	// limits simultaneous downloads; nil means no limit.
	sem *semaphore.Weighted
}

func NewHTTPFetcher(nodes *NodeStore, client *http.Client, concurrency int) *HTTPFetcher {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Minute}
	}
	f := &HTTPFetcher{
		Nodes:  nodes,
		Client: client,
	}
	if concurrency > 0 {
		f.sem = semaphore.NewWeighted(int64(concurrency))
	}
	return f
}

// NodeID is the stable id of the file node for rawURL.
func NodeID(rawURL string) string {
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(rawURL)).String()
}

func (f *HTTPFetcher) Fetch(ctx context.Context, rawURL string, headers map[string]string) (FileNode, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return FileNode{}, fmt.Errorf("mediadump: bad file URL %q: %w", rawURL, err)
	}

	if f.sem != nil {
		if err := f.sem.Acquire(ctx, 1); err != nil {
			return FileNode{}, fmt.Errorf("mediadump: waiting to download %s: %w", rawURL, err)
		}
		defer f.sem.Release(1)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return FileNode{}, fmt.Errorf("mediadump: couldn't instantiate http request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	response, err := f.Client.Do(req)
	if err != nil {
		return FileNode{}, fmt.Errorf("mediadump: couldn't download %s: %w", rawURL, err)
	}
	defer response.Body.Close()

	if response.StatusCode < 200 || response.StatusCode > 299 {
		return FileNode{}, fmt.Errorf("mediadump: unexpected HTTP status downloading %s: %s", rawURL, response.Status)
	}

	id := NodeID(rawURL)
	node := FileNode{
		ID:           id,
		URL:          rawURL,
		RelativePath: RelativePath(path.Join("files", id, fileName(u))),
		MediaType:    response.Header.Get("Content-Type"),
		CreatedAt:    time.Now().UTC(),
	}

	size, err := f.write(f.Nodes.AbsPath(node), response.Body)
	if err != nil {
		return FileNode{}, err
	}
	node.Size = size

	f.Nodes.Create(node)
	return node, nil
}

func (f *HTTPFetcher) write(abs string, body io.Reader) (int64, error) {
	directory := filepath.Dir(abs)
	if err := os.MkdirAll(directory, 0750); err != nil {
		return 0, fmt.Errorf("mediadump: couldn't create directory %s: %w", directory, err)
	}

	tmp, err := os.CreateTemp(directory, ".download-*")
	if err != nil {
		return 0, fmt.Errorf("mediadump: couldn't create file in %s: %w", directory, err)
	}

	size, err := io.Copy(tmp, body)
	if err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("mediadump: couldn't write to file %s: %w", abs, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("mediadump: couldn't close file %s: %w", abs, err)
	}
	if err := os.Rename(tmp.Name(), abs); err != nil {
		os.Remove(tmp.Name())
		return 0, fmt.Errorf("mediadump: couldn't move download into %s: %w", abs, err)
	}

	return size, nil
}

var unsafeFileChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

// fileName picks a file name from the last URL path element, falling back to "file".
func fileName(u *url.URL) string {
	name := path.Base(u.Path)
	name = unsafeFileChars.ReplaceAllString(name, "-")
	name = strings.Trim(name, "-.")

	if len(name) > 101 {
		ext := path.Ext(name)
		if len(ext) > 10 {
			ext = ""
		}
		name = name[:100-len(ext)] + ext
	}

	if name == "" {
		return "file"
	}
	return name
}
