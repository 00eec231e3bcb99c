package mediadump

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/uploads/cat.png":
			if r.Header.Get("X-Secret") != "hunter2" {
				w.WriteHeader(http.StatusForbidden)
				return
			}
			w.Header().Set("Content-Type", "image/png")
			_, _ = w.Write([]byte("meow"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	nodes, err := OpenNodeStore(t.TempDir())
	require.NoError(t, err)
	f := NewHTTPFetcher(nodes, srv.Client(), 2)

	t.Run("downloads into the store", func(t *testing.T) {
		rawURL := srv.URL + "/uploads/cat.png"
		node, err := f.Fetch(context.Background(), rawURL, map[string]string{"X-Secret": "hunter2"})
		require.NoError(t, err)

		assert.Equal(t, NodeID(rawURL), node.ID)
		assert.Equal(t, RelativePath("files/"+node.ID+"/cat.png"), node.RelativePath)
		assert.Equal(t, "image/png", node.MediaType)
		assert.Equal(t, int64(4), node.Size)

		body, err := os.ReadFile(nodes.AbsPath(node))
		require.NoError(t, err)
		assert.Equal(t, "meow", string(body))

		stored, ok := nodes.Get(node.ID)
		require.True(t, ok)
		assert.Equal(t, rawURL, stored.URL)
		assert.Empty(t, nodes.Untouched())
	})

	t.Run("headers are passed along", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/uploads/cat.png", nil)
		assert.ErrorContains(t, err, "403")
	})

	t.Run("non-2xx is an error", func(t *testing.T) {
		_, err := f.Fetch(context.Background(), srv.URL+"/uploads/missing.png", nil)
		assert.ErrorContains(t, err, "404")
		assert.Equal(t, 1, nodes.Len())
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		_, err := f.Fetch(ctx, srv.URL+"/uploads/cat.png", map[string]string{"X-Secret": "hunter2"})
		assert.Error(t, err)
	})
}

func TestNodeIDStable(t *testing.T) {
	a := NodeID("https://cms.example/uploads/a.png")
	assert.Equal(t, a, NodeID("https://cms.example/uploads/a.png"))
	assert.NotEqual(t, a, NodeID("https://cms.example/uploads/b.png"))
	assert.Len(t, a, 36)
}

func TestFileName(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want string
	}{
		{"https://cms.example/uploads/cat.png", "cat.png"},
		{"https://cms.example/uploads/big%20cat%20(1).png", "big-cat-1-.png"},
		{"https://cms.example/", "file"},
		{"https://cms.example", "file"},
		{"https://cms.example/uploads/..", "file"},
	} {
		u, err := url.Parse(tc.in)
		require.NoError(t, err)
		assert.Equal(t, tc.want, fileName(u), tc.in)
	}
}
