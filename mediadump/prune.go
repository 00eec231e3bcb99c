package mediadump

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// Prune releases the claim of nodes.Owner on every node it didn't create or touch since the store
// was opened.  Nodes nobody else claims are deleted along with their files.  It returns how many
// nodes it deleted.  Only run it after a complete sync of that content type, or live files go too.
func Prune(nodes *NodeStore, logger zerolog.Logger) (int, error) {
	if nodes.Owner == "" {
		return 0, fmt.Errorf("mediadump: refusing to prune without a content type to prune for")
	}

	pruned := 0

	for _, node := range nodes.Untouched() {
		if len(node.Owners) > 1 {
			logger.Debug().Str("node_id", node.ID).Strs("owners", node.Owners).Msg("still referenced elsewhere, releasing")
			nodes.Disown(node.ID)
			continue
		}

		abs := nodes.AbsPath(node)
		logger.Info().Str("node_id", node.ID).Str("path", string(node.RelativePath)).Msg("pruning")

		if err := os.Remove(abs); err != nil && !errors.Is(err, os.ErrNotExist) {
			return pruned, fmt.Errorf("mediadump: failed to delete %s: %w", abs, err)
		}
		// the per-node directory is empty now; leave it if something else lives there.
		_ = os.Remove(filepath.Dir(abs))

		nodes.Remove(node.ID)
		pruned++
	}

	return pruned, nil
}
