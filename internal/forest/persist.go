package forest

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/rotisserie/eris"
)

// Save writes the fitted forest as JSON.
func Save(path string, f *Forest) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return eris.Wrapf(err, "forest: create dir for %s", path)
	}
	data, err := json.Marshal(f)
	if err != nil {
		return eris.Wrap(err, "forest: marshal")
	}
	return eris.Wrapf(os.WriteFile(path, data, 0o644), "forest: write %s", path)
}

// Load reads a forest written by Save.
func Load(path string) (*Forest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "forest: read %s", path)
	}
	var f Forest
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, eris.Wrapf(err, "forest: parse %s", path)
	}
	if len(f.Trees) == 0 {
		return nil, eris.Errorf("forest: %s holds no trees", path)
	}
	for i, t := range f.Trees {
		if t == nil || len(t.Nodes) == 0 {
			return nil, eris.Errorf("forest: %s tree %d is empty", path, i)
		}
		for k, n := range t.Nodes {
			if n.Leaf {
				continue
			}
			if n.Left <= k || n.Right <= k || n.Left >= len(t.Nodes) || n.Right >= len(t.Nodes) {
				return nil, eris.Errorf("forest: %s tree %d node %d has invalid children", path, i, k)
			}
			if n.Feature < 0 || n.Feature >= f.Features {
				return nil, eris.Errorf("forest: %s tree %d node %d has invalid feature %d", path, i, k, n.Feature)
			}
		}
	}
	return &f, nil
}
