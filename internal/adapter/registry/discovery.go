package registry

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var _ support.SoftwareRegistry = (*Discovery)(nil)

var pluginTypes = []string{"south", "north", "filter", "notificationDelivery", "notificationRule"}

// Discovery finds installed plugins and services under the install root:
//
//	<root>/plugins/<type>/<name>/              C plugins
//	<root>/python/fledge/plugins/<type>/<name>/ Python plugins
//	<root>/services/fledge.services.<name>     C services
//	<root>/python/fledge/services/<name>/      Python services
type Discovery struct {
	root string
}

func NewDiscovery(root string) *Discovery {
	return &Discovery{root: root}
}

func (d *Discovery) InstalledPlugins(ctx context.Context) ([]types.Plugin, error) {
	out := make([]types.Plugin, 0)
	for _, typ := range pluginTypes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for _, src := range []struct {
			dir      string
			language string
		}{
			{filepath.Join(d.root, "plugins", typ), "C"},
			{filepath.Join(d.root, "python", "fledge", "plugins", typ), "python"},
		} {
			names, err := subdirs(src.dir)
			if err != nil {
				return nil, fmt.Errorf("list %s plugins: %w", typ, err)
			}
			for _, name := range names {
				if name == "common" || strings.HasPrefix(name, "__") {
					continue
				}
				out = append(out, types.Plugin{
					Name:        name,
					Type:        typ,
					Language:    src.language,
					InstalledAt: filepath.Join(typ, name),
				})
			}
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (d *Discovery) InstalledServices(context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	entries, err := os.ReadDir(filepath.Join(d.root, "services"))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("list services: %w", err)
	}
	for _, e := range entries {
		if name, ok := strings.CutPrefix(e.Name(), "fledge.services."); ok && name != "" {
			seen[name] = struct{}{}
		}
	}

	pyServices, err := subdirs(filepath.Join(d.root, "python", "fledge", "services"))
	if err != nil {
		return nil, fmt.Errorf("list python services: %w", err)
	}
	for _, name := range pyServices {
		if name == "common" || name == "core" || strings.HasPrefix(name, "__") {
			continue
		}
		seen[name] = struct{}{}
	}

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out, nil
}

func subdirs(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}
	return names, nil
}
