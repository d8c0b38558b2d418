package support

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	BundlePrefix  = "support-"
	BundleExt     = ".tar.gz"
	BundlePattern = "support*.tar.gz"
)

// BundleName is the archive file name for a generation id.
func BundleName(genID string) string {
	return BundlePrefix + genID + BundleExt
}

// IsBundle reports whether a directory entry name is a support bundle.
func IsBundle(name string) bool {
	return strings.HasPrefix(name, "support") && strings.HasSuffix(name, BundleExt)
}

// BundleInfo describes a bundle on disk.
type BundleInfo struct {
	Name    string
	Path    string
	Size    int64
	ModTime time.Time
}

// ListBundles returns the bundles in dir, oldest first. A missing dir has
// no bundles.
func ListBundles(dir string) ([]BundleInfo, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list bundles: %w", err)
	}

	out := make([]BundleInfo, 0, len(entries))
	for _, entry := range entries {
		if !IsBundle(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return nil, fmt.Errorf("stat bundle %s: %w", entry.Name(), err)
		}
		if !info.Mode().IsRegular() {
			continue
		}
		out = append(out, BundleInfo{
			Name:    entry.Name(),
			Path:    filepath.Join(dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ModTime.Equal(out[j].ModTime) {
			return out[i].ModTime.Before(out[j].ModTime)
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

// EnforceRetention makes room for one more bundle: once dir holds
// maxBundles or more, everything but the newest maxBundles-1 is deleted.
// A bundle removed concurrently is not an error.
func EnforceRetention(dir string, maxBundles int) ([]BundleInfo, error) {
	if maxBundles < 1 {
		return nil, fmt.Errorf("max bundles must be at least 1, got %d", maxBundles)
	}
	bundles, err := ListBundles(dir)
	if err != nil {
		return nil, err
	}
	if len(bundles) < maxBundles {
		return nil, nil
	}

	keep := maxBundles - 1
	doomed := bundles[:len(bundles)-keep]
	deleted := make([]BundleInfo, 0, len(doomed))
	for _, bundle := range doomed {
		if err := os.Remove(bundle.Path); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return deleted, fmt.Errorf("delete bundle %s: %w", bundle.Name, err)
		}
		deleted = append(deleted, bundle)
	}
	return deleted, nil
}
