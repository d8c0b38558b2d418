package support

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Workspace tracks the intermediate files of one build. Every file it
// hands out is suffixed with the build's generation id.
type Workspace struct {
	dir   string
	genID string
}

func NewWorkspace(dir, genID string) Workspace {
	return Workspace{dir: dir, genID: genID}
}

func (w Workspace) Dir() string { return w.dir }

// Name is the artifact file name for kind.
func (w Workspace) Name(kind string) string {
	return artifactKind(kind) + "-" + w.genID
}

func (w Workspace) Path(kind string) string {
	return filepath.Join(w.dir, w.Name(kind))
}

// Create opens the artifact file for kind, truncating a previous attempt.
func (w Workspace) Create(kind string) (*os.File, string, error) {
	path := w.Path(kind)
	f, err := os.Create(path)
	if err != nil {
		return nil, path, fmt.Errorf("create %s: %w", path, err)
	}
	return f, path, nil
}

// WriteSnapshot materializes s and returns its path.
func (w Workspace) WriteSnapshot(s Snapshot) (string, error) {
	data, err := Encode(s)
	if err != nil {
		return "", fmt.Errorf("encode %s: %w", s.Kind(), err)
	}
	path := w.Path(s.Kind())
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// Purge removes everything in the working directory except bundles.
func (w Workspace) Purge() error {
	entries, err := os.ReadDir(w.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read work dir: %w", err)
	}
	var errs []error
	for _, entry := range entries {
		if IsBundle(entry.Name()) {
			continue
		}
		if err := os.RemoveAll(filepath.Join(w.dir, entry.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			errs = append(errs, fmt.Errorf("remove %s: %w", entry.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// artifactKind keeps kinds derived from category names inside the working
// directory.
func artifactKind(kind string) string {
	return strings.NewReplacer(" ", "-", "/", "-", `\`, "-").Replace(kind)
}
