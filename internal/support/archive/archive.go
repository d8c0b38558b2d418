// Package archive writes gzip-compressed tar bundles and records a blake3
// digest for every regular file it stores.
package archive

import (
	"archive/tar"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"fledge/internal/check"

	"github.com/klauspost/compress/gzip"
	"github.com/zeebo/blake3"
)

// ErrClosed is returned when writing to a sealed archive.
var ErrClosed = errors.New("archive is closed")

// Entry describes one member of the archive.
type Entry struct {
	Name   string `json:"path"`
	Size   int64  `json:"size"`
	BLAKE3 string `json:"blake3,omitempty"`
	Dir    bool   `json:"dir,omitempty"`
}

// SkipFunc reports whether a tree member, given by its path relative to the
// tree root, is left out. Skipping a directory skips its contents.
type SkipFunc func(rel string, d fs.DirEntry) bool

// SkipNamed skips any member with a path element equal to one of names.
func SkipNamed(names ...string) SkipFunc {
	return func(rel string, _ fs.DirEntry) bool {
		for _, elem := range strings.Split(filepath.ToSlash(rel), "/") {
			for _, name := range names {
				if elem == name {
					return true
				}
			}
		}
		return false
	}
}

// Writer is a single-owner handle on an archive being written.
type Writer struct {
	path    string
	file    *os.File
	gz      *gzip.Writer
	tw      *tar.Writer
	entries []Entry

	closed   bool
	closeErr error
}

// Create opens a new archive at path. It refuses to overwrite an existing
// file.
func Create(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	gz, err := gzip.NewWriterLevel(f, gzip.DefaultCompression)
	if err != nil {
		_ = f.Close() // best-effort cleanup
		return nil, fmt.Errorf("create gzip stream: %w", err)
	}
	return &Writer{
		path: path,
		file: f,
		gz:   gz,
		tw:   tar.NewWriter(gz),
	}, nil
}

func (w *Writer) Path() string { return w.path }

// Entries returns the members written so far, in write order.
func (w *Writer) Entries() []Entry {
	out := make([]Entry, len(w.entries))
	copy(out, w.entries)
	return out
}

// AddFile stores the regular file src under name.
func (w *Writer) AddFile(src, name string) error {
	if w.closed {
		return ErrClosed
	}
	info, err := os.Lstat(src)
	if err != nil {
		return fmt.Errorf("stat %s: %w", src, err)
	}
	if !info.Mode().IsRegular() {
		return fmt.Errorf("add %s: not a regular file", src)
	}
	return w.addRegular(src, memberName(name), info)
}

// AddTree stores the directory src and everything below it under prefix.
// Sockets, devices and pipes are ignored.
func (w *Writer) AddTree(src, prefix string, skip SkipFunc) error {
	if w.closed {
		return ErrClosed
	}
	prefix = memberName(prefix)
	return filepath.WalkDir(src, func(p string, d fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		name := prefix
		if rel != "." {
			if skip != nil && skip(rel, d) {
				if d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			name = path.Join(prefix, filepath.ToSlash(rel))
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		switch {
		case info.IsDir():
			return w.addHeaderOnly(info, name+"/", "")
		case info.Mode().IsRegular():
			return w.addRegular(p, name, info)
		case info.Mode()&fs.ModeSymlink != 0:
			target, err := os.Readlink(p)
			if err != nil {
				return fmt.Errorf("read link %s: %w", p, err)
			}
			return w.addHeaderOnly(info, name, target)
		default:
			return nil
		}
	})
}

func (w *Writer) addRegular(src, name string, info fs.FileInfo) error {
	check.Assertf(name != "" && !strings.HasPrefix(name, "../"), "member %q escapes the archive root", name)
	hdr, err := tar.FileInfoHeader(info, "")
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", src, err)
	}
	hdr.Name = name

	f, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer f.Close()

	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	hasher := blake3.New()
	// Files that grow while being archived are cut at the size in the header.
	if _, err := io.CopyN(io.MultiWriter(w.tw, hasher), f, hdr.Size); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	w.entries = append(w.entries, Entry{
		Name:   name,
		Size:   hdr.Size,
		BLAKE3: hex.EncodeToString(hasher.Sum(nil)),
	})
	return nil
}

func (w *Writer) addHeaderOnly(info fs.FileInfo, name, link string) error {
	hdr, err := tar.FileInfoHeader(info, link)
	if err != nil {
		return fmt.Errorf("tar header for %s: %w", name, err)
	}
	hdr.Name = name
	if err := w.tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("write header %s: %w", name, err)
	}
	w.entries = append(w.entries, Entry{Name: name, Dir: info.IsDir()})
	return nil
}

// Close seals the archive. It is safe to call more than once; later calls
// return the result of the first.
func (w *Writer) Close() error {
	if w.closed {
		return w.closeErr
	}
	w.closed = true

	var errs []error
	if err := w.tw.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close tar stream: %w", err))
	}
	if err := w.gz.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close gzip stream: %w", err))
	}
	if err := w.file.Sync(); err != nil {
		errs = append(errs, fmt.Errorf("sync archive: %w", err))
	}
	if err := w.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close archive: %w", err))
	}
	w.closeErr = errors.Join(errs...)
	return w.closeErr
}

func memberName(name string) string {
	return strings.TrimPrefix(path.Clean(filepath.ToSlash(name)), "/")
}
