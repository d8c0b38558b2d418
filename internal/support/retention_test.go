package support

import (
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"
)

func writeBundles(t *testing.T, dir string, names ...string) {
	t.Helper()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range names {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		mtime := base.Add(time.Duration(i) * time.Minute)
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}
}

func bundleNames(bundles []BundleInfo) []string {
	names := make([]string, len(bundles))
	for i, b := range bundles {
		names[i] = b.Name
	}
	return names
}

func TestIsBundle(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"support-240101-10-00-00.tar.gz", true},
		{"support.tar.gz", true},
		{"supportA.tar.gz", true},
		{"support-240101-10-00-00.tar", false},
		{"machine-240101-10-00-00", false},
		{"old-support-1.tar.gz", false},
	}
	for _, tt := range tests {
		if got := IsBundle(tt.name); got != tt.want {
			t.Errorf("IsBundle(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestListBundlesOrdersByModTime(t *testing.T) {
	dir := t.TempDir()
	// Written in reverse name order so mtime and name order disagree.
	writeBundles(t, dir, "support-C.tar.gz", "support-B.tar.gz", "support-A.tar.gz")
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), nil, 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.Mkdir(filepath.Join(dir, "support-dir.tar.gz"), 0o755); err != nil {
		t.Fatal(err)
	}

	got, err := ListBundles(dir)
	if err != nil {
		t.Fatalf("ListBundles() error = %v", err)
	}
	want := []string{"support-C.tar.gz", "support-B.tar.gz", "support-A.tar.gz"}
	if !slices.Equal(bundleNames(got), want) {
		t.Fatalf("ListBundles() = %v, want %v", bundleNames(got), want)
	}
}

func TestListBundlesMissingDir(t *testing.T) {
	got, err := ListBundles(filepath.Join(t.TempDir(), "absent"))
	if err != nil {
		t.Fatalf("ListBundles() error = %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("ListBundles() = %v, want none", got)
	}
}

func TestEnforceRetention(t *testing.T) {
	tests := []struct {
		name        string
		existing    []string
		max         int
		wantDeleted []string
		wantKept    []string
	}{
		{
			name:     "below limit",
			existing: []string{"support-A.tar.gz", "support-B.tar.gz"},
			max:      3,
			wantKept: []string{"support-A.tar.gz", "support-B.tar.gz"},
		},
		{
			name:        "at limit keeps two",
			existing:    []string{"support-A.tar.gz", "support-B.tar.gz", "support-C.tar.gz"},
			max:         3,
			wantDeleted: []string{"support-A.tar.gz"},
			wantKept:    []string{"support-B.tar.gz", "support-C.tar.gz"},
		},
		{
			name:        "four bundles",
			existing:    []string{"support-A.tar.gz", "support-B.tar.gz", "support-C.tar.gz", "support-D.tar.gz"},
			max:         3,
			wantDeleted: []string{"support-A.tar.gz", "support-B.tar.gz"},
			wantKept:    []string{"support-C.tar.gz", "support-D.tar.gz"},
		},
		{
			name:        "single bundle policy",
			existing:    []string{"support-A.tar.gz", "support-B.tar.gz"},
			max:         1,
			wantDeleted: []string{"support-A.tar.gz", "support-B.tar.gz"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeBundles(t, dir, tt.existing...)

			deleted, err := EnforceRetention(dir, tt.max)
			if err != nil {
				t.Fatalf("EnforceRetention() error = %v", err)
			}
			if got := bundleNames(deleted); !slices.Equal(got, tt.wantDeleted) {
				t.Fatalf("deleted = %v, want %v", got, tt.wantDeleted)
			}
			left, err := ListBundles(dir)
			if err != nil {
				t.Fatalf("ListBundles() error = %v", err)
			}
			if got := bundleNames(left); !slices.Equal(got, tt.wantKept) {
				t.Fatalf("kept = %v, want %v", got, tt.wantKept)
			}
		})
	}
}

func TestEnforceRetentionRejectsZero(t *testing.T) {
	if _, err := EnforceRetention(t.TempDir(), 0); err == nil {
		t.Fatal("EnforceRetention(0) expected error")
	}
}
