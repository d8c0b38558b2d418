package fake

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"fledge/internal/support"
	"fledge/pkg/types"
)

// HarnessStart is the clock time a fresh Harness starts at. Its generation
// id is 240305-14-07-09.
var HarnessStart = time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)

// Harness wires a full set of fakes into a support.Builder rooted in a
// temporary install tree:
//
//	<root>/VERSION
//	<root>/data/scripts/
//	<root>/data/logs/
//	<root>/data/support/      bundles and working files
//	<root>/scratch/           syslog utility output
type Harness struct {
	Storage  *Storage
	Services *ServiceRegistry
	Software *SoftwareRegistry
	Packages *PackageLister
	Machine  *Machine
	Logs     *LogSource
	Clock    *Clock
	Paths    support.Paths
}

// NewHarness seeds a plausible gateway: one south service, one north
// service plus the reserved north category, and a small syslog.
func NewHarness(t testing.TB) *Harness {
	t.Helper()

	root := t.TempDir()
	paths := support.Paths{
		Root:       root,
		Data:       filepath.Join(root, "data"),
		SupportDir: filepath.Join(root, "data", "support"),
		ScratchDir: filepath.Join(root, "scratch"),
	}
	paths.WorkDir = paths.SupportDir
	for _, dir := range []string{paths.Data, paths.ScratchDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatalf("create %s: %v", dir, err)
		}
	}
	if err := os.WriteFile(filepath.Join(root, "VERSION"), []byte("8.1.0\nschema:23\n"), 0o644); err != nil {
		t.Fatalf("write VERSION: %v", err)
	}

	storage := NewStorage()
	storage.SetTable("configuration", types.Row{"key": "service", "display_name": "Fledge Service"})
	storage.SetTable("log", types.Row{"code": "PURGE", "level": 4})
	storage.SetTable("streams", types.Row{"id": 1, "description": "Readings"})
	storage.AddCategory(support.SouthGroup, types.Category{Key: "Sine Wave", DisplayName: "Sine Wave"})
	storage.AddCategory(support.NorthGroup, types.Category{Key: support.NorthReservedCategory})
	storage.AddCategory(support.NorthGroup, types.Category{Key: "PI Server"})

	return &Harness{
		Storage: storage,
		Services: &ServiceRegistry{Services: []types.ServiceRecord{{
			ID: "a1b2", Name: "Fledge Storage", Type: "Storage", Protocol: "http",
			Address: "localhost", ServicePort: 37449, ManagementPort: 40000, Status: "running",
		}}},
		Software: &SoftwareRegistry{
			Plugins:  []types.Plugin{{Name: "sinusoid", Type: "south", Language: "python", InstalledAt: "south/sinusoid"}},
			Services: []string{"south", "north"},
		},
		Packages: &PackageLister{Packages: []types.Package{{Name: "aiohttp", Version: "3.8.6"}}},
		Machine:  NewMachine(),
		Logs: NewLogSource(
			"Mar  5 14:00:01 gw Fledge[100]: INFO: core started",
			"Mar  5 14:00:02 gw Fledge Storage[101]: INFO: storage ready",
			"Mar  5 14:00:03 gw Fledge Sine Wave[102]: INFO: south started",
			"Mar  5 14:00:04 gw Fledge PI Server[103]: WARNING: north retrying",
			"Mar  5 14:00:05 gw sshd[104]: session opened",
		),
		Clock: NewClock(HarnessStart),
		Paths: paths,
	}
}

// Options returns builder options pointing at every fake.
func (h *Harness) Options() []support.Option {
	return []support.Option{
		support.WithStorage(h.Storage),
		support.WithServiceRegistry(h.Services),
		support.WithSoftwareRegistry(h.Software),
		support.WithPackageLister(h.Packages),
		support.WithMachine(h.Machine),
		support.WithLogSource(h.Logs),
		support.WithClock(h.Clock.Now),
	}
}

// Builder constructs a support.Builder over the harness, failing the test
// on error.
func (h *Harness) Builder(t testing.TB, extra ...support.Option) *support.Builder {
	t.Helper()
	b, err := support.New(h.Paths, append(h.Options(), extra...)...)
	if err != nil {
		t.Fatalf("support.New() error = %v", err)
	}
	return b
}
