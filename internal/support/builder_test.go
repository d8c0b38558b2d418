package support_test

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"testing"
	"time"

	"fledge/internal/adapter/fake"
	"fledge/internal/support"
	"fledge/internal/telemetry"
	"fledge/pkg/types"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

const genID = "240305-14-07-09"

// readBundle returns every member of a bundle keyed by name. Directory
// members map to nil.
func readBundle(t *testing.T, path string) map[string][]byte {
	t.Helper()

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open bundle: %v", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		t.Fatalf("gzip.NewReader() error = %v", err)
	}
	defer gz.Close()

	members := make(map[string][]byte)
	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("tar Next() error = %v", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			members[hdr.Name] = nil
			continue
		}
		data, err := io.ReadAll(tr)
		if err != nil {
			t.Fatalf("read %s: %v", hdr.Name, err)
		}
		members[hdr.Name] = data
	}
	return members
}

func memberNames(members map[string][]byte) []string {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir(%s) error = %v", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names
}

func TestBuildProducesBundle(t *testing.T) {
	h := fake.NewHarness(t)
	b := h.Builder(t)

	bundle, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	wantPath := filepath.Join(h.Paths.SupportDir, "support-"+genID+".tar.gz")
	if bundle.Path != wantPath {
		t.Fatalf("Build() path = %q, want %q", bundle.Path, wantPath)
	}
	if !filepath.IsAbs(bundle.Path) {
		t.Fatalf("Build() path %q is not absolute", bundle.Path)
	}
	if bundle.GenerationID != genID {
		t.Fatalf("GenerationID = %q, want %q", bundle.GenerationID, genID)
	}

	members := readBundle(t, bundle.Path)
	for _, want := range []string{
		"fledge-info-" + genID,
		"logs/sys/syslog-" + genID,
		"logs/sys/syslogStorage-" + genID,
		"logs/sys/syslog-Sine-Wave-" + genID,
		"logs/sys/syslog-PI-Server-" + genID,
		"configuration-" + genID,
		"audit-" + genID,
		"schedules-" + genID,
		"scheduled_processes-" + genID,
		"statistics-history-" + genID,
		"plugin-data-" + genID,
		"streams-" + genID,
		"service_registry-" + genID,
		"machine-" + genID,
		"psinfo-" + genID,
		"software-" + genID,
		"python-packages-" + genID,
		"manifest-" + genID,
	} {
		if _, ok := members[want]; !ok {
			t.Errorf("bundle missing %s; have %v", want, memberNames(members))
		}
	}
	if _, ok := members["logs/sys/syslog-OMF_TYPES-"+genID]; ok {
		t.Error("bundle contains an excerpt for the reserved north category")
	}

	var version []string
	if err := json.Unmarshal(members["fledge-info-"+genID], &version); err != nil {
		t.Fatalf("unmarshal version: %v", err)
	}
	if !slices.Equal(version, []string{"8.1.0", "schema:23"}) {
		t.Fatalf("version = %v, want [8.1.0 schema:23]", version)
	}
	if !strings.Contains(string(members["fledge-info-"+genID]), "\n    \"8.1.0\"") {
		t.Errorf("snapshot is not indented with four spaces: %q", members["fledge-info-"+genID])
	}

	storageLog := string(members["logs/sys/syslogStorage-"+genID])
	if !strings.Contains(storageLog, "storage ready") || strings.Contains(storageLog, "core started") {
		t.Errorf("storage excerpt = %q", storageLog)
	}
	platformLog := string(members["logs/sys/syslog-"+genID])
	if strings.Contains(platformLog, "sshd") {
		t.Errorf("platform excerpt contains unrelated lines: %q", platformLog)
	}
	southLog := string(members["logs/sys/syslog-Sine-Wave-"+genID])
	if !strings.Contains(southLog, "south started") || strings.Contains(southLog, "north retrying") {
		t.Errorf("south excerpt = %q", southLog)
	}
}

func TestBuildTableDumps(t *testing.T) {
	h := fake.NewHarness(t)
	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	members := readBundle(t, bundle.Path)

	var audit types.TableResult
	if err := json.Unmarshal(members["audit-"+genID], &audit); err != nil {
		t.Fatalf("unmarshal audit: %v", err)
	}
	if audit.Count != 1 || audit.Rows[0]["code"] != "PURGE" {
		t.Fatalf("audit = %+v", audit)
	}

	var schedules map[string]any
	if err := json.Unmarshal(members["schedules-"+genID], &schedules); err != nil {
		t.Fatalf("unmarshal schedules: %v", err)
	}
	if rows, ok := schedules["rows"].([]any); !ok || len(rows) != 0 {
		t.Fatalf("empty table rows = %#v, want []", schedules["rows"])
	}

	queries := h.Storage.Calls("QueryTable")
	var tables []string
	for _, c := range queries {
		tables = append(tables, c.Args[0].(string))
	}
	want := []string{"configuration", "log", "schedules", "scheduled_processes", "statistics_history", "plugin_data", "streams"}
	if !slices.Equal(tables, want) {
		t.Fatalf("queried tables = %v, want %v", tables, want)
	}

	stats := queries[4].Args[1].(types.Query)
	if stats.Limit != 1000 || len(stats.OrderBy) != 1 ||
		stats.OrderBy[0] != (types.Order{Column: "history_ts", Direction: types.Descending}) {
		t.Fatalf("statistics_history query = %+v", stats)
	}
	pluginData := queries[5].Args[1].(types.Query)
	if pluginData.OrderBy[0] != (types.Order{Column: "key", Direction: types.Ascending}) {
		t.Fatalf("plugin_data query = %+v", pluginData)
	}
}

func TestBuildMachineAndProcesses(t *testing.T) {
	h := fake.NewHarness(t)
	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	members := readBundle(t, bundle.Path)

	var machine support.MachineSnapshot
	if err := json.Unmarshal(members["machine-"+genID], &machine); err != nil {
		t.Fatalf("unmarshal machine: %v", err)
	}
	if machine.About != "Machine resources" {
		t.Errorf("about = %q", machine.About)
	}
	if machine.TotalDiskSpaceMB != 102400 || machine.UsedDiskSpaceMB != 40960 || machine.FreeDiskSpaceMB != 61440 {
		t.Errorf("disk = %d/%d/%d MB", machine.TotalDiskSpaceMB, machine.UsedDiskSpaceMB, machine.FreeDiskSpaceMB)
	}
	if machine.TotalMemory != "7.7Gi" || machine.HostnameInfo["Static hostname"] != "gateway-01" {
		t.Errorf("machine = %+v", machine)
	}
	if calls := h.Machine.Calls("DiskUsage"); len(calls) != 1 || calls[0].Args[0] != "/" {
		t.Errorf("DiskUsage calls = %+v", calls)
	}

	var ps support.ProcessSnapshot
	if err := json.Unmarshal(members["psinfo-"+genID], &ps); err != nil {
		t.Fatalf("unmarshal psinfo: %v", err)
	}
	if len(ps.RunningProcesses) != 3 {
		t.Fatalf("running processes = %v, want header, core and task", ps.RunningProcesses)
	}
	if !strings.Contains(ps.RunningProcesses[0], "%MEM") || !strings.Contains(ps.RunningProcesses[2], "./tasks") {
		t.Errorf("running processes = %v", ps.RunningProcesses)
	}
	for _, line := range ps.RunningProcesses {
		if strings.Contains(line, "sshd") {
			t.Errorf("unrelated process listed: %q", line)
		}
	}
}

func TestBuildArtifactsCarryGenerationID(t *testing.T) {
	h := fake.NewHarness(t)
	if err := os.WriteFile(filepath.Join(h.Paths.ScratchDir, "fl_syslog_core"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(h.Paths.ScratchDir, "other.txt"), []byte("x\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	members := readBundle(t, bundle.Path)

	if _, ok := members["logs/sys/fl_syslog_core-"+genID]; !ok {
		t.Errorf("utility log not archived; have %v", memberNames(members))
	}
	for name := range members {
		if strings.HasPrefix(name, "scripts") || strings.HasPrefix(name, "logs/package") {
			continue
		}
		if !strings.HasSuffix(name, "-"+genID) {
			t.Errorf("member %q does not carry the generation id", name)
		}
		if strings.Contains(name, "other.txt") {
			t.Errorf("unrelated scratch file archived: %q", name)
		}
	}
}

func TestBuildArchivesDataTrees(t *testing.T) {
	h := fake.NewHarness(t)
	scripts := filepath.Join(h.Paths.Data, "scripts")
	for _, p := range []string{
		filepath.Join(scripts, "notify.py"),
		filepath.Join(scripts, "__pycache__", "notify.cpython-311.pyc"),
		filepath.Join(scripts, "lib", "__pycache__", "x.pyc"),
		filepath.Join(scripts, "lib", "util.py"),
		filepath.Join(h.Paths.Data, "logs", "install.log"),
	} {
		if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(p, []byte("print()\n"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	members := readBundle(t, bundle.Path)

	for _, want := range []string{"scripts/notify.py", "scripts/lib/util.py", "logs/package/install.log"} {
		if _, ok := members[want]; !ok {
			t.Errorf("bundle missing %s; have %v", want, memberNames(members))
		}
	}
	for name := range members {
		if strings.Contains(name, "__pycache__") {
			t.Errorf("bundle contains %s", name)
		}
	}
}

func TestBuildWithoutOptionalDirectories(t *testing.T) {
	h := fake.NewHarness(t)
	h.Paths.ScratchDir = filepath.Join(h.Paths.Root, "missing")

	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	for name := range readBundle(t, bundle.Path) {
		if strings.HasPrefix(name, "scripts") || strings.HasPrefix(name, "logs/package") {
			t.Errorf("unexpected member %s", name)
		}
	}
}

func TestBuildPurgesWorkDir(t *testing.T) {
	h := fake.NewHarness(t)
	if _, err := h.Builder(t).Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := dirNames(t, h.Paths.SupportDir)
	want := []string{"support-" + genID + ".tar.gz"}
	if !slices.Equal(got, want) {
		t.Fatalf("support dir = %v, want %v", got, want)
	}
}

func TestBuildRetention(t *testing.T) {
	h := fake.NewHarness(t)
	if err := os.MkdirAll(h.Paths.SupportDir, 0o755); err != nil {
		t.Fatal(err)
	}
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	for i, name := range []string{"A", "B", "C", "D"} {
		p := filepath.Join(h.Paths.SupportDir, "support-"+name+".tar.gz")
		if err := os.WriteFile(p, []byte(name), 0o644); err != nil {
			t.Fatal(err)
		}
		mtime := base.Add(time.Duration(i) * time.Hour)
		if err := os.Chtimes(p, mtime, mtime); err != nil {
			t.Fatal(err)
		}
	}

	if _, err := h.Builder(t).Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	got := dirNames(t, h.Paths.SupportDir)
	want := []string{"support-" + genID + ".tar.gz", "support-C.tar.gz", "support-D.tar.gz"}
	sort.Strings(want)
	if !slices.Equal(got, want) {
		t.Fatalf("support dir = %v, want %v", got, want)
	}
}

func TestBuildSouthCategoryFailureIsIsolated(t *testing.T) {
	failing := fake.NewHarness(t)
	failing.Storage.ChildCategoriesErr = func(_ context.Context, parent string) error {
		if parent == support.SouthGroup {
			return errors.New("storage unavailable")
		}
		return nil
	}
	failed, err := failing.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() with failing south query error = %v", err)
	}

	empty := fake.NewHarness(t)
	delete(empty.Storage.Categories, support.SouthGroup)
	clean, err := empty.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() without south categories error = %v", err)
	}

	got := memberNames(readBundle(t, failed.Path))
	want := memberNames(readBundle(t, clean.Path))
	if !slices.Equal(got, want) {
		t.Fatalf("members with failing query = %v, want %v", got, want)
	}
	if len(failed.Skipped) != 1 || failed.Skipped[0].Step != "syslog.south" || failed.Skipped[0].Item != support.SouthGroup {
		t.Fatalf("Skipped = %+v", failed.Skipped)
	}
}

func TestBuildServiceExtractFailureSkipsOnlyThatService(t *testing.T) {
	h := fake.NewHarness(t)
	h.Logs.ExtractErr = func(_ context.Context, f types.LogFilter) error {
		if f.Pattern == support.ServicePattern("Sine Wave") {
			return errors.New("read syslog: permission denied")
		}
		return nil
	}

	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	members := readBundle(t, bundle.Path)
	if _, ok := members["logs/sys/syslog-Sine-Wave-"+genID]; ok {
		t.Error("failed service excerpt was archived")
	}
	if _, ok := members["logs/sys/syslog-PI-Server-"+genID]; !ok {
		t.Error("north excerpt missing after south failure")
	}
	if len(bundle.Skipped) != 1 || bundle.Skipped[0].Item != "Sine Wave" {
		t.Fatalf("Skipped = %+v", bundle.Skipped)
	}
}

func TestBuildGroupDeadlineSkipsRestOfGroup(t *testing.T) {
	h := fake.NewHarness(t)
	h.Storage.AddCategory(support.SouthGroup, types.Category{Key: "Modbus"})
	h.Logs.ExtractErr = func(ctx context.Context, f types.LogFilter) error {
		if f.Pattern == support.ServicePattern("Sine Wave") {
			<-ctx.Done()
			return ctx.Err()
		}
		return nil
	}

	bundle, err := h.Builder(t, support.WithStepTimeout(50*time.Millisecond)).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	if len(bundle.Skipped) != 2 {
		t.Fatalf("Skipped = %+v, want service and group", bundle.Skipped)
	}
	if got := bundle.Skipped[0]; got.Step != "syslog.south" || got.Item != "Sine Wave" || !errors.Is(got.Err, context.DeadlineExceeded) {
		t.Fatalf("Skipped[0] = %+v", got)
	}
	if got := bundle.Skipped[1]; got.Step != "syslog.south" || got.Item != support.SouthGroup {
		t.Fatalf("Skipped[1] = %+v", got)
	}

	members := readBundle(t, bundle.Path)
	if _, ok := members["logs/sys/syslog-Modbus-"+genID]; ok {
		t.Error("category after the deadline was collected")
	}
	if _, ok := members["logs/sys/syslog-PI-Server-"+genID]; !ok {
		t.Error("north excerpt missing after south deadline")
	}
}

func TestBuildGroupStopsWhenBuildCancelled(t *testing.T) {
	h := fake.NewHarness(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	h.Logs.ExtractErr = func(_ context.Context, f types.LogFilter) error {
		if f.Pattern == support.ServicePattern("Sine Wave") {
			cancel()
		}
		return nil
	}

	_, err := h.Builder(t).Build(ctx)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, support.ErrBuildFailed) {
		t.Fatalf("Build() error = %v, want cancelled build failure", err)
	}
}

func TestBuildCollidingExcerptNamesGetSuffix(t *testing.T) {
	h := fake.NewHarness(t)
	h.Storage.AddCategory(support.SouthGroup, types.Category{Key: "Sine-Wave"})
	h.Logs.Lines = append(h.Logs.Lines, "Mar  5 14:00:06 gw Fledge Sine-Wave[105]: INFO: second sinusoid")

	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	members := readBundle(t, bundle.Path)
	first := string(members["logs/sys/syslog-Sine-Wave-"+genID])
	second := string(members["logs/sys/syslog-Sine-Wave-2-"+genID])
	if !strings.Contains(first, "Fledge Sine Wave[102]") {
		t.Fatalf("first excerpt = %q", first)
	}
	if !strings.Contains(second, "Fledge Sine-Wave[105]") {
		t.Fatalf("second excerpt = %q", second)
	}

	seen := make(map[string]bool)
	for _, e := range bundle.Entries {
		if seen[e.Name] {
			t.Fatalf("duplicate archive member %s", e.Name)
		}
		seen[e.Name] = true
	}
}

func TestBuildPlatformExtractFailureIsNotFatal(t *testing.T) {
	h := fake.NewHarness(t)
	h.Logs.ExtractErr = func(_ context.Context, f types.LogFilter) error {
		if f.Contains != "" {
			return errors.New("syslog rotated")
		}
		return nil
	}

	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}
	if _, ok := readBundle(t, bundle.Path)["logs/sys/syslog-"+genID]; !ok {
		t.Fatal("platform excerpt missing")
	}
}

func TestBuildConfigurationFailureFailsBuild(t *testing.T) {
	h := fake.NewHarness(t)
	h.Storage.QueryTableErr = func(_ context.Context, table string) error {
		if table == "configuration" {
			return errors.New("no such table")
		}
		return nil
	}

	_, err := h.Builder(t).Build(context.Background())
	if !errors.Is(err, support.ErrBuildFailed) {
		t.Fatalf("Build() error = %v, want ErrBuildFailed", err)
	}

	// The partial archive is sealed and the working files are gone.
	partial := filepath.Join(h.Paths.SupportDir, "support-"+genID+".tar.gz")
	members := readBundle(t, partial)
	if _, ok := members["fledge-info-"+genID]; !ok {
		t.Errorf("partial bundle missing version; have %v", memberNames(members))
	}
	if got := dirNames(t, h.Paths.SupportDir); !slices.Equal(got, []string{"support-" + genID + ".tar.gz"}) {
		t.Fatalf("support dir = %v", got)
	}
	if calls := h.Machine.Calls("DiskUsage"); len(calls) != 0 {
		t.Fatal("collectors ran after a fatal failure")
	}
}

func TestBuildMissingVersionFailsBuild(t *testing.T) {
	h := fake.NewHarness(t)
	if err := os.Remove(filepath.Join(h.Paths.Root, "VERSION")); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Builder(t).Build(context.Background()); !errors.Is(err, support.ErrBuildFailed) {
		t.Fatalf("Build() error = %v, want ErrBuildFailed", err)
	}
}

func TestBuildSupportDirIsFile(t *testing.T) {
	h := fake.NewHarness(t)
	if err := os.WriteFile(h.Paths.SupportDir, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := h.Builder(t).Build(context.Background()); !errors.Is(err, support.ErrInit) {
		t.Fatalf("Build() error = %v, want ErrInit", err)
	}
}

func TestBuildSuccessiveGenerations(t *testing.T) {
	h := fake.NewHarness(t)
	b := h.Builder(t)

	first, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("first Build() error = %v", err)
	}
	if _, err := b.Build(context.Background()); !errors.Is(err, support.ErrBuildFailed) {
		t.Fatalf("Build() in the same second error = %v, want ErrBuildFailed", err)
	}

	h.Clock.Advance(time.Second)
	second, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("second Build() error = %v", err)
	}
	if first.Path == second.Path {
		t.Fatal("generations share a path")
	}
	if second.GenerationID != "240305-14-07-10" {
		t.Fatalf("GenerationID = %q", second.GenerationID)
	}
	// The first bundle is intact after a refused overwrite.
	readBundle(t, first.Path)
}

func TestBuildManifestListsEntries(t *testing.T) {
	h := fake.NewHarness(t)
	bundle, err := h.Builder(t).Build(context.Background())
	if err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var manifest support.ManifestSnapshot
	if err := json.Unmarshal(readBundle(t, bundle.Path)["manifest-"+genID], &manifest); err != nil {
		t.Fatalf("unmarshal manifest: %v", err)
	}
	if manifest.GenerationID != genID {
		t.Fatalf("manifest generation = %q", manifest.GenerationID)
	}
	// Every entry but the manifest itself is listed.
	if len(manifest.Files) != len(bundle.Entries)-1 {
		t.Fatalf("manifest lists %d files, bundle has %d entries", len(manifest.Files), len(bundle.Entries))
	}
	for _, f := range manifest.Files {
		if !f.Dir && len(f.BLAKE3) != 64 {
			t.Errorf("entry %s digest = %q", f.Name, f.BLAKE3)
		}
	}
}

func TestBuildTracesSteps(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = provider.Shutdown(context.Background()) })

	h := fake.NewHarness(t)
	h.Storage.ChildCategoriesErr = func(_ context.Context, parent string) error {
		if parent == support.NorthGroup {
			return errors.New("timeout")
		}
		return nil
	}
	if _, err := h.Builder(t, support.WithTracer(provider.Tracer("test"))).Build(context.Background()); err != nil {
		t.Fatalf("Build() error = %v", err)
	}

	var root, north sdktrace.ReadOnlySpan
	for _, s := range recorder.Ended() {
		switch s.Name() {
		case "support.build":
			root = s
		case "syslog.north":
			north = s
		}
	}
	if root == nil || north == nil {
		t.Fatal("missing build or north step span")
	}
	if north.Parent().SpanID() != root.SpanContext().SpanID() {
		t.Fatal("step span is not a child of the build span")
	}
	var skipped bool
	for _, ev := range north.Events() {
		if ev.Name == telemetry.SkipEventName {
			skipped = true
		}
	}
	if !skipped {
		t.Fatal("north step span has no skip event")
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	h := fake.NewHarness(t)

	tests := []struct {
		name string
		opts []support.Option
	}{
		{"no storage", []support.Option{support.WithStorage(nil)}},
		{"no machine", []support.Option{support.WithMachine(nil)}},
		{"no log source", []support.Option{support.WithLogSource(nil)}},
		{"zero bundles", []support.Option{support.WithMaxBundles(0)}},
		{"negative timeout", []support.Option{support.WithStepTimeout(-time.Second)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := support.New(h.Paths, append(h.Options(), tt.opts...)...)
			if !errors.Is(err, support.ErrInit) {
				t.Fatalf("New() error = %v, want ErrInit", err)
			}
		})
	}

	if _, err := support.New(support.Paths{}, h.Options()...); !errors.Is(err, support.ErrInit) {
		t.Fatalf("New() without support dir error = %v, want ErrInit", err)
	}
}

func TestBuildStepTimeout(t *testing.T) {
	h := fake.NewHarness(t)
	h.Packages.InstalledPackagesErr = func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}

	_, err := h.Builder(t, support.WithStepTimeout(10*time.Millisecond)).Build(context.Background())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Build() error = %v, want deadline exceeded", err)
	}
	if !errors.Is(err, support.ErrBuildFailed) {
		t.Fatalf("Build() error = %v, want ErrBuildFailed", err)
	}
}
