package support

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"fledge/internal/check"
	"fledge/internal/support/archive"
	"fledge/internal/telemetry"
	"fledge/pkg/types"
)

const (
	SouthGroup = "South"
	NorthGroup = "North"
	// NorthReservedCategory is a north child category that is not a service.
	NorthReservedCategory = "OMF_TYPES"

	versionFile     = "VERSION"
	syslogDir       = "logs/sys"
	scriptsDir      = "scripts"
	packageLogsDir  = "logs/package"
	utilityPrefix   = "fl_syslog"
	statsRowLimit   = 1000
	diskUsagePath   = "/"
	bytesPerMiB     = 1 << 20
	platformLogWord = "Fledge"
	storageLogWord  = "Fledge Storage"
)

var (
	errArchive = errors.New("archive write failed")

	processHeaderOrFledge = regexp.MustCompile(`(%MEM|fledge\.)`)
)

type step struct {
	id       string
	title    string
	isolated bool
	run      func(ctx context.Context, r *run) error
}

// run is the state of one build shared by its collectors.
type run struct {
	// parent is the build context. Step contexts derive from it and add
	// the per-step deadline.
	parent    context.Context
	genID     string
	createdAt time.Time
	ws        Workspace
	w         *archive.Writer
	log       *slog.Logger
	skipped   []StepResult
	excerpts  map[string]bool
}

type tableDump struct {
	table string
	kind  string
	query types.Query
}

var tableDumps = []tableDump{
	{table: "configuration", kind: "configuration"},
	{table: "log", kind: "audit"},
	{table: "schedules", kind: "schedules"},
	{table: "scheduled_processes", kind: "scheduled_processes"},
	{table: "statistics_history", kind: "statistics-history", query: types.Query{
		Limit:   statsRowLimit,
		OrderBy: []types.Order{{Column: "history_ts", Direction: types.Descending}},
	}},
	{table: "plugin_data", kind: "plugin-data", query: types.Query{
		Limit:   statsRowLimit,
		OrderBy: []types.Order{{Column: "key", Direction: types.Ascending}},
	}},
	{table: "streams", kind: "streams", query: types.Query{
		Limit:   statsRowLimit,
		OrderBy: []types.Order{{Column: "id", Direction: types.Ascending}},
	}},
}

// steps lists the collectors in the order they run.
func (b *Builder) steps() []step {
	steps := []step{
		{id: "version", title: "Platform version", run: b.collectVersion},
		{id: "syslog.platform", title: "Platform log excerpt", run: func(ctx context.Context, r *run) error {
			return b.collectSyslog(ctx, r, "syslog", types.LogFilter{Contains: platformLogWord})
		}},
		{id: "syslog.storage", title: "Storage log excerpt", run: func(ctx context.Context, r *run) error {
			return b.collectSyslog(ctx, r, "syslogStorage", types.LogFilter{Contains: storageLogWord})
		}},
		{id: "syslog.utility", title: "Syslog utility output", run: b.collectUtilityLogs},
		{id: "syslog.south", title: "South service logs", isolated: true, run: func(ctx context.Context, r *run) error {
			return b.collectServiceLogs(ctx, r, "syslog.south", SouthGroup)
		}},
		{id: "syslog.north", title: "North service logs", isolated: true, run: func(ctx context.Context, r *run) error {
			return b.collectServiceLogs(ctx, r, "syslog.north", NorthGroup, NorthReservedCategory)
		}},
	}
	for _, d := range tableDumps {
		steps = append(steps, step{
			id:    "table." + d.table,
			title: "Table " + d.table,
			run: func(ctx context.Context, r *run) error {
				return b.collectTable(ctx, r, d)
			},
		})
	}
	steps = append(steps,
		step{id: "service_registry", title: "Service registry", run: b.collectServiceRegistry},
		step{id: "machine", title: "Machine resources", run: b.collectMachine},
		step{id: "psinfo", title: "Running processes", run: b.collectProcesses},
		step{id: "scripts", title: "Scripts", run: func(_ context.Context, r *run) error {
			return r.addTree(filepath.Join(b.paths.Data, "scripts"), scriptsDir)
		}},
		step{id: "package_logs", title: "Package logs", run: func(_ context.Context, r *run) error {
			return r.addTree(filepath.Join(b.paths.Data, "logs"), packageLogsDir)
		}},
		step{id: "software", title: "Installed software", run: b.collectSoftware},
		step{id: "packages", title: "Installed packages", run: b.collectPackages},
		step{id: "manifest", title: "Manifest", run: collectManifest},
	)
	check.Assert(steps[len(steps)-1].id == "manifest", "manifest must be the last step")
	return steps
}

func (b *Builder) collectVersion(_ context.Context, r *run) error {
	lines, err := readVersion(filepath.Join(b.paths.Root, versionFile))
	if err != nil {
		return err
	}
	return r.addSnapshot(lines)
}

func readVersion(p string) (VersionSnapshot, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, fmt.Errorf("open version file: %w", err)
	}
	defer f.Close()

	lines := VersionSnapshot{}
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		lines = append(lines, strings.TrimRight(scanner.Text(), " \t\r"))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read version file: %w", err)
	}
	return lines, nil
}

// collectSyslog writes a filtered excerpt of the system log. Extraction
// failures leave a partial excerpt and are only logged.
func (b *Builder) collectSyslog(ctx context.Context, r *run, kind string, f types.LogFilter) error {
	file, p, err := r.ws.Create(kind)
	if err != nil {
		return err
	}
	extractErr := b.logs.Extract(ctx, f, file)
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", p, err)
	}
	if extractErr != nil {
		r.log.Warn("Failed to extract system log.", "artifact", kind, "err", extractErr)
	}
	return r.archiveFile(p, path.Join(syslogDir, r.ws.Name(kind)))
}

// collectUtilityLogs picks up whatever the syslog utility left in the
// scratch directory.
func (b *Builder) collectUtilityLogs(_ context.Context, r *run) error {
	if b.paths.ScratchDir == "" {
		return nil
	}
	entries, err := os.ReadDir(b.paths.ScratchDir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read scratch dir: %w", err)
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() || !strings.HasPrefix(entry.Name(), utilityPrefix) {
			continue
		}
		src := filepath.Join(b.paths.ScratchDir, entry.Name())
		if err := r.archiveFile(src, path.Join(syslogDir, entry.Name()+"-"+r.genID)); err != nil {
			return err
		}
	}
	return nil
}

// collectServiceLogs writes one excerpt per child category of group. Only
// archive failures and cancellation of the build end the step. When the
// step deadline passes, the rest of the group is skipped.
func (b *Builder) collectServiceLogs(ctx context.Context, r *run, stepID, group string, exclude ...string) error {
	categories, err := b.storage.ChildCategories(ctx, group)
	if err != nil {
		if perr := r.parent.Err(); perr != nil {
			return perr
		}
		r.skip(ctx, stepID, group, err)
		return nil
	}
	for _, c := range categories {
		if c.Key == "" || slices.Contains(exclude, c.Key) {
			continue
		}
		if err := r.parent.Err(); err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			r.skip(ctx, stepID, group, err)
			return nil
		}
		err := b.collectServiceLog(ctx, r, c.Key)
		if errors.Is(err, errArchive) {
			return err
		}
		if err != nil {
			r.skip(ctx, stepID, c.Key, err)
		}
	}
	return r.parent.Err()
}

func (b *Builder) collectServiceLog(ctx context.Context, r *run, name string) error {
	kind := r.excerptKind("syslog-" + name)
	file, p, err := r.ws.Create(kind)
	if err != nil {
		return err
	}
	filter := types.LogFilter{Pattern: ServicePattern(name)}
	if err := b.logs.Extract(ctx, filter, file); err != nil {
		_ = file.Close() // best-effort cleanup
		return fmt.Errorf("extract log for %s: %w", name, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close %s: %w", p, err)
	}
	return r.archiveFile(p, path.Join(syslogDir, r.ws.Name(kind)))
}

// ServicePattern matches the syslog tag of the named service.
func ServicePattern(name string) string {
	return `(Fledge ` + regexp.QuoteMeta(name) + `)\[`
}

func (b *Builder) collectTable(ctx context.Context, r *run, d tableDump) error {
	res, err := b.storage.QueryTable(ctx, d.table, d.query)
	if err != nil {
		return fmt.Errorf("query %s: %w", d.table, err)
	}
	return r.addSnapshot(NewTableSnapshot(d.kind, res))
}

func (b *Builder) collectServiceRegistry(ctx context.Context, r *run) error {
	services, err := b.services.ListServices(ctx)
	if err != nil {
		return fmt.Errorf("list services: %w", err)
	}
	if services == nil {
		services = []types.ServiceRecord{}
	}
	return r.addSnapshot(RegistrySnapshot{About: "Service Registry", ServiceRegistry: services})
}

func (b *Builder) collectMachine(ctx context.Context, r *run) error {
	disk, err := b.machine.DiskUsage(ctx, diskUsagePath)
	if err != nil {
		return fmt.Errorf("disk usage: %w", err)
	}
	mem, err := b.machine.MemoryInfo(ctx)
	if err != nil {
		return fmt.Errorf("memory info: %w", err)
	}
	hostname, err := b.machine.HostnameInfo(ctx)
	if err != nil {
		return fmt.Errorf("hostname info: %w", err)
	}
	cpu, err := b.machine.CPUInfo(ctx)
	if err != nil {
		return fmt.Errorf("cpu info: %w", err)
	}
	return r.addSnapshot(MachineSnapshot{
		About:               "Machine resources",
		Platform:            b.machine.Platform(),
		TotalMemory:         mem.Total,
		UsedMemory:          mem.Used,
		FreeMemory:          mem.Free,
		TotalDiskSpaceMB:    disk.Total / bytesPerMiB,
		UsedDiskSpaceMB:     disk.Used / bytesPerMiB,
		FreeDiskSpaceMB:     disk.Free / bytesPerMiB,
		HostnameInfo:        nonNilMap(hostname),
		CPUArchitectureInfo: nonNilMap(cpu),
	})
}

func (b *Builder) collectProcesses(ctx context.Context, r *run) error {
	fledge, err := b.machine.ProcessList(ctx, IsFledgeProcess)
	if err != nil {
		return fmt.Errorf("list processes: %w", err)
	}
	tasks, err := b.machine.ProcessList(ctx, IsTaskProcess)
	if err != nil {
		return fmt.Errorf("list task processes: %w", err)
	}

	lines := make([]string, 0, len(fledge)+len(tasks))
	for _, l := range append(fledge, tasks...) {
		if l = strings.TrimSpace(l); l != "" {
			lines = append(lines, l)
		}
	}
	return r.addSnapshot(ProcessSnapshot{RunningProcesses: lines})
}

// IsFledgeProcess selects the ps header and platform processes.
func IsFledgeProcess(line string) bool {
	return processHeaderOrFledge.MatchString(line) && !strings.Contains(line, "grep")
}

// IsTaskProcess selects processes started by the task runner.
func IsTaskProcess(line string) bool {
	return strings.Contains(line, "./tasks") && !strings.Contains(line, "grep")
}

func (b *Builder) collectSoftware(ctx context.Context, r *run) error {
	plugins, err := b.software.InstalledPlugins(ctx)
	if err != nil {
		return fmt.Errorf("list plugins: %w", err)
	}
	services, err := b.software.InstalledServices(ctx)
	if err != nil {
		return fmt.Errorf("list installed services: %w", err)
	}
	if plugins == nil {
		plugins = []types.Plugin{}
	}
	if services == nil {
		services = []string{}
	}
	return r.addSnapshot(SoftwareSnapshot{Plugins: plugins, Services: services})
}

func (b *Builder) collectPackages(ctx context.Context, r *run) error {
	pkgs, err := b.packages.InstalledPackages(ctx)
	if err != nil {
		return fmt.Errorf("list packages: %w", err)
	}
	if pkgs == nil {
		pkgs = []types.Package{}
	}
	return r.addSnapshot(PackageSnapshot{Packages: pkgs})
}

func collectManifest(_ context.Context, r *run) error {
	return r.addSnapshot(ManifestSnapshot{
		GenerationID: r.genID,
		CreatedAt:    r.createdAt.UTC(),
		Files:        r.w.Entries(),
	})
}

func (r *run) addSnapshot(s Snapshot) error {
	p, err := r.ws.WriteSnapshot(s)
	if err != nil {
		return err
	}
	return r.archiveFile(p, r.ws.Name(s.Kind()))
}

func (r *run) archiveFile(src, name string) error {
	if err := r.w.AddFile(src, name); err != nil {
		return fmt.Errorf("%w: %w", errArchive, err)
	}
	return nil
}

// addTree archives dir under prefix. A missing directory adds nothing.
func (r *run) addTree(dir, prefix string) error {
	info, err := os.Stat(dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			r.log.Debug("Directory not present, skipping.", "path", dir)
			return nil
		}
		return fmt.Errorf("stat %s: %w", dir, err)
	}
	if !info.IsDir() {
		r.log.Debug("Not a directory, skipping.", "path", dir)
		return nil
	}
	if err := r.w.AddTree(dir, prefix, archive.SkipNamed("__pycache__")); err != nil {
		return fmt.Errorf("%w: %w", errArchive, err)
	}
	return nil
}

// excerptKind returns kind, or kind with a numeric suffix when another
// category already produced the same artifact name ("Sine Wave" and
// "Sine-Wave" both become syslog-Sine-Wave).
func (r *run) excerptKind(kind string) string {
	if r.excerpts == nil {
		r.excerpts = make(map[string]bool)
	}
	candidate := kind
	for n := 2; r.excerpts[artifactKind(candidate)]; n++ {
		candidate = fmt.Sprintf("%s-%d", kind, n)
	}
	r.excerpts[artifactKind(candidate)] = true
	return candidate
}

func (r *run) skip(ctx context.Context, stepID, item string, err error) {
	r.skipped = append(r.skipped, StepResult{Step: stepID, Item: item, Err: err})
	r.log.Debug("Skipped.", "step", stepID, "item", item, "err", err)
	telemetry.RecordSkip(ctx, item, err)
}

func nonNilMap(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}
