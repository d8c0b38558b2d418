// Package support builds diagnostic bundles: one gzip-compressed tar per
// run holding log excerpts, storage table dumps, host resource snapshots
// and selected data directories.
//
// A build runs a fixed sequence of collectors. Any collector failure
// aborts the build, except inside the per-category south and north log
// groups, where failures are recorded on the bundle and skipped. The
// archive is always closed before the working directory is purged.
package support

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"fledge/internal/support/archive"
	"fledge/internal/telemetry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrInit reports that no archive was started: the output directories
	// or retention could not be prepared, or a collaborator is missing.
	ErrInit = errors.New("support bundle initialization failed")
	// ErrBuildFailed reports that an archive was started but a collector,
	// or sealing the archive, failed.
	ErrBuildFailed = errors.New("support bundle build failed")
)

const (
	generationLayout   = "060102-15-04-05"
	defaultMaxBundles  = 3
	defaultStepTimeout = 2 * time.Minute
	tracerName         = "fledge/support"
)

// Paths locates everything the collectors read and write.
type Paths struct {
	Root       string // install root holding VERSION
	Data       string // data directory holding scripts/ and logs/
	SupportDir string // where bundles are kept
	WorkDir    string // intermediate files, defaults to SupportDir
	ScratchDir string // where the syslog utility leaves fl_syslog* files
}

// Bundle is a sealed archive.
type Bundle struct {
	Path         string
	GenerationID string
	CreatedAt    time.Time
	Entries      []archive.Entry
	Skipped      []StepResult
}

// StepResult records a swallowed failure inside an isolated step.
type StepResult struct {
	Step string
	Item string
	Err  error
}

type Builder struct {
	mu          sync.Mutex
	paths       Paths
	maxBundles  int
	stepTimeout time.Duration

	storage  Storage
	services ServiceRegistry
	software SoftwareRegistry
	packages PackageLister
	machine  Machine
	logs     LogSource

	now    func() time.Time
	tracer trace.Tracer
	log    *slog.Logger
}

type builderCfg struct {
	maxBundles  int
	stepTimeout time.Duration
	storage     Storage
	services    ServiceRegistry
	software    SoftwareRegistry
	packages    PackageLister
	machine     Machine
	logs        LogSource
	now         func() time.Time
	tracer      trace.Tracer
	log         *slog.Logger
}

// Option configures a Builder.
type Option func(*builderCfg)

// WithStorage injects the storage layer the table and category collectors query.
func WithStorage(s Storage) Option {
	return func(c *builderCfg) { c.storage = s }
}

func WithServiceRegistry(r ServiceRegistry) Option {
	return func(c *builderCfg) { c.services = r }
}

func WithSoftwareRegistry(r SoftwareRegistry) Option {
	return func(c *builderCfg) { c.software = r }
}

func WithPackageLister(p PackageLister) Option {
	return func(c *builderCfg) { c.packages = p }
}

func WithMachine(m Machine) Option {
	return func(c *builderCfg) { c.machine = m }
}

func WithLogSource(l LogSource) Option {
	return func(c *builderCfg) { c.logs = l }
}

// WithMaxBundles sets how many bundles may exist once a build completes.
func WithMaxBundles(n int) Option {
	return func(c *builderCfg) { c.maxBundles = n }
}

// WithStepTimeout bounds every collector. Zero disables the bound.
func WithStepTimeout(d time.Duration) Option {
	return func(c *builderCfg) { c.stepTimeout = d }
}

// WithClock replaces time.Now as the source of generation ids.
func WithClock(now func() time.Time) Option {
	return func(c *builderCfg) { c.now = now }
}

func WithTracer(t trace.Tracer) Option {
	return func(c *builderCfg) { c.tracer = t }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *builderCfg) { c.log = l }
}

// New validates the collaborators and returns a Builder. Directories are
// prepared by Build.
func New(paths Paths, opts ...Option) (*Builder, error) {
	cfg := builderCfg{
		maxBundles:  defaultMaxBundles,
		stepTimeout: defaultStepTimeout,
	}
	for _, o := range opts {
		o(&cfg)
	}
	if err := validateBuilderConfig(paths, cfg); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInit, err)
	}

	if paths.WorkDir == "" {
		paths.WorkDir = paths.SupportDir
	}
	if cfg.now == nil {
		cfg.now = time.Now
	}
	if cfg.tracer == nil {
		cfg.tracer = otel.Tracer(tracerName)
	}
	if cfg.log == nil {
		cfg.log = slog.Default()
	}

	return &Builder{
		paths:       paths,
		maxBundles:  cfg.maxBundles,
		stepTimeout: cfg.stepTimeout,
		storage:     cfg.storage,
		services:    cfg.services,
		software:    cfg.software,
		packages:    cfg.packages,
		machine:     cfg.machine,
		logs:        cfg.logs,
		now:         cfg.now,
		tracer:      cfg.tracer,
		log:         cfg.log.With("component", "support"),
	}, nil
}

func validateBuilderConfig(paths Paths, cfg builderCfg) error {
	if paths.SupportDir == "" {
		return fmt.Errorf("support directory is required")
	}
	if cfg.maxBundles < 1 {
		return fmt.Errorf("max bundles must be at least 1, got %d", cfg.maxBundles)
	}
	if cfg.stepTimeout < 0 {
		return fmt.Errorf("step timeout must not be negative")
	}
	if cfg.storage == nil {
		return fmt.Errorf("storage is required")
	}
	if cfg.services == nil {
		return fmt.Errorf("service registry is required")
	}
	if cfg.software == nil {
		return fmt.Errorf("software registry is required")
	}
	if cfg.packages == nil {
		return fmt.Errorf("package lister is required")
	}
	if cfg.machine == nil {
		return fmt.Errorf("machine is required")
	}
	if cfg.logs == nil {
		return fmt.Errorf("log source is required")
	}
	return nil
}

// Build writes a new bundle and returns it once sealed. Concurrent calls
// on one Builder run one after another.
func (b *Builder) Build(ctx context.Context) (Bundle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.prepare(); err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrInit, err)
	}

	created := b.now()
	genID := created.Format(generationLayout)
	outPath, err := filepath.Abs(filepath.Join(b.paths.SupportDir, BundleName(genID)))
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: resolve bundle path: %w", ErrInit, err)
	}

	steps := b.steps()
	op, err := telemetry.StartBuild(ctx, b.tracer, "support.build", buildPlan(genID, steps))
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrInit, err)
	}

	r := &run{
		parent:    op.Context(),
		genID:     genID,
		createdAt: created,
		ws:        NewWorkspace(b.paths.WorkDir, genID),
		log:       b.log,
	}
	bundle, err := b.execute(op, r, outPath, steps)
	op.End(err)
	if err != nil {
		b.log.Error("Support bundle build failed.", "path", outPath, "err", err)
		return Bundle{}, err
	}
	b.log.Info("Support bundle created.", "path", bundle.Path, "entries", len(bundle.Entries), "skipped", len(bundle.Skipped))
	return bundle, nil
}

func (b *Builder) execute(op *telemetry.Operation, r *run, outPath string, steps []step) (Bundle, error) {
	defer func() {
		if err := r.ws.Purge(); err != nil {
			b.log.Warn("Failed to purge working files.", "dir", r.ws.Dir(), "err", err)
		}
	}()

	w, err := archive.Create(outPath)
	if err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}
	r.w = w

	stepErr := b.runSteps(op, r, steps)
	closeErr := w.Close()
	if err := errors.Join(stepErr, closeErr); err != nil {
		return Bundle{}, fmt.Errorf("%w: %w", ErrBuildFailed, err)
	}

	return Bundle{
		Path:         outPath,
		GenerationID: r.genID,
		CreatedAt:    r.createdAt,
		Entries:      w.Entries(),
		Skipped:      r.skipped,
	}, nil
}

func (b *Builder) runSteps(op *telemetry.Operation, r *run, steps []step) error {
	for _, s := range steps {
		err := op.RunStep(op.Context(), s.id, func(ctx context.Context) error {
			ctx, cancel := b.stepContext(ctx)
			defer cancel()
			return s.run(ctx, r)
		})
		if err != nil {
			return fmt.Errorf("%s: %w", s.id, err)
		}
		b.log.Debug("Collected.", "step", s.id)
	}
	return nil
}

func (b *Builder) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if b.stepTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, b.stepTimeout)
}

// prepare makes sure the output and work directories exist and trims old
// bundles to make room for the new one.
func (b *Builder) prepare() error {
	for _, dir := range []string{b.paths.SupportDir, b.paths.WorkDir} {
		if err := ensureDir(dir); err != nil {
			return err
		}
	}
	deleted, err := EnforceRetention(b.paths.SupportDir, b.maxBundles)
	if err != nil {
		return err
	}
	for _, bundle := range deleted {
		b.log.Info("Deleted old support bundle.", "path", bundle.Path)
	}
	return nil
}

func ensureDir(dir string) error {
	info, err := os.Stat(dir)
	switch {
	case err == nil:
		if !info.IsDir() {
			return fmt.Errorf("%s is not a directory", dir)
		}
		return nil
	case errors.Is(err, os.ErrNotExist):
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
		return nil
	default:
		return fmt.Errorf("stat %s: %w", dir, err)
	}
}

func buildPlan(genID string, steps []step) telemetry.Plan {
	plan := telemetry.Plan{GenerationID: genID, Steps: make([]telemetry.PlannedStep, 0, len(steps))}
	for _, s := range steps {
		plan.Steps = append(plan.Steps, telemetry.PlannedStep{ID: s.id, Title: s.title, Isolated: s.isolated})
	}
	return plan
}
