// Package bundlecmd holds the fledge-support subcommands that build, list,
// prune and upload support bundles.
package bundlecmd

import (
	"context"
	"fmt"
	"log/slog"

	"fledge/config"
	"fledge/internal/adapter/host"
	"fledge/internal/adapter/objectstore"
	"fledge/internal/adapter/postgres"
	"fledge/internal/adapter/registry"
	"fledge/internal/adapter/sqlite"
	"fledge/internal/adapter/sqlstore"
	"fledge/internal/support"

	"go.opentelemetry.io/otel/trace"
)

const tracerName = "fledge/support"

// environment owns the adapters a build needs. Close releases them.
type environment struct {
	builder *support.Builder
	store   *sqlstore.Store
}

func openEnvironment(ctx context.Context, cfg *config.Config, tracer trace.Tracer) (*environment, error) {
	store, err := openStorage(ctx, cfg.Storage)
	if err != nil {
		return nil, err
	}

	syslog, err := host.NewSyslog(cfg.SyslogFile)
	if err != nil {
		_ = store.Close() // best-effort cleanup
		return nil, err
	}

	machine := host.NewMachine()
	services := registry.NewDirectory()
	// The CLI runs beside the core, not inside it, so the registry is
	// rebuilt from the service processes that are running right now.
	if lines, err := machine.ProcessList(ctx, support.IsFledgeProcess); err != nil {
		slog.Warn("Could not list running services.", "err", err)
	} else {
		n := services.LoadProcesses(lines)
		slog.Debug("Loaded running services.", "count", n)
	}

	builder, err := support.New(support.Paths{
		Root:       cfg.Root,
		Data:       cfg.Data,
		SupportDir: cfg.SupportDir,
		WorkDir:    cfg.WorkDir,
		ScratchDir: cfg.ScratchDir,
	},
		support.WithStorage(store),
		support.WithServiceRegistry(services),
		support.WithSoftwareRegistry(registry.NewDiscovery(cfg.Root)),
		support.WithPackageLister(host.NewPipPackages(nil, "")),
		support.WithMachine(machine),
		support.WithLogSource(syslog),
		support.WithMaxBundles(cfg.MaxBundles),
		support.WithStepTimeout(cfg.StepTimeout),
		support.WithTracer(tracer),
	)
	if err != nil {
		_ = store.Close() // best-effort cleanup
		return nil, err
	}
	return &environment{builder: builder, store: store}, nil
}

func (e *environment) Close() error {
	return e.store.Close()
}

func openStorage(ctx context.Context, s config.Storage) (*sqlstore.Store, error) {
	switch s.Engine {
	case config.StorageSQLite:
		return sqlite.Open(s.Path)
	case config.StoragePostgres:
		return postgres.Open(ctx, s.DSN, s.Schema)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", s.Engine)
	}
}

func newUploader(u config.Upload) (*objectstore.Uploader, error) {
	return objectstore.New(objectstore.Config{
		Endpoint:  u.Endpoint,
		Region:    u.Region,
		AccessKey: u.AccessKey,
		SecretKey: u.SecretKey,
		Bucket:    u.Bucket,
		Prefix:    u.Prefix,
		UseSSL:    u.UseSSL,
	})
}
