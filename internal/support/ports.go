package support

import (
	"context"
	"io"

	"fledge/pkg/types"
)

// TableQuerier reads rows from one storage table.
type TableQuerier interface {
	QueryTable(ctx context.Context, table string, q types.Query) (types.TableResult, error)
}

// CategoryLister walks one level of the configuration hierarchy.
type CategoryLister interface {
	ChildCategories(ctx context.Context, parent string) ([]types.Category, error)
}

// Storage is the storage layer as seen by the builder.
type Storage interface {
	TableQuerier
	CategoryLister
}

// ServiceRegistry lists the services registered with the core.
type ServiceRegistry interface {
	ListServices(ctx context.Context) ([]types.ServiceRecord, error)
}

// SoftwareRegistry lists installed plugins and services.
type SoftwareRegistry interface {
	InstalledPlugins(ctx context.Context) ([]types.Plugin, error)
	InstalledServices(ctx context.Context) ([]string, error)
}

// PackageLister introspects the package manager.
type PackageLister interface {
	InstalledPackages(ctx context.Context) ([]types.Package, error)
}

// Machine is the narrow view of the host the resource and process
// collectors need.
type Machine interface {
	Platform() string
	DiskUsage(ctx context.Context, path string) (types.DiskUsage, error)
	MemoryInfo(ctx context.Context) (types.MemoryInfo, error)
	HostnameInfo(ctx context.Context) (map[string]string, error)
	CPUInfo(ctx context.Context) (map[string]string, error)
	ProcessList(ctx context.Context, match func(line string) bool) ([]string, error)
}

// LogSource writes the system log lines selected by f to w.
type LogSource interface {
	Extract(ctx context.Context, f types.LogFilter, w io.Writer) error
}
