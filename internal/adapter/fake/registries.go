package fake

import (
	"context"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var (
	_ support.ServiceRegistry  = (*ServiceRegistry)(nil)
	_ support.SoftwareRegistry = (*SoftwareRegistry)(nil)
	_ support.PackageLister    = (*PackageLister)(nil)
)

type ServiceRegistry struct {
	CallRecorder
	Services []types.ServiceRecord

	ListServicesErr func(ctx context.Context) error
}

func (r *ServiceRegistry) ListServices(ctx context.Context) ([]types.ServiceRecord, error) {
	r.record("ListServices")
	if r.ListServicesErr != nil {
		if err := r.ListServicesErr(ctx); err != nil {
			return nil, err
		}
	}
	return r.Services, nil
}

type SoftwareRegistry struct {
	CallRecorder
	Plugins  []types.Plugin
	Services []string

	InstalledPluginsErr  func(ctx context.Context) error
	InstalledServicesErr func(ctx context.Context) error
}

func (r *SoftwareRegistry) InstalledPlugins(ctx context.Context) ([]types.Plugin, error) {
	r.record("InstalledPlugins")
	if r.InstalledPluginsErr != nil {
		if err := r.InstalledPluginsErr(ctx); err != nil {
			return nil, err
		}
	}
	return r.Plugins, nil
}

func (r *SoftwareRegistry) InstalledServices(ctx context.Context) ([]string, error) {
	r.record("InstalledServices")
	if r.InstalledServicesErr != nil {
		if err := r.InstalledServicesErr(ctx); err != nil {
			return nil, err
		}
	}
	return r.Services, nil
}

type PackageLister struct {
	CallRecorder
	Packages []types.Package

	InstalledPackagesErr func(ctx context.Context) error
}

func (p *PackageLister) InstalledPackages(ctx context.Context) ([]types.Package, error) {
	p.record("InstalledPackages")
	if p.InstalledPackagesErr != nil {
		if err := p.InstalledPackagesErr(ctx); err != nil {
			return nil, err
		}
	}
	return p.Packages, nil
}
