package host

import (
	"context"
	"encoding/json"
	"fmt"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var _ support.PackageLister = (*PipPackages)(nil)

// PipPackages lists the Python packages visible to the platform's
// interpreter.
type PipPackages struct {
	runner Runner
	python string
}

func NewPipPackages(r Runner, python string) *PipPackages {
	if r == nil {
		r = ExecRunner{}
	}
	if python == "" {
		python = "python3"
	}
	return &PipPackages{runner: r, python: python}
}

func (p *PipPackages) InstalledPackages(ctx context.Context) ([]types.Package, error) {
	out, err := p.runner.Output(ctx, p.python, "-m", "pip", "list", "--format=json", "--disable-pip-version-check")
	if err != nil {
		return nil, err
	}
	var pkgs []types.Package
	if err := json.Unmarshal(out, &pkgs); err != nil {
		return nil, fmt.Errorf("decode pip list: %w", err)
	}
	if pkgs == nil {
		pkgs = []types.Package{}
	}
	return pkgs, nil
}
