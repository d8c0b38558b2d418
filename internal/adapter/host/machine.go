package host

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"strings"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var _ support.Machine = (*Machine)(nil)

// Machine answers resource and process questions using the usual Linux
// tools: free, hostnamectl, lscpu and ps.
type Machine struct {
	runner Runner
	log    *slog.Logger
}

type MachineOption func(*Machine)

func WithRunner(r Runner) MachineOption {
	return func(m *Machine) { m.runner = r }
}

func WithLogger(l *slog.Logger) MachineOption {
	return func(m *Machine) { m.log = l }
}

func NewMachine(opts ...MachineOption) *Machine {
	m := &Machine{runner: ExecRunner{}, log: slog.Default()}
	for _, o := range opts {
		o(m)
	}
	return m
}

// Platform is the operating system name as Go reports it, e.g. "linux".
func (m *Machine) Platform() string { return runtime.GOOS }

func (m *Machine) DiskUsage(_ context.Context, path string) (types.DiskUsage, error) {
	return diskUsage(path)
}

// MemoryInfo reports the human-readable total, used and free columns of
// the "Mem:" row of free -h.
func (m *Machine) MemoryInfo(ctx context.Context) (types.MemoryInfo, error) {
	out, err := m.runner.Output(ctx, "free", "-h")
	if err != nil {
		return types.MemoryInfo{}, err
	}
	for _, l := range lines(out) {
		fields := strings.Fields(l)
		if len(fields) >= 4 && fields[0] == "Mem:" {
			return types.MemoryInfo{Total: fields[1], Used: fields[2], Free: fields[3]}, nil
		}
	}
	return types.MemoryInfo{}, fmt.Errorf("free output has no Mem row")
}

func (m *Machine) HostnameInfo(ctx context.Context) (map[string]string, error) {
	return m.keyValues(ctx, "hostnamectl", "status")
}

func (m *Machine) CPUInfo(ctx context.Context) (map[string]string, error) {
	return m.keyValues(ctx, "lscpu")
}

// ProcessList returns the lines of ps aufx for which match is true.
func (m *Machine) ProcessList(ctx context.Context, match func(string) bool) ([]string, error) {
	out, err := m.runner.Output(ctx, "ps", "aufx")
	if err != nil {
		return nil, err
	}
	res := make([]string, 0)
	for _, l := range lines(out) {
		if match == nil || match(l) {
			res = append(res, l)
		}
	}
	return res, nil
}

func (m *Machine) keyValues(ctx context.Context, name string, args ...string) (map[string]string, error) {
	out, err := m.runner.Output(ctx, name, args...)
	if err != nil {
		return nil, err
	}
	kv, malformed := parseKeyValues(out)
	if malformed > 0 {
		m.log.Debug("Skipped lines without a key.", "command", name, "lines", malformed)
	}
	return kv, nil
}
