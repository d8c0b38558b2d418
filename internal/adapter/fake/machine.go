package fake

import (
	"context"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var _ support.Machine = (*Machine)(nil)

// Machine is a scripted host. ProcessLines are filtered through the match
// function the caller passes, the way the real process listing is.
type Machine struct {
	CallRecorder
	PlatformName string
	Disk         types.DiskUsage
	Memory       types.MemoryInfo
	Hostname     map[string]string
	CPU          map[string]string
	ProcessLines []string

	DiskUsageErr    func(ctx context.Context, path string) error
	MemoryInfoErr   func(ctx context.Context) error
	HostnameInfoErr func(ctx context.Context) error
	CPUInfoErr      func(ctx context.Context) error
	ProcessListErr  func(ctx context.Context) error
}

// NewMachine returns a Machine reporting plausible Linux values.
func NewMachine() *Machine {
	return &Machine{
		PlatformName: "linux",
		Disk:         types.DiskUsage{Total: 100 << 30, Used: 40 << 30, Free: 60 << 30},
		Memory:       types.MemoryInfo{Total: "7.7Gi", Used: "2.1Gi", Free: "3.9Gi"},
		Hostname:     map[string]string{"Static hostname": "gateway-01"},
		CPU:          map[string]string{"Architecture": "x86_64"},
		ProcessLines: []string{
			"USER PID %CPU %MEM VSZ RSS TTY STAT START TIME COMMAND",
			"fledge 101 0.3 1.2 1000 200 ? Sl 10:00 0:01 python3 -m fledge.services.core",
			"fledge 202 0.0 0.4 900 100 ? S 10:00 0:00 ./tasks/purge --name=purge",
			"root 303 0.0 0.0 100 10 ? S 10:00 0:00 sshd",
		},
	}
}

func (m *Machine) Platform() string {
	m.record("Platform")
	return m.PlatformName
}

func (m *Machine) DiskUsage(ctx context.Context, path string) (types.DiskUsage, error) {
	m.record("DiskUsage", path)
	if m.DiskUsageErr != nil {
		if err := m.DiskUsageErr(ctx, path); err != nil {
			return types.DiskUsage{}, err
		}
	}
	return m.Disk, nil
}

func (m *Machine) MemoryInfo(ctx context.Context) (types.MemoryInfo, error) {
	m.record("MemoryInfo")
	if m.MemoryInfoErr != nil {
		if err := m.MemoryInfoErr(ctx); err != nil {
			return types.MemoryInfo{}, err
		}
	}
	return m.Memory, nil
}

func (m *Machine) HostnameInfo(ctx context.Context) (map[string]string, error) {
	m.record("HostnameInfo")
	if m.HostnameInfoErr != nil {
		if err := m.HostnameInfoErr(ctx); err != nil {
			return nil, err
		}
	}
	return m.Hostname, nil
}

func (m *Machine) CPUInfo(ctx context.Context) (map[string]string, error) {
	m.record("CPUInfo")
	if m.CPUInfoErr != nil {
		if err := m.CPUInfoErr(ctx); err != nil {
			return nil, err
		}
	}
	return m.CPU, nil
}

func (m *Machine) ProcessList(ctx context.Context, match func(string) bool) ([]string, error) {
	m.record("ProcessList")
	if m.ProcessListErr != nil {
		if err := m.ProcessListErr(ctx); err != nil {
			return nil, err
		}
	}
	var out []string
	for _, line := range m.ProcessLines {
		if match == nil || match(line) {
			out = append(out, line)
		}
	}
	return out, nil
}
