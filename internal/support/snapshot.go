package support

import (
	"encoding/json"
	"time"

	"fledge/internal/support/archive"
	"fledge/pkg/types"
)

// Snapshot is one structured artifact. Kind names the artifact in the
// working directory and the archive.
type Snapshot interface {
	Kind() string
}

const (
	KindVersion         = "fledge-info"
	KindServiceRegistry = "service_registry"
	KindMachine         = "machine"
	KindProcesses       = "psinfo"
	KindSoftware        = "software"
	KindPackages        = "python-packages"
	KindManifest        = "manifest"
)

// VersionSnapshot is the VERSION file, one element per line.
type VersionSnapshot []string

func (VersionSnapshot) Kind() string { return KindVersion }

// TableSnapshot is a dump of one storage table.
type TableSnapshot struct {
	kind string
	types.TableResult
}

func NewTableSnapshot(kind string, res types.TableResult) TableSnapshot {
	if res.Rows == nil {
		res.Rows = []types.Row{}
	}
	return TableSnapshot{kind: kind, TableResult: res}
}

func (s TableSnapshot) Kind() string { return s.kind }

type RegistrySnapshot struct {
	About           string                `json:"about"`
	ServiceRegistry []types.ServiceRecord `json:"serviceRegistry"`
}

func (RegistrySnapshot) Kind() string { return KindServiceRegistry }

type MachineSnapshot struct {
	About               string            `json:"about"`
	Platform            string            `json:"platform"`
	TotalMemory         string            `json:"totalMemory"`
	UsedMemory          string            `json:"usedMemory"`
	FreeMemory          string            `json:"freeMemory"`
	TotalDiskSpaceMB    uint64            `json:"totalDiskSpace_MB"`
	UsedDiskSpaceMB     uint64            `json:"usedDiskSpace_MB"`
	FreeDiskSpaceMB     uint64            `json:"freeDiskSpace_MB"`
	HostnameInfo        map[string]string `json:"hostnameInfo"`
	CPUArchitectureInfo map[string]string `json:"cpuArchitectureInfo"`
}

func (MachineSnapshot) Kind() string { return KindMachine }

type ProcessSnapshot struct {
	RunningProcesses []string `json:"runningProcesses"`
}

func (ProcessSnapshot) Kind() string { return KindProcesses }

type SoftwareSnapshot struct {
	Plugins  []types.Plugin `json:"plugins"`
	Services []string       `json:"services"`
}

func (SoftwareSnapshot) Kind() string { return KindSoftware }

type PackageSnapshot struct {
	Packages []types.Package `json:"packages"`
}

func (PackageSnapshot) Kind() string { return KindPackages }

// ManifestSnapshot lists every archive member written before it.
type ManifestSnapshot struct {
	GenerationID string          `json:"generationId"`
	CreatedAt    time.Time       `json:"createdAt"`
	Files        []archive.Entry `json:"files"`
}

func (ManifestSnapshot) Kind() string { return KindManifest }

// Encode renders a snapshot the way every artifact is stored: indented
// JSON with a trailing newline.
func Encode(s Snapshot) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "    ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}
