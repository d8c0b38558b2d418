package defaults

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	defaultLinuxRoot  = "/usr/local/fledge"
	defaultDarwinRoot = "Library/Application Support/fledge"

	debianSyslog = "/var/log/syslog"
	redhatSyslog = "/var/log/messages"

	redhatRelease = "/etc/redhat-release"
)

// Root returns the platform install root. FLEDGE_ROOT wins when set.
func Root() string {
	if env := strings.TrimSpace(os.Getenv("FLEDGE_ROOT")); env != "" {
		return env
	}
	if runtime.GOOS == "darwin" {
		home, err := os.UserHomeDir()
		if err != nil {
			return defaultLinuxRoot
		}
		return filepath.Join(home, defaultDarwinRoot)
	}
	return defaultLinuxRoot
}

// DataDir returns FLEDGE_DATA, falling back to <root>/data.
func DataDir(root string) string {
	if env := strings.TrimSpace(os.Getenv("FLEDGE_DATA")); env != "" {
		return env
	}
	return filepath.Join(root, "data")
}

// SupportDir is where bundles are written.
func SupportDir(data string) string {
	return filepath.Join(data, "support")
}

// StoragePath is the sqlite database file under the data directory.
func StoragePath(data string) string {
	return filepath.Join(data, "fledge.db")
}

// ConfigPath is the builder's yaml config under the install root.
func ConfigPath(root string) string {
	return filepath.Join(root, "etc", "support.yaml")
}

// SyslogFile picks the system log for the host distribution family.
func SyslogFile() string {
	return syslogFor(redhatRelease)
}

func syslogFor(releaseFile string) string {
	if _, err := os.Stat(releaseFile); err == nil {
		return redhatSyslog
	}
	return debianSyslog
}
