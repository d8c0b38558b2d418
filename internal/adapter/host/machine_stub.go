//go:build !linux && !darwin

package host

import (
	"errors"
	"runtime"

	"fledge/pkg/types"
)

func diskUsage(string) (types.DiskUsage, error) {
	return types.DiskUsage{}, errors.New("disk usage is not supported on " + runtime.GOOS)
}
