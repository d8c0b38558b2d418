// Package host reads resource, process, log and package information from
// the machine the platform runs on.
package host

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Runner runs a command and returns its standard output.
type Runner interface {
	Output(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands on the local machine.
type ExecRunner struct{}

func (ExecRunner) Output(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			return out, fmt.Errorf("%s failed: %w", name, err)
		}
		return out, fmt.Errorf("%s failed: %w: %s", name, err, msg)
	}
	return out, nil
}

// lines splits command output into non-empty lines.
func lines(out []byte) []string {
	var res []string
	for _, l := range strings.Split(string(out), "\n") {
		if strings.TrimSpace(l) != "" {
			res = append(res, strings.TrimRight(l, "\r"))
		}
	}
	return res
}

// parseKeyValues reads "key: value" lines. Only the first colon splits, so
// values may contain colons. Lines without one are counted and skipped.
func parseKeyValues(out []byte) (map[string]string, int) {
	kv := make(map[string]string)
	malformed := 0
	for _, l := range lines(out) {
		key, value, ok := strings.Cut(l, ":")
		if !ok {
			malformed++
			continue
		}
		key = strings.TrimSpace(key)
		if key == "" {
			malformed++
			continue
		}
		kv[key] = strings.TrimSpace(value)
	}
	return kv, malformed
}
