package fake

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var _ support.LogSource = (*LogSource)(nil)

// LogSource filters an in-memory syslog.
type LogSource struct {
	CallRecorder
	Lines []string

	ExtractErr func(ctx context.Context, f types.LogFilter) error
}

func NewLogSource(lines ...string) *LogSource {
	return &LogSource{Lines: lines}
}

func (l *LogSource) Extract(ctx context.Context, f types.LogFilter, w io.Writer) error {
	l.record("Extract", f)
	if l.ExtractErr != nil {
		if err := l.ExtractErr(ctx, f); err != nil {
			return err
		}
	}

	var re *regexp.Regexp
	if f.Pattern != "" {
		var err error
		if re, err = regexp.Compile(f.Pattern); err != nil {
			return fmt.Errorf("compile pattern: %w", err)
		}
	}
	for _, line := range l.Lines {
		switch {
		case re != nil:
			if !re.MatchString(line) {
				continue
			}
		case f.Contains != "":
			if !strings.Contains(line, f.Contains) {
				continue
			}
		}
		if _, err := io.WriteString(w, line+"\n"); err != nil {
			return err
		}
	}
	return nil
}
