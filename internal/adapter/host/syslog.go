package host

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"fledge/internal/support"
	"fledge/pkg/types"

	lru "github.com/hashicorp/golang-lru/v2"
)

var _ support.LogSource = (*Syslog)(nil)

const (
	patternCacheSize = 64
	maxLineBytes     = 1 << 20
	ctxCheckEvery    = 4096
)

// Syslog filters the system log file line by line.
type Syslog struct {
	path     string
	patterns *lru.Cache[string, *regexp.Regexp]
}

func NewSyslog(path string) (*Syslog, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("syslog path is required")
	}
	cache, err := lru.New[string, *regexp.Regexp](patternCacheSize)
	if err != nil {
		return nil, fmt.Errorf("create pattern cache: %w", err)
	}
	return &Syslog{path: path, patterns: cache}, nil
}

func (s *Syslog) Path() string { return s.path }

// Extract copies the lines selected by f to w. A Pattern takes precedence
// over Contains; an empty filter copies everything.
func (s *Syslog) Extract(ctx context.Context, f types.LogFilter, w io.Writer) error {
	match, err := s.matcher(f)
	if err != nil {
		return err
	}

	file, err := os.Open(s.path)
	if err != nil {
		return fmt.Errorf("open syslog: %w", err)
	}
	defer file.Close()

	bw := bufio.NewWriter(w)
	br := bufio.NewReaderSize(file, 64*1024)
	var line []byte
	for n := 0; ; n++ {
		if n%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		var rerr error
		line, rerr = readLine(br, line[:0])
		if rerr != nil && !errors.Is(rerr, io.EOF) {
			return fmt.Errorf("read syslog: %w", rerr)
		}
		if (rerr == nil || len(line) > 0) && match(line) {
			if _, err := bw.Write(line); err != nil {
				return fmt.Errorf("write log excerpt: %w", err)
			}
			if err := bw.WriteByte('\n'); err != nil {
				return fmt.Errorf("write log excerpt: %w", err)
			}
		}
		if rerr != nil {
			break
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("write log excerpt: %w", err)
	}
	return nil
}

// readLine appends the next line of r, without its terminator, to buf.
// Bytes past maxLineBytes are read and dropped so one runaway line costs a
// truncated entry rather than the rest of the file. A final line with no
// newline is returned together with io.EOF.
func readLine(r *bufio.Reader, buf []byte) ([]byte, error) {
	for {
		chunk, err := r.ReadSlice('\n')
		if room := maxLineBytes - len(buf); room > 0 {
			buf = append(buf, chunk[:min(len(chunk), room)]...)
		}
		if errors.Is(err, bufio.ErrBufferFull) {
			continue
		}
		if err != nil {
			return buf, err
		}
		buf = bytes.TrimSuffix(buf, []byte("\n"))
		return bytes.TrimSuffix(buf, []byte("\r")), nil
	}
}

func (s *Syslog) matcher(f types.LogFilter) (func([]byte) bool, error) {
	switch {
	case f.Pattern != "":
		re, ok := s.patterns.Get(f.Pattern)
		if !ok {
			var err error
			if re, err = regexp.Compile(f.Pattern); err != nil {
				return nil, fmt.Errorf("compile log pattern: %w", err)
			}
			s.patterns.Add(f.Pattern, re)
		}
		return re.Match, nil
	case f.Contains != "":
		needle := []byte(f.Contains)
		return func(line []byte) bool { return bytes.Contains(line, needle) }, nil
	default:
		return func([]byte) bool { return true }, nil
	}
}
