package fake

import (
	"context"
	"strings"
	"testing"
)

func TestMachine_ProcessListAppliesMatch(t *testing.T) {
	m := NewMachine()

	got, err := m.ProcessList(context.Background(), func(line string) bool {
		return strings.Contains(line, "./tasks")
	})
	if err != nil {
		t.Fatalf("ProcessList() error = %v", err)
	}
	if len(got) != 1 || !strings.Contains(got[0], "purge") {
		t.Fatalf("ProcessList() = %v, want the purge task", got)
	}

	all, err := m.ProcessList(context.Background(), nil)
	if err != nil {
		t.Fatalf("ProcessList(nil) error = %v", err)
	}
	if len(all) != len(m.ProcessLines) {
		t.Fatalf("ProcessList(nil) returned %d lines, want %d", len(all), len(m.ProcessLines))
	}
}
