package fake

import (
	"slices"
	"testing"
)

func TestCallRecorder_Record(t *testing.T) {
	var r CallRecorder

	r.record("QueryTable", "configuration")
	r.record("ChildCategories", "South")
	r.record("QueryTable", "log")

	if got := len(r.Calls("")); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}

	queries := r.Calls("QueryTable")
	if len(queries) != 2 {
		t.Fatalf("expected 2 QueryTable calls, got %d", len(queries))
	}
	if queries[1].Args[0] != "log" {
		t.Errorf("expected second QueryTable arg 'log', got %v", queries[1].Args[0])
	}
	if got := r.Calls("ListServices"); len(got) != 0 {
		t.Errorf("expected 0 ListServices calls, got %d", len(got))
	}

	want := []string{"QueryTable", "ChildCategories", "QueryTable"}
	if got := r.Methods(); !slices.Equal(got, want) {
		t.Errorf("Methods() = %v, want %v", got, want)
	}
}

func TestCallRecorder_Reset(t *testing.T) {
	var r CallRecorder

	r.record("Extract")
	r.Reset()

	if len(r.Calls("")) != 0 {
		t.Errorf("expected 0 calls after reset, got %d", len(r.Calls("")))
	}
}
