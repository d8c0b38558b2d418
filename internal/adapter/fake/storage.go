package fake

import (
	"context"
	"sync"

	"fledge/internal/support"
	"fledge/pkg/types"
)

var _ support.Storage = (*Storage)(nil)

// Storage is an in-memory support.Storage. Tables and Categories can be
// seeded directly before use.
type Storage struct {
	CallRecorder
	mu         sync.Mutex
	Tables     map[string][]types.Row
	Categories map[string][]types.Category

	QueryTableErr      func(ctx context.Context, table string) error
	ChildCategoriesErr func(ctx context.Context, parent string) error
}

func NewStorage() *Storage {
	return &Storage{
		Tables:     make(map[string][]types.Row),
		Categories: make(map[string][]types.Category),
	}
}

// SetTable replaces the rows of table.
func (s *Storage) SetTable(table string, rows ...types.Row) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Tables[table] = rows
}

// AddCategory appends a child category under parent.
func (s *Storage) AddCategory(parent string, c types.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Categories[parent] = append(s.Categories[parent], c)
}

// QueryTable returns the seeded rows of table. Ordering is left to the
// seed; the limit is honored.
func (s *Storage) QueryTable(ctx context.Context, table string, q types.Query) (types.TableResult, error) {
	s.record("QueryTable", table, q)
	if s.QueryTableErr != nil {
		if err := s.QueryTableErr(ctx, table); err != nil {
			return types.TableResult{}, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.Tables[table]
	if q.Limit > 0 && len(rows) > q.Limit {
		rows = rows[:q.Limit]
	}
	out := make([]types.Row, len(rows))
	copy(out, rows)
	return types.TableResult{Count: len(out), Rows: out}, nil
}

func (s *Storage) ChildCategories(ctx context.Context, parent string) ([]types.Category, error) {
	s.record("ChildCategories", parent)
	if s.ChildCategoriesErr != nil {
		if err := s.ChildCategoriesErr(ctx, parent); err != nil {
			return nil, err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.Category, len(s.Categories[parent]))
	copy(out, s.Categories[parent])
	return out, nil
}
