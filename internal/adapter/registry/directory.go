// Package registry answers which services are running and which plugins
// and services are installed.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"fledge/internal/support"
	"fledge/pkg/types"

	"github.com/google/uuid"
)

var _ support.ServiceRegistry = (*Directory)(nil)

var (
	ErrNotFound   = errors.New("service not registered")
	ErrDuplicated = errors.New("service already registered")
)

// Directory is an in-memory service registry keyed by service id. Names
// are unique.
type Directory struct {
	mu   sync.RWMutex
	byID map[string]types.ServiceRecord
	now  func() time.Time
}

func NewDirectory() *Directory {
	return &Directory{byID: make(map[string]types.ServiceRecord), now: time.Now}
}

// Register adds rec and returns its id, generating one when rec has none.
func (d *Directory) Register(rec types.ServiceRecord) (string, error) {
	rec.Name = strings.TrimSpace(rec.Name)
	if rec.Name == "" {
		return "", fmt.Errorf("register service: name is required")
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	for _, existing := range d.byID {
		if existing.Name == rec.Name {
			return "", fmt.Errorf("register service %q: %w", rec.Name, ErrDuplicated)
		}
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if _, ok := d.byID[rec.ID]; ok {
		return "", fmt.Errorf("register service id %s: %w", rec.ID, ErrDuplicated)
	}
	if rec.Status == "" {
		rec.Status = "running"
	}
	if rec.RegisteredAt.IsZero() {
		rec.RegisteredAt = d.now().UTC()
	}
	d.byID[rec.ID] = rec
	return rec.ID, nil
}

func (d *Directory) Unregister(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.byID[id]; !ok {
		return fmt.Errorf("unregister %s: %w", id, ErrNotFound)
	}
	delete(d.byID, id)
	return nil
}

// Get finds a service by name.
func (d *Directory) Get(name string) (types.ServiceRecord, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	for _, rec := range d.byID {
		if rec.Name == name {
			return rec, true
		}
	}
	return types.ServiceRecord{}, false
}

// ListServices returns every registered service ordered by name.
func (d *Directory) ListServices(context.Context) ([]types.ServiceRecord, error) {
	d.mu.RLock()
	out := make([]types.ServiceRecord, 0, len(d.byID))
	for _, rec := range d.byID {
		out = append(out, rec)
	}
	d.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}
