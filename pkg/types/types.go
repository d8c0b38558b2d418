// Package types holds the values exchanged between the support bundle
// builder and the storage, host and registry adapters that feed it.
package types

import "time"

// Row is one storage row keyed by column name.
type Row map[string]any

// TableResult mirrors the storage layer's query reply: a row count and the
// rows themselves.
type TableResult struct {
	Count int   `json:"count"`
	Rows  []Row `json:"rows"`
}

// Direction is a sort direction for Query.
type Direction string

const (
	Ascending  Direction = "ASC"
	Descending Direction = "DESC"
)

// Order sorts a query by one column.
type Order struct {
	Column    string
	Direction Direction
}

// Query narrows a table read. The zero value reads the whole table in
// storage order.
type Query struct {
	Limit   int
	OrderBy []Order
}

// Category is a child entry of the configuration hierarchy.
type Category struct {
	Key         string `json:"key"`
	Description string `json:"description"`
	DisplayName string `json:"displayName"`
}

// ServiceRecord is one entry of the in-process service registry.
type ServiceRecord struct {
	ID             string    `json:"id"`
	Name           string    `json:"name"`
	Type           string    `json:"type"`
	Protocol       string    `json:"protocol"`
	Address        string    `json:"address"`
	ServicePort    int       `json:"servicePort,omitempty"`
	ManagementPort int       `json:"managementPort"`
	Status         string    `json:"status"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

// Plugin describes one installed plugin.
type Plugin struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Language    string `json:"language"`
	InstalledAt string `json:"installedDirectory"`
}

// Package is one entry of the package manager listing.
type Package struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// DiskUsage reports filesystem capacity in bytes.
type DiskUsage struct {
	Total uint64
	Used  uint64
	Free  uint64
}

// MemoryInfo carries the human-readable memory columns reported by free(1).
type MemoryInfo struct {
	Total string
	Used  string
	Free  string
}

// LogFilter selects syslog lines. Exactly one of Contains or Pattern is
// used; Pattern wins when both are set.
type LogFilter struct {
	Contains string
	Pattern  string
}
