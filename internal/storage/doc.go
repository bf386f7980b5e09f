// Package storage provides the durable spawn-window table.
//
// Drivers:
//   - "sqlite" (default): single-file database, WAL, one writer
//   - "memory": map-backed, for tests and throwaway runs
package storage
