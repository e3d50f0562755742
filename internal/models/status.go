// Package models provides data model definitions for the Diet Daily sync core.
package models

import "time"

// SyncStatus is a derived snapshot of the sync engine's health. It is
// recomputed from the store contents plus the live connectivity signal
// and is never the source of truth for anything.
type SyncStatus struct {
	IsOnline       bool       `json:"is_online"`
	SyncInProgress bool       `json:"sync_in_progress"`
	LastSyncAt     *time.Time `json:"last_sync_at,omitempty"`
	PendingCount   int        `json:"pending_count"`
	FailedCount    int        `json:"failed_count"`
	TotalCount     int        `json:"total_count"`
	LastError      string     `json:"last_error,omitempty"`
}
