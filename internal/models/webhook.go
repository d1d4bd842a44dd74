package models

import (
	"time"
)

// Event names emitted to webhook subscribers.
const (
	EventProductCreated = "product.created"
	EventProductUpdated = "product.updated"
	EventProductDeleted = "product.deleted"
	EventBulkImported   = "bulk.imported"
	EventBulkDeleted    = "bulk.deleted"
)

// EventDescription pairs an event name with what triggers it.
type EventDescription struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// EventCatalog lists every event the service emits, in a stable order.
func EventCatalog() []EventDescription {
	return []EventDescription{
		{EventProductCreated, "a single product was created"},
		{EventProductUpdated, "a single product was updated"},
		{EventProductDeleted, "a single product was deleted"},
		{EventBulkImported, "a bulk CSV import finished successfully"},
		{EventBulkDeleted, "all products were deleted"},
	}
}

// KnownEvent reports whether name is part of the catalog.
func KnownEvent(name string) bool {
	for _, e := range EventCatalog() {
		if e.Name == name {
			return true
		}
	}
	return false
}

// Webhook is a subscriber endpoint persisted in Postgres.
type Webhook struct {
	ID        int64     `json:"id"`
	URL       string    `json:"url"`
	Events    []string  `json:"events"`
	Enabled   bool      `json:"enabled"`
	Secret    *string   `json:"secret,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
