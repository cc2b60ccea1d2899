package models

import "time"

// ContentObject is the catalog row describing one stored blob.
type ContentObject struct {
	// Handle is the client-facing identifier (UUIDv4 string).
	Handle      string    `json:"id"`
	DisplayName string    `json:"filename"`
	MediaType   string    `json:"content_type"`
	ByteSize    int64     `json:"size"`
	CreatedAt   time.Time `json:"upload_date"`
	Labels      []string  `json:"tags"`
	Checksum    string    `json:"checksum"`

	// StorageLocator is the blob key under the managed root, "<h[0:2]>/<h>".
	StorageLocator string `json:"-"`
}

// ContentInventory aggregates the catalog.
type ContentInventory struct {
	ObjectCount int64 `json:"objectCount"`
	TotalBytes  int64 `json:"totalBytes"`
}
