package documents

import "time"

// Page sizes for the list endpoints.
const (
	DefaultListLimit = 20
	MaxListLimit     = 50
)

// PageLimit maps a requested page size onto 1..MaxListLimit. Zero or negative
// means "not specified" and yields DefaultListLimit.
func PageLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	if limit > MaxListLimit {
		return MaxListLimit
	}
	return limit
}

// Document represents an uploaded document owned by a user.
type Document struct {
	ID               string
	UserID           string
	FileName         string
	MimeType         string // declared type used for extraction
	DetectedMimeType string // sniffed from the stored bytes
	SizeBytes        int64
	StorageProvider  string
	StorageKey       string
	ExtractedTextKey string
	CharacterCount   int
	ExtractedAt      *time.Time
	CreatedAt        time.Time
}
