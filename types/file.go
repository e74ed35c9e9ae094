package types

import "time"

// File categories.
const (
	CategoryCommunity = "COMMUNITY"
	CategoryProfile   = "PROFILE"
)

// ValidCategory reports whether category is a known file category.
func ValidCategory(category string) bool {
	return category == CategoryCommunity || category == CategoryProfile
}

// File is an uploaded object and its metadata.
type File struct {
	ID          int       `json:"id" db:"id"`
	Key         string    `json:"key" db:"object_key"`
	Name        string    `json:"name" db:"name"`
	ContentType string    `json:"content_type" db:"content_type"`
	Size        int64     `json:"size" db:"size"`
	SHA256      string    `json:"sha256" db:"sha256"`
	Category    string    `json:"category" db:"category"`
	OwnerID     int       `json:"owner_id" db:"owner_id"`
	ProjectID   *int      `json:"project_id,omitempty" db:"project_id"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
