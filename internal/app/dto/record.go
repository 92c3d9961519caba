package dto

import "time"

// RecordSummary is the listing reference embedded in conversations.
type RecordSummary struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	CoverURL string `json:"cover_url,omitempty"`
}

// Record is a full vinyl listing.
type Record struct {
	ID          string    `json:"id"`
	OwnerID     string    `json:"owner_id"`
	Title       string    `json:"title"`
	Artist      string    `json:"artist"`
	Genre       string    `json:"genre,omitempty"`
	ReleaseYear int       `json:"release_year,omitempty"`
	Label       string    `json:"label,omitempty"`
	Condition   string    `json:"condition,omitempty"`
	Description string    `json:"description,omitempty"`
	CoverURL    string    `json:"cover_url,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Summary trims a record down to its conversation embed.
func (r Record) Summary() RecordSummary {
	return RecordSummary{ID: r.ID, Title: r.Title, CoverURL: r.CoverURL}
}

// CreateRecordRequest is the body for POST /records/create. Fields are
// typically pre-filled from a catalog lookup and edited by the seller.
type CreateRecordRequest struct {
	Title       string `json:"title"`
	Artist      string `json:"artist"`
	Genre       string `json:"genre,omitempty"`
	ReleaseYear int    `json:"release_year,omitempty"`
	Label       string `json:"label,omitempty"`
	Condition   string `json:"condition,omitempty"`
	Description string `json:"description,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
}

// UploadTicket is a presigned upload slot for a cover image.
type UploadTicket struct {
	UploadURL string `json:"upload_url"`
	PublicURL string `json:"public_url"`
}
