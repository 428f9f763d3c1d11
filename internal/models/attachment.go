package models

import "time"

// Attachment is a file uploaded to the backend
type Attachment struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	Size        int64     `json:"size"`
	ContentType string    `json:"contentType,omitempty"`
	UploadedBy  string    `json:"uploadedBy"`
	CreatedAt   time.Time `json:"createdAt"`
}
