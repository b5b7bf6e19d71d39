package models

import "time"

// UploadRequest is one generation submission. It is appended to the
// pending-uploads list before the generation endpoint is called and never
// mutated or retried afterwards.
type UploadRequest struct {
	ID          string `json:"id"`
	UserID      string `json:"userId,omitempty"`
	Filename    string `json:"filename"`
	UploadedAt  string `json:"uploadedAt"`
	RoomType    string `json:"roomType"`
	Style       string `json:"style,omitempty"`
	AspectRatio string `json:"aspectRatio"`
	Prompt      string `json:"prompt"`
	FileSize    int64  `json:"fileSize"`
	FileType    string `json:"fileType"`
	ImageBase64 string `json:"imageBase64"`
}

// HistoryEntry pairs an original upload with its resolved output location.
// Entries without a UserID predate per-user scoping and stay visible to
// everyone.
type HistoryEntry struct {
	ID              string    `json:"id"`
	UserID          string    `json:"userId,omitempty"`
	OriginalPreview string    `json:"originalPreview"`
	OutputLocation  string    `json:"outputLocation"`
	RoomType        string    `json:"roomType"`
	Style           string    `json:"style,omitempty"`
	AspectRatio     string    `json:"aspectRatio"`
	CreatedAt       time.Time `json:"createdAt"`
}

type GenerateResponse struct {
	ID             string `json:"id"`
	OutputLocation string `json:"outputLocation"`
	RoomType       string `json:"roomType"`
	Style          string `json:"style,omitempty"`
	AspectRatio    string `json:"aspectRatio"`
}
