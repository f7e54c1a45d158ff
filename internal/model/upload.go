package model

import "time"

// Upload is one request's validated, staged file awaiting relay.
// It is owned exclusively by the request that created it: the staged copy
// is removed before that request's response is written, success or failure.
type Upload struct {
	OriginalFilename string    `json:"original_filename"`
	StagedPath       string    `json:"staged_path"`
	Size             int64     `json:"size"`
	ContentType      string    `json:"content_type"`
	ReceivedAt       time.Time `json:"received_at"`
}

// RelayResult carries the downstream service's response verbatim.
// The body is opaque to this service and is returned to the caller unmodified.
type RelayResult struct {
	Status      int
	ContentType string
	Body        []byte
}
