package model

// FileError is the error body returned by the file API
type FileError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// UploadResult is the response body for a successful or failed upload
type UploadResult struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	FileURL string `json:"file_url,omitempty"`
}

// CleanupSkip is one object a sweep could not delete
type CleanupSkip struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

// CleanupResult is the response body for a cleanup run
type CleanupResult struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	DeletedCount int           `json:"deleted_count"`
	Deleted      []string      `json:"deleted"`
	Skipped      []CleanupSkip `json:"skipped,omitempty"`
}
