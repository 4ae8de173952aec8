package dto

import "errors"

var (
	ErrTaskNotFound = errors.New("task not found")
	ErrTaskNotDone  = errors.New("task has no downloadable result yet")
)

type CreateURLTaskRequest struct {
	URL     string         `json:"url"`
	Kind    string         `json:"kind"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
}

type BatchDownloadRequest struct {
	TaskIDs []string `json:"task_ids"`
}

type TaskResponse struct {
	ID               string  `json:"id"`
	TraceID          string  `json:"trace_id,omitempty"`
	Kind             string  `json:"kind,omitempty"`
	OriginalFilename string  `json:"original_filename,omitempty"`
	Status           string  `json:"status"`
	Progress         int     `json:"progress"`
	ErrorMessage     string  `json:"error_message,omitempty"`
	CreatedAt        string  `json:"created_at,omitempty"`
	CompletedAt      *string `json:"completed_at,omitempty"`
}

type ResultResponse struct {
	TaskResponse
	OutputFormat string         `json:"output_format,omitempty"`
	OutputPath   string         `json:"output_path,omitempty"`
	Options      map[string]any `json:"options,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	TraceID string `json:"trace_id,omitempty"`
}
