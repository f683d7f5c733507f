package client

// CreateRequest registers a new process. Times use "2006-01-02 15:04:05".
type CreateRequest struct {
	ProcessID   string   `json:"process_id"`
	FileName    *string  `json:"file_name,omitempty"`
	FilePath    *string  `json:"file_path,omitempty"`
	Description *string  `json:"description,omitempty"`
	StartTime   string   `json:"start_time"`
	EndTime     *string  `json:"end_time,omitempty"`
	Percentage  *float64 `json:"percentage,omitempty"`
}

// Process is one record as served by the list endpoint and the live stream.
type Process struct {
	ProcessID        string   `json:"process_id"`
	FileName         *string  `json:"file_name"`
	FilePath         *string  `json:"file_path"`
	Description      *string  `json:"description"`
	StartTime        string   `json:"start_time"`
	EndTime          *string  `json:"end_time"`
	Percentage       *float64 `json:"percentage"`
	TimeTakenSeconds float64  `json:"time_taken_seconds"`
}

type progressRequest struct {
	Percentage float64 `json:"percentage"`
}

type completeRequest struct {
	EndTime string `json:"end_time,omitempty"`
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the body of the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
}
