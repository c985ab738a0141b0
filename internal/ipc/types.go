package ipc

// StatusRequest fetches daemon status.
type StatusRequest struct{}

// StatusResponse reports the daemon's worker pool state and per-status
// job counts (spec §4.5).
type StatusResponse struct {
	Running     bool           `json:"running"`
	Paused      bool           `json:"paused"`
	WorkerCount int            `json:"worker_count"`
	CatalogPath string         `json:"catalog_path"`
	JobCounts   map[string]int `json:"job_counts"`
	PID         int            `json:"pid"`
}

// Job is the wire representation of a store.JobRecord.
type Job struct {
	ID              string  `json:"id"`
	JobType         string  `json:"job_type"`
	Status          string  `json:"status"`
	Priority        int     `json:"priority"`
	FileID          *int64  `json:"file_id,omitempty"`
	PolicyName      string  `json:"policy_name"`
	PlanID          string  `json:"plan_id"`
	ProgressPercent float64 `json:"progress_percent"`
	OutputPath      string  `json:"output_path"`
	BackupPath      string  `json:"backup_path"`
	ErrorMessage    string  `json:"error_message"`
	Origin          string  `json:"origin"`
	BatchID         string  `json:"batch_id"`
	CreatedAt       string  `json:"created_at"`
	StartedAt       string  `json:"started_at,omitempty"`
	CompletedAt     string  `json:"completed_at,omitempty"`
}

// JobListRequest filters and orders a job listing.
type JobListRequest struct {
	Status     string `json:"status"`
	JobType    string `json:"job_type"`
	SortBy     string `json:"sort_by"`
	Descending bool   `json:"descending"`
	Limit      int    `json:"limit"`
}

// JobListResponse contains matching job entries.
type JobListResponse struct {
	Jobs []Job `json:"jobs"`
}

// JobDescribeRequest fetches a single job by id.
type JobDescribeRequest struct {
	ID string `json:"id"`
}

// JobDescribeResponse contains a single job entry.
type JobDescribeResponse struct {
	Job Job `json:"job"`
}

// JobEnqueueRequest admits new work onto the queue.
type JobEnqueueRequest struct {
	JobType    string `json:"job_type"`
	FileID     *int64 `json:"file_id,omitempty"`
	PolicyName string `json:"policy_name"`
	PolicyJSON string `json:"policy_json"`
	PlanID     string `json:"plan_id"`
	Priority   int    `json:"priority"`
}

// JobEnqueueResponse returns the newly created job.
type JobEnqueueResponse struct {
	Job Job `json:"job"`
}

// JobRetryRequest re-enqueues a failed or cancelled job as a fresh queue
// entry with the same parameters.
type JobRetryRequest struct {
	ID string `json:"id"`
}

// JobRetryResponse returns the new job created by the retry.
type JobRetryResponse struct {
	Job Job `json:"job"`
}

// JobCancelRequest cancels a queued or running job.
type JobCancelRequest struct {
	ID string `json:"id"`
}

// JobCancelResponse reports whether the job was cancelled.
type JobCancelResponse struct {
	Cancelled bool `json:"cancelled"`
}

// PauseRequest stops the worker pool from claiming new jobs.
type PauseRequest struct{}

// PauseResponse reports the pool's paused state.
type PauseResponse struct {
	Paused bool `json:"paused"`
}

// UnpauseRequest resumes job claiming.
type UnpauseRequest struct{}

// UnpauseResponse reports the pool's paused state.
type UnpauseResponse struct {
	Paused bool `json:"paused"`
}

// ResizeRequest changes the worker pool's concurrency.
type ResizeRequest struct {
	Concurrency int `json:"concurrency"`
}

// ResizeResponse reports the resulting worker count.
type ResizeResponse struct {
	WorkerCount int `json:"worker_count"`
}

// QueueHealthRequest fetches aggregate job counts by status.
type QueueHealthRequest struct{}

// QueueHealthResponse reports queue health information (spec §4.5).
type QueueHealthResponse struct {
	Total     int `json:"total"`
	Queued    int `json:"queued"`
	Running   int `json:"running"`
	Completed int `json:"completed"`
	Failed    int `json:"failed"`
	Cancelled int `json:"cancelled"`
}
