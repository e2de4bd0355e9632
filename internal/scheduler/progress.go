package scheduler

import "batchforge/internal/domain"

// Event is one structured progress notification, pushed after every job
// outcome. It carries aggregate counters so consumers need no extra queries.
type Event struct {
	JobID           string           `json:"jobId"`
	BatchID         string           `json:"batchId"`
	ConfigRef       string           `json:"configRef"`
	Status          domain.JobStatus `json:"status"`
	CurrentImage    int              `json:"currentImage"`
	TotalImages     int              `json:"totalImages"`
	ProgressPercent float64          `json:"progressPercent"`
	Active          bool             `json:"active"`
}

// Sink receives progress events. Push only: the scheduler never reads
// anything back from it, and a slow sink must not block dispatch.
type Sink func(Event)
