package domain

import "time"

// JobPayload is the message handed to the job queue for one import.
type JobPayload struct {
	FilePath string `json:"filePath"`
	Filename string `json:"filename"`
	FileSize int64  `json:"fileSize"`
	Checksum string `json:"checksum"`
	UserID   string `json:"userId"`
	BatchID  string `json:"batchId"`
}

// JobHandle identifies an enqueued job.
type JobHandle struct {
	ID         string    `json:"id"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// JobState is the coarse status written to the progress cache.
type JobState string

const (
	JobQueued             JobState = "queued"
	JobProcessing         JobState = "processing"
	JobCompleted          JobState = "completed"
	JobFailed             JobState = "failed"
	JobVerificationFailed JobState = "verification_failed"
)

// JobStatus is the progress record kept in the status cache.
type JobStatus struct {
	Status    JobState               `json:"status"`
	Progress  int                    `json:"progress"`
	Message   string                 `json:"message"`
	Stats     map[string]interface{} `json:"stats,omitempty"`
	UpdatedAt time.Time              `json:"updatedAt"`
}
