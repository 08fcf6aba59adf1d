package domain

import "time"

// JobStatus represents the lifecycle state of a download job.
type JobStatus string

const (
	StatusQueued      JobStatus = "queued"
	StatusDownloading JobStatus = "downloading"
	StatusCompleted   JobStatus = "completed"
	StatusFailed      JobStatus = "failed"
	StatusDelivering  JobStatus = "delivering"
	StatusDownloaded  JobStatus = "downloaded"
	StatusDelivered   JobStatus = "delivered"
)

// Job represents one tracked request to fetch a URL and deliver the
// resulting file. Values handed out by the Store are always copies;
// mutation goes through the Store only.
type Job struct {
	ID             string
	URL            string
	OutputPath     string
	Format         string
	FFmpegLocation string
	Status         JobStatus
	OutputFile     string
	DownloadURL    string
	RemoteFileID   string
	RemoteFileURL  string
	RemoteViewURL  string
	Error          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Terminal returns true once the job can never change state again.
func (j *Job) Terminal() bool {
	return j.Status == StatusFailed || j.Status == StatusDelivered
}

// HasArtifact returns true while a local file is still retrievable.
func (j *Job) HasArtifact() bool {
	return j.OutputFile != ""
}

// clearArtifacts drops every field that points at a local or remote file.
func (j *Job) clearArtifacts() {
	j.OutputFile = ""
	j.DownloadURL = ""
	j.RemoteFileID = ""
	j.RemoteFileURL = ""
	j.RemoteViewURL = ""
}
