package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"mime"
	"net/url"
	"os"
	"path/filepath"
)

var ErrInvalidURL = errors.New("invalid URL")

// The stdlib table misses several container formats the engine commonly
// produces; platform mime.types files are not guaranteed to fill the gap.
func init() {
	for ext, typ := range map[string]string{
		".mp4":  "video/mp4",
		".m4a":  "audio/mp4",
		".mkv":  "video/x-matroska",
		".webm": "video/webm",
		".flv":  "video/x-flv",
		".mp3":  "audio/mpeg",
	} {
		mime.AddExtensionType(ext, typ)
	}
}

// JobService orchestrates the job lifecycle: submission, background
// execution and artifact disposal. The remote store may be nil, in which
// case uploads are skipped entirely.
type JobService struct {
	store     *Store
	extractor Extractor
	remote    RemoteStore
}

// NewJobService creates a new JobService.
func NewJobService(store *Store, extractor Extractor, remote RemoteStore) *JobService {
	return &JobService{store: store, extractor: extractor, remote: remote}
}

// Store exposes the underlying job store for status reads.
func (s *JobService) Store() *Store {
	return s.store
}

// Submit validates the request and registers a new queued job. The caller
// is responsible for dispatching Run exactly once for the returned ID.
func (s *JobService) Submit(rawURL, outputPath, format, ffmpegLocation string) (Job, error) {
	if _, err := url.ParseRequestURI(rawURL); err != nil {
		return Job{}, ErrInvalidURL
	}
	if outputPath == "" {
		outputPath = "."
	}
	return s.store.Create(rawURL, outputPath, format, ffmpegLocation), nil
}

// Run executes a job to completion. It is the single boundary that turns
// extraction and relay errors into job state; it never panics out into
// the worker pool.
func (s *JobService) Run(ctx context.Context, id string) {
	job, err := s.store.Get(id)
	if err != nil {
		log.Printf("job %s: %v", id, err)
		return
	}

	defer func() {
		if r := recover(); r != nil {
			log.Printf("job %s: panic during execution: %v", id, r)
			s.fail(id, fmt.Sprintf("internal error: %v", r))
		}
	}()

	if _, err := s.store.Update(id, func(j *Job) {
		j.Status = StatusDownloading
		j.Error = ""
	}); err != nil {
		return
	}

	outputFile, err := s.extractor.Download(ctx, ExtractRequest{
		URL:            job.URL,
		OutputDir:      job.OutputPath,
		Format:         ResolveFormat(job.Format),
		FFmpegLocation: job.FFmpegLocation,
	})
	if err != nil {
		log.Printf("job %s: extraction failed: %v", id, err)
		s.fail(id, err.Error())
		return
	}

	mimeType := MimeType(outputFile)

	var remoteFile *RemoteFile
	var remoteErr error
	if s.remote != nil {
		remoteFile, remoteErr = s.remote.Upload(ctx, outputFile, mimeType)
		if remoteErr != nil {
			log.Printf("job %s: remote upload failed: %v", id, remoteErr)
		}
	}

	s.store.Update(id, func(j *Job) {
		j.Status = StatusCompleted
		j.OutputFile = outputFile
		j.DownloadURL = "/download/" + id + "/file"
		if remoteFile != nil {
			j.RemoteFileID = remoteFile.ID
			j.RemoteFileURL = remoteFile.DownloadURL
			j.RemoteViewURL = remoteFile.ViewURL
		}
		if remoteErr != nil {
			j.Error = fmt.Sprintf("remote upload failed: %v", remoteErr)
		}
	})
	log.Printf("job %s: completed (%s)", id, filepath.Base(outputFile))
}

// BeginDelivery claims the delivering state for a job. See Store.BeginDelivery.
func (s *JobService) BeginDelivery(id string, allowDownloaded bool) (Job, error) {
	return s.store.BeginDelivery(id, allowDownloaded)
}

// FinishDelivery runs the post-response continuation for a delivered file.
// With autoDelete the local file and any remote copy are disposed of and
// the job becomes a pure historical record; otherwise the artifact is kept
// for a later delivery attempt.
func (s *JobService) FinishDelivery(ctx context.Context, id string, autoDelete bool) {
	if !autoDelete {
		s.store.Update(id, func(j *Job) {
			j.Status = StatusDownloaded
		})
		return
	}

	job, err := s.store.Get(id)
	if err != nil {
		return
	}
	removeFile(job.OutputFile)
	s.deleteRemote(ctx, job)
	s.store.Update(id, func(j *Job) {
		j.Status = StatusDelivered
		j.clearArtifacts()
	})
}

// Cleanup is the manual, idempotent disposal path. It returns the path of
// the local file it removed, or "" when there was nothing left to remove.
func (s *JobService) Cleanup(ctx context.Context, id string) (string, error) {
	job, err := s.store.Get(id)
	if err != nil {
		return "", err
	}

	removed := ""
	if removeFile(job.OutputFile) {
		removed = job.OutputFile
	}
	s.deleteRemote(ctx, job)

	switch job.Status {
	case StatusCompleted, StatusDelivering, StatusDownloaded:
		s.store.Update(id, func(j *Job) {
			j.Status = StatusDelivered
			j.clearArtifacts()
		})
	}
	return removed, nil
}

func (s *JobService) fail(id, reason string) {
	s.store.Update(id, func(j *Job) {
		j.Status = StatusFailed
		j.Error = reason
		j.clearArtifacts()
	})
}

// deleteRemote drops the remote copy, best effort. A dangling remote
// object is an acceptable residual, not an error.
func (s *JobService) deleteRemote(ctx context.Context, job Job) {
	if s.remote == nil || job.RemoteFileID == "" {
		return
	}
	if err := s.remote.Delete(ctx, job.RemoteFileID); err != nil {
		log.Printf("job %s: remote delete failed: %v", job.ID, err)
	}
	s.store.Update(job.ID, func(j *Job) {
		j.RemoteFileID = ""
		j.RemoteFileURL = ""
		j.RemoteViewURL = ""
	})
}

// removeFile unlinks path, treating an already-missing file as success.
func removeFile(path string) bool {
	if path == "" {
		return false
	}
	if err := os.Remove(path); err != nil {
		return false
	}
	return true
}

// MimeType guesses a MIME type from the file extension, defaulting to
// application/octet-stream.
func MimeType(path string) string {
	if t := mime.TypeByExtension(filepath.Ext(path)); t != "" {
		return t
	}
	return "application/octet-stream"
}
