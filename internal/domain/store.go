package domain

import (
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

var (
	ErrJobNotFound        = errors.New("job not found")
	ErrArtifactGone       = errors.New("file already delivered and removed")
	ErrDeliveryInProgress = errors.New("file is being delivered to another request")
	ErrJobNotReady        = errors.New("job is not ready for delivery")
	ErrNoOutputFile       = errors.New("no output file recorded for job")
)

// Store is the in-memory job registry. A single mutex guards the map;
// every read hands out a value copy so callers can never observe a torn
// write or mutate shared state.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*Job
}

// NewStore creates an empty job store.
func NewStore() *Store {
	return &Store{jobs: make(map[string]*Job)}
}

// Create registers a new queued job and returns its snapshot.
func (s *Store) Create(url, outputPath, format, ffmpegLocation string) Job {
	now := time.Now()
	job := &Job{
		ID:             uuid.New().String(),
		URL:            url,
		OutputPath:     outputPath,
		Format:         format,
		FFmpegLocation: ffmpegLocation,
		Status:         StatusQueued,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job
	return *job
}

// Get returns a snapshot of the job with the given ID.
func (s *Store) Get(id string) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	return *job, nil
}

// List returns snapshots of all known jobs, newest first.
func (s *Store) List() []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	jobs := make([]Job, 0, len(s.jobs))
	for _, job := range s.jobs {
		jobs = append(jobs, *job)
	}
	sort.Slice(jobs, func(i, j int) bool {
		return jobs[i].CreatedAt.After(jobs[j].CreatedAt)
	})
	return jobs
}

// Update is the single synchronized mutation primitive. It applies fn to
// the job under the lock, refreshes UpdatedAt and returns the resulting
// snapshot.
func (s *Store) Update(id string, fn func(*Job)) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}
	fn(job)
	job.UpdatedAt = time.Now()
	return *job, nil
}

// BeginDelivery atomically gates a delivery request on job status and
// claims the delivering state. The delivering status acts as an advisory
// lock: of two concurrent callers exactly one wins, the other observes
// ErrDeliveryInProgress.
func (s *Store) BeginDelivery(id string, allowDownloaded bool) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return Job{}, ErrJobNotFound
	}

	switch job.Status {
	case StatusDelivered:
		return *job, ErrArtifactGone
	case StatusDelivering:
		return *job, ErrDeliveryInProgress
	case StatusCompleted:
	case StatusDownloaded:
		if !allowDownloaded {
			return *job, ErrJobNotReady
		}
	default:
		return *job, ErrJobNotReady
	}

	if job.OutputFile == "" {
		return *job, ErrNoOutputFile
	}

	job.Status = StatusDelivering
	job.UpdatedAt = time.Now()
	return *job, nil
}

// RecoverStaleDeliveries reverts jobs stuck in delivering longer than
// olderThan. A delivery handler that died mid-flight would otherwise lock
// its job forever. Jobs whose file is still around become completed again;
// jobs without one are treated as consumed.
func (s *Store) RecoverStaleDeliveries(olderThan time.Duration) int {
	cutoff := time.Now().Add(-olderThan)

	s.mu.Lock()
	defer s.mu.Unlock()
	recovered := 0
	for _, job := range s.jobs {
		if job.Status != StatusDelivering || job.UpdatedAt.After(cutoff) {
			continue
		}
		if job.OutputFile != "" {
			job.Status = StatusCompleted
		} else {
			job.Status = StatusDelivered
			job.clearArtifacts()
		}
		job.UpdatedAt = time.Now()
		recovered++
	}
	return recovered
}

