package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/siwakornth/bilifetch/internal/domain"
)

// stubExtractor writes a file per call so jobs complete for real.
type stubExtractor struct {
	dir string
}

func (s *stubExtractor) Download(ctx context.Context, req domain.ExtractRequest) (string, error) {
	path := filepath.Join(s.dir, filepath.Base(req.URL)+".mp4")
	if err := os.WriteFile(path, []byte("video"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

func waitForStatus(t *testing.T, store *domain.Store, id string, want domain.JobStatus) domain.Job {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		job, err := store.Get(id)
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if job.Status == want {
			return job
		}
		time.Sleep(10 * time.Millisecond)
	}
	job, _ := store.Get(id)
	t.Fatalf("job %s never reached %q, stuck at %q", id, want, job.Status)
	return domain.Job{}
}

func TestPool_ExecutesEnqueuedJobs(t *testing.T) {
	store := domain.NewStore()
	svc := domain.NewJobService(store, &stubExtractor{dir: t.TempDir()}, nil)
	pool := New(svc, 2, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	var ids []string
	for _, name := range []string{"a", "b", "c"} {
		job, err := svc.Submit("https://example.com/"+name, t.TempDir(), "auto", "")
		if err != nil {
			t.Fatalf("Submit() error = %v", err)
		}
		pool.Enqueue(job.ID)
		ids = append(ids, job.ID)
	}

	for _, id := range ids {
		job := waitForStatus(t, store, id, domain.StatusCompleted)
		if job.OutputFile == "" {
			t.Errorf("job %s completed without output file", id)
		}
	}
}

func TestPool_WatchdogRecoversStaleDelivery(t *testing.T) {
	store := domain.NewStore()
	svc := domain.NewJobService(store, &stubExtractor{dir: t.TempDir()}, nil)

	job := store.Create("https://example.com/v", ".", "auto", "")
	store.Update(job.ID, func(j *domain.Job) {
		j.Status = domain.StatusCompleted
		j.OutputFile = "/tmp/x"
	})
	if _, err := store.BeginDelivery(job.ID, false); err != nil {
		t.Fatalf("BeginDelivery() error = %v", err)
	}

	pool := New(svc, 1, 50*time.Millisecond)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go pool.Run(ctx)

	waitForStatus(t, store, job.ID, domain.StatusCompleted)
}
