package domain

import "context"

// ExtractRequest carries the parameters for one extraction engine call.
type ExtractRequest struct {
	URL            string
	OutputDir      string
	Format         string
	FFmpegLocation string
}

// Extractor is the driven port for the media extraction engine. Download
// blocks until the engine finishes and returns the final local file path.
type Extractor interface {
	Download(ctx context.Context, req ExtractRequest) (string, error)
}

// RemoteFile describes an artifact relayed to remote storage.
type RemoteFile struct {
	ID          string
	DownloadURL string
	ViewURL     string
}

// RemoteStore is the driven port for the cloud relay backend.
type RemoteStore interface {
	Upload(ctx context.Context, path string, mimeType string) (*RemoteFile, error)
	Delete(ctx context.Context, fileID string) error
}
