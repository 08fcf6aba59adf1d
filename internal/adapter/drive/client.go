// Package drive relays downloaded artifacts to Google Drive.
package drive

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"

	"github.com/siwakornth/bilifetch/internal/domain"
)

// uploadChunkSize is the resumable-upload chunk size.
const uploadChunkSize = 8 << 20

// Client implements domain.RemoteStore against the Drive v3 API. Token
// refresh is handled by the underlying oauth2 token source, which renews
// expired credentials before each call.
type Client struct {
	svc         *gdrive.Service
	folderID    string
	sharePublic bool
}

// NewClient wraps an authorized Drive service. folderID optionally pins
// uploads to a destination folder; sharePublic grants anyone-with-the-link
// read access after upload.
func NewClient(svc *gdrive.Service, folderID string, sharePublic bool) *Client {
	return &Client{svc: svc, folderID: folderID, sharePublic: sharePublic}
}

// Upload pushes the file to Drive with chunked resumable transfer and
// returns its remote identifiers. The public-share step is best effort
// and never fails the upload.
func (c *Client) Upload(ctx context.Context, path string, mimeType string) (*domain.RemoteFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload source: %w", err)
	}
	defer f.Close()

	if mimeType == "" {
		mimeType = "application/octet-stream"
	}
	meta := &gdrive.File{Name: filepath.Base(path)}
	if c.folderID != "" {
		meta.Parents = []string{c.folderID}
	}

	created, err := c.svc.Files.Create(meta).
		Media(f, googleapi.ChunkSize(uploadChunkSize), googleapi.ContentType(mimeType)).
		Fields("id", "name", "size", "webViewLink").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return nil, wrapUploadError(err)
	}

	if c.sharePublic {
		_, err := c.svc.Permissions.Create(created.Id, &gdrive.Permission{
			Role: "reader",
			Type: "anyone",
		}).SupportsAllDrives(true).Context(ctx).Do()
		if err != nil {
			log.Printf("drive: sharing %s failed: %v", created.Id, err)
		}
	}

	downloadURL := "https://drive.google.com/uc?export=download&id=" + created.Id
	viewURL := created.WebViewLink
	if viewURL == "" {
		viewURL = downloadURL
	}
	return &domain.RemoteFile{
		ID:          created.Id,
		DownloadURL: downloadURL,
		ViewURL:     viewURL,
	}, nil
}

// Delete removes the remote file, best effort. A dangling remote object
// is an acceptable residual, so failures are only logged.
func (c *Client) Delete(ctx context.Context, fileID string) error {
	err := c.svc.Files.Delete(fileID).SupportsAllDrives(true).Context(ctx).Do()
	if err != nil {
		log.Printf("drive: deleting %s failed: %v", fileID, err)
	}
	return nil
}

// wrapUploadError turns the opaque quota error into an actionable message
// and passes everything else through wrapped.
func wrapUploadError(err error) error {
	if isQuotaExceeded(err) {
		return errors.New("Google Drive storage quota exceeded: the service account has no storage of its own, use a Shared Drive or OAuth user credentials instead")
	}
	return fmt.Errorf("drive upload: %w", err)
}

func isQuotaExceeded(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	for _, item := range gerr.Errors {
		if item.Reason == "storageQuotaExceeded" {
			return true
		}
	}
	return strings.Contains(gerr.Body, "storageQuotaExceeded")
}
