package drive

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/oauth2/google"
	gdrive "google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// Environment variables consulted by NewFromEnv, in priority order. OAuth
// user tokens win over service accounts because service accounts carry no
// storage quota of their own.
const (
	envOAuthTokenB64      = "GOOGLE_OAUTH_TOKEN_JSON_BASE64"
	envOAuthTokenJSON     = "GOOGLE_OAUTH_TOKEN_JSON"
	envOAuthTokenFile     = "GOOGLE_OAUTH_TOKEN_FILE"
	envServiceAccountB64  = "GOOGLE_SERVICE_ACCOUNT_JSON_BASE64"
	envServiceAccountJSON = "GOOGLE_SERVICE_ACCOUNT_JSON"
	envServiceAccountFile = "GOOGLE_SERVICE_ACCOUNT_FILE"
	envFolderID           = "GOOGLE_DRIVE_FOLDER_ID"
	envSharePublic        = "GOOGLE_DRIVE_SHARE_PUBLIC"
)

// NewFromEnv builds a Client from environment-provided credentials.
// It returns (nil, nil) when no credentials are configured, which
// disables the remote relay entirely.
func NewFromEnv(ctx context.Context) (*Client, error) {
	data, err := credentialJSON()
	if err != nil {
		return nil, err
	}
	if data == nil {
		return nil, nil
	}

	creds, err := google.CredentialsFromJSON(ctx, data, gdrive.DriveScope)
	if err != nil {
		return nil, fmt.Errorf("parse Google credentials: %w", err)
	}
	svc, err := gdrive.NewService(ctx, option.WithTokenSource(creds.TokenSource))
	if err != nil {
		return nil, fmt.Errorf("init Drive service: %w", err)
	}

	return NewClient(svc, os.Getenv(envFolderID), shareFlag()), nil
}

// credentialJSON locates credentials from the environment or the
// conventional credentials/ directory next to the working dir. Values may
// be raw JSON, base64-encoded JSON, or a path to a JSON file.
func credentialJSON() ([]byte, error) {
	for _, env := range []string{envOAuthTokenB64, envOAuthTokenJSON, envServiceAccountB64, envServiceAccountJSON} {
		raw := os.Getenv(env)
		if raw == "" {
			continue
		}
		data := decodeCandidate(raw)
		if data == nil {
			return nil, fmt.Errorf("%s is not valid JSON or base64-encoded JSON", env)
		}
		return data, nil
	}

	for _, env := range []string{envOAuthTokenFile, envServiceAccountFile} {
		raw := os.Getenv(env)
		if raw == "" {
			continue
		}
		data, err := os.ReadFile(raw)
		if err != nil {
			return nil, fmt.Errorf("read credentials from %s: %w", env, err)
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in credentials file %s", raw)
		}
		return data, nil
	}

	for _, name := range []string{"token.json", "service_account.json"} {
		path := filepath.Join("credentials", name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		if !json.Valid(data) {
			return nil, fmt.Errorf("invalid JSON in credentials file %s", path)
		}
		return data, nil
	}
	return nil, nil
}

// decodeCandidate accepts raw JSON or base64-of-JSON, returning nil when
// the value is neither.
func decodeCandidate(raw string) []byte {
	text := strings.TrimSpace(raw)
	if text == "" {
		return nil
	}
	if json.Valid([]byte(text)) {
		return []byte(text)
	}
	decoded, err := base64.StdEncoding.DecodeString(text)
	if err != nil {
		return nil
	}
	if json.Valid(decoded) {
		return decoded
	}
	return nil
}

// shareFlag defaults to true; any set value other than the truthy set
// disables sharing.
func shareFlag() bool {
	raw := strings.ToLower(strings.TrimSpace(os.Getenv(envSharePublic)))
	if raw == "" {
		return true
	}
	switch raw {
	case "1", "true", "yes", "on":
		return true
	}
	return false
}
