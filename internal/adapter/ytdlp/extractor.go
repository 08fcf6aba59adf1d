package ytdlp

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	goytdlp "github.com/lrstanley/go-ytdlp"

	"github.com/siwakornth/bilifetch/internal/domain"
)

var ErrNoDownloadedFile = errors.New("no downloaded file found")

// Extractor implements domain.Extractor on top of the yt-dlp engine.
type Extractor struct{}

// New creates a new Extractor.
func New() *Extractor {
	return &Extractor{}
}

// Download fetches req.URL into req.OutputDir and returns the final file
// path. The engine may report the path through a progress hook, through
// the extracted info, or not at all; resolveFinalFile papers over the
// engine renaming per-stream temp files after the path was reported.
func (e *Extractor) Download(ctx context.Context, req domain.ExtractRequest) (string, error) {
	outputDir, err := filepath.Abs(req.OutputDir)
	if err != nil {
		return "", fmt.Errorf("resolve output dir: %w", err)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("create output dir: %w", err)
	}

	dl := goytdlp.New().
		Format(req.Format).
		Output(filepath.Join(outputDir, "%(title)s.%(ext)s")).
		Quiet().
		NoWarnings()

	ffmpegDir, err := ResolveFFmpegLocation(req.FFmpegLocation)
	if err != nil {
		return "", err
	}
	if ffmpegDir != "" {
		dl = dl.FFmpegLocation(ffmpegDir)
	}

	// The progress hook is the primary source for the output path; the
	// last reported filename wins.
	var mu sync.Mutex
	var lastFilename string
	dl.ProgressFunc(500*time.Millisecond, func(update goytdlp.ProgressUpdate) {
		if update.Filename != "" {
			mu.Lock()
			lastFilename = update.Filename
			mu.Unlock()
		}
	})

	result, err := dl.Run(ctx, req.URL)
	if err != nil {
		return "", fmt.Errorf("yt-dlp: %w", err)
	}

	mu.Lock()
	candidate := lastFilename
	mu.Unlock()
	if candidate == "" {
		candidate = pickPathFromResult(result)
	}
	if candidate == "" {
		return "", ErrNoDownloadedFile
	}
	return resolveFinalFile(candidate)
}

// pickPathFromResult digs the output path out of the extracted info when
// the progress hook never reported one. Checked in order: the flat
// filename field, then playlist entries.
func pickPathFromResult(result *goytdlp.Result) string {
	if result == nil {
		return ""
	}
	infos, err := result.GetExtractedInfo()
	if err != nil {
		return ""
	}
	return pickExistingPath(extractedPaths(infos))
}

// extractedPaths flattens filename candidates from the extracted info,
// top-level entries first.
func extractedPaths(infos []*goytdlp.ExtractedInfo) []string {
	var paths []string
	for _, info := range infos {
		if info == nil {
			continue
		}
		if info.Filename != nil && *info.Filename != "" {
			paths = append(paths, *info.Filename)
		}
		for _, entry := range info.Entries {
			if entry != nil && entry.Filename != nil && *entry.Filename != "" {
				paths = append(paths, *entry.Filename)
			}
		}
	}
	return paths
}

// pickExistingPath prefers a candidate that is present on disk, falling
// back to the first reported one so the rename recovery can still try
// its luck.
func pickExistingPath(candidates []string) string {
	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			return candidate
		}
	}
	if len(candidates) > 0 {
		return candidates[0]
	}
	return ""
}

// fragmentSuffix matches the per-format token yt-dlp embeds in temp file
// names, e.g. "video.f140.mp4".
var fragmentSuffix = regexp.MustCompile(`\.f\d+(\.\w+)$`)

// resolveFinalFile verifies the reported path exists, recovering from the
// engine's merge step renaming files after the fact: first by stripping
// the fragment token, then by scanning for siblings with the same stem
// and extension.
func resolveFinalFile(path string) (string, error) {
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	name := filepath.Base(path)
	stripped := fragmentSuffix.ReplaceAllString(name, "$1")
	alt := filepath.Join(filepath.Dir(path), stripped)
	if _, err := os.Stat(alt); err == nil {
		return alt, nil
	}

	stem, _, _ := strings.Cut(strings.TrimSuffix(name, filepath.Ext(name)), ".f")
	pattern := filepath.Join(filepath.Dir(path), stem+"*"+filepath.Ext(name))
	matches, _ := filepath.Glob(pattern)
	for _, match := range matches {
		if _, err := os.Stat(match); err == nil {
			return match, nil
		}
	}

	return "", fmt.Errorf("%w: %s", ErrNoDownloadedFile, path)
}
