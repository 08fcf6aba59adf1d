package ytdlp

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	goytdlp "github.com/lrstanley/go-ytdlp"
)

func touch(t *testing.T, path string) {
	t.Helper()
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
}

func strptr(s string) *string { return &s }

func TestExtractedPaths(t *testing.T) {
	top := strptr("/tmp/top.mp4")
	entry := strptr("/tmp/entry.mp4")
	empty := strptr("")

	infos := []*goytdlp.ExtractedInfo{
		nil,
		{Filename: empty},
		{
			Filename: top,
			Entries: []*goytdlp.ExtractedInfo{
				nil,
				{Filename: entry},
				{Filename: nil},
			},
		},
	}

	got := extractedPaths(infos)
	want := []string{"/tmp/top.mp4", "/tmp/entry.mp4"}
	if len(got) != len(want) {
		t.Fatalf("extractedPaths() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("extractedPaths()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestPickExistingPath(t *testing.T) {
	dir := t.TempDir()
	present := filepath.Join(dir, "present.mp4")
	touch(t, present)
	missing := filepath.Join(dir, "missing.mp4")

	if got := pickExistingPath([]string{missing, present}); got != present {
		t.Errorf("pickExistingPath() = %q, want existing %q", got, present)
	}
	if got := pickExistingPath([]string{missing}); got != missing {
		t.Errorf("pickExistingPath() = %q, want first candidate fallback", got)
	}
	if got := pickExistingPath(nil); got != "" {
		t.Errorf("pickExistingPath(nil) = %q, want empty", got)
	}
}

func TestResolveFinalFile_Exists(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "video.mp4")
	touch(t, path)

	got, err := resolveFinalFile(path)
	if err != nil {
		t.Fatalf("resolveFinalFile() error = %v", err)
	}
	if got != path {
		t.Errorf("resolveFinalFile() = %q, want %q", got, path)
	}
}

func TestResolveFinalFile_FragmentSuffixStripped(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "video.mp4"))

	got, err := resolveFinalFile(filepath.Join(dir, "video.f140.mp4"))
	if err != nil {
		t.Fatalf("resolveFinalFile() error = %v", err)
	}
	if got != filepath.Join(dir, "video.mp4") {
		t.Errorf("resolveFinalFile() = %q, want merged file", got)
	}
}

func TestResolveFinalFile_DirectoryScan(t *testing.T) {
	dir := t.TempDir()
	merged := filepath.Join(dir, "My Video.merged.mp4")
	touch(t, merged)

	got, err := resolveFinalFile(filepath.Join(dir, "My Video.f137.mp4"))
	if err != nil {
		t.Fatalf("resolveFinalFile() error = %v", err)
	}
	if got != merged {
		t.Errorf("resolveFinalFile() = %q, want %q", got, merged)
	}
}

func TestResolveFinalFile_NothingFound(t *testing.T) {
	dir := t.TempDir()
	_, err := resolveFinalFile(filepath.Join(dir, "gone.f22.mp4"))
	if !errors.Is(err, ErrNoDownloadedFile) {
		t.Errorf("resolveFinalFile() error = %v, want %v", err, ErrNoDownloadedFile)
	}
}

func TestResolveFFmpegLocation_CustomFile(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "ffmpeg")
	touch(t, bin)

	got, err := ResolveFFmpegLocation(bin)
	if err != nil {
		t.Fatalf("ResolveFFmpegLocation() error = %v", err)
	}
	if got != dir {
		t.Errorf("ResolveFFmpegLocation(file) = %q, want parent %q", got, dir)
	}
}

func TestResolveFFmpegLocation_CustomDir(t *testing.T) {
	dir := t.TempDir()

	got, err := ResolveFFmpegLocation(dir)
	if err != nil {
		t.Fatalf("ResolveFFmpegLocation() error = %v", err)
	}
	if got != dir {
		t.Errorf("ResolveFFmpegLocation(dir) = %q, want %q", got, dir)
	}
}

func TestResolveFFmpegLocation_Missing(t *testing.T) {
	if _, err := ResolveFFmpegLocation(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Error("ResolveFFmpegLocation() expected error for missing path")
	}
}

func TestResolveFFmpegLocation_Unset(t *testing.T) {
	got, err := ResolveFFmpegLocation("")
	if err != nil {
		t.Fatalf("ResolveFFmpegLocation(\"\") error = %v", err)
	}
	// Without a bundled ffmpeg/bin next to the test binary, discovery is
	// left to the engine.
	if got != "" {
		if info, statErr := os.Stat(got); statErr != nil || !info.IsDir() {
			t.Errorf("ResolveFFmpegLocation(\"\") = %q, not an existing directory", got)
		}
	}
}
