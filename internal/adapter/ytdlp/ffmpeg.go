package ytdlp

import (
	"fmt"
	"os"
	"path/filepath"
)

// ResolveFFmpegLocation returns the directory holding the ffmpeg binaries.
// A custom path may point at the binary itself or its directory. Without
// one, the conventional ffmpeg/bin directory next to the executable is
// probed; an empty result means the engine should use its own discovery.
func ResolveFFmpegLocation(custom string) (string, error) {
	if custom != "" {
		abs, err := filepath.Abs(expandHome(custom))
		if err != nil {
			return "", fmt.Errorf("ffmpeg location not found: %s", custom)
		}
		info, err := os.Stat(abs)
		if err != nil {
			return "", fmt.Errorf("ffmpeg location not found: %s", abs)
		}
		if info.IsDir() {
			return abs, nil
		}
		return filepath.Dir(abs), nil
	}

	exe, err := os.Executable()
	if err != nil {
		return "", nil
	}
	bundled := filepath.Join(filepath.Dir(exe), "ffmpeg", "bin")
	if info, err := os.Stat(bundled); err == nil && info.IsDir() {
		return bundled, nil
	}
	return "", nil
}

func expandHome(path string) string {
	if len(path) > 1 && path[0] == '~' && (path[1] == '/' || path[1] == filepath.Separator) {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
