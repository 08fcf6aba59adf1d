package domain

// FormatPreset is a named shorthand for a yt-dlp format selection
// expression.
type FormatPreset struct {
	Key         string
	Label       string
	Expr        string
	Description string
}

// presetOrder keeps FormatPresets deterministic for API listings and
// CLI help.
var presetOrder = []string{"auto", "merge_best", "video_only", "audio_only"}

var formatPresets = map[string]FormatPreset{
	"auto": {
		Key:         "auto",
		Label:       "Best (single file)",
		Expr:        "best",
		Description: "Best quality available as a single file, no FFmpeg needed",
	},
	"merge_best": {
		Key:         "merge_best",
		Label:       "Best video + audio (requires FFmpeg)",
		Expr:        "bv*+ba/best",
		Description: "Best video and audio streams merged into one file",
	},
	"video_only": {
		Key:         "video_only",
		Label:       "Video only",
		Expr:        "bv*",
		Description: "Video stream only, no audio",
	},
	"audio_only": {
		Key:         "audio_only",
		Label:       "Audio only",
		Expr:        "ba/best",
		Description: "Best audio stream only",
	},
}

// ResolveFormat maps a preset key to its format expression. Unknown
// non-empty input is passed through verbatim as an advanced selector;
// empty input falls back to the auto preset.
func ResolveFormat(choice string) string {
	if p, ok := formatPresets[choice]; ok {
		return p.Expr
	}
	if choice != "" {
		return choice
	}
	return formatPresets["auto"].Expr
}

// IsFormatPreset reports whether key names a known preset.
func IsFormatPreset(key string) bool {
	_, ok := formatPresets[key]
	return ok
}

// FormatPresets returns the closed preset set in stable order.
func FormatPresets() []FormatPreset {
	presets := make([]FormatPreset, 0, len(presetOrder))
	for _, key := range presetOrder {
		presets = append(presets, formatPresets[key])
	}
	return presets
}
