package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Config holds application configuration.
type Config struct {
	Host                 string        `toml:"host"`
	Port                 int           `toml:"port"`
	OutputDir            string        `toml:"output_dir"`
	Format               string        `toml:"format"`
	FFmpegLocation       string        `toml:"ffmpeg_location"`
	Workers              int           `toml:"workers"`
	StaleDeliveryTimeout time.Duration `toml:"-"`

	// CLI-only fields, never read from the config file.
	Serve bool   `toml:"-"`
	URL   string `toml:"-"`
}

// Defaults returns the built-in configuration.
func Defaults() *Config {
	return &Config{
		Host:                 "0.0.0.0",
		Port:                 8000,
		OutputDir:            ".",
		Format:               "auto",
		Workers:              4,
		StaleDeliveryTimeout: 10 * time.Minute,
	}
}

// Load builds the configuration from an optional TOML file, flags and
// environment overrides, in that order of increasing precedence. The
// first positional argument is taken as the CLI-mode URL.
func Load(args []string) (*Config, error) {
	cfg := Defaults()

	fs := flag.NewFlagSet("bilifetch", flag.ContinueOnError)
	configPath := fs.String("config", "", "Path to TOML config file")
	fs.StringVar(&cfg.OutputDir, "output", cfg.OutputDir, "Directory for downloaded files")
	fs.StringVar(&cfg.Format, "format", cfg.Format, "Format preset (auto, merge_best, video_only, audio_only)")
	fs.StringVar(&cfg.FFmpegLocation, "ffmpeg-location", cfg.FFmpegLocation, "FFmpeg directory or binary path")
	fs.BoolVar(&cfg.Serve, "serve", false, "Run the REST API server")
	fs.StringVar(&cfg.Host, "host", cfg.Host, "API server host")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "API server port")
	fs.IntVar(&cfg.Workers, "workers", cfg.Workers, "Concurrent download workers")
	fs.DurationVar(&cfg.StaleDeliveryTimeout, "stale-delivery-timeout", cfg.StaleDeliveryTimeout, "Revert deliveries stuck longer than this")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if *configPath != "" {
		// Flags win over the file. The flag values share memory with cfg,
		// so snapshot the explicitly set ones before the decode overwrites
		// them, then re-apply.
		explicit := make(map[string]string)
		fs.Visit(func(f *flag.Flag) {
			explicit[f.Name] = f.Value.String()
		})
		if _, err := toml.DecodeFile(*configPath, cfg); err != nil {
			return nil, fmt.Errorf("config file: %w", err)
		}
		for name, value := range explicit {
			fs.Set(name, value)
		}
	}

	// Env overrides
	if host := os.Getenv("BILIFETCH_HOST"); host != "" {
		cfg.Host = host
	}
	if dir := os.Getenv("BILIFETCH_OUTPUT_DIR"); dir != "" {
		cfg.OutputDir = dir
	}
	for _, name := range []string{"BILIFETCH_PORT", "PORT"} {
		if port := os.Getenv(name); port != "" {
			if p, err := strconv.Atoi(port); err == nil {
				cfg.Port = p
				break
			}
		}
	}

	cfg.URL = fs.Arg(0)
	return cfg, nil
}

// Addr returns the host:port listen address.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
