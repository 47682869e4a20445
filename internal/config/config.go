package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/camherd/camherd/internal/feed"
	"github.com/spf13/viper"
)

// Canonical environment keys, kept compatible with the original deployment
// contract. They fill any camera field the config file leaves unset.
const (
	EnvCamHost  = "CAM_IP"
	EnvCamPort  = "CAM_PORT"
	EnvCamUser  = "CAM_USER"
	EnvCamPass  = "CAM_PASS"
	EnvCamCount = "TOTAL_CAMERAS"
)

// Config is the top-level TOML structure.
type Config struct {
	Listen     string           `toml:"listen" mapstructure:"listen"`
	BaseDir    string           `toml:"base_dir" mapstructure:"base_dir"`
	EnvFiles   []string         `toml:"env_files" mapstructure:"env_files"`
	Camera     CameraConfig     `toml:"camera" mapstructure:"camera"`
	Supervisor SupervisorConfig `toml:"supervisor" mapstructure:"supervisor"`
	Engine     EngineConfig     `toml:"engine" mapstructure:"engine"`
	Log        LogConfig        `toml:"log" mapstructure:"log"`
	Journal    JournalConfig    `toml:"journal" mapstructure:"journal"`
}

type CameraConfig struct {
	Host     string `toml:"host" mapstructure:"host"`
	Port     int    `toml:"port" mapstructure:"port"`
	User     string `toml:"user" mapstructure:"user"`
	Password string `toml:"password" mapstructure:"password"`
	Feeds    int    `toml:"feeds" mapstructure:"feeds"`
	Subtype  int    `toml:"subtype" mapstructure:"subtype"`
}

type SupervisorConfig struct {
	CheckInterval time.Duration `toml:"check_interval" mapstructure:"check_interval"`
	StaleAfter    time.Duration `toml:"stale_after" mapstructure:"stale_after"`
	StopGrace     time.Duration `toml:"stop_grace" mapstructure:"stop_grace"`
}

type EngineConfig struct {
	Binary         string        `toml:"binary" mapstructure:"binary"`
	SegmentSeconds int           `toml:"segment_seconds" mapstructure:"segment_seconds"`
	PlaylistSize   int           `toml:"playlist_size" mapstructure:"playlist_size"`
	RTSPTimeout    time.Duration `toml:"rtsp_timeout" mapstructure:"rtsp_timeout"`
}

type LogConfig struct {
	Level      string `toml:"level" mapstructure:"level"`
	Color      bool   `toml:"color" mapstructure:"color"`
	Dir        string `toml:"dir" mapstructure:"dir"`
	MaxSizeMB  int    `toml:"max_size_mb" mapstructure:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" mapstructure:"max_backups"`
	MaxAgeDays int    `toml:"max_age_days" mapstructure:"max_age_days"`
	Compress   bool   `toml:"compress" mapstructure:"compress"`
}

type JournalConfig struct {
	DSN string `toml:"dsn" mapstructure:"dsn"`
}

// Default returns the configuration used when the file sets nothing.
// Camera identity has no default; it must come from the file, a `.env` in
// the working directory or the canonical environment keys.
func Default() Config {
	return Config{
		Listen:   ":8080",
		BaseDir:  "hls",
		EnvFiles: []string{".env"},
		Camera:   CameraConfig{Subtype: 1},
		Supervisor: SupervisorConfig{
			CheckInterval: 15 * time.Second,
			StaleAfter:    30 * time.Second,
			StopGrace:     3 * time.Second,
		},
		Engine: EngineConfig{
			Binary:         "ffmpeg",
			SegmentSeconds: 2,
			PlaylistSize:   3,
			RTSPTimeout:    15 * time.Second,
		},
		Log: LogConfig{
			Level:      "info",
			Color:      true,
			Dir:        "logs",
			MaxSizeMB:  10,
			MaxBackups: 3,
			MaxAgeDays: 7,
		},
	}
}

// Load reads the TOML file at path (optional: empty path skips the file),
// merges env_files over the OS environment, expands ${VAR} references in
// string fields against that merged map, seeds unset camera fields from the
// canonical environment keys, and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		v := viper.New()
		v.SetConfigFile(path)
		v.SetConfigType("toml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, err
		}
		if err := v.Unmarshal(&cfg); err != nil {
			return Config{}, err
		}
	}
	env, err := mergedEnv(cfg.EnvFiles)
	if err != nil {
		return Config{}, err
	}
	cfg.expand(env)
	if err := cfg.seedFromEnv(env); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Source returns the network source description consumed by feed URL building.
func (c CameraConfig) Source() feed.Source {
	return feed.Source{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Subtype:  c.Subtype,
	}
}

// Validate checks the fields every component relies on. It runs after env
// seeding, so a failure here means neither the file nor the environment
// supplied a usable value.
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("base_dir must not be empty")
	}
	if c.Camera.Host == "" {
		return fmt.Errorf("camera host is required (set camera.host or %s)", EnvCamHost)
	}
	if c.Camera.User == "" {
		return fmt.Errorf("camera user is required (set camera.user or %s)", EnvCamUser)
	}
	if c.Camera.Password == "" {
		return fmt.Errorf("camera password is required (set camera.password or %s)", EnvCamPass)
	}
	if c.Camera.Port <= 0 || c.Camera.Port > 65535 {
		return fmt.Errorf("camera port %d out of range", c.Camera.Port)
	}
	if c.Camera.Feeds < 1 {
		return fmt.Errorf("camera feed count must be at least 1 (set camera.feeds or %s)", EnvCamCount)
	}
	if c.Supervisor.CheckInterval <= 0 {
		return fmt.Errorf("supervisor check_interval must be positive")
	}
	if c.Supervisor.StaleAfter <= 0 {
		return fmt.Errorf("supervisor stale_after must be positive")
	}
	if c.Supervisor.StopGrace <= 0 {
		return fmt.Errorf("supervisor stop_grace must be positive")
	}
	if c.Engine.Binary == "" {
		return fmt.Errorf("engine binary must not be empty")
	}
	if c.Engine.SegmentSeconds < 1 {
		return fmt.Errorf("engine segment_seconds must be at least 1")
	}
	if c.Engine.PlaylistSize < 1 {
		return fmt.Errorf("engine playlist_size must be at least 1")
	}
	if c.Supervisor.StaleAfter <= time.Duration(c.Engine.SegmentSeconds)*time.Second {
		return fmt.Errorf("supervisor stale_after must exceed the segment duration, otherwise every feed is condemned between segments")
	}
	return nil
}

// expand rewrites ${VAR} references in string fields using the merged
// environment. Unknown references expand to the empty string so validation
// catches them.
func (c *Config) expand(env map[string]string) {
	lookup := func(k string) string { return env[k] }
	c.Listen = os.Expand(c.Listen, lookup)
	c.BaseDir = os.Expand(c.BaseDir, lookup)
	c.Camera.Host = os.Expand(c.Camera.Host, lookup)
	c.Camera.User = os.Expand(c.Camera.User, lookup)
	c.Camera.Password = os.Expand(c.Camera.Password, lookup)
	c.Engine.Binary = os.Expand(c.Engine.Binary, lookup)
	c.Log.Dir = os.Expand(c.Log.Dir, lookup)
	c.Journal.DSN = os.Expand(c.Journal.DSN, lookup)
}

// seedFromEnv fills camera fields the file left unset from the canonical keys.
func (c *Config) seedFromEnv(env map[string]string) error {
	if c.Camera.Host == "" {
		c.Camera.Host = env[EnvCamHost]
	}
	if c.Camera.User == "" {
		c.Camera.User = env[EnvCamUser]
	}
	if c.Camera.Password == "" {
		c.Camera.Password = env[EnvCamPass]
	}
	if c.Camera.Port == 0 {
		if s := env[EnvCamPort]; s != "" {
			p, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("parse %s=%q: %w", EnvCamPort, s, err)
			}
			c.Camera.Port = p
		} else {
			c.Camera.Port = 554
		}
	}
	if c.Camera.Feeds == 0 {
		if s := env[EnvCamCount]; s != "" {
			n, err := strconv.Atoi(s)
			if err != nil {
				return fmt.Errorf("parse %s=%q: %w", EnvCamCount, s, err)
			}
			c.Camera.Feeds = n
		}
	}
	return nil
}

// mergedEnv composes the lookup map for expansion and seeding.
// Precedence: OS env provides the base; env_files apply in order on top.
func mergedEnv(files []string) (map[string]string, error) {
	m := make(map[string]string)
	for _, kv := range os.Environ() {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			k := kv[:i]
			if k == "" {
				continue
			}
			m[k] = kv[i+1:]
		}
	}
	for _, p := range files {
		pairs, err := loadEnvFile(p)
		if err != nil {
			// The default ".env" is optional; a listed file that simply
			// does not exist is skipped rather than failing the boot.
			if os.IsNotExist(err) {
				continue
			}
			return nil, err
		}
		for k, v := range pairs {
			m[k] = v
		}
	}
	return m, nil
}

// loadEnvFile parses a simple .env file with KEY=VALUE lines, an optional
// leading "export ", no quotes. Lines starting with # are ignored.
func loadEnvFile(path string) (map[string]string, error) {
	clean := filepath.Clean(path)
	b, err := os.ReadFile(clean)
	if err != nil {
		return nil, err
	}
	m := make(map[string]string)
	for _, line := range strings.Split(string(b), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if rest, ok := strings.CutPrefix(line, "export "); ok {
			line = strings.TrimSpace(rest)
		}
		if i := strings.IndexByte(line, '='); i >= 0 {
			k := strings.TrimSpace(line[:i])
			v := strings.TrimSpace(line[i+1:])
			m[k] = v
		}
	}
	return m, nil
}
