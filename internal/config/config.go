package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"spindle/internal/policy"
)

// HardwareAccelMode is the closed set of hardware encoder preferences
// (spec §6's hardware_acceleration.enabled).
type HardwareAccelMode string

const (
	HWAccelNone         HardwareAccelMode = "none"
	HWAccelNVENC        HardwareAccelMode = "nvenc"
	HWAccelVAAPI        HardwareAccelMode = "vaapi"
	HWAccelQSV          HardwareAccelMode = "qsv"
	HWAccelAMF          HardwareAccelMode = "amf"
	HWAccelVideoToolbox HardwareAccelMode = "videotoolbox"
)

// Paths groups every filesystem location the daemon reads from or writes
// to.
type Paths struct {
	CatalogPath    string `toml:"catalog_path"`
	TempDirectory  string `toml:"temp_directory"`
	LogDir         string `toml:"log_dir"`
	AdmissionDir   string `toml:"admission_dir"`
	APIBind        string `toml:"api_bind"`
}

// HardwareAcceleration configures the transcoder's hardware encoder
// preference and its software fallback policy (spec §6).
type HardwareAcceleration struct {
	Enabled        HardwareAccelMode `toml:"enabled"`
	FallbackToCPU  bool              `toml:"fallback_to_cpu"`
}

// Execution groups the operator-facing knobs that are not themselves part
// of a policy document (spec §6's configuration surface). They are
// decoded, normalized and validated here, but no other package reads
// them: the Phase Executor takes on_error from each policy phase, and
// neither the Transcode Planner nor the toolset receives these values.
type Execution struct {
	OnError              policy.OnError       `toml:"on_error"`
	HardwareAcceleration HardwareAcceleration `toml:"hardware_acceleration"`
	BackupOriginal       bool                 `toml:"backup_original"`
	TranscodeTimeout     int                  `toml:"transcode_timeout"`
	CPUCores             int                  `toml:"cpu_cores"`
	CommentaryPatterns   []string             `toml:"commentary_patterns"`
}

// Workflow tunes the Job Queue & Worker Pool's polling and housekeeping
// cadence (spec §4.5).
type Workflow struct {
	Concurrency        int `toml:"concurrency"`
	PollInterval       int `toml:"poll_interval"`
	ErrorRetryInterval int `toml:"error_retry_interval"`
	HeartbeatInterval  int `toml:"heartbeat_interval"`
	ReapInterval       int `toml:"reap_interval"`
	StaleAfter         int `toml:"stale_after"`
	RetentionInterval  int `toml:"retention_interval"`
	RetentionDays      int `toml:"retention_days"`
}

// Logging controls the structured logger's output shape and archive
// retention.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config centralizes every setting the daemon needs to run.
type Config struct {
	Paths     Paths     `toml:"paths"`
	Execution Execution `toml:"execution"`
	Workflow  Workflow  `toml:"workflow"`
	Logging   Logging   `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/vpo/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if os.IsNotExist(err) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath("~/.config/vpo/config.toml")
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("vpo.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates every directory this config names, so the
// daemon can assume they exist once it returns. Load does not call it.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.LogDir, c.Paths.AdmissionDir}
	if strings.TrimSpace(c.Paths.TempDirectory) != "" {
		dirs = append(dirs, c.Paths.TempDirectory)
	}
	if dir := filepath.Dir(c.Paths.CatalogPath); dir != "" {
		dirs = append(dirs, dir)
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other
// packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified
// location.
func CreateSample(path string) error {
	sample := `# vpo configuration
# ==================

[paths]
catalog_path = "~/.local/share/vpo/vpo.db"   # SQLite catalog database
temp_directory = ""                          # Created at startup if set; temp outputs are always written beside the destination file
log_dir = "~/.local/share/vpo/logs"          # Logs and session archive; vpod's IPC socket lives here
admission_dir = "~/.local/share/vpo/locks"   # Created at startup; admission locks are placed beside each library file
api_bind = "127.0.0.1:7487"                  # Not used by IPC, which listens on a Unix socket in log_dir

[execution]
on_error = "fail"                            # fail | skip | continue; not read outside config (each policy phase sets its own)
backup_original = true                       # Retain a .original sibling after a transcode; not read outside config
transcode_timeout = 14400                    # Seconds allowed for a transcode; not read outside config
cpu_cores = 4                                # Not read outside config; the worker pool size is workflow.concurrency
commentary_patterns = ["commentary", "director's cut", "director's commentary"]

[execution.hardware_acceleration]
enabled = "none"                             # none | nvenc | vaapi | qsv | amf | videotoolbox
fallback_to_cpu = true

[workflow]
concurrency = 4
poll_interval = 2
error_retry_interval = 5
heartbeat_interval = 10
reap_interval = 30
stale_after = 120
retention_interval = 3600
retention_days = 30

[logging]
format = "console"                           # console | json
level = "info"
`

	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sample), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
