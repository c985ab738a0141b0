package config

import "spindle/internal/policy"

const (
	defaultCatalogPath    = "~/.local/share/vpo/vpo.db"
	defaultLogDir         = "~/.local/share/vpo/logs"
	defaultAdmissionDir   = "~/.local/share/vpo/locks"
	defaultAPIBind        = "127.0.0.1:7487"
	defaultLogFormat      = "console"
	defaultLogLevel       = "info"
	defaultLogRetention   = 30
	defaultTranscodeTimeout = 14400
	defaultCPUCores       = 4
	defaultConcurrency    = 4
	defaultPollInterval   = 2
	defaultErrorRetry     = 5
	defaultHeartbeat      = 10
	defaultReapInterval   = 30
	defaultStaleAfter     = 120
	defaultRetentionSecs  = 3600
	defaultRetentionDays  = 30
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			CatalogPath:  defaultCatalogPath,
			LogDir:       defaultLogDir,
			AdmissionDir: defaultAdmissionDir,
			APIBind:      defaultAPIBind,
		},
		Execution: Execution{
			OnError: policy.OnErrorFail,
			HardwareAcceleration: HardwareAcceleration{
				Enabled:       HWAccelNone,
				FallbackToCPU: true,
			},
			BackupOriginal:     true,
			TranscodeTimeout:   defaultTranscodeTimeout,
			CPUCores:           defaultCPUCores,
			CommentaryPatterns: []string{"commentary", "director's cut", "director's commentary"},
		},
		Workflow: Workflow{
			Concurrency:        defaultConcurrency,
			PollInterval:       defaultPollInterval,
			ErrorRetryInterval: defaultErrorRetry,
			HeartbeatInterval:  defaultHeartbeat,
			ReapInterval:       defaultReapInterval,
			StaleAfter:         defaultStaleAfter,
			RetentionInterval:  defaultRetentionSecs,
			RetentionDays:      defaultRetentionDays,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetention,
		},
	}
}
