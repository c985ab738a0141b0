package config

import (
	"fmt"
	"strings"

	"spindle/internal/policy"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeExecution()
	c.normalizeWorkflow()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		c.Paths.CatalogPath = defaultCatalogPath
	}
	if c.Paths.CatalogPath, err = expandPath(c.Paths.CatalogPath); err != nil {
		return fmt.Errorf("paths.catalog_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.AdmissionDir) == "" {
		c.Paths.AdmissionDir = defaultAdmissionDir
	}
	if c.Paths.AdmissionDir, err = expandPath(c.Paths.AdmissionDir); err != nil {
		return fmt.Errorf("paths.admission_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.TempDirectory) != "" {
		if c.Paths.TempDirectory, err = expandPath(c.Paths.TempDirectory); err != nil {
			return fmt.Errorf("paths.temp_directory: %w", err)
		}
	}
	c.Paths.APIBind = strings.TrimSpace(c.Paths.APIBind)
	if c.Paths.APIBind == "" {
		c.Paths.APIBind = defaultAPIBind
	}
	return nil
}

func (c *Config) normalizeExecution() {
	switch c.Execution.OnError {
	case policy.OnErrorFail, policy.OnErrorSkip, policy.OnErrorContinue:
	default:
		c.Execution.OnError = policy.OnErrorFail
	}
	if c.Execution.TranscodeTimeout <= 0 {
		c.Execution.TranscodeTimeout = defaultTranscodeTimeout
	}
	if c.Execution.CPUCores <= 0 {
		c.Execution.CPUCores = defaultCPUCores
	}
	mode := strings.ToLower(strings.TrimSpace(string(c.Execution.HardwareAcceleration.Enabled)))
	switch HardwareAccelMode(mode) {
	case HWAccelNVENC, HWAccelVAAPI, HWAccelQSV, HWAccelAMF, HWAccelVideoToolbox:
		c.Execution.HardwareAcceleration.Enabled = HardwareAccelMode(mode)
	default:
		c.Execution.HardwareAcceleration.Enabled = HWAccelNone
	}
	patterns := make([]string, 0, len(c.Execution.CommentaryPatterns))
	for _, p := range c.Execution.CommentaryPatterns {
		trimmed := strings.TrimSpace(p)
		if trimmed == "" {
			continue
		}
		patterns = append(patterns, trimmed)
	}
	c.Execution.CommentaryPatterns = patterns
}

func (c *Config) normalizeWorkflow() {
	if c.Workflow.Concurrency <= 0 {
		c.Workflow.Concurrency = defaultConcurrency
	}
	if c.Workflow.PollInterval <= 0 {
		c.Workflow.PollInterval = defaultPollInterval
	}
	if c.Workflow.ErrorRetryInterval <= 0 {
		c.Workflow.ErrorRetryInterval = defaultErrorRetry
	}
	if c.Workflow.HeartbeatInterval <= 0 {
		c.Workflow.HeartbeatInterval = defaultHeartbeat
	}
	if c.Workflow.ReapInterval <= 0 {
		c.Workflow.ReapInterval = defaultReapInterval
	}
	if c.Workflow.StaleAfter <= 0 {
		c.Workflow.StaleAfter = defaultStaleAfter
	}
	if c.Workflow.RetentionInterval <= 0 {
		c.Workflow.RetentionInterval = defaultRetentionSecs
	}
	if c.Workflow.RetentionDays <= 0 {
		c.Workflow.RetentionDays = defaultRetentionDays
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
