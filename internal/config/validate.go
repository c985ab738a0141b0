package config

import (
	"errors"
	"fmt"
	"strings"

	"spindle/internal/policy"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateExecution(); err != nil {
		return err
	}
	if err := c.validateWorkflow(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if strings.TrimSpace(c.Paths.CatalogPath) == "" {
		return errors.New("paths.catalog_path must be set")
	}
	return nil
}

func (c *Config) validateExecution() error {
	switch c.Execution.OnError {
	case policy.OnErrorFail, policy.OnErrorSkip, policy.OnErrorContinue:
	default:
		return fmt.Errorf("execution.on_error: unsupported value %q", c.Execution.OnError)
	}
	if c.Execution.TranscodeTimeout <= 0 {
		return errors.New("execution.transcode_timeout must be positive")
	}
	if c.Execution.CPUCores <= 0 {
		return errors.New("execution.cpu_cores must be positive")
	}
	switch c.Execution.HardwareAcceleration.Enabled {
	case HWAccelNone, HWAccelNVENC, HWAccelVAAPI, HWAccelQSV, HWAccelAMF, HWAccelVideoToolbox:
	default:
		return fmt.Errorf("execution.hardware_acceleration.enabled: unsupported value %q", c.Execution.HardwareAcceleration.Enabled)
	}
	return nil
}

func (c *Config) validateWorkflow() error {
	return ensurePositiveMap(map[string]int{
		"workflow.concurrency":         c.Workflow.Concurrency,
		"workflow.poll_interval":       c.Workflow.PollInterval,
		"workflow.error_retry_interval": c.Workflow.ErrorRetryInterval,
		"workflow.heartbeat_interval":  c.Workflow.HeartbeatInterval,
		"workflow.reap_interval":       c.Workflow.ReapInterval,
		"workflow.stale_after":         c.Workflow.StaleAfter,
		"workflow.retention_interval":  c.Workflow.RetentionInterval,
		"workflow.retention_days":      c.Workflow.RetentionDays,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
