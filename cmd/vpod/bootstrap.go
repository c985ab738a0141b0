package main

import (
	"path/filepath"
	"time"

	"spindle/internal/config"
	"spindle/internal/jobqueue"
)

func buildSocketPath(cfg *config.Config) string {
	if cfg == nil {
		return filepath.Join("", "vpod.sock")
	}
	return filepath.Join(cfg.Paths.LogDir, "vpod.sock")
}

// jobqueueConfigFromWorkflow converts the TOML-facing Workflow knobs
// (plain seconds/days, easy to hand-author) into jobqueue.Config's
// time.Duration fields. Zero values fall through to NewPool's defaults.
func jobqueueConfigFromWorkflow(w config.Workflow) jobqueue.Config {
	return jobqueue.Config{
		Concurrency:        w.Concurrency,
		PollInterval:       time.Duration(w.PollInterval) * time.Second,
		ErrorRetryInterval: time.Duration(w.ErrorRetryInterval) * time.Second,
		HeartbeatInterval:  time.Duration(w.HeartbeatInterval) * time.Second,
		ReapInterval:       time.Duration(w.ReapInterval) * time.Second,
		StaleAfter:         time.Duration(w.StaleAfter) * time.Second,
		RetentionInterval:  time.Duration(w.RetentionInterval) * time.Second,
		RetentionAge:       time.Duration(w.RetentionDays) * 24 * time.Hour,
	}
}
