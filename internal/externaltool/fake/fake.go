// Package fake provides deterministic externaltool.Toolset test doubles
// so internal/phaseexec and its callers can be tested without shelling
// out to a real prober/remuxer/transcoder. Grounded on
// five82-spindle's services/drapto.CLI: a configurable struct built
// through functional options, implementing the same interface a real
// tool would.
package fake

import (
	"context"
	"fmt"
	"os"
	"sync"

	"spindle/internal/externaltool"
	"spindle/internal/mediainfo"
	"spindle/internal/store"
)

// Option configures a Toolset.
type Option func(*Toolset)

// WithProbeResult seeds the file returned by Probe for a given path.
func WithProbeResult(path string, info mediainfo.FileInfo) Option {
	return func(t *Toolset) {
		if t.probeResults == nil {
			t.probeResults = map[string]mediainfo.FileInfo{}
		}
		t.probeResults[path] = info
	}
}

// WithTranscodeResult seeds the result returned by Transcode for a given
// input path.
func WithTranscodeResult(inputPath string, result externaltool.TranscodeResult) Option {
	return func(t *Toolset) {
		if t.transcodeResults == nil {
			t.transcodeResults = map[string]externaltool.TranscodeResult{}
		}
		t.transcodeResults[inputPath] = result
	}
}

// WithFailure makes the named method ("probe", "metadata", "remux",
// "transcode") return err instead of succeeding, for failure-path tests.
func WithFailure(method string, err error) Option {
	return func(t *Toolset) {
		if t.failures == nil {
			t.failures = map[string]error{}
		}
		t.failures[method] = err
	}
}

// Toolset is a deterministic, in-memory externaltool.Toolset. It runs
// no subprocesses; Remux and Transcode record the calls they received
// for assertions and create a placeholder file at the request's
// OutputPath.
type Toolset struct {
	mu sync.Mutex

	probeResults     map[string]mediainfo.FileInfo
	transcodeResults map[string]externaltool.TranscodeResult
	failures         map[string]error

	MetadataCalls  []MetadataCall
	RemuxCalls     []externaltool.RemuxPlan
	TranscodeCalls []externaltool.TranscodeRequest
}

// MetadataCall records one ApplyMetadata invocation.
type MetadataCall struct {
	Path  string
	Edits []externaltool.MetadataEdit
}

// New constructs a Toolset with opts applied.
func New(opts ...Option) *Toolset {
	t := &Toolset{}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Toolset) Probe(_ context.Context, path string) (mediainfo.FileInfo, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failures["probe"]; err != nil {
		return mediainfo.FileInfo{}, err
	}
	info, ok := t.probeResults[path]
	if !ok {
		return mediainfo.FileInfo{}, fmt.Errorf("fake toolset: no probe result seeded for %q", path)
	}
	return info, nil
}

func (t *Toolset) ApplyMetadata(_ context.Context, path string, edits []externaltool.MetadataEdit) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failures["metadata"]; err != nil {
		return err
	}
	t.MetadataCalls = append(t.MetadataCalls, MetadataCall{Path: path, Edits: edits})
	return nil
}

func (t *Toolset) Remux(_ context.Context, plan externaltool.RemuxPlan) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failures["remux"]; err != nil {
		return err
	}
	t.RemuxCalls = append(t.RemuxCalls, plan)
	return touch(plan.OutputPath)
}

func (t *Toolset) Transcode(_ context.Context, req externaltool.TranscodeRequest) (externaltool.TranscodeResult, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := t.failures["transcode"]; err != nil {
		return externaltool.TranscodeResult{}, err
	}
	t.TranscodeCalls = append(t.TranscodeCalls, req)
	if req.Progress != nil {
		req.Progress(externaltool.TranscodeProgress{Percent: 50, Stage: "encoding"})
		req.Progress(externaltool.TranscodeProgress{Percent: 100, Stage: "complete"})
	}
	if err := touch(req.OutputPath); err != nil {
		return externaltool.TranscodeResult{}, err
	}
	result, ok := t.transcodeResults[req.InputPath]
	if !ok {
		result = externaltool.TranscodeResult{OutputPath: req.OutputPath, EncoderType: store.EncoderSoftware}
	}
	return result, nil
}

// touch creates an empty placeholder at path, standing in for the bytes
// a real remux/transcode would have written there.
func touch(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	return f.Close()
}

var _ externaltool.Toolset = (*Toolset)(nil)
