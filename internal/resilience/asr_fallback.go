package resilience

import (
	"context"

	"github.com/pulox/pulox/pkg/provider/asr"
)

// ASRFallback implements [asr.Transcriber] with automatic failover across
// multiple transcription backends, each behind its own circuit breaker.
type ASRFallback struct {
	group *FallbackGroup[asr.Transcriber]
}

var _ asr.Transcriber = (*ASRFallback)(nil)

// NewASRFallback creates an ASRFallback with primary as the preferred
// backend.
func NewASRFallback(primary asr.Transcriber, primaryName string, cfg FallbackConfig) *ASRFallback {
	return &ASRFallback{
		group: NewFallbackGroup(primary, primaryName, cfg),
	}
}

// AddFallback registers an additional transcription backend.
func (f *ASRFallback) AddFallback(name string, t asr.Transcriber) {
	f.group.AddFallback(name, t)
}

// Transcribe sends the audio to the first healthy backend.
func (f *ASRFallback) Transcribe(ctx context.Context, req asr.Request) (*asr.Transcript, error) {
	return ExecuteWithResult(f.group, func(t asr.Transcriber) (*asr.Transcript, error) {
		return t.Transcribe(ctx, req)
	})
}
