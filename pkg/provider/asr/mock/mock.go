// Package mock provides a test double for the asr.Transcriber interface.
//
// Configure the transcript or error to return and inspect the recorded calls:
//
//	tr := &mock.Transcriber{
//	    TranscribeResponse: &asr.Transcript{Text: "magandang umaga po"},
//	}
//	got, _ := tr.Transcribe(ctx, asr.Request{Audio: wav})
package mock

import (
	"context"
	"sync"

	"github.com/pulox/pulox/pkg/provider/asr"
)

// TranscribeCall records a single invocation of Transcriber.Transcribe.
type TranscribeCall struct {
	Ctx context.Context
	Req asr.Request
}

// Transcriber is a mock implementation of asr.Transcriber.
type Transcriber struct {
	mu sync.Mutex

	// TranscribeResponse is returned by Transcribe when TranscribeErr is nil.
	TranscribeResponse *asr.Transcript

	// TranscribeErr, if non-nil, is returned as the error from Transcribe.
	TranscribeErr error

	// TranscribeCalls records every call to Transcribe.
	TranscribeCalls []TranscribeCall
}

var _ asr.Transcriber = (*Transcriber)(nil)

// Transcribe records the call and returns the configured response or error.
func (t *Transcriber) Transcribe(ctx context.Context, req asr.Request) (*asr.Transcript, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = append(t.TranscribeCalls, TranscribeCall{Ctx: ctx, Req: req})
	if t.TranscribeErr != nil {
		return nil, t.TranscribeErr
	}
	return t.TranscribeResponse, nil
}

// Reset clears the recorded calls.
func (t *Transcriber) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.TranscribeCalls = nil
}
