// Package asr defines the Transcriber interface for speech-to-text backends.
//
// A transcriber turns one recorded classroom utterance into text. Unlike a
// live captioning pipeline there is no streaming session: audio arrives as a
// complete WAV upload and the backend answers with a single transcript, which
// the correction engine then post-processes.
//
// Implementations must be safe for concurrent use.
package asr

import "context"

// Request carries one audio upload to a transcription backend.
type Request struct {
	// Audio is the complete audio file, WAV container included.
	Audio []byte

	// Filename is the original upload name, used as a multipart filename
	// hint. Optional.
	Filename string

	// Language is a BCP-47 hint for recognition (e.g. "tl", "en"). Empty
	// lets the backend auto-detect, if supported.
	Language string
}

// Segment is one timed span of a transcript. Timing is opaque to the
// correction engine; it is carried through for callers that align
// corrections back to the recording.
type Segment struct {
	// Start is the segment onset in seconds from the start of the audio.
	Start float64 `json:"start"`

	// End is the segment offset in seconds.
	End float64 `json:"end"`

	// Text is the transcribed span.
	Text string `json:"text"`
}

// Transcript is the backend's answer for one utterance.
type Transcript struct {
	// Text is the raw transcription before any correction.
	Text string

	// Language is the language the backend detected or was told to use.
	// May be empty when the backend does not report it.
	Language string

	// Duration is the audio length in seconds, when the backend reports it.
	Duration float64

	// Segments are the timed spans making up Text. Empty when the backend
	// does not segment.
	Segments []Segment
}

// Transcriber is the abstraction over any batch speech-to-text backend.
type Transcriber interface {
	// Transcribe converts one complete audio recording to text. It blocks
	// until the backend answers or ctx is done.
	Transcribe(ctx context.Context, req Request) (*Transcript, error)
}
