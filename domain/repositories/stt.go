package repositories

import "context"

// SpeechToText abstracts streaming speech recognition services
type SpeechToText interface {
	// StartStream opens a streaming recognition session. The stream is ready
	// to accept audio as soon as this returns.
	StartStream(ctx context.Context, config AudioConfig) (SpeechStream, error)
}

// AudioConfig represents audio configuration for speech recognition
type AudioConfig struct {
	SampleRate int    `json:"sample_rate"`
	Encoding   string `json:"encoding"`
	Language   string `json:"language"`
}

// RecognitionResult is a single hypothesis from the recognizer. Interim
// results carry IsFinal=false and zero confidence; the final result carries
// the recognizer's confidence in [0,1].
type RecognitionResult struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
	Language   string  `json:"language"`
	IsFinal    bool    `json:"-"`
}

// SpeechStream is one live recognition stream. Write pushes PCM16 audio,
// Results delivers interim and final hypotheses until the stream ends, and
// Err reports the terminal failure (if any) once Results is closed.
type SpeechStream interface {
	Write(data []byte) error
	Results() <-chan RecognitionResult
	Err() error
	Close() error
}
