package stt

import (
	"context"
	"fmt"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/repositories"
)

// GoogleSpeechToText implements SpeechToText for Google Cloud
type GoogleSpeechToText struct {
	logger *zap.Logger
}

// NewGoogleSpeechToText creates the Google Cloud recognizer adapter. Vendor
// credentials come from the standard GOOGLE_APPLICATION_CREDENTIALS lookup.
func NewGoogleSpeechToText(logger *zap.Logger) *GoogleSpeechToText {
	return &GoogleSpeechToText{logger: logger}
}

func (g *GoogleSpeechToText) StartStream(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechStream, error) {
	// Create Google Cloud Speech client
	client, err := speech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to create speech client: %w", err)
	}

	stream, err := client.StreamingRecognize(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to create streaming recognize: %w", err)
	}

	encoding, err := getAudioEncoding(config.Encoding)
	if err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("unsupported audio encoding: %s", config.Encoding)
	}

	recognitionConfig := &speechpb.RecognitionConfig{
		Encoding:        encoding,
		SampleRateHertz: int32(config.SampleRate),
		LanguageCode:    config.Language,
	}

	// Interim results feed the live transcript display; continuous mode keeps
	// the stream open across utterances until the client stops it.
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: &speechpb.StreamingRecognitionConfig{
				Config:         recognitionConfig,
				InterimResults: true,
			},
		},
	}); err != nil {
		stream.CloseSend()
		client.Close()
		return nil, fmt.Errorf("failed to send streaming config: %w", err)
	}

	g.logger.Info("Started recognition stream",
		zap.String("language", config.Language),
		zap.Int("sampleRate", config.SampleRate))

	s := &googleSpeechStream{
		client:   client,
		stream:   stream,
		language: config.Language,
		results:  make(chan repositories.RecognitionResult, 16),
	}
	go s.receiveResults()

	return s, nil
}

type googleSpeechStream struct {
	client   *speech.Client
	stream   speechpb.Speech_StreamingRecognizeClient
	language string
	results  chan repositories.RecognitionResult

	mu     sync.Mutex
	err    error
	closed bool
}

func (g *googleSpeechStream) Write(data []byte) error {
	if len(data) == 0 {
		return nil
	}

	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return fmt.Errorf("stream closed")
	}
	g.mu.Unlock()

	if err := g.stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: data,
		},
	}); err != nil {
		return fmt.Errorf("failed to send audio data: %w", err)
	}
	return nil
}

func (g *googleSpeechStream) Results() <-chan repositories.RecognitionResult {
	return g.results
}

func (g *googleSpeechStream) Err() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.err
}

// Close signals end of audio. The receiver goroutine drains the remaining
// vendor responses and closes the results channel.
func (g *googleSpeechStream) Close() error {
	g.mu.Lock()
	if g.closed {
		g.mu.Unlock()
		return nil
	}
	g.closed = true
	g.mu.Unlock()

	if err := g.stream.CloseSend(); err != nil {
		return fmt.Errorf("failed to close send stream: %w", err)
	}
	return nil
}

func (g *googleSpeechStream) receiveResults() {
	defer close(g.results)
	defer g.client.Close()

	for {
		resp, err := g.stream.Recv()
		if err == io.EOF {
			return
		}
		if err != nil {
			g.mu.Lock()
			if !g.closed {
				g.err = fmt.Errorf("failed to receive response: %w", err)
			}
			g.mu.Unlock()
			return
		}

		for _, result := range resp.Results {
			if len(result.Alternatives) == 0 {
				continue
			}
			best := result.Alternatives[0]
			out := repositories.RecognitionResult{
				Text:     best.Transcript,
				Language: g.language,
				IsFinal:  result.IsFinal,
			}
			if result.IsFinal {
				out.Confidence = float64(best.Confidence)
			}
			g.results <- out
		}
	}
}

// getAudioEncoding converts string encoding to Google Speech API enum
func getAudioEncoding(encoding string) (speechpb.RecognitionConfig_AudioEncoding, error) {
	switch encoding {
	case "WAV", "LINEAR16":
		return speechpb.RecognitionConfig_LINEAR16, nil
	case "FLAC":
		return speechpb.RecognitionConfig_FLAC, nil
	case "MULAW":
		return speechpb.RecognitionConfig_MULAW, nil
	case "OGG_OPUS":
		return speechpb.RecognitionConfig_OGG_OPUS, nil
	case "WEBM_OPUS":
		return speechpb.RecognitionConfig_WEBM_OPUS, nil
	default:
		return speechpb.RecognitionConfig_ENCODING_UNSPECIFIED, fmt.Errorf("unsupported encoding: %s", encoding)
	}
}
