package stt

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/domain/repositories"
)

// MockSpeechToText is a placeholder recognizer for demo mode and tests. It
// emits a growing partial transcript as audio accumulates and a final result
// with a fixed confidence when the stream is closed.
type MockSpeechToText struct {
	logger *zap.Logger
}

// NewMockSpeechToText creates a new mock speech-to-text service
func NewMockSpeechToText(logger *zap.Logger) repositories.SpeechToText {
	return &MockSpeechToText{
		logger: logger,
	}
}

// StartStream creates a new mock recognition stream
func (s *MockSpeechToText) StartStream(ctx context.Context, config repositories.AudioConfig) (repositories.SpeechStream, error) {
	s.logger.Info("Initializing mock streaming transcription",
		zap.Int("sampleRate", config.SampleRate),
		zap.String("encoding", config.Encoding),
		zap.String("language", config.Language))

	return &mockSpeechStream{
		logger:   s.logger,
		language: config.Language,
		results:  make(chan repositories.RecognitionResult, 16),
	}, nil
}

type mockSpeechStream struct {
	logger   *zap.Logger
	language string
	results  chan repositories.RecognitionResult

	mu         sync.Mutex
	totalBytes int
	partial    string
	closed     bool
}

func (m *mockSpeechStream) Write(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return fmt.Errorf("stream closed")
	}
	if len(data) == 0 {
		return nil
	}

	m.totalBytes += len(data)
	next := m.transcriptFor(m.totalBytes)
	if next == m.partial {
		return nil
	}
	m.partial = next

	select {
	case m.results <- repositories.RecognitionResult{
		Text:     m.partial,
		Language: m.language,
	}:
	default:
		// Slow consumer; interim results are disposable.
	}
	return nil
}

func (m *mockSpeechStream) Results() <-chan repositories.RecognitionResult {
	return m.results
}

func (m *mockSpeechStream) Err() error {
	return nil
}

func (m *mockSpeechStream) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.totalBytes == 0 {
		m.logger.Info("Mock transcription ended without audio")
		close(m.results)
		return nil
	}

	m.results <- repositories.RecognitionResult{
		Text:       m.transcriptFor(m.totalBytes),
		Confidence: 0.92,
		Language:   m.language,
		IsFinal:    true,
	}
	close(m.results)

	m.logger.Info("Ending mock transcription stream",
		zap.Int("totalBytes", m.totalBytes))
	return nil
}

// transcriptFor grows the fake transcript with the amount of audio received.
func (m *mockSpeechStream) transcriptFor(totalBytes int) string {
	switch {
	case totalBytes > 30000:
		return "你好 我想試試看 這個虛擬人偶 能不能聽懂我說的話"
	case totalBytes > 15000:
		return "你好 我想試試看 這個虛擬人偶"
	case totalBytes > 5000:
		return "你好 我想試試看"
	default:
		return "你好"
	}
}
