package audio

import (
	"sync"

	"go.uber.org/zap"

	"github.com/voicebridge/voicebridge/pkg/audio/capture"
)

// Sink receives encoded audio frames. Frames produced while the sink reports
// inactive are dropped without error.
type Sink interface {
	Active() bool
	SendAudio(data []byte) error
}

// Pipeline turns live microphone input into 16 kHz PCM16 frames and pushes
// them into a recognition sink.
type Pipeline struct {
	device capture.Device
	sink   Sink
	logger *zap.Logger

	mu      sync.Mutex
	started bool
}

// NewPipeline creates a capture pipeline. It does not touch the device until
// Start.
func NewPipeline(device capture.Device, sink Sink, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		device: device,
		sink:   sink,
		logger: logger,
	}
}

// Start acquires the microphone and begins streaming. Calling Start while
// already started is a no-op.
func (p *Pipeline) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.started {
		p.logger.Warn("Capture pipeline already started")
		return nil
	}

	captureRate := p.device.SampleRate()
	if err := p.device.Start(func(block []float32) {
		p.process(block, captureRate)
	}); err != nil {
		return err
	}

	p.started = true
	p.logger.Info("Capture pipeline started", zap.Int("captureRate", captureRate))
	return nil
}

// process runs on the audio callback, so it must stay fast: resample, encode,
// hand off. No retries, no buffering.
func (p *Pipeline) process(block []float32, captureRate int) {
	if !p.sink.Active() {
		// No recognition session yet; dropping here avoids buildup while the
		// handshake completes.
		return
	}

	encoded := EncodePCM16(DownsampleTo16k(block, captureRate))
	if err := p.sink.SendAudio(encoded); err != nil {
		p.logger.Warn("Failed to send audio frame", zap.Error(err))
	}
}

// Stop releases the microphone. Safe to call multiple times and safe to call
// when never started.
func (p *Pipeline) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}

	if err := p.device.Stop(); err != nil {
		p.logger.Error("Failed to stop capture device", zap.Error(err))
	}
	p.started = false
	p.logger.Info("Capture pipeline stopped")
}
