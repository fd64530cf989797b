package audio

import (
	"testing"

	"go.uber.org/zap"
)

type fakeDevice struct {
	rate       int
	onBlock    func([]float32)
	startCalls int
	stopCalls  int
	startErr   error
}

func (d *fakeDevice) Start(onBlock func([]float32)) error {
	d.startCalls++
	if d.startErr != nil {
		return d.startErr
	}
	d.onBlock = onBlock
	return nil
}

func (d *fakeDevice) SampleRate() int { return d.rate }

func (d *fakeDevice) Stop() error {
	d.stopCalls++
	return nil
}

type fakeSink struct {
	active bool
	frames [][]byte
}

func (s *fakeSink) Active() bool { return s.active }

func (s *fakeSink) SendAudio(data []byte) error {
	s.frames = append(s.frames, data)
	return nil
}

func TestPipelineEncodesCaptureBlocks(t *testing.T) {
	device := &fakeDevice{rate: 48000}
	sink := &fakeSink{active: true}
	pipeline := NewPipeline(device, sink, zap.NewNop())

	if err := pipeline.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	block := make([]float32, 1024)
	device.onBlock(block)

	if len(sink.frames) != 1 {
		t.Fatalf("Expected 1 frame, got %d", len(sink.frames))
	}

	// 1024 samples at 48 kHz downsample to 341 samples, 2 bytes each.
	ratio := 48000.0 / 16000.0
	wantBytes := int(float64(1024)/ratio) * 2
	if len(sink.frames[0]) != wantBytes {
		t.Errorf("Expected %d bytes, got %d", wantBytes, len(sink.frames[0]))
	}
}

func TestPipelineDropsFramesWhileSinkInactive(t *testing.T) {
	device := &fakeDevice{rate: 48000}
	sink := &fakeSink{active: false}
	pipeline := NewPipeline(device, sink, zap.NewNop())

	if err := pipeline.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	device.onBlock(make([]float32, 1024))
	if len(sink.frames) != 0 {
		t.Errorf("Expected frames dropped while sink inactive, got %d", len(sink.frames))
	}

	sink.active = true
	device.onBlock(make([]float32, 1024))
	if len(sink.frames) != 1 {
		t.Errorf("Expected 1 frame after sink became active, got %d", len(sink.frames))
	}
}

func TestPipelineStartIsIdempotent(t *testing.T) {
	device := &fakeDevice{rate: 48000}
	pipeline := NewPipeline(device, &fakeSink{}, zap.NewNop())

	if err := pipeline.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := pipeline.Start(); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if device.startCalls != 1 {
		t.Errorf("Expected device started once, got %d", device.startCalls)
	}
}

func TestPipelineStopIsSafe(t *testing.T) {
	device := &fakeDevice{rate: 48000}
	pipeline := NewPipeline(device, &fakeSink{}, zap.NewNop())

	// Stop before start must be a no-op.
	pipeline.Stop()
	if device.stopCalls != 0 {
		t.Errorf("Expected no device stop before start, got %d", device.stopCalls)
	}

	if err := pipeline.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	pipeline.Stop()
	pipeline.Stop()
	if device.stopCalls != 1 {
		t.Errorf("Expected device stopped once, got %d", device.stopCalls)
	}
}
