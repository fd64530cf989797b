package capture

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"sync"

	"github.com/gen2brain/malgo"
)

// captureRate is the rate requested from the backend. Asking for a fixed rate
// lets the backend resample for us when the hardware runs at something else.
const captureRate = 48000

// MalgoDevice captures microphone audio through the system audio backend
// (ALSA/PulseAudio/CoreAudio/WASAPI, whichever miniaudio picks).
type MalgoDevice struct {
	mu      sync.Mutex
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	started bool
}

// NewMalgoDevice creates an unopened capture device.
func NewMalgoDevice() *MalgoDevice {
	return &MalgoDevice{}
}

// SampleRate reports the capture rate in Hz.
func (d *MalgoDevice) SampleRate() int {
	return captureRate
}

// Start acquires the microphone and begins delivering mono float32 blocks to
// onBlock on the backend's audio callback.
func (d *MalgoDevice) Start(onBlock func(samples []float32)) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return classifyCaptureError(err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatF32
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = captureRate
	deviceConfig.Alsa.NoMMap = 1

	deviceCallbacks := malgo.DeviceCallbacks{
		Data: func(_, inputSamples []byte, frameCount uint32) {
			onBlock(decodeF32LE(inputSamples, int(frameCount)))
		},
	}

	device, err := malgo.InitDevice(ctx.Context, deviceConfig, deviceCallbacks)
	if err != nil {
		_ = ctx.Uninit()
		ctx.Free()
		return classifyCaptureError(err)
	}

	if err := device.Start(); err != nil {
		device.Uninit()
		_ = ctx.Uninit()
		ctx.Free()
		return classifyCaptureError(err)
	}

	d.ctx = ctx
	d.device = device
	d.started = true
	return nil
}

// Stop releases the microphone and the backend context.
func (d *MalgoDevice) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started {
		return nil
	}

	d.device.Uninit()
	_ = d.ctx.Uninit()
	d.ctx.Free()

	d.device = nil
	d.ctx = nil
	d.started = false
	return nil
}

// decodeF32LE converts the backend's raw little-endian float32 buffer into
// samples.
func decodeF32LE(input []byte, frameCount int) []float32 {
	samples := make([]float32, 0, frameCount)
	for i := 0; i < frameCount && (i+1)*4 <= len(input); i++ {
		bits := binary.LittleEndian.Uint32(input[i*4:])
		samples = append(samples, math.Float32frombits(bits))
	}
	return samples
}

// classifyCaptureError maps backend failures onto the acquisition error
// kinds. miniaudio only surfaces stringly-typed errors, so this matches on
// message content.
func classifyCaptureError(err error) error {
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "access denied"), strings.Contains(msg, "permission"):
		return fmt.Errorf("%w: %v", ErrPermissionDenied, err)
	case strings.Contains(msg, "busy"), strings.Contains(msg, "in use"):
		return fmt.Errorf("%w: %v", ErrDeviceUnavailable, err)
	case strings.Contains(msg, "no device"), strings.Contains(msg, "does not exist"):
		return fmt.Errorf("%w: %v", ErrNoDevice, err)
	default:
		return err
	}
}
