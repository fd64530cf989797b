package audio

import (
	"encoding/binary"
	"math"
)

// TargetRate is the sample rate the speech recognizer expects.
const TargetRate = 16000

// DownsampleTo16k reduces a block of mono float samples from captureRate down
// to 16 kHz using linear interpolation. Input at or below 16 kHz is returned
// unchanged; no upsampling is performed.
func DownsampleTo16k(samples []float32, captureRate int) []float32 {
	ratio := float64(captureRate) / float64(TargetRate)
	if ratio <= 1 {
		return samples
	}

	out := make([]float32, int(float64(len(samples))/ratio))
	for i := range out {
		pos := float64(i) * ratio
		idx := int(pos)
		frac := float32(pos - float64(idx))
		if idx+1 < len(samples) {
			out[i] = samples[idx]*(1-frac) + samples[idx+1]*frac
		} else {
			out[i] = samples[idx]
		}
	}
	return out
}

// downsampleNearest16k is the nearest-neighbor variant. Linear interpolation
// aliases less, so DownsampleTo16k is what the pipeline uses.
func downsampleNearest16k(samples []float32, captureRate int) []float32 {
	ratio := float64(captureRate) / float64(TargetRate)
	if ratio <= 1 {
		return samples
	}

	out := make([]float32, int(float64(len(samples))/ratio))
	for i := range out {
		out[i] = samples[int(float64(i)*ratio)]
	}
	return out
}

// EncodePCM16 converts float samples to little-endian signed 16-bit PCM.
// Samples outside [-1,1] are clamped. Scaling is asymmetric so both ends of
// the signed range are reachable exactly.
func EncodePCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		if s > 1 {
			s = 1
		} else if s < -1 {
			s = -1
		}

		var v int16
		if s < 0 {
			v = int16(math.Round(float64(s) * 32768))
		} else {
			v = int16(math.Round(float64(s) * 32767))
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}
