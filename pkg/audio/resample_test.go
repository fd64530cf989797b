package audio

import (
	"encoding/binary"
	"math"
	"testing"
)

func TestDownsampleIdentityAtOrBelowTarget(t *testing.T) {
	samples := []float32{0.1, -0.2, 0.3, -0.4}

	for _, rate := range []int{8000, 16000} {
		out := DownsampleTo16k(samples, rate)
		if len(out) != len(samples) {
			t.Errorf("Expected identity at %d Hz, got length %d", rate, len(out))
		}
		for i := range samples {
			if out[i] != samples[i] {
				t.Errorf("Expected sample %d unchanged at %d Hz, got %f", i, rate, out[i])
			}
		}
	}
}

func TestDownsampleOutputLength(t *testing.T) {
	cases := []struct {
		rate   int
		length int
	}{
		{48000, 1024},
		{44100, 1024},
		{48000, 333},
		{22050, 512},
	}

	for _, tc := range cases {
		samples := make([]float32, tc.length)
		ratio := float64(tc.rate) / float64(TargetRate)
		want := int(float64(tc.length) / ratio)

		got := DownsampleTo16k(samples, tc.rate)
		if len(got) != want {
			t.Errorf("rate %d length %d: expected %d output samples, got %d",
				tc.rate, tc.length, want, len(got))
		}

		gotNearest := downsampleNearest16k(samples, tc.rate)
		if len(gotNearest) != want {
			t.Errorf("rate %d length %d: expected %d nearest-neighbor samples, got %d",
				tc.rate, tc.length, want, len(gotNearest))
		}
	}
}

func TestDownsampleConstantSignal(t *testing.T) {
	// Interpolating between equal neighbors must not invent new values.
	samples := make([]float32, 1024)
	for i := range samples {
		samples[i] = 0.5
	}

	for _, out := range DownsampleTo16k(samples, 48000) {
		if out != 0.5 {
			t.Fatalf("Expected constant 0.5, got %f", out)
		}
	}
}

func TestDownsampleInterpolates(t *testing.T) {
	// A 44.1 kHz ramp hits fractional source positions, so linear
	// interpolation and nearest-neighbor must diverge while both follow the
	// ramp.
	samples := make([]float32, 441)
	for i := range samples {
		samples[i] = float32(i)
	}

	linear := DownsampleTo16k(samples, 44100)
	nearest := downsampleNearest16k(samples, 44100)

	ratio := 44100.0 / float64(TargetRate)
	diverged := false
	for i := range linear {
		want := float64(i) * ratio
		if math.Abs(float64(linear[i])-want) > 1 {
			t.Errorf("sample %d: expected about %f, got %f", i, want, linear[i])
		}
		if linear[i] != nearest[i] {
			diverged = true
		}
	}
	if !diverged {
		t.Error("Expected linear interpolation to differ from nearest-neighbor on fractional positions")
	}
}

func TestEncodePCM16Extremes(t *testing.T) {
	cases := []struct {
		in   float32
		want int16
	}{
		{1.0, 32767},
		{-1.0, -32768},
		{0.0, 0},
		{2.0, 32767},   // clamped
		{-2.0, -32768}, // clamped
		{0.5, 16384},   // round(0.5*32767)
		{-0.5, -16384}, // round(-0.5*32768)
	}

	for _, tc := range cases {
		out := EncodePCM16([]float32{tc.in})
		if len(out) != 2 {
			t.Fatalf("Expected 2 bytes, got %d", len(out))
		}
		got := int16(binary.LittleEndian.Uint16(out))
		if got != tc.want {
			t.Errorf("input %f: expected %d, got %d", tc.in, tc.want, got)
		}
	}
}

func TestEncodePCM16WithinOneLSB(t *testing.T) {
	for s := float32(-1); s <= 1; s += 0.0625 {
		out := EncodePCM16([]float32{s})
		got := float64(int16(binary.LittleEndian.Uint16(out)))

		scale := 32767.0
		if s < 0 {
			scale = 32768.0
		}
		if math.Abs(got-float64(s)*scale) > 1 {
			t.Errorf("sample %f: encoded %f, off by more than 1 LSB", s, got)
		}
	}
}

func TestEncodePCM16LittleEndian(t *testing.T) {
	out := EncodePCM16([]float32{1.0})
	if out[0] != 0xFF || out[1] != 0x7F {
		t.Errorf("Expected little-endian 0x7FFF, got % X", out)
	}
}
