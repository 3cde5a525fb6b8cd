// ABOUTME: Tests for audio types
// ABOUTME: Tests frame layout, flattening and sample conversion functions
package audio

import (
	"testing"
	"unsafe"
)

func TestFrameLayout(t *testing.T) {
	if size := unsafe.Sizeof(Frame{}); size != BytesPerFrame {
		t.Fatalf("expected Frame size %d, got %d", BytesPerFrame, size)
	}
	if off := unsafe.Offsetof(Frame{}.R); off != 4 {
		t.Fatalf("expected R at offset 4, got %d", off)
	}
}

func TestSamplesInterleaves(t *testing.T) {
	frames := []Frame{{L: 1, R: 2}, {L: 3, R: 4}, {L: 5, R: 6}}
	samples := Samples(frames)

	expected := []float32{1, 2, 3, 4, 5, 6}
	if len(samples) != len(expected) {
		t.Fatalf("expected %d samples, got %d", len(expected), len(samples))
	}
	for i := range expected {
		if samples[i] != expected[i] {
			t.Errorf("sample %d: expected %v, got %v", i, expected[i], samples[i])
		}
	}

	// Aliases the frames
	frames[1].L = 9
	if samples[2] != 9 {
		t.Errorf("expected samples to alias frames, got %v", samples[2])
	}
}

func TestSamplesEmpty(t *testing.T) {
	if s := Samples(nil); s != nil {
		t.Errorf("expected nil, got %v", s)
	}
	if b := Bytes([]Frame{}); b != nil {
		t.Errorf("expected nil, got %v", b)
	}
}

func TestBytesLength(t *testing.T) {
	frames := make([]Frame, 10)
	if n := len(Bytes(frames)); n != 10*BytesPerFrame {
		t.Errorf("expected %d bytes, got %d", 10*BytesPerFrame, n)
	}
	if n := len(SamplesAsBytes(Samples(frames))); n != 10*BytesPerFrame {
		t.Errorf("expected %d bytes, got %d", 10*BytesPerFrame, n)
	}
}

func TestSilence(t *testing.T) {
	frames := []Frame{{L: 1, R: 1}, {L: -1, R: 0.5}}
	Silence(frames)
	for i, f := range frames {
		if f != (Frame{}) {
			t.Errorf("frame %d not silent: %+v", i, f)
		}
	}
}

func TestPeak(t *testing.T) {
	frames := []Frame{{L: 0.25, R: -0.75}, {L: -0.5, R: 0.1}}
	l, r := Peak(frames)
	if l != 0.5 {
		t.Errorf("expected left peak 0.5, got %v", l)
	}
	if r != 0.75 {
		t.Errorf("expected right peak 0.75, got %v", r)
	}
}

func TestSampleToInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    float32
		expected int16
	}{
		{"zero", 0, 0},
		{"half", 0.5, 16383},
		{"negative half", -0.5, -16383},
		{"clip high", 1.5, 32767},
		{"clip low", -1.5, -32768},
		{"full scale", 1, 32767},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleToInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %d, got %d", tt.expected, result)
			}
		})
	}
}

func TestSampleFromInt16(t *testing.T) {
	tests := []struct {
		name     string
		input    int16
		expected float32
	}{
		{"zero", 0, 0},
		{"min", -32768, -1},
		{"half", 16384, 0.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := SampleFromInt16(tt.input)
			if result != tt.expected {
				t.Errorf("expected %v, got %v", tt.expected, result)
			}
		})
	}
}

func TestFormat(t *testing.T) {
	f := Stereo(48000)
	if f.Channels != 2 {
		t.Errorf("expected 2 channels, got %d", f.Channels)
	}
	if f.BytesPerSecond() != 48000*8 {
		t.Errorf("expected %d bytes/s, got %d", 48000*8, f.BytesPerSecond())
	}
}
