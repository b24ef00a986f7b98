package sepio

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"audiosep/pkg/pcm"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	sr := 8000
	n := sr / 10
	left := make([]float64, n)
	right := make([]float64, n)
	for i := 0; i < n; i++ {
		left[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/float64(sr))
		right[i] = 0.5 * math.Sin(2*math.Pi*880*float64(i)/float64(sr))
	}
	buf := pcm.New([][]float64{left, right}, sr)

	path := filepath.Join(t.TempDir(), "out.wav")
	if err := Save(path, buf); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("expected output file, got %v", err)
	}

	got, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.SampleRate() != sr {
		t.Fatalf("sample rate = %d, want %d", got.SampleRate(), sr)
	}
	if got.NumChannels() != 2 {
		t.Fatalf("channels = %d, want 2", got.NumChannels())
	}
	if got.NumSamples() != n {
		t.Fatalf("samples = %d, want %d", got.NumSamples(), n)
	}

	gotLeft, _ := got.Channel(1)
	for i := 0; i < n; i++ {
		if math.Abs(gotLeft[i]-left[i]) > 1.0/32767 {
			t.Fatalf("sample %d: got %v, want %v (16-bit quantization tolerance exceeded)", i, gotLeft[i], left[i])
		}
	}
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.flac")
	if err := os.WriteFile(path, []byte("not audio"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected an error for an unsupported extension")
	}
}
