package main

import (
	"bytes"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"

	"audiosep/internal/config"
	"audiosep/pkg/duet"
	"audiosep/pkg/pcm"
	"audiosep/pkg/repet"
	"audiosep/pkg/sepio"
	"audiosep/pkg/stft"
)

const maxUploadSize = 50 << 20 // 50 MB

func errUnknownAlgorithm(name string) error {
	return fmt.Errorf("unknown algorithm %q", name)
}

// corsMiddleware adds CORS headers so a browser-based client on another
// origin can call this API, same policy as the noise-cancellation server's
// handler of the same name.
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// handleSeparate handles POST /separate?algorithm=duet|repet.
// Expects a multipart form with a "file" field containing a WAV file.
// Responds with a single WAV (repet) or a zip-free multi-part set of WAVs
// is out of scope for this demo server; for duet with more than one
// source it returns only the first source, matching a minimal REST
// surface rather than multipart responses.
func handleSeparate(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			log.Printf("separate: failed to parse form: %v", err)
			http.Error(w, "failed to parse upload", http.StatusBadRequest)
			return
		}

		file, _, err := r.FormFile("file")
		if err != nil {
			log.Printf("separate: no file in request: %v", err)
			http.Error(w, "no file uploaded", http.StatusBadRequest)
			return
		}
		defer file.Close()

		data, err := io.ReadAll(file)
		if err != nil {
			log.Printf("separate: failed to read file: %v", err)
			http.Error(w, "failed to read file", http.StatusInternalServerError)
			return
		}

		mix, err := sepio.DecodeWAV(bytes.NewReader(data))
		if err != nil {
			log.Printf("separate: invalid WAV: %v", err)
			http.Error(w, "invalid WAV file: "+err.Error(), http.StatusBadRequest)
			return
		}

		algorithm := r.URL.Query().Get("algorithm")
		if algorithm == "" {
			algorithm = "duet"
		}

		log.Printf("separate: running %s on %d channel(s), %d samples at %d Hz",
			algorithm, mix.NumChannels(), mix.NumSamples(), mix.SampleRate())

		result, err := separate(algorithm, mix, cfg)
		if err != nil {
			log.Printf("separate: %v", err)
			http.Error(w, "separation failed: "+err.Error(), http.StatusUnprocessableEntity)
			return
		}

		body, err := encodeWAVBytes(result)
		if err != nil {
			log.Printf("separate: failed to encode result: %v", err)
			http.Error(w, "failed to encode result", http.StatusInternalServerError)
			return
		}

		log.Printf("separate: returning %d bytes", len(body))
		w.Header().Set("Content-Type", "audio/wav")
		w.Header().Set("Content-Disposition", "attachment; filename=\"separated.wav\"")
		w.Write(body)
	}
}

func separate(algorithm string, mix *pcm.Buffer, cfg *config.Config) (*pcm.Buffer, error) {
	windowType, err := cfg.STFT.WindowType()
	if err != nil {
		return nil, err
	}
	stftParams := stft.Params{
		L:      int(cfg.STFT.WindowSeconds * float64(mix.SampleRate())),
		H:      int(cfg.STFT.HopSeconds * float64(mix.SampleRate())),
		Window: windowType,
		N:      cfg.STFT.MinFFT,
	}

	switch algorithm {
	case "duet":
		p := duet.Params{
			NumSources:   cfg.Duet.NumSources,
			AlphaMin:     cfg.Duet.AlphaMin, AlphaMax: cfg.Duet.AlphaMax, AlphaBins: cfg.Duet.AlphaBins,
			DeltaMin: cfg.Duet.DeltaMin, DeltaMax: cfg.Duet.DeltaMax, DeltaBins: cfg.Duet.DeltaBins,
			Threshold:    cfg.Duet.Threshold,
			AlphaMinDist: cfg.Duet.AlphaMinDist, DeltaMinDist: cfg.Duet.DeltaMinDist,
			STFT: stftParams,
		}
		res, err := duet.Separate(mix, p)
		if err != nil {
			return nil, err
		}
		return res.Sources[0], nil

	case "repet":
		variant := repet.Original
		if cfg.Repet.Variant == "sim" {
			variant = repet.SIM
		}
		sr := mix.SampleRate()
		p := repet.Params{
			Variant:             variant,
			STFT:                stftParams,
			HighPassCutoffHz:    cfg.Repet.HighPassCutoffHz,
			MinPeriodFrames:     secondsToFrames(cfg.Repet.MinPeriodSeconds, sr, stftParams.H),
			MaxPeriodFrames:     secondsToFrames(cfg.Repet.MaxPeriodSeconds, sr, stftParams.H),
			SimilarityThreshold: cfg.Repet.SimilarityThreshold,
			MinDistanceFrames:   secondsToFrames(cfg.Repet.MinDistanceSeconds, sr, stftParams.H),
			MaxRepeatingFrames:  cfg.Repet.MaxRepeatingFrames,
		}
		res, err := repet.Separate(mix, p)
		if err != nil {
			return nil, err
		}
		return res.Foreground, nil

	default:
		return nil, errUnknownAlgorithm(algorithm)
	}
}

func secondsToFrames(seconds float64, sampleRate, hop int) int {
	if seconds <= 0 || hop <= 0 {
		return 0
	}
	n := int(seconds * float64(sampleRate) / float64(hop))
	if n < 1 {
		n = 1
	}
	return n
}

// encodeWAVBytes round-trips through a temp file since beep/wav's encoder
// needs an io.WriteSeeker to patch its RIFF/data chunk sizes after writing,
// and there's no in-memory seekable buffer in the stack worth reaching for
// here.
func encodeWAVBytes(buf *pcm.Buffer) ([]byte, error) {
	tmp, err := os.CreateTemp("", "sepserver-*.wav")
	if err != nil {
		return nil, err
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if err := sepio.EncodeWAV(tmp, buf); err != nil {
		return nil, err
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(tmp)
}
