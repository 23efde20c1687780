package backend

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

func testRemoteConfig(url string) narrate.RemoteConfig {
	return narrate.RemoteConfig{
		URL:               url,
		APIKey:            "test-key",
		Model:             "tts-1",
		Voice:             "alloy",
		Timeout:           5 * time.Second,
		RequestsPerMinute: 6000,
	}
}

func newTestRemote(t *testing.T, handler http.HandlerFunc) *Remote {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewRemote(testRemoteConfig(srv.URL), log.New(io.Discard))
}

// TestSynthesize tests a successful synthesis request end to end.
func TestSynthesize(t *testing.T) {
	var (
		mu   sync.Mutex
		auth string
		body synthesisRequest
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		auth = req.Header.Get("Authorization")
		_ = json.NewDecoder(req.Body).Decode(&body)
		mu.Unlock()
		_, _ = w.Write([]byte("mp3-bytes"))
	})

	data, err := r.Synthesize(context.Background(), "Hello there.", narrate.SynthesisOptions{Voice: "nova", Rate: 1.0})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(data) != "mp3-bytes" {
		t.Errorf("audio = %q, want %q", data, "mp3-bytes")
	}

	mu.Lock()
	defer mu.Unlock()
	if auth != "Bearer test-key" {
		t.Errorf("Authorization = %q, want %q", auth, "Bearer test-key")
	}
	if body.Model != "tts-1" {
		t.Errorf("model = %q, want %q", body.Model, "tts-1")
	}
	if body.Input != "Hello there." {
		t.Errorf("input = %q, want %q", body.Input, "Hello there.")
	}
	if body.Voice != "nova" {
		t.Errorf("voice = %q, want %q", body.Voice, "nova")
	}
	if body.Speed != 1.0 {
		t.Errorf("speed = %v, want 1.0", body.Speed)
	}
	if body.ResponseFormat != "mp3" {
		t.Errorf("response_format = %q, want %q", body.ResponseFormat, "mp3")
	}
}

// TestSynthesizeDefaultsVoice tests that an empty voice falls back to
// the configured one.
func TestSynthesizeDefaultsVoice(t *testing.T) {
	var (
		mu   sync.Mutex
		body synthesisRequest
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(req.Body).Decode(&body)
		mu.Unlock()
		_, _ = w.Write([]byte("audio"))
	})

	if _, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if body.Voice != "alloy" {
		t.Errorf("voice = %q, want %q", body.Voice, "alloy")
	}
}

// TestSynthesizeTruncatesInput tests that oversized input is cut to
// the API limit without failing the request.
func TestSynthesizeTruncatesInput(t *testing.T) {
	var (
		mu   sync.Mutex
		body synthesisRequest
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		_ = json.NewDecoder(req.Body).Decode(&body)
		mu.Unlock()
		_, _ = w.Write([]byte("audio"))
	})

	long := strings.Repeat("a", maxInputLen+1000)
	if _, err := r.Synthesize(context.Background(), long, narrate.SynthesisOptions{Voice: "alloy"}); err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(body.Input) != maxInputLen {
		t.Errorf("input length = %d, want %d", len(body.Input), maxInputLen)
	}
}

// TestSynthesizeClampsSpeed tests speed clamping to the API range.
func TestSynthesizeClampsSpeed(t *testing.T) {
	tests := []struct {
		name string
		rate float64
		want float64
	}{
		{"above api max", 2.0, speedMax},
		{"below api min", 0.5, speedMin},
		{"zero defaults", 0, 1.0},
		{"in range", 1.1, 1.1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var (
				mu   sync.Mutex
				body synthesisRequest
			)
			r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
				mu.Lock()
				_ = json.NewDecoder(req.Body).Decode(&body)
				mu.Unlock()
				_, _ = w.Write([]byte("audio"))
			})

			opts := narrate.SynthesisOptions{Voice: "alloy", Rate: tt.rate}
			if _, err := r.Synthesize(context.Background(), "Hi.", opts); err != nil {
				t.Fatalf("Synthesize() error = %v", err)
			}

			mu.Lock()
			defer mu.Unlock()
			if body.Speed != tt.want {
				t.Errorf("speed = %v, want %v", body.Speed, tt.want)
			}
		})
	}
}

// TestSynthesizeRateLimited tests that HTTP 429 maps to ErrRateLimited
// without retrying, so the caller can fall back quickly.
func TestSynthesizeRateLimited(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusTooManyRequests)
		_, _ = w.Write([]byte(`{"error": {"message": "rate limit exceeded"}}`))
	})

	_, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if !errors.Is(err, narrate.ErrRateLimited) {
		t.Fatalf("Synthesize() error = %v, want ErrRateLimited", err)
	}
	if !strings.Contains(err.Error(), "rate limit exceeded") {
		t.Errorf("error %q does not carry the API message", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("requests = %d, want 1", calls)
	}
}

// TestSynthesizeRetriesServerErrors tests that 5xx responses are
// retried before giving up.
func TestSynthesizeRetriesServerErrors(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if !errors.Is(err, narrate.ErrSynthesisFailed) {
		t.Fatalf("Synthesize() error = %v, want ErrSynthesisFailed", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 3 {
		t.Errorf("requests = %d, want 3", calls)
	}
}

// TestSynthesizeRecoversAfterServerError tests that a transient 500 is
// survived by the retry.
func TestSynthesizeRecoversAfterServerError(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		_, _ = w.Write([]byte("audio"))
	})

	data, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if err != nil {
		t.Fatalf("Synthesize() error = %v", err)
	}
	if string(data) != "audio" {
		t.Errorf("audio = %q, want %q", data, "audio")
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 2 {
		t.Errorf("requests = %d, want 2", calls)
	}
}

// TestSynthesizeClientError tests that other non-2xx statuses map to
// ErrSynthesisFailed and carry the API error message.
func TestSynthesizeClientError(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message": "input is empty"}`))
	})

	_, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if !errors.Is(err, narrate.ErrSynthesisFailed) {
		t.Fatalf("Synthesize() error = %v, want ErrSynthesisFailed", err)
	}
	if !strings.Contains(err.Error(), "input is empty") {
		t.Errorf("error %q does not carry the API message", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 1 {
		t.Errorf("requests = %d, want 1", calls)
	}
}

// TestSynthesizeUnauthorized tests that credential rejections map to
// ErrBackendUnavailable.
func TestSynthesizeUnauthorized(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "invalid api key"}}`))
	})

	_, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if !errors.Is(err, narrate.ErrBackendUnavailable) {
		t.Fatalf("Synthesize() error = %v, want ErrBackendUnavailable", err)
	}
}

// TestSynthesizeMissingKey tests that a missing credential fails
// before any request is made.
func TestSynthesizeMissingKey(t *testing.T) {
	var (
		mu    sync.Mutex
		calls int
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
	}))
	t.Cleanup(srv.Close)

	cfg := testRemoteConfig(srv.URL)
	cfg.APIKey = ""
	r := NewRemote(cfg, log.New(io.Discard))

	if r.Available() {
		t.Error("Available() = true without an API key")
	}

	_, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if !errors.Is(err, narrate.ErrBackendUnavailable) {
		t.Fatalf("Synthesize() error = %v, want ErrBackendUnavailable", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if calls != 0 {
		t.Errorf("requests = %d, want 0", calls)
	}
}

// TestSynthesizeUnknownVoice tests the unsupported voice error.
func TestSynthesizeUnknownVoice(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		_, _ = w.Write([]byte("audio"))
	})

	_, err := r.Synthesize(context.Background(), "Hi.", narrate.SynthesisOptions{Voice: "bogus"})
	if !errors.Is(err, narrate.ErrUnsupportedVoice) {
		t.Fatalf("Synthesize() error = %v, want ErrUnsupportedVoice", err)
	}
}

// TestSynthesizeContextCancelled tests that a cancelled context aborts
// the request.
func TestSynthesizeContextCancelled(t *testing.T) {
	r := newTestRemote(t, func(w http.ResponseWriter, req *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_, _ = w.Write([]byte("audio"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := r.Synthesize(ctx, "Hi.", narrate.SynthesisOptions{Voice: "alloy"})
	if err == nil {
		t.Fatal("Synthesize() error = nil, want cancellation error")
	}
}

// TestRemoteVoices tests the static voice listing.
func TestRemoteVoices(t *testing.T) {
	r := NewRemote(testRemoteConfig("http://localhost"), log.New(io.Discard))

	voices, err := r.Voices(context.Background())
	if err != nil {
		t.Fatalf("Voices() error = %v", err)
	}
	if len(voices) != len(remoteVoices) {
		t.Fatalf("len(voices) = %d, want %d", len(voices), len(remoteVoices))
	}

	found := false
	for _, v := range voices {
		if v.ID == "alloy" {
			found = true
			if v.Language != "en-US" {
				t.Errorf("alloy Language = %q, want %q", v.Language, "en-US")
			}
		}
	}
	if !found {
		t.Error("voice alloy missing from listing")
	}
}
