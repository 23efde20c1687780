// Package backend implements the speech synthesis backends: a remote
// HTTP service and the platform speech engine.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/yamunaarun/narrato-audio-book/narrate"
)

const (
	// maxInputLen is the longest input the synthesis API accepts.
	// Longer text is truncated silently; chunking keeps real requests
	// far below this.
	maxInputLen = 5000

	// speedMin and speedMax bound the speed parameter of the synthesis
	// API. Engine rates outside this range are clamped at the request
	// boundary.
	speedMin = 0.7
	speedMax = 1.2
)

// remoteVoices are the voices the synthesis API offers. The API has no
// listing endpoint.
var remoteVoices = []narrate.Voice{
	{ID: "alloy", Name: "Alloy", Language: "en-US", Gender: "neutral"},
	{ID: "echo", Name: "Echo", Language: "en-US", Gender: "male"},
	{ID: "fable", Name: "Fable", Language: "en-GB", Gender: "male"},
	{ID: "onyx", Name: "Onyx", Language: "en-US", Gender: "male"},
	{ID: "nova", Name: "Nova", Language: "en-US", Gender: "female"},
	{ID: "shimmer", Name: "Shimmer", Language: "en-US", Gender: "female"},
}

// Remote synthesizes speech through an HTTP API shaped like the OpenAI
// speech endpoint. Requests are paced by a client-side limiter and
// transient failures are retried with exponential backoff.
type Remote struct {
	cfg     narrate.RemoteConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewRemote creates a remote backend from the given configuration.
func NewRemote(cfg narrate.RemoteConfig, logger *log.Logger) *Remote {
	if logger == nil {
		logger = log.Default()
	}

	rpm := cfg.RequestsPerMinute
	if rpm < 1 {
		rpm = 1
	}

	return &Remote{
		cfg:     cfg,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(rpm)), 2),
		logger:  logger,
	}
}

// Name returns the backend name.
func (r *Remote) Name() string { return "openai" }

// Available reports whether the backend is configured well enough to
// try a request.
func (r *Remote) Available() bool {
	return r.cfg.URL != "" && r.cfg.APIKey != ""
}

// Voices returns the voices the API offers.
func (r *Remote) Voices(ctx context.Context) ([]narrate.Voice, error) {
	out := make([]narrate.Voice, len(remoteVoices))
	copy(out, remoteVoices)
	return out, nil
}

type synthesisRequest struct {
	Model          string  `json:"model"`
	Input          string  `json:"input"`
	Voice          string  `json:"voice"`
	Speed          float64 `json:"speed"`
	ResponseFormat string  `json:"response_format"`
}

// Synthesize converts text to MPEG audio. Input over the API limit is
// truncated and the speed is clamped to the API's accepted range.
func (r *Remote) Synthesize(ctx context.Context, text string, opts narrate.SynthesisOptions) ([]byte, error) {
	if r.cfg.APIKey == "" {
		return nil, fmt.Errorf("api key not set: %w", narrate.ErrBackendUnavailable)
	}

	voice := opts.Voice
	if voice == "" {
		voice = r.cfg.Voice
	}
	if !knownVoice(voice) {
		return nil, fmt.Errorf("voice %q: %w", voice, narrate.ErrUnsupportedVoice)
	}

	input := truncateRunes(text, maxInputLen)
	speed := clampSpeed(opts.Rate)

	payload, err := json.Marshal(synthesisRequest{
		Model:          r.cfg.Model,
		Input:          input,
		Voice:          voice,
		Speed:          speed,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", narrate.ErrSynthesisFailed, err)
	}

	if err := r.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("request pacing: %w", err)
	}

	r.logger.Debug("synthesizing chunk",
		"chars", utf8.RuneCountInString(input),
		"voice", voice,
		"speed", speed)

	var audio []byte
	operation := func() error {
		data, err := r.doRequest(ctx, payload)
		if err != nil {
			return err
		}
		audio = data
		return nil
	}
	if err := backoff.Retry(operation, newRequestBackoff(ctx)); err != nil {
		return nil, err
	}
	return audio, nil
}

// doRequest performs one synthesis request. Failures a retry cannot
// fix come back wrapped in backoff.Permanent.
func (r *Remote) doRequest(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.cfg.URL, bytes.NewReader(payload))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("%w: build request: %v", narrate.ErrSynthesisFailed, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+r.cfg.APIKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", narrate.ErrBackendUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("%w: read audio: %v", narrate.ErrSynthesisFailed, err)
		}
		return data, nil

	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", narrate.ErrRateLimited, apiMessage(resp.Body)))

	case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", narrate.ErrBackendUnavailable, apiMessage(resp.Body)))

	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("%w: server status %d", narrate.ErrSynthesisFailed, resp.StatusCode)

	default:
		return nil, backoff.Permanent(fmt.Errorf("%w: %s", narrate.ErrSynthesisFailed, apiMessage(resp.Body)))
	}
}

// newRequestBackoff retries transient failures a couple of times so a
// blip does not force a chunk onto the fallback path.
func newRequestBackoff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 250 * time.Millisecond
	b.MaxInterval = 2 * time.Second
	return backoff.WithContext(backoff.WithMaxRetries(b, 2), ctx)
}

// apiMessage extracts the error detail from a failed response. The API
// wraps it either as {"message": ...} or {"error": {"message": ...}}.
func apiMessage(r io.Reader) string {
	body, err := io.ReadAll(io.LimitReader(r, 4096))
	if err != nil || len(body) == 0 {
		return "no error detail"
	}

	var payload struct {
		Message string `json:"message"`
		Error   struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if payload.Error.Message != "" {
			return payload.Error.Message
		}
		if payload.Message != "" {
			return payload.Message
		}
	}

	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func knownVoice(id string) bool {
	for _, v := range remoteVoices {
		if v.ID == id {
			return true
		}
	}
	return false
}

func truncateRunes(s string, limit int) string {
	if utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit])
}

func clampSpeed(rate float64) float64 {
	if rate == 0 {
		return 1.0
	}
	if rate < speedMin {
		return speedMin
	}
	if rate > speedMax {
		return speedMax
	}
	return rate
}
