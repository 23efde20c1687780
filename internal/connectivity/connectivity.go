// Package connectivity tracks whether the host can reach the network.
//
// A background probe drives a single cached boolean that the playback
// engine polls to route chunks between the remote and local voice
// backends. Polling never touches the network.
package connectivity

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
)

// Config controls the probe endpoint and cadence.
type Config struct {
	// URL receives a HEAD request per probe. Any HTTP response counts
	// as online; only transport errors count as offline.
	URL string `yaml:"url" env:"NARRATO_PROBE_URL"`

	// Interval between probes while the host is online. Failed probes
	// are retried on a faster, growing schedule capped at this value.
	Interval time.Duration `yaml:"interval" env:"NARRATO_PROBE_INTERVAL" envDefault:"30s"`

	// Timeout for a single probe request.
	Timeout time.Duration `yaml:"timeout" env:"NARRATO_PROBE_TIMEOUT" envDefault:"3s"`
}

// DefaultConfig returns the default probe configuration.
func DefaultConfig() Config {
	return Config{
		URL:      "https://connectivitycheck.gstatic.com/generate_204",
		Interval: 30 * time.Second,
		Timeout:  3 * time.Second,
	}
}

// Validate checks if the probe configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("probe URL cannot be empty")
	}

	if c.Interval <= 0 {
		return fmt.Errorf("interval must be positive, got %v", c.Interval)
	}

	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %v", c.Timeout)
	}

	return nil
}

// Monitor probes an HTTP endpoint in the background and caches the
// outcome. Online reports the cached value and never blocks.
type Monitor struct {
	cfg    Config
	client *http.Client
	logger *log.Logger

	online atomic.Bool

	startOnce sync.Once
	closeOnce sync.Once
	done      chan struct{}
	wg        sync.WaitGroup
}

// New creates a Monitor. The host is assumed online until the first
// probe says otherwise, so an optimistic caller pays at most one
// failed synthesis attempt before fallback kicks in. A nil logger
// discards output.
func New(cfg Config, logger *log.Logger) *Monitor {
	if logger == nil {
		logger = log.New(io.Discard)
	}

	m := &Monitor{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
		done:   make(chan struct{}),
	}
	m.online.Store(true)
	return m
}

// Online reports the outcome of the most recent probe.
func (m *Monitor) Online() bool {
	return m.online.Load()
}

// Start launches the probe loop. The first probe fires immediately.
// Calling Start again is a no-op.
func (m *Monitor) Start() {
	m.startOnce.Do(func() {
		m.wg.Add(1)
		go m.run()
	})
}

// Close stops the probe loop and waits for it to exit. Safe to call
// more than once, and without a prior Start.
func (m *Monitor) Close() {
	m.closeOnce.Do(func() {
		close(m.done)
	})
	m.wg.Wait()
}

// Probe runs a single check right away and updates the cached state.
// The loop uses it internally; callers can force a refresh, for
// example just before opening a player.
func (m *Monitor) Probe(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, m.cfg.Timeout)
	defer cancel()

	online, err := m.check(ctx)
	was := m.online.Swap(online)
	switch {
	case online && !was:
		m.logger.Info("connectivity restored", "url", m.cfg.URL)
	case !online && was:
		m.logger.Warn("connectivity lost", "url", m.cfg.URL, "err", err)
	}
	return online
}

func (m *Monitor) run() {
	defer m.wg.Done()

	retry := newProbeBackoff(m.cfg.Interval)
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-m.done:
			return
		case <-timer.C:
		}

		if m.Probe(context.Background()) {
			retry.Reset()
			timer.Reset(m.cfg.Interval)
		} else {
			timer.Reset(retry.NextBackOff())
		}
	}
}

// check reports whether the probe endpoint answered at all. Any HTTP
// status proves the network path works; only transport errors mean
// offline.
func (m *Monitor) check(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, m.cfg.URL, nil)
	if err != nil {
		return false, err
	}

	resp, err := m.client.Do(req)
	if err != nil {
		return false, err
	}
	resp.Body.Close()
	return true, nil
}

// newProbeBackoff builds the retry schedule used while offline: start
// at a quarter of the steady interval and grow up to it, so recovery
// is noticed quickly without hammering the endpoint.
func newProbeBackoff(ceiling time.Duration) *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ceiling / 4
	b.MaxInterval = ceiling
	b.MaxElapsedTime = 0
	return b
}
