package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/G-Research/logingester/internal/logingester/model"
)

type Config struct {
	// Base url of the ingester, e.g. http://localhost:8000
	Url   string
	Token string
	// Number of concurrent senders
	Workers int
	// Target number of events per second across all workers.  Zero sends as fast as the workers can.
	Rate float64
	// How long to send for
	Duration    time.Duration
	Source      string
	Environment model.Environment
	Seed        int64
}

func (c Config) validate() error {
	if c.Url == "" {
		return errors.New("url must be set")
	}
	if c.Workers <= 0 {
		return errors.Errorf("workers must be greater than zero, got %d", c.Workers)
	}
	if c.Rate < 0 {
		return errors.Errorf("rate must not be negative, got %f", c.Rate)
	}
	if c.Duration <= 0 {
		return errors.Errorf("duration must be greater than zero, got %s", c.Duration)
	}
	return nil
}

// Result counts what happened to every event sent.  Overloaded counts 503 responses; Failed counts transport errors
// and every other non-202 status.
type Result struct {
	Sent       uint64
	Accepted   uint64
	Overloaded uint64
	Failed     uint64
	Elapsed    time.Duration
}

func (r Result) Rate() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Sent) / r.Elapsed.Seconds()
}

type counters struct {
	sent, accepted, overloaded, failed atomic.Uint64
}

// Run posts generated events to /v1/logs until config.Duration has elapsed or ctx is cancelled.
func Run(ctx context.Context, config Config, client *http.Client) (Result, error) {
	if err := config.validate(); err != nil {
		return Result{}, err
	}
	if client == nil {
		client = http.DefaultClient
	}

	limit := rate.Inf
	burst := config.Workers
	if config.Rate > 0 {
		limit = rate.Limit(config.Rate)
	}
	limiter := rate.NewLimiter(limit, burst)
	generator := NewGenerator(config.Source, config.Environment, config.Seed)
	endpoint := strings.TrimSuffix(config.Url, "/") + "/v1/logs"

	ctx, cancel := context.WithTimeout(ctx, config.Duration)
	defer cancel()

	log.Infof("Sending events to %s from %d workers for %s", endpoint, config.Workers, config.Duration)
	start := time.Now()
	c := &counters{}
	var wg sync.WaitGroup
	for i := 0; i < config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if err := limiter.Wait(ctx); err != nil {
					return
				}
				send(ctx, client, endpoint, config.Token, generator.Next(), c)
			}
		}()
	}
	wg.Wait()

	result := Result{
		Sent:       c.sent.Load(),
		Accepted:   c.accepted.Load(),
		Overloaded: c.overloaded.Load(),
		Failed:     c.failed.Load(),
		Elapsed:    time.Since(start),
	}
	log.Infof("Sent %d events in %s (%.1f/s): %d accepted, %d overloaded, %d failed",
		result.Sent, result.Elapsed, result.Rate(), result.Accepted, result.Overloaded, result.Failed)
	return result, nil
}

func send(ctx context.Context, client *http.Client, endpoint string, token string, event *model.LogEvent, c *counters) {
	body, err := json.Marshal(event)
	if err != nil {
		log.WithError(err).Error("Failed to serialise event")
		c.failed.Add(1)
		return
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		c.failed.Add(1)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := client.Do(req)
	if err != nil {
		// Requests cut short by the end of the run are not counted
		if ctx.Err() != nil {
			return
		}
		c.sent.Add(1)
		c.failed.Add(1)
		log.WithError(err).Debug("Request failed")
		return
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	c.sent.Add(1)
	switch resp.StatusCode {
	case http.StatusAccepted:
		c.accepted.Add(1)
	case http.StatusServiceUnavailable:
		c.overloaded.Add(1)
	default:
		c.failed.Add(1)
		log.Debugf("Unexpected status %d", resp.StatusCode)
	}
}
