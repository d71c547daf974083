package downloader

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"edopro-pics/internal/domain"
	"edopro-pics/internal/imagefile"
)

const (
	fetchChunkSize    = 8192
	pausePollInterval = 500 * time.Millisecond
	tempSuffix        = ".part"
)

type fetchConfig struct {
	timeout    time.Duration // per-attempt read-inactivity budget
	maxRetries int
	maxKBps    int
}

// fetcher downloads single images with bounded retries, exponential backoff,
// optional throughput throttling, and cooperative pause/cancel checks. Cancel
// arrives through the run context; pause through the paused callback.
type fetcher struct {
	client *http.Client
	agent  string
	cfg    fetchConfig
	paused func() bool
}

func newFetcher(userAgent string, cfg fetchConfig, paused func() bool) *fetcher {
	return &fetcher{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				ResponseHeaderTimeout: cfg.timeout,
			},
		},
		agent:  userAgent,
		cfg:    cfg,
		paused: paused,
	}
}

// newRateLimiter builds the throughput cap for one download. The cap is per
// download, not per run, so each Fetch call gets a fresh token bucket.
func (f *fetcher) newRateLimiter() *rate.Limiter {
	if f.cfg.maxKBps <= 0 {
		return nil
	}
	bps := f.cfg.maxKBps * 1024
	burst := bps
	if burst < fetchChunkSize {
		burst = fetchChunkSize
	}
	return rate.NewLimiter(rate.Limit(bps), burst)
}

// Fetch downloads url to outPath, staging through outPath+".part" and renaming
// only after the payload passes integrity validation. On any return the temp
// file is gone: renamed on success, removed otherwise.
func (f *fetcher) Fetch(ctx context.Context, url, outPath string) error {
	temp := outPath + tempSuffix
	limiter := f.newRateLimiter()

	var lastErr error
	for attempt := 1; attempt <= f.cfg.maxRetries; attempt++ {
		if ctx.Err() != nil {
			removeIfPresent(temp)
			return domain.ErrCancelled
		}

		err := f.attempt(ctx, url, temp, limiter)
		if err == nil {
			if err := os.Rename(temp, outPath); err != nil {
				removeIfPresent(temp)
				return fmt.Errorf("finalize download: %w", err)
			}
			return nil
		}

		removeIfPresent(temp)
		if errors.Is(err, domain.ErrCancelled) {
			return domain.ErrCancelled
		}
		lastErr = err

		if attempt < f.cfg.maxRetries {
			backoff := time.Duration(1<<(attempt-1)) * time.Second
			select {
			case <-ctx.Done():
				return domain.ErrCancelled
			case <-time.After(backoff):
			}
		}
	}

	return fmt.Errorf("after %d attempts: %w", f.cfg.maxRetries, lastErr)
}

func (f *fetcher) attempt(ctx context.Context, url, temp string, limiter *rate.Limiter) error {
	// The watchdog cancels the attempt when no bytes (and no pause activity)
	// are observed within the timeout, so a paused transfer is not charged
	// for the time it spends parked.
	attemptCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	activity := make(chan struct{}, 1)
	go f.watchdog(attemptCtx, cancel, activity)

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.agent)
	req.Header.Set("Accept", "image/jpeg")

	resp, err := f.client.Do(req)
	if err != nil {
		return f.classify(ctx, attemptCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status: %s", resp.Status)
	}
	ctype := strings.ToLower(resp.Header.Get("Content-Type"))
	if !strings.HasPrefix(ctype, "image/jpeg") {
		return fmt.Errorf("%w: %s", domain.ErrUnsupportedContentType, ctype)
	}

	out, err := os.Create(temp)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	if err := f.stream(ctx, attemptCtx, resp.Body, out, activity, limiter); err != nil {
		out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if !imagefile.IsValidJPEG(temp) {
		return domain.ErrCorruptImage
	}
	return nil
}

func (f *fetcher) stream(ctx, attemptCtx context.Context, body io.Reader, out *os.File, activity chan<- struct{}, limiter *rate.Limiter) error {
	buf := make([]byte, fetchChunkSize)
	for {
		if ctx.Err() != nil {
			return domain.ErrCancelled
		}
		if err := f.waitWhilePaused(ctx, activity); err != nil {
			return err
		}

		n, readErr := body.Read(buf)
		if n > 0 {
			if _, err := out.Write(buf[:n]); err != nil {
				return fmt.Errorf("write temp file: %w", err)
			}
			ping(activity)
			if limiter != nil {
				if err := limiter.WaitN(attemptCtx, n); err != nil {
					return f.classify(ctx, attemptCtx, err)
				}
			}
		}
		if readErr == io.EOF {
			return nil
		}
		if readErr != nil {
			return f.classify(ctx, attemptCtx, readErr)
		}
	}
}

// waitWhilePaused parks the worker without consuming CPU, re-checking cancel
// on each wake so a cancel during pause is observed within the poll interval.
func (f *fetcher) waitWhilePaused(ctx context.Context, activity chan<- struct{}) error {
	for f.paused != nil && f.paused() {
		select {
		case <-ctx.Done():
			return domain.ErrCancelled
		case <-time.After(pausePollInterval):
		}
		ping(activity)
	}
	return nil
}

func (f *fetcher) watchdog(ctx context.Context, cancel context.CancelFunc, activity <-chan struct{}) {
	timer := time.NewTimer(f.cfg.timeout)
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-activity:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(f.cfg.timeout)
		case <-timer.C:
			cancel()
			return
		}
	}
}

// classify separates a user cancel from a watchdog timeout from a plain
// network failure.
func (f *fetcher) classify(ctx, attemptCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return domain.ErrCancelled
	}
	if attemptCtx.Err() != nil {
		return fmt.Errorf("no data received for %s: %w", f.cfg.timeout, err)
	}
	return err
}

func ping(activity chan<- struct{}) {
	select {
	case activity <- struct{}{}:
	default:
	}
}

func removeIfPresent(path string) {
	_ = os.Remove(path)
}
