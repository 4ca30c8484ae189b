package infrastructure

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/linkgrab/linkgrab/internal/domain"
)

// NewPageClient returns the client used to fetch pages for discovery.
// The whole request, body included, is bounded by PageTimeout.
func NewPageClient(cfg *domain.HTTPConfig) *http.Client {
	client := newClient(cfg)
	client.Timeout = cfg.PageTimeout
	return client
}

// NewFileClient returns the client used to stream files. It has no overall
// timeout; slow bodies are bounded per read by an idle watchdog instead.
func NewFileClient(cfg *domain.HTTPConfig) *http.Client {
	return newClient(cfg)
}

func newClient(cfg *domain.HTTPConfig) *http.Client {
	dialer := &net.Dialer{
		Timeout:   cfg.ConnectTimeout,
		KeepAlive: 30 * time.Second,
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = dialer.DialContext
	transport.TLSHandshakeTimeout = cfg.ConnectTimeout
	transport.ResponseHeaderTimeout = cfg.ReadTimeout

	maxRedirects := cfg.MaxRedirects
	return &http.Client{
		Transport: transport,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}
}

// newRequest builds a GET request carrying the configured user agent
func newRequest(ctx context.Context, rawURL, userAgent string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "*/*")
	return req, nil
}

// watchdog cancels its context when Kick is not called within timeout
type watchdog struct {
	cancel  context.CancelCauseFunc
	timer   *time.Timer
	timeout time.Duration
}

func newWatchdog(parent context.Context, timeout time.Duration) (context.Context, *watchdog) {
	ctx, cancel := context.WithCancelCause(parent)
	wd := &watchdog{cancel: cancel, timeout: timeout}
	if timeout > 0 {
		wd.timer = time.AfterFunc(timeout, func() {
			cancel(os.ErrDeadlineExceeded)
		})
	}
	return ctx, wd
}

// Kick postpones the deadline by another timeout
func (wd *watchdog) Kick() {
	if wd.timer != nil {
		wd.timer.Reset(wd.timeout)
	}
}

// Stop releases the timer and the context
func (wd *watchdog) Stop() {
	if wd.timer != nil {
		wd.timer.Stop()
	}
	wd.cancel(nil)
}
