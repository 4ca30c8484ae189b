package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/linkgrab/linkgrab/internal/domain"
	"go.uber.org/zap"
)

// HTTPFetcher streams files over HTTP in fixed-size chunks
type HTTPFetcher struct {
	client      *http.Client
	namer       *FileNamer
	userAgent   string
	chunkSize   int
	readTimeout time.Duration
	logger      *zap.Logger
}

// NewHTTPFetcher creates a fetcher. client should come from NewFileClient; namer
// must be shared by every fetcher writing into the same directories.
func NewHTTPFetcher(client *http.Client, namer *FileNamer, httpConfig *domain.HTTPConfig, chunkSize int, logger *zap.Logger) *HTTPFetcher {
	if chunkSize <= 0 {
		chunkSize = 8192
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HTTPFetcher{
		client:      client,
		namer:       namer,
		userAgent:   httpConfig.UserAgent,
		chunkSize:   chunkSize,
		readTimeout: httpConfig.ReadTimeout,
		logger:      logger,
	}
}

// Fetch implements domain.Fetcher. The file is named after the final URL
// following redirects and the Content-Disposition header.
func (f *HTTPFetcher) Fetch(ctx context.Context, file domain.DiscoveredFile, destDir string) (*domain.FetchResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w before request", domain.ErrCancelled)
	}

	reqCtx, wd := newWatchdog(ctx, f.readTimeout)
	defer wd.Stop()

	req, err := newRequest(reqCtx, file.URL, f.userAgent)
	if err != nil {
		return nil, fmt.Errorf("invalid request: %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, f.classify(ctx, reqCtx, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, &domain.HTTPStatusError{URL: file.URL, StatusCode: resp.StatusCode}
	}
	wd.Kick()

	out, err := f.namer.Create(resp.Request.URL.String(), resp.Header.Get("Content-Disposition"), file.Extension, destDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create file: %w", err)
	}

	written, err := f.stream(ctx, reqCtx, wd, resp.Body, out)
	if closeErr := out.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("failed to close file: %w", closeErr)
	}
	if err != nil {
		if rmErr := os.Remove(out.Name()); rmErr != nil {
			f.logger.Warn("Failed to remove partial file",
				zap.String("path", out.Name()),
				zap.Error(rmErr))
		}
		return nil, err
	}

	f.logger.Debug("File written",
		zap.String("url", file.URL),
		zap.String("path", out.Name()),
		zap.Int64("bytes", written))
	return &domain.FetchResult{Path: out.Name(), Bytes: written}, nil
}

// stream copies body to out chunk by chunk, checking ctx before every chunk
func (f *HTTPFetcher) stream(ctx, reqCtx context.Context, wd *watchdog, body io.Reader, out io.Writer) (int64, error) {
	buf := make([]byte, f.chunkSize)
	var written int64
	for {
		if ctx.Err() != nil {
			return written, fmt.Errorf("%w after %d bytes", domain.ErrCancelled, written)
		}
		n, rerr := body.Read(buf)
		if n > 0 {
			wd.Kick()
			if _, werr := out.Write(buf[:n]); werr != nil {
				return written, fmt.Errorf("failed to write file: %w", werr)
			}
			written += int64(n)
		}
		if rerr == io.EOF {
			return written, nil
		}
		if rerr != nil {
			return written, f.classify(ctx, reqCtx, rerr)
		}
	}
}

// classify separates user cancellation and idle timeouts from other transport errors
func (f *HTTPFetcher) classify(ctx, reqCtx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("%w: %v", domain.ErrCancelled, err)
	}
	if errors.Is(context.Cause(reqCtx), os.ErrDeadlineExceeded) {
		return fmt.Errorf("no data received for %s: %w", f.readTimeout, os.ErrDeadlineExceeded)
	}
	return err
}
