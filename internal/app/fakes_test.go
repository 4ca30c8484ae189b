package app

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/linkgrab/linkgrab/internal/domain"
)

// fakeDiscoverer returns a fixed page of URLs and records every call
type fakeDiscoverer struct {
	table *domain.CategoryTable
	urls  []string
	err   error
	// block, when set, holds every call until it is closed or ctx ends
	block   chan struct{}
	started chan struct{}

	mu    sync.Mutex
	calls int
}

func newFakeDiscoverer(urls ...string) *fakeDiscoverer {
	return &fakeDiscoverer{table: domain.DefaultCategoryTable(), urls: urls}
}

func (d *fakeDiscoverer) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

func (d *fakeDiscoverer) Discover(ctx context.Context, pageURL, filter string, emit func(domain.DiscoveryEvent)) (*domain.DiscoveryResult, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if emit == nil {
		emit = func(domain.DiscoveryEvent) {}
	}
	emit(domain.DiscoveryEvent{Kind: domain.DiscoveryStatus, Message: "Connecting to: " + pageURL})

	if d.started != nil {
		select {
		case d.started <- struct{}{}:
		default:
		}
	}
	if d.block != nil {
		select {
		case <-d.block:
		case <-ctx.Done():
			return nil, &domain.DiscoveryError{URL: pageURL, Cause: fmt.Errorf("%w: %v", domain.ErrCancelled, ctx.Err())}
		}
	}
	if d.err != nil {
		return nil, &domain.DiscoveryError{URL: pageURL, Cause: d.err}
	}

	result := &domain.DiscoveryResult{
		Page:     domain.PageInfo{URL: pageURL, FinalURL: pageURL, StatusCode: 200},
		Category: filter,
	}
	for _, u := range d.urls {
		f := domain.NewDiscoveredFile(u, domain.ResolveExtension(u), d.table, filter)
		result.Files = append(result.Files, f)
		emit(domain.DiscoveryEvent{Kind: domain.DiscoveryFound, Message: "Found: " + u, File: &f})
	}
	emit(domain.DiscoveryEvent{
		Kind:    domain.DiscoveryCompleted,
		Message: fmt.Sprintf("Discovery finished. Found %d files.", len(result.Files)),
		Result:  result,
	})
	return result, nil
}

// fakeFetcher writes the URL into a file named after its last path element
// unless handle returns a non-nil result or error for it
type fakeFetcher struct {
	handle func(ctx context.Context, file domain.DiscoveredFile) (bool, error)

	mu    sync.Mutex
	calls []string
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeFetcher) Fetch(ctx context.Context, file domain.DiscoveredFile, destDir string) (*domain.FetchResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, file.URL)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w before request", domain.ErrCancelled)
	}
	if f.handle != nil {
		if handled, err := f.handle(ctx, file); handled {
			return nil, err
		}
	}

	target := filepath.Join(destDir, path.Base(file.URL))
	if err := os.WriteFile(target, []byte(file.URL), 0644); err != nil {
		return nil, err
	}
	return &domain.FetchResult{Path: target, Bytes: int64(len(file.URL))}, nil
}

func filesFor(urls ...string) []domain.DiscoveredFile {
	table := domain.DefaultCategoryTable()
	files := make([]domain.DiscoveredFile, 0, len(urls))
	for _, u := range urls {
		files = append(files, domain.NewDiscoveredFile(u, domain.ResolveExtension(u), table, domain.AllFileTypes))
	}
	return files
}
