package domain

import "context"

// Discoverer fetches a page and extracts candidate files from it
type Discoverer interface {
	// Discover returns the full, deduplicated candidate set of pageURL with
	// Selected preset for the filter category. emit may be nil.
	Discover(ctx context.Context, pageURL, filter string, emit func(DiscoveryEvent)) (*DiscoveryResult, error)
}

// Fetcher streams one file into a destination directory
type Fetcher interface {
	// Fetch downloads file into destDir. It returns an error wrapping ErrCancelled
	// when ctx is cancelled mid-transfer, after removing the partial file.
	Fetch(ctx context.Context, file DiscoveredFile, destDir string) (*FetchResult, error)
}

// FetchResult describes a file written by a Fetcher
type FetchResult struct {
	Path  string
	Bytes int64
}
