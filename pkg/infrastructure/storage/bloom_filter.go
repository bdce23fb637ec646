package storage

import (
	"sync"

	"github.com/bits-and-blooms/bloom/v3"
)

// URLFilter implements repository.URLFilter using a Bloom filter. Callers
// add a URL once the store has recorded it. A false positive drops a URL
// the store never saw, at the configured rate.
type URLFilter struct {
	mu     sync.Mutex
	filter *bloom.BloomFilter
}

// Config holds Bloom filter configuration
type Config struct {
	Size              uint
	FalsePositiveRate float64
}

// NewURLFilter creates a new Bloom filter
func NewURLFilter(config Config) *URLFilter {
	return &URLFilter{
		filter: bloom.NewWithEstimates(config.Size, config.FalsePositiveRate),
	}
}

// Test reports whether url was probably added before
func (f *URLFilter) Test(url string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.filter.Test([]byte(url))
}

// Add records url
func (f *URLFilter) Add(url string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.Add([]byte(url))
}

// Seed records urls without testing them
func (f *URLFilter) Seed(urls []string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range urls {
		f.filter.Add([]byte(u))
	}
}

// Reset forgets every recorded URL
func (f *URLFilter) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filter.ClearAll()
}
