// Package research gathers topic context for question drafting from
// multiple literature sources.
package research

import (
	"context"
	"sync"
	"time"
)

// SourceResult is the outcome of one source fetch. A failed fetch keeps
// its slot (with Err set) so callers can see which sources contributed.
type SourceResult struct {
	// Source is the source name ("kb", "pubmed").
	Source string

	// Snippets are the context fragments this source produced.
	Snippets []string

	// FetchDuration is how long the fetch took, including a timeout.
	FetchDuration time.Duration

	// Err is the fetch failure, empty on success. Kept as a string:
	// the context is a read-only record, not an error to handle.
	Err string
}

// Context is the research context for one generation request. Built
// once per request, read-only afterward.
type Context struct {
	Topic   string
	Sources []SourceResult
}

// Snippets flattens all successful source snippets in source order.
func (c Context) Snippets() []string {
	var out []string
	for _, s := range c.Sources {
		out = append(out, s.Snippets...)
	}
	return out
}

// Provider supplies research context for a topic. Implementations never
// fail: partial or empty context is a valid result and drafting
// proceeds with whatever is available.
type Provider interface {
	Fetch(ctx context.Context, topic string) Context
}

// Source is a single literature source a MultiSource fans out to.
type Source interface {
	Name() string
	Search(ctx context.Context, topic string) ([]string, error)
}

// DefaultSourceTimeout bounds each individual source fetch.
const DefaultSourceTimeout = 15 * time.Second

// MultiSource fetches from all configured sources in parallel, each
// under its own timeout. One source failing, or timing out, never fails
// the fetch as a whole; its slot records the error and the rest proceed.
type MultiSource struct {
	sources []Source
	timeout time.Duration
}

// NewMultiSource creates a provider over the given sources. A zero
// timeout means DefaultSourceTimeout.
func NewMultiSource(timeout time.Duration, sources ...Source) *MultiSource {
	if timeout <= 0 {
		timeout = DefaultSourceTimeout
	}
	return &MultiSource{sources: sources, timeout: timeout}
}

func (m *MultiSource) Fetch(ctx context.Context, topic string) Context {
	results := make([]SourceResult, len(m.sources))

	var wg sync.WaitGroup
	for i, src := range m.sources {
		wg.Add(1)
		go func(i int, src Source) {
			defer wg.Done()
			results[i] = m.fetchOne(ctx, src, topic)
		}(i, src)
	}
	wg.Wait()

	return Context{Topic: topic, Sources: results}
}

func (m *MultiSource) fetchOne(ctx context.Context, src Source, topic string) SourceResult {
	fetchCtx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	start := time.Now()
	snippets, err := src.Search(fetchCtx, topic)

	res := SourceResult{
		Source:        src.Name(),
		Snippets:      snippets,
		FetchDuration: time.Since(start),
	}
	if err != nil {
		res.Snippets = nil
		res.Err = err.Error()
	}
	return res
}

// Empty is a Provider that returns no context. Used when no sources are
// configured and in tests.
type Empty struct{}

func (Empty) Fetch(_ context.Context, topic string) Context {
	return Context{Topic: topic}
}
