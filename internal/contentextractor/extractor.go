// Package contentextractor implements §4.6: a registry of pluggable text
// extractors and a background single-worker queue that drains file ids,
// extracts searchable text, and writes it into the Store's FTS index.
package contentextractor

import "context"

// Extraction is the result of successfully pulling text from a file.
type Extraction struct {
	Text       string
	Method     string
	Language   string
	Confidence float64
}

// TextExtractor is the plug-point named in §1/§9: concrete parsers (PDF,
// office formats, …) are supplied by the embedder, not the core.
type TextExtractor interface {
	Name() string
	CanHandle(mime string) bool
	Priority() int
	Extract(ctx context.Context, path string) (Extraction, error)
}

// Registry holds the known extractors and picks the highest-priority
// match for a given MIME type.
type Registry struct {
	extractors []TextExtractor
}

// NewRegistry returns an empty registry; Register populates it.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds e to the registry.
func (r *Registry) Register(e TextExtractor) {
	r.extractors = append(r.extractors, e)
}

// Select returns the highest-priority extractor whose CanHandle(mime) is
// true, or false if none matches.
func (r *Registry) Select(mime string) (TextExtractor, bool) {
	var best TextExtractor
	for _, e := range r.extractors {
		if !e.CanHandle(mime) {
			continue
		}
		if best == nil || e.Priority() > best.Priority() {
			best = e
		}
	}
	return best, best != nil
}
