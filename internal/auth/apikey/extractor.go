package apikey

import (
	"errors"
	"net/http"
	"strings"
)

// ErrMissingAPIKeyHeader is returned when the header is absent or blank.
var ErrMissingAPIKeyHeader = errors.New("missing API key header")

// Extractor defines the interface for extracting API keys from HTTP requests.
type Extractor interface {
	// Extract returns the trimmed credential or ErrMissingAPIKeyHeader.
	Extract(r *http.Request) (string, error)
}

// HeaderExtractor extracts API keys from a single HTTP header.
type HeaderExtractor struct {
	header string
}

// NewHeaderExtractor creates a new header extractor.
// If header is empty, it defaults to DefaultHeaderName.
func NewHeaderExtractor(header string) *HeaderExtractor {
	if header == "" {
		header = DefaultHeaderName
	}
	return &HeaderExtractor{header: header}
}

// Header returns the header name this extractor reads.
func (e *HeaderExtractor) Header() string {
	return e.header
}

// Extract reads the first value of the header. Later values are ignored
// so the result does not depend on how proxies fold repeated headers.
func (e *HeaderExtractor) Extract(r *http.Request) (string, error) {
	values := r.Header.Values(e.header)
	if len(values) == 0 {
		return "", ErrMissingAPIKeyHeader
	}

	value := strings.TrimSpace(values[0])
	if value == "" {
		return "", ErrMissingAPIKeyHeader
	}
	return value, nil
}

// ExtractorFunc is a function type that implements Extractor.
type ExtractorFunc func(r *http.Request) (string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(r *http.Request) (string, error) {
	return f(r)
}
