// Package ingest fetches an external HTTP document and splits it into
// chunks suitable for recording as memories (C11 supplement: present in
// the original planning document, dropped from the distilled operation
// list, restored here since nothing in scope excludes it).
//
// Every fetch is guarded on four axes: allowed URL scheme, response size,
// wall-clock time, and chunk count, all sourced from config.IngestConfig
// so an operator can tighten them per project without a code change.
package ingest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/memctx/memctx/internal/chunk"
	"github.com/memctx/memctx/internal/config"
)

// Document is one fetched-and-chunked page.
type Document struct {
	URL         string
	ContentType string
	Truncated   bool
	Chunks      []*chunk.Chunk
}

// Fetcher retrieves and chunks documents within cfg's guards.
type Fetcher struct {
	cfg     config.IngestConfig
	client  *http.Client
	chunker *chunk.MarkdownChunker
}

// New builds a Fetcher over cfg. cfg.TimeoutSeconds bounds both the HTTP
// round trip and the body read; cfg.MaxContentSize bounds the read.
func New(cfg config.IngestConfig) *Fetcher {
	return &Fetcher{
		cfg: cfg,
		client: &http.Client{
			Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
		},
		chunker: chunk.NewMarkdownChunkerWithOptions(chunk.MarkdownChunkerOptions{
			MaxChunkTokens: cfg.ChunkMaxTokens,
			OverlapTokens:  cfg.ChunkOverlapTokens,
		}),
	}
}

// Close calls the chunker's Close; the markdown chunker holds no
// resources, so this is currently a no-op.
func (f *Fetcher) Close() {
	f.chunker.Close()
}

// Fetch retrieves rawURL, enforcing cfg's scheme allowlist and size/time
// guards, then chunks the body. Truncated reports whether the body was
// cut off at max_content_size; a truncated document is still chunked, not
// rejected, since a partial page is still useful context.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*Document, error) {
	if err := f.checkScheme(rawURL); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, time.Duration(f.cfg.TimeoutSeconds)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("ingest: build request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest: fetch %s: %w", rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ingest: fetch %s: unexpected status %s", rawURL, resp.Status)
	}

	limit := int64(f.cfg.MaxContentSize)
	body, truncated, err := readBounded(resp.Body, limit)
	if err != nil {
		return nil, fmt.Errorf("ingest: read %s: %w", rawURL, err)
	}

	chunks, err := f.chunker.Chunk(ctx, &chunk.FileInput{
		Path:     rawURL,
		Content:  body,
		Language: "markdown",
	})
	if err != nil {
		return nil, fmt.Errorf("ingest: chunk %s: %w", rawURL, err)
	}
	if len(chunks) > f.cfg.MaxChunks {
		chunks = chunks[:f.cfg.MaxChunks]
	}

	return &Document{
		URL:         rawURL,
		ContentType: resp.Header.Get("Content-Type"),
		Truncated:   truncated,
		Chunks:      chunks,
	}, nil
}

func (f *Fetcher) checkScheme(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("ingest: parse url: %w", err)
	}
	scheme := strings.ToLower(u.Scheme)
	for _, allowed := range f.cfg.AllowedURLSchemes {
		if scheme == strings.ToLower(allowed) {
			return nil
		}
	}
	return fmt.Errorf("ingest: scheme %q not in allowed_url_schemes %v", u.Scheme, f.cfg.AllowedURLSchemes)
}

// readBounded reads up to limit+1 bytes, reporting whether the stream had
// more beyond limit.
func readBounded(r io.Reader, limit int64) (data []byte, truncated bool, err error) {
	buf, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, false, err
	}
	if int64(len(buf)) > limit {
		return buf[:limit], true, nil
	}
	return buf, false, nil
}
