package titles

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hazyhaar/retitle/internal/videoid"
)

// maxFeedBytes caps the feed body read. The real feed is tens of
// kilobytes; anything near the cap is a broken or hostile endpoint.
const maxFeedBytes = 8 << 20

// Fetcher pulls the clean-title feed: a JSON object mapping video
// identifiers to Records. Titles are injected verbatim into a third-party
// page later, so every incoming string is stripped of markup here.
type Fetcher struct {
	feedURL string
	client  *http.Client
	policy  *bluemonday.Policy
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher for the given feed URL.
func NewFetcher(feedURL string, logger *slog.Logger) *Fetcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Fetcher{
		feedURL: feedURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		policy:  bluemonday.StrictPolicy(),
		logger:  logger,
	}
}

// Fetch downloads and validates the feed. Entries with malformed
// identifiers or empty titles are dropped, not fatal.
func (f *Fetcher) Fetch(ctx context.Context) (Mapping, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("fetch: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %s: %w", f.feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch: %s: status %d", f.feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("fetch: read body: %w", err)
	}

	var raw map[string]Record
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("fetch: decode feed: %w", err)
	}

	m := make(Mapping, len(raw))
	var dropped int
	for id, rec := range raw {
		rec.CleanTitle = f.sanitize(rec.CleanTitle)
		rec.OriginalTitle = f.sanitize(rec.OriginalTitle)
		if !videoid.Valid(id) || rec.CleanTitle == "" {
			dropped++
			continue
		}
		m[id] = rec
	}

	if dropped > 0 {
		f.logger.Warn("fetch: dropped malformed feed entries", "count", dropped)
	}
	f.logger.Info("fetch: feed loaded", "url", f.feedURL, "titles", len(m))
	return m, nil
}

// sanitize strips any markup from a feed string and normalises
// whitespace. StrictPolicy escapes entities, so unescape afterwards to
// keep plain-text titles like "Rook & King Endgames" intact.
func (f *Fetcher) sanitize(s string) string {
	s = html.UnescapeString(f.policy.Sanitize(s))
	return strings.Join(strings.Fields(s), " ")
}
