// Package feed decides whether a security bulletin has been published since
// a given image was created.
package feed

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/dwsmith1983/amipatch/internal/metrics"
)

var defaultHTTPClient = &http.Client{Timeout: 30 * time.Second}

// Layouts tried when the feed parser leaves a publish date unparsed.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC1123Z,
	time.RFC1123,
	"2006-01-02T15:04:05.0000000Z",
}

// Oracle answers "is an update due?" from a bulletin feed.
type Oracle struct {
	url    string
	parser *gofeed.Parser
	logger *slog.Logger
}

// OracleOption configures an Oracle.
type OracleOption func(*Oracle)

// WithHTTPClient sets the client used to fetch the feed.
func WithHTTPClient(c *http.Client) OracleOption {
	return func(o *Oracle) { o.parser.Client = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) OracleOption {
	return func(o *Oracle) { o.logger = l }
}

// NewOracle creates an Oracle reading the feed at url.
func NewOracle(url string, opts ...OracleOption) *Oracle {
	p := gofeed.NewParser()
	p.Client = defaultHTTPClient
	o := &Oracle{url: url, parser: p, logger: slog.Default()}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// IsUpdateDue reports whether any entry in the fetched feed was published
// strictly after creationDate. Any failure to fetch or parse returns true:
// a spare build is cheaper than a missed patch.
func (o *Oracle) IsUpdateDue(ctx context.Context, creationDate string) bool {
	due, err := o.check(ctx, creationDate)
	if err != nil {
		metrics.FeedFailures.Add(1)
		o.logger.Error("bulletin feed not usable, assuming update is due", "url", o.url, "error", err)
		return true
	}
	return due
}

func (o *Oracle) check(ctx context.Context, creationDate string) (bool, error) {
	created, err := time.Parse(time.RFC3339Nano, creationDate)
	if err != nil {
		return false, fmt.Errorf("parsing image creation date: %w", err)
	}

	f, err := o.parser.ParseURLWithContext(o.url, ctx)
	if err != nil {
		return false, fmt.Errorf("fetching feed: %w", err)
	}

	if len(f.Items) > 0 {
		o.logger.Info("latest bulletin in feed",
			"published", f.Items[0].Published, "title", f.Items[0].Title)
	}

	// Feeds are usually newest first, but every entry is checked.
	for _, item := range f.Items {
		published, err := publishedAt(item)
		if err != nil {
			return false, err
		}
		if published.After(created) {
			o.logger.Info("found bulletin newer than image",
				"published", item.Published, "title", item.Title, "imageCreated", creationDate)
			return true, nil
		}
	}

	o.logger.Info("no bulletins newer than image creation date",
		"imageCreated", creationDate, "entries", len(f.Items))
	return false, nil
}

func publishedAt(item *gofeed.Item) (time.Time, error) {
	if item.PublishedParsed != nil {
		return *item.PublishedParsed, nil
	}
	raw := item.Published
	if raw == "" {
		if item.UpdatedParsed != nil {
			return *item.UpdatedParsed, nil
		}
		raw = item.Updated
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unparseable publish date %q on %q", raw, item.Title)
}
