package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func rss(pubDates ...string) string {
	var b strings.Builder
	b.WriteString(`<?xml version="1.0" encoding="utf-8"?><rss version="2.0"><channel><title>Security Bulletins</title>`)
	for i, d := range pubDates {
		fmt.Fprintf(&b, `<item><title>MS-%03d</title><pubDate>%s</pubDate></item>`, i, d)
	}
	b.WriteString(`</channel></rss>`)
	return b.String()
}

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestIsUpdateDue_NewerEntry(t *testing.T) {
	srv := serve(t, http.StatusOK, rss("2020-02-01T00:00:00.000000Z"))
	o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))

	assert.True(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
}

func TestIsUpdateDue_AllOlderOrEqual(t *testing.T) {
	srv := serve(t, http.StatusOK, rss(
		"2020-01-01T00:00:00.000000Z",
		"2019-12-01T00:00:00.000000Z",
		"2019-06-01T00:00:00.000000Z",
	))
	o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))

	assert.False(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
}

func TestIsUpdateDue_OrderIndependent(t *testing.T) {
	srv := serve(t, http.StatusOK, rss(
		"2019-06-01T00:00:00.000000Z",
		"2019-12-01T00:00:00.000000Z",
		"2020-03-15T12:00:00.000000Z",
	))
	o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))

	assert.True(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
}

func TestIsUpdateDue_RFC1123Dates(t *testing.T) {
	srv := serve(t, http.StatusOK, rss("Tue, 11 Feb 2020 18:00:00 GMT"))
	o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))

	assert.True(t, o.IsUpdateDue(context.Background(), "2020-02-11T17:59:59.000Z"))
	assert.False(t, o.IsUpdateDue(context.Background(), "2020-02-11T18:00:01.000Z"))
}

func TestIsUpdateDue_EmptyFeed(t *testing.T) {
	srv := serve(t, http.StatusOK, rss())
	o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))

	assert.False(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
}

func TestIsUpdateDue_FailOpen(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		srv := serve(t, http.StatusInternalServerError, "boom")
		o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))
		assert.True(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
	})

	t.Run("unreachable", func(t *testing.T) {
		srv := serve(t, http.StatusOK, rss())
		url := srv.URL
		srv.Close()
		o := NewOracle(url)
		assert.True(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
	})

	t.Run("not a feed", func(t *testing.T) {
		srv := serve(t, http.StatusOK, "<html><body>maintenance</body></html>")
		o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))
		assert.True(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
	})

	t.Run("unparseable entry date", func(t *testing.T) {
		srv := serve(t, http.StatusOK, rss("sometime last week"))
		o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))
		assert.True(t, o.IsUpdateDue(context.Background(), "2020-01-01T00:00:00.000Z"))
	})

	t.Run("unparseable creation date", func(t *testing.T) {
		srv := serve(t, http.StatusOK, rss("2019-01-01T00:00:00.000000Z"))
		o := NewOracle(srv.URL, WithHTTPClient(srv.Client()))
		assert.True(t, o.IsUpdateDue(context.Background(), "01/01/2020"))
	})
}
