// Package metrics exposes runtime counters via expvar.
package metrics

import "expvar"

var (
	BuildsLaunched    = expvar.NewInt("builds_launched")
	BuildsSkipped     = expvar.NewInt("builds_skipped")
	ReportsSent       = expvar.NewInt("reports_sent")
	ReportsSuppressed = expvar.NewInt("reports_suppressed")
	NotifyFailures    = expvar.NewInt("notify_failures")
	PublishFailures   = expvar.NewInt("publish_failures")
	OrphansTerminated = expvar.NewInt("orphans_terminated")
	FeedFailures      = expvar.NewInt("feed_failures")
	UnknownEvents     = expvar.NewInt("unknown_events")
)
