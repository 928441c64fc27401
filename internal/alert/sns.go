// Package alert delivers build reports to operators over SNS.
package alert

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sns"

	"github.com/dwsmith1983/amipatch/internal/metrics"
	"github.com/dwsmith1983/amipatch/pkg/types"
)

// maxSubjectLen is the SNS limit on email subjects.
const maxSubjectLen = 100

// SNSAPI is the subset of the SNS client used by Notifier.
type SNSAPI interface {
	Publish(ctx context.Context, input *sns.PublishInput, opts ...func(*sns.Options)) (*sns.PublishOutput, error)
}

// Notifier publishes a report to every configured topic.
type Notifier struct {
	client SNSAPI
	topics []string
	logger *slog.Logger
}

// NewNotifier creates a Notifier. With no topics, Notify only logs.
func NewNotifier(client SNSAPI, topics []string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{client: client, topics: topics, logger: logger}
}

// Subject returns the report subject for a job status on a platform.
func Subject(platform string, status types.JobStatus) string {
	return fmt.Sprintf("AWS AMI Autopatch Report for %s: Status: %s", platform, status.Label())
}

// Notify publishes message to each topic and returns how many accepted it.
// A failing topic is logged and skipped so the rest still get the report.
func (n *Notifier) Notify(ctx context.Context, subject, message string) int {
	if len(n.topics) == 0 || message == "" {
		n.logger.Warn("no ALERT_ARN topics configured or message is blank, no alert sent")
		return 0
	}
	subject = truncate(subject, maxSubjectLen)

	sent := 0
	for _, topic := range n.topics {
		_, err := n.client.Publish(ctx, &sns.PublishInput{
			TopicArn: aws.String(topic),
			Subject:  aws.String(subject),
			Message:  aws.String(message),
		})
		if err != nil {
			metrics.NotifyFailures.Add(1)
			n.logger.Error("failed to publish report", "topic", topic, "error", err)
			continue
		}
		sent++
	}
	metrics.ReportsSent.Add(int64(sent))
	n.logger.Info("report published", "subject", subject, "topics", len(n.topics), "sent", sent)
	return sent
}

// truncate cuts s to at most n bytes without splitting a UTF-8 sequence.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
