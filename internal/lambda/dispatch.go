package lambda

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/dwsmith1983/amipatch/internal/alert"
	"github.com/dwsmith1983/amipatch/internal/automation"
	"github.com/dwsmith1983/amipatch/internal/config"
	"github.com/dwsmith1983/amipatch/internal/feed"
	"github.com/dwsmith1983/amipatch/internal/image"
	"github.com/dwsmith1983/amipatch/internal/metrics"
	"github.com/dwsmith1983/amipatch/internal/publish"
	"github.com/dwsmith1983/amipatch/pkg/types"
)

// Handle serves one invocation: it resolves configuration from the
// environment, failing before any AWS call if a required setting is
// missing, then dispatches the event.
func Handle(ctx context.Context, d *Deps, payload json.RawMessage) (string, error) {
	cfg, err := config.FromEnv(d.Environ())
	if err != nil {
		d.Logger.Error("invalid configuration", "error", err)
		return "", err
	}
	if d.Level != nil {
		d.Level.Set(cfg.SlogLevel())
	}
	return Dispatch(ctx, d, cfg, payload)
}

// Dispatch classifies payload as a scheduled trigger or an automation
// status-change notification and runs the matching path. Any other shape is
// logged and answered with UnknownEventText.
func Dispatch(ctx context.Context, d *Deps, cfg config.Config, payload json.RawMessage) (string, error) {
	d.Logger.Info("AMI auto update triggered")
	d.Logger.Debug("inbound event", "event", string(payload))

	evt, err := types.ParseInboundEvent(payload)
	if err != nil {
		return unknownEvent(d, err), nil
	}

	switch {
	case evt.Event == types.ScheduledMarker:
		d.Logger.Info("scheduled startup")
		return startup(ctx, d, cfg)
	case present(evt.Detail):
		detail, err := types.ParseStatusDetail(evt.Detail)
		if err != nil {
			return unknownEvent(d, err), nil
		}
		if detail.Definition != cfg.AutomationName {
			d.Logger.Info("automation change is not our concern",
				"definition", detail.Definition, "expected", cfg.AutomationName)
			return NotOurConcernText, nil
		}
		d.Logger.Info("checking details of automation job", "executionId", detail.ExecutionID)
		return automationStatus(ctx, d, cfg, detail)
	default:
		return unknownEvent(d, nil), nil
	}
}

// startup picks a base image, checks the bulletin feed and, when an update
// is due, launches the patching automation.
func startup(ctx context.Context, d *Deps, cfg config.Config) (string, error) {
	sel := image.NewSelector(d.EC2, d.STS, cfg.LookupPattern, cfg.DefaultAMIID, d.Logger)
	base, ok, err := sel.Select(ctx)
	if err != nil {
		return "", fmt.Errorf("selecting base image: %w", err)
	}
	if !ok {
		metrics.BuildsSkipped.Add(1)
		return NoBaseImageText, nil
	}
	d.Logger.Info("base AMI selected", "imageId", base.ID, "creationDate", base.CreationDate)

	opts := []feed.OracleOption{feed.WithLogger(d.Logger)}
	if d.HTTPClient != nil {
		opts = append(opts, feed.WithHTTPClient(d.HTTPClient))
	}
	if !feed.NewOracle(cfg.FeedURL, opts...).IsUpdateDue(ctx, base.CreationDate) {
		metrics.BuildsSkipped.Add(1)
		return NoUpdateText, nil
	}

	id, err := automation.NewLauncher(d.SSM, cfg, d.Logger).Launch(ctx, base.ID)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("Automation job launched with ID: %s", id), nil
}

// automationStatus interprets a finished job and tells operators about it.
// An unrecognised status aborts before any side effect.
func automationStatus(ctx context.Context, d *Deps, cfg config.Config, detail types.StatusDetail) (string, error) {
	status, err := types.ParseJobStatus(detail.Status)
	if err != nil {
		d.Logger.Error("unrecognised automation status", "status", detail.Status, "executionId", detail.ExecutionID)
		return "", err
	}
	d.Logger.Info("automation finished", "status", status, "executionId", detail.ExecutionID)

	pub := publish.New(d.EC2, d.S3, d.Logger)
	out := automation.NewInterpreter(d.SSM, d.EC2, pub, cfg, d.Logger).Interpret(ctx, detail.ExecutionID)

	switch out.Kind {
	case types.OutcomeSuppressed:
		return fmt.Sprintf("Automation job %s found no updates to install, no alert sent", detail.ExecutionID), nil
	case types.OutcomeReport, types.OutcomeUnretrievable:
		n := alert.NewNotifier(d.SNS, cfg.AlertARNs, d.Logger)
		sent := n.Notify(ctx, alert.Subject(cfg.Platform, status), out.Text)
		return fmt.Sprintf("Automation job %s finished with status %s (%s): report sent to %d of %d topic(s)",
			detail.ExecutionID, status.Label(), out.Kind, sent, len(cfg.AlertARNs)), nil
	default:
		return "", fmt.Errorf("unhandled outcome %s", out.Kind)
	}
}

func unknownEvent(d *Deps, err error) string {
	metrics.UnknownEvents.Add(1)
	d.Logger.Warn("unknown event ignored", "error", err)
	return UnknownEventText
}

// present reports whether a raw JSON value carries anything; null, false,
// 0, "" and empty objects or arrays count as absent.
func present(raw json.RawMessage) bool {
	if len(raw) == 0 {
		return false
	}
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return false
	}
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case float64:
		return t != 0
	case string:
		return t != ""
	case map[string]any:
		return len(t) > 0
	case []any:
		return len(t) > 0
	}
	return true
}
