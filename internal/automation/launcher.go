// Package automation starts SSM patching automations and interprets their
// results once they finish.
package automation

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	"github.com/google/uuid"

	"github.com/dwsmith1983/amipatch/internal/config"
	"github.com/dwsmith1983/amipatch/internal/metrics"
)

// PreUpdateScript runs on the build instance before updates are installed.
// Real-time scanning slows the install and has locked files mid-update.
const PreUpdateScript = "Set-MpPreference -DisableRealtimeMonitoring $true -ErrorAction:SilentlyContinue"

// SSMAPI is the subset of the SSM client used by the automation package.
type SSMAPI interface {
	StartAutomationExecution(ctx context.Context, params *ssm.StartAutomationExecutionInput, optFns ...func(*ssm.Options)) (*ssm.StartAutomationExecutionOutput, error)
	GetAutomationExecution(ctx context.Context, params *ssm.GetAutomationExecutionInput, optFns ...func(*ssm.Options)) (*ssm.GetAutomationExecutionOutput, error)
}

// Launcher starts the patching automation document.
type Launcher struct {
	client SSMAPI
	cfg    config.Config
	logger *slog.Logger
}

// NewLauncher creates a Launcher for the document named in cfg.
func NewLauncher(client SSMAPI, cfg config.Config, logger *slog.Logger) *Launcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Launcher{client: client, cfg: cfg, logger: logger}
}

// Parameters returns the document parameters for a build from baseImageID.
// Description is sent only when TAG_DESCRIPTION is set, so the automation
// document must declare a default value for it.
func (l *Launcher) Parameters(baseImageID string) map[string][]string {
	params := map[string][]string{
		"SourceAmiId":            {baseImageID},
		"SubnetId":               {l.cfg.Subnet},
		"IamInstanceProfileName": {l.cfg.ProfileRole},
		"AutomationAssumeRole":   {l.cfg.AutomationRole},
		"TargetAmiName":          {l.cfg.TargetAMIName},
		"Owner":                  {l.cfg.TagOwner},
		"PreUpdateScript":        {PreUpdateScript},
	}
	// An empty value is rejected by SSM; leaving it out uses the document default.
	if l.cfg.TagDescription != "" {
		params["Description"] = []string{l.cfg.TagDescription}
	}
	return params
}

// Launch starts one automation execution and returns its id. It does not
// wait; completion arrives later as a status-change event.
func (l *Launcher) Launch(ctx context.Context, baseImageID string) (string, error) {
	out, err := l.client.StartAutomationExecution(ctx, &ssm.StartAutomationExecutionInput{
		DocumentName: aws.String(l.cfg.AutomationName),
		Parameters:   l.Parameters(baseImageID),
		ClientToken:  aws.String(uuid.NewString()),
	})
	if err != nil {
		return "", fmt.Errorf("automation launch: StartAutomationExecution failed: %w", err)
	}

	id := aws.ToString(out.AutomationExecutionId)
	metrics.BuildsLaunched.Add(1)
	l.logger.Info("automation started",
		"document", l.cfg.AutomationName, "sourceAmiId", baseImageID, "executionId", id)
	return id, nil
}
