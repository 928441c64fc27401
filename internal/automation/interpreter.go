package automation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/dwsmith1983/amipatch/internal/config"
	"github.com/dwsmith1983/amipatch/internal/metrics"
	"github.com/dwsmith1983/amipatch/pkg/types"
)

// Texts returned when the job itself cannot be read.
const (
	UnretrievableText = "Unable to get automation results"
	BlankIDText       = "Execution ID is blank"
)

// UpdatedComponents is listed in every success report; it mirrors what the
// patching document installs.
var UpdatedComponents = []string{
	"Windows updates",
	"AWSPowerShell",
	"AWS SSM agent",
	"EC2Config / EC2Launch",
	"AWSPVDriver",
	"AWSCloudFormationHelperScripts",
}

var instanceIDPattern = regexp.MustCompile(`(?i)^i-[a-z0-9]+$`)

// EC2API is the subset of the EC2 client used by the interpreter.
type EC2API interface {
	DescribeImages(ctx context.Context, params *ec2.DescribeImagesInput, optFns ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error)
	TerminateInstances(ctx context.Context, params *ec2.TerminateInstancesInput, optFns ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error)
}

// Publisher shares and records a finished image. Both calls report their
// result as text and never fail.
type Publisher interface {
	Share(ctx context.Context, imageID string, accounts []string) string
	Store(ctx context.Context, imageID, bucket, key string) string
}

// Interpreter turns a finished automation execution into an Outcome.
type Interpreter struct {
	ssm       SSMAPI
	ec2       EC2API
	publisher Publisher
	cfg       config.Config
	logger    *slog.Logger
}

// NewInterpreter creates an Interpreter.
func NewInterpreter(ssmClient SSMAPI, ec2Client EC2API, publisher Publisher, cfg config.Config, logger *slog.Logger) *Interpreter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Interpreter{
		ssm:       ssmClient,
		ec2:       ec2Client,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
	}
}

// Interpret reads the execution once and classifies it. It never returns an
// error: if the job cannot be read the outcome is OutcomeUnretrievable, so
// operators still hear that a build finished.
func (in *Interpreter) Interpret(ctx context.Context, executionID string) types.Outcome {
	if executionID == "" {
		return types.Outcome{Kind: types.OutcomeUnretrievable, Text: BlankIDText}
	}

	out, err := in.interpret(ctx, executionID)
	if err != nil {
		in.logger.Error("unable to get automation results", "executionId", executionID, "error", err)
		return types.Outcome{Kind: types.OutcomeUnretrievable, Text: UnretrievableText}
	}
	return out
}

func (in *Interpreter) interpret(ctx context.Context, executionID string) (types.Outcome, error) {
	res, err := in.ssm.GetAutomationExecution(ctx, &ssm.GetAutomationExecutionInput{
		AutomationExecutionId: aws.String(executionID),
	})
	if err != nil {
		return types.Outcome{}, fmt.Errorf("GetAutomationExecution: %w", err)
	}
	if res == nil || res.AutomationExecution == nil {
		return types.Outcome{}, errors.New("GetAutomationExecution returned no execution")
	}
	exec := res.AutomationExecution

	if exec.AutomationExecutionStatus == ssmtypes.AutomationExecutionStatusSuccess {
		return in.succeeded(ctx, executionID, exec)
	}
	return in.failed(ctx, executionID, exec), nil
}

func (in *Interpreter) succeeded(ctx context.Context, executionID string, exec *ssmtypes.AutomationExecution) (types.Outcome, error) {
	ids := exec.Outputs[types.OutputImageID]
	if len(ids) == 0 || ids[0] == "" {
		return types.Outcome{}, fmt.Errorf("output %s missing", types.OutputImageID)
	}
	imageID := ids[0]

	img, err := in.ec2.DescribeImages(ctx, &ec2.DescribeImagesInput{ImageIds: []string{imageID}})
	if err != nil {
		return types.Outcome{}, fmt.Errorf("describing image %s: %w", imageID, err)
	}
	if img == nil || len(img.Images) == 0 {
		return types.Outcome{}, fmt.Errorf("image %s not found", imageID)
	}
	name := aws.ToString(img.Images[0].Name)

	stored := in.publisher.Store(ctx, imageID, in.cfg.S3Bucket, in.cfg.S3Key)
	in.logger.Info("image id stored", "imageId", imageID, "result", stored)
	shared := in.publisher.Share(ctx, imageID, in.cfg.ShareAccounts)

	var b strings.Builder
	b.WriteString("\nThe scheduled patching of AWS AMI has completed: Please find below new AMI details for general use.\n\n")
	fmt.Fprintf(&b, "* New AMI ID:\t[%s]\n", imageID)
	fmt.Fprintf(&b, "* New AMI Name:\t[%s]\n", name)
	fmt.Fprintf(&b, "* Overall result:\t[%s]\n", exec.AutomationExecutionStatus)
	fmt.Fprintf(&b, "* Document name:\t[%s]\n", aws.ToString(exec.DocumentName))
	fmt.Fprintf(&b, "* Execution ID:\t[%s]\n", executionID)
	fmt.Fprintf(&b, "\n%s\n\n", shared)
	b.WriteString("Below components have updated:\n")
	for _, c := range UpdatedComponents {
		fmt.Fprintf(&b, " - %s\n", c)
	}
	return types.Outcome{Kind: types.OutcomeReport, Text: b.String()}, nil
}

func (in *Interpreter) failed(ctx context.Context, executionID string, exec *ssmtypes.AutomationExecution) types.Outcome {
	in.terminateLeaked(ctx, executionID, exec.StepExecutions)

	if step, ok := findStep(exec.StepExecutions, types.StepCheckUpdates); ok &&
		step.StepStatus == ssmtypes.AutomationExecutionStatusFailed {
		metrics.ReportsSuppressed.Add(1)
		in.logger.Info("no updates to install, suppressing alert", "executionId", executionID)
		return types.Outcome{Kind: types.OutcomeSuppressed}
	}

	var b strings.Builder
	b.WriteString("\nThe scheduled patching of AWS AMI has failed: Please investigate further via AWS console.\n\n")
	b.WriteString("* New AMI ID:\t[]\n")
	b.WriteString("* New AMI Name:\t[]\n")
	fmt.Fprintf(&b, "* Overall result:\t[%s]\n", exec.AutomationExecutionStatus)
	fmt.Fprintf(&b, "* Document name:\t[%s]\n", aws.ToString(exec.DocumentName))
	fmt.Fprintf(&b, "* Execution ID:\t[%s]\n", executionID)
	b.WriteString("\nAMI Not shared: [No AMI ID]\n")
	return types.Outcome{Kind: types.OutcomeReport, Text: b.String()}
}

// terminateLeaked terminates the build instance a failed job left behind.
// Errors are logged only; they must not displace the failure report.
func (in *Interpreter) terminateLeaked(ctx context.Context, executionID string, steps []ssmtypes.StepExecution) {
	step, ok := findStep(steps, types.StepLaunchInstance)
	if !ok {
		return
	}
	ids := step.Outputs[types.OutputInstanceIDs]
	if len(ids) == 0 {
		return
	}
	instanceID := ids[0]
	if !instanceIDPattern.MatchString(instanceID) {
		in.logger.Warn("launch step output is not an instance id, leaving it alone",
			"executionId", executionID, "instanceId", instanceID)
		return
	}

	in.logger.Info("terminating instance left by failed automation",
		"executionId", executionID, "instanceId", instanceID)
	if _, err := in.ec2.TerminateInstances(ctx, &ec2.TerminateInstancesInput{
		InstanceIds: []string{instanceID},
	}); err != nil {
		in.logger.Error("failed to terminate leaked instance",
			"executionId", executionID, "instanceId", instanceID, "error", err)
		return
	}
	metrics.OrphansTerminated.Add(1)
}

func findStep(steps []ssmtypes.StepExecution, name types.StepName) (ssmtypes.StepExecution, bool) {
	for _, s := range steps {
		if aws.ToString(s.StepName) == string(name) {
			return s, true
		}
	}
	return ssmtypes.StepExecution{}, false
}
