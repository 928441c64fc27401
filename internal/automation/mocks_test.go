package automation

import (
	"context"
	"io"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/ec2"
	ec2types "github.com/aws/aws-sdk-go-v2/service/ec2/types"
	"github.com/aws/aws-sdk-go-v2/service/ssm"
	ssmtypes "github.com/aws/aws-sdk-go-v2/service/ssm/types"

	"github.com/dwsmith1983/amipatch/internal/config"
)

type mockSSM struct {
	startIn  *ssm.StartAutomationExecutionInput
	startOut *ssm.StartAutomationExecutionOutput
	startErr error

	exec   *ssmtypes.AutomationExecution
	getErr error
}

func (m *mockSSM) StartAutomationExecution(_ context.Context, in *ssm.StartAutomationExecutionInput, _ ...func(*ssm.Options)) (*ssm.StartAutomationExecutionOutput, error) {
	m.startIn = in
	return m.startOut, m.startErr
}

func (m *mockSSM) GetAutomationExecution(_ context.Context, _ *ssm.GetAutomationExecutionInput, _ ...func(*ssm.Options)) (*ssm.GetAutomationExecutionOutput, error) {
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &ssm.GetAutomationExecutionOutput{AutomationExecution: m.exec}, nil
}

type mockEC2 struct {
	images       map[string]string // id -> name
	describeErr  error
	terminated   [][]string
	terminateErr error
}

func (m *mockEC2) DescribeImages(_ context.Context, in *ec2.DescribeImagesInput, _ ...func(*ec2.Options)) (*ec2.DescribeImagesOutput, error) {
	if m.describeErr != nil {
		return nil, m.describeErr
	}
	out := &ec2.DescribeImagesOutput{}
	for _, id := range in.ImageIds {
		if name, ok := m.images[id]; ok {
			out.Images = append(out.Images, ec2types.Image{ImageId: aws.String(id), Name: aws.String(name)})
		}
	}
	return out, nil
}

func (m *mockEC2) TerminateInstances(_ context.Context, in *ec2.TerminateInstancesInput, _ ...func(*ec2.Options)) (*ec2.TerminateInstancesOutput, error) {
	m.terminated = append(m.terminated, in.InstanceIds)
	return &ec2.TerminateInstancesOutput{}, m.terminateErr
}

type publishCall struct {
	imageID  string
	accounts []string
	bucket   string
	key      string
}

type mockPublisher struct {
	shares []publishCall
	stores []publishCall
}

func (m *mockPublisher) Share(_ context.Context, imageID string, accounts []string) string {
	m.shares = append(m.shares, publishCall{imageID: imageID, accounts: accounts})
	return "AMI [" + imageID + "] shared with accounts: [111111111111]"
}

func (m *mockPublisher) Store(_ context.Context, imageID, bucket, key string) string {
	m.stores = append(m.stores, publishCall{imageID: imageID, bucket: bucket, key: key})
	return "stored"
}

func testConfig() config.Config {
	return config.Config{
		AutomationName: "AMI-Windows-Update",
		Platform:       "Windows2016",
		ProfileRole:    "ami-build-profile",
		AutomationRole: "arn:aws:iam::123456789012:role/automation",
		Subnet:         "subnet-0abc",
		TargetAMIName:  "Ami_Auto_Update",
		TagOwner:       "platform-team",
		TagDescription: "patched windows base",
		S3Path:         "ami-registry:/windows/",
		S3Bucket:       "ami-registry",
		S3Key:          "windows/",
		ShareAccounts:  []string{"111111111111"},
	}
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func step(name string, status ssmtypes.AutomationExecutionStatus, outputs map[string][]string) ssmtypes.StepExecution {
	return ssmtypes.StepExecution{StepName: aws.String(name), StepStatus: status, Outputs: outputs}
}
