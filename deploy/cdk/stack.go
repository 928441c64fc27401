package main

import (
	"fmt"
	"path/filepath"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsevents"
	"github.com/aws/aws-cdk-go/awscdk/v2/awseventstargets"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsiam"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslambda"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// automationStatusDetailType is the EventBridge detail-type SSM emits when
// an automation execution changes state.
const automationStatusDetailType = "EC2 Automation Execution Status-change Notification"

func NewAmiPatchStack(scope constructs.Construct, id string, cfg StackConfig) awscdk.Stack {
	stack := awscdk.NewStack(scope, &id, nil)

	// Report topic
	topic := awssns.NewTopic(stack, jsii.String("ReportTopic"), &awssns.TopicProps{
		TopicName: jsii.String(cfg.FunctionName + "-reports"),
	})

	// Registry bucket for published image ids
	bucket := awss3.NewBucket(stack, jsii.String("RegistryBucket"), &awss3.BucketProps{
		BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
		Encryption:        awss3.BucketEncryption_S3_MANAGED,
		ObjectOwnership:   awss3.ObjectOwnership_BUCKET_OWNER_PREFERRED,
		RemovalPolicy:     removalPolicy(cfg.DestroyOnDelete),
	})

	env := map[string]*string{
		"AUTOMATION_NAME": jsii.String(cfg.AutomationName),
		"PLATFORM":        jsii.String(cfg.Platform),
		"PROFILE_ROLE":    jsii.String(cfg.ProfileRole),
		"AUTOMATION_ROLE": jsii.String(cfg.AutomationRoleARN),
		"AMI_SUBNET":      jsii.String(cfg.Subnet),
		"TARGET_AMI_NAME": jsii.String(cfg.TargetAMIName),
		"TAG_OWNER":       jsii.String(cfg.TagOwner),
		"S3_PATH":         awscdk.Fn_Join(jsii.String(""), &[]*string{bucket.BucketName(), jsii.String(":/" + cfg.KeyPath)}),
		"ALERT_ARN":       topic.TopicArn(),
	}
	optional := map[string]string{
		"AMI_LOOKUP_PATTERN": cfg.LookupPattern,
		"DEFAULT_AMI_ID":     cfg.DefaultAMIID,
		"TAG_DESCRIPTION":    cfg.TagDescription,
		"AMI_SHARE_ACCOUNTS": cfg.ShareAccounts,
	}
	for k, v := range optional {
		if v != "" {
			env[k] = jsii.String(v)
		}
	}
	for i, arn := range cfg.ExtraAlertARNs {
		env[fmt.Sprintf("ALERT_ARN%d", i+1)] = jsii.String(arn)
	}

	fn := awslambda.NewFunction(stack, jsii.String("ami-update"), &awslambda.FunctionProps{
		FunctionName: jsii.String(cfg.FunctionName),
		Runtime:      awslambda.Runtime_PROVIDED_AL2023(),
		Handler:      jsii.String("bootstrap"),
		Code:         awslambda.Code_FromAsset(jsii.String(filepath.Join(cfg.LambdaDistDir, "ami-update")), nil),
		Architecture: awslambda.Architecture_ARM_64(),
		MemorySize:   jsii.Number(cfg.MemorySize),
		Timeout:      awscdk.Duration_Seconds(jsii.Number(cfg.Timeout)),
		Environment:  &env,
		LogRetention: logRetentionDays(cfg.LogRetentionDays),
	})

	// IAM grants
	topic.GrantPublish(fn)
	bucket.GrantPut(fn, jsii.String(cfg.KeyPath+"*"))
	bucket.GrantPutAcl(fn, jsii.String(cfg.KeyPath+"*"))
	addPatcherPermissions(fn, cfg)

	// Schedule: periodic build check
	awsevents.NewRule(stack, jsii.String("ScheduleRule"), &awsevents.RuleProps{
		Schedule: awsevents.Schedule_Expression(jsii.String(cfg.ScheduleExpression)),
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(fn, &awseventstargets.LambdaFunctionProps{
				Event: awsevents.RuleTargetInput_FromObject(map[string]interface{}{
					"Event": "AMI_Update_Startup",
				}),
			}),
		},
	})

	// Automation finished: terminal status changes for our document only
	awsevents.NewRule(stack, jsii.String("AutomationStatusRule"), &awsevents.RuleProps{
		EventPattern: &awsevents.EventPattern{
			Source:     &[]*string{jsii.String("aws.ssm")},
			DetailType: &[]*string{jsii.String(automationStatusDetailType)},
			Detail: &map[string]interface{}{
				"Definition": []string{cfg.AutomationName},
				"Status":     []string{"Success", "Failed", "TimedOut", "Cancelled"},
			},
		},
		Targets: &[]awsevents.IRuleTarget{
			awseventstargets.NewLambdaFunction(fn, nil),
		},
	})

	// Stack outputs
	awscdk.NewCfnOutput(stack, jsii.String("FunctionName"), &awscdk.CfnOutputProps{
		Value: fn.FunctionName(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("TopicArn"), &awscdk.CfnOutputProps{
		Value: topic.TopicArn(),
	})
	awscdk.NewCfnOutput(stack, jsii.String("BucketName"), &awscdk.CfnOutputProps{
		Value: bucket.BucketName(),
	})

	return stack
}

func addPatcherPermissions(fn awslambda.Function, cfg StackConfig) {
	allResources := &[]*string{jsii.String("*")}

	fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: &[]*string{
			jsii.String("ec2:DescribeImages"),
			jsii.String("ec2:ModifyImageAttribute"),
			jsii.String("ec2:TerminateInstances"),
		},
		Resources: allResources,
	}))
	fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
		Actions: &[]*string{
			jsii.String("ssm:StartAutomationExecution"),
			jsii.String("ssm:GetAutomationExecution"),
		},
		Resources: allResources,
	}))

	if cfg.AutomationRoleARN != "" {
		fn.AddToRolePolicy(awsiam.NewPolicyStatement(&awsiam.PolicyStatementProps{
			Actions:   &[]*string{jsii.String("iam:PassRole")},
			Resources: &[]*string{jsii.String(cfg.AutomationRoleARN)},
		}))
	}
}

func removalPolicy(destroy bool) awscdk.RemovalPolicy {
	if destroy {
		return awscdk.RemovalPolicy_DESTROY
	}
	return awscdk.RemovalPolicy_RETAIN
}

func logRetentionDays(days float64) awslogs.RetentionDays {
	switch days {
	case 1:
		return awslogs.RetentionDays_ONE_DAY
	case 3:
		return awslogs.RetentionDays_THREE_DAYS
	case 5:
		return awslogs.RetentionDays_FIVE_DAYS
	case 7:
		return awslogs.RetentionDays_ONE_WEEK
	case 14:
		return awslogs.RetentionDays_TWO_WEEKS
	case 30:
		return awslogs.RetentionDays_ONE_MONTH
	case 60:
		return awslogs.RetentionDays_TWO_MONTHS
	case 90:
		return awslogs.RetentionDays_THREE_MONTHS
	case 365:
		return awslogs.RetentionDays_ONE_YEAR
	default:
		return awslogs.RetentionDays_ONE_WEEK
	}
}
