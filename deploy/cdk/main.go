package main

import (
	"os"
	"strings"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/jsii-runtime-go"
)

func main() {
	defer jsii.Close()

	app := awscdk.NewApp(nil)
	cfg := DefaultConfig()

	overrides := map[string]*string{
		"AMIPATCH_AUTOMATION_NAME": &cfg.AutomationName,
		"AMIPATCH_PLATFORM":        &cfg.Platform,
		"AMIPATCH_LOOKUP_PATTERN":  &cfg.LookupPattern,
		"AMIPATCH_DEFAULT_AMI_ID":  &cfg.DefaultAMIID,
		"AMIPATCH_PROFILE_ROLE":    &cfg.ProfileRole,
		"AMIPATCH_AUTOMATION_ROLE": &cfg.AutomationRoleARN,
		"AMIPATCH_SUBNET":          &cfg.Subnet,
		"AMIPATCH_TARGET_AMI_NAME": &cfg.TargetAMIName,
		"AMIPATCH_TAG_OWNER":       &cfg.TagOwner,
		"AMIPATCH_TAG_DESCRIPTION": &cfg.TagDescription,
		"AMIPATCH_KEY_PATH":        &cfg.KeyPath,
		"AMIPATCH_SHARE_ACCOUNTS":  &cfg.ShareAccounts,
		"AMIPATCH_SCHEDULE":        &cfg.ScheduleExpression,
		"AMIPATCH_FUNCTION_NAME":   &cfg.FunctionName,
		"AMIPATCH_LAMBDA_DIST_DIR": &cfg.LambdaDistDir,
	}
	for env, field := range overrides {
		if v := os.Getenv(env); v != "" {
			*field = v
		}
	}
	if arns := os.Getenv("AMIPATCH_EXTRA_ALERT_ARNS"); arns != "" {
		cfg.ExtraAlertARNs = strings.Split(arns, ",")
	}
	cfg.DestroyOnDelete = os.Getenv("AMIPATCH_DESTROY_ON_DELETE") == "true"

	stackName := "AmiPatchStack"
	if name := os.Getenv("AMIPATCH_STACK_NAME"); name != "" {
		stackName = name
	}

	NewAmiPatchStack(app, stackName, cfg)
	app.Synth(nil)
}
