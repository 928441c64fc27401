package main

// StackConfig holds configuration for the AMI patcher CDK stack.
type StackConfig struct {
	FunctionName     string
	MemorySize       float64
	Timeout          float64
	LambdaDistDir    string
	LogRetentionDays float64
	DestroyOnDelete  bool

	// ScheduleExpression drives the scheduled build check, e.g. "rate(7 days)".
	ScheduleExpression string

	// Handler settings, passed through as environment variables.
	AutomationName    string
	Platform          string
	LookupPattern     string
	DefaultAMIID      string
	ProfileRole       string
	AutomationRoleARN string
	Subnet            string
	TargetAMIName     string
	TagOwner          string
	TagDescription    string
	KeyPath           string
	ShareAccounts     string
	ExtraAlertARNs    []string
}

// DefaultConfig returns a StackConfig with sensible defaults.
func DefaultConfig() StackConfig {
	return StackConfig{
		FunctionName:       "ami-update",
		MemorySize:         128,
		Timeout:            300,
		LambdaDistDir:      "../dist/lambda",
		LogRetentionDays:   30,
		ScheduleExpression: "rate(7 days)",
		AutomationName:     "AMI-Windows-Update",
		Platform:           "Windows2016",
		LookupPattern:      "Ami_Auto_Update_*",
		TargetAMIName:      "Ami_Auto_Update_{{global:DATE_TIME}}",
		KeyPath:            "windows/",
	}
}
