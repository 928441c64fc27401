// Package types defines the domain types for the AMI auto-patching handler.
package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownStatus is returned when the automation service reports a status
// outside the four terminal states this handler understands.
var ErrUnknownStatus = errors.New("unknown automation status")

// JobStatus is the terminal state of an automation job as carried by a
// status-change notification.
type JobStatus string

// JobStatus values enumerate the terminal automation states.
const (
	JobSuccess   JobStatus = "success"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
	JobTimedOut  JobStatus = "timedout"
)

// ParseJobStatus maps a notification status (case-insensitive) onto a known
// terminal state. Anything else wraps ErrUnknownStatus.
func ParseJobStatus(s string) (JobStatus, error) {
	switch st := JobStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case JobSuccess, JobFailed, JobCancelled, JobTimedOut:
		return st, nil
	default:
		return "", fmt.Errorf("%w: [%s]", ErrUnknownStatus, s)
	}
}

// Label returns the capitalised form used in notification subjects.
func (s JobStatus) Label() string {
	switch s {
	case JobSuccess:
		return "Success"
	case JobFailed:
		return "Failed"
	case JobCancelled:
		return "Cancelled"
	case JobTimedOut:
		return "TimedOut"
	default:
		return string(s)
	}
}

// StepName identifies a step inside the patching automation document. These
// names are a contract with the document's author: renaming a step there
// silently disables the behaviour keyed on it here.
type StepName string

// StepName values the outcome interpreter looks for.
const (
	// StepLaunchInstance starts the build instance; its InstanceIds output
	// names the instance to clean up when the job fails.
	StepLaunchInstance StepName = "LaunchInstance"
	// StepCheckUpdates fails when the instance has nothing to install.
	StepCheckUpdates StepName = "CheckUpdates"
)

// Automation output keys.
const (
	OutputImageID     = "CreateImage.ImageId"
	OutputInstanceIDs = "InstanceIds"
)

// OutcomeKind classifies what the interpreter produced for a finished job.
type OutcomeKind int

// OutcomeKind values.
const (
	// OutcomeReport carries a report that should reach operators.
	OutcomeReport OutcomeKind = iota
	// OutcomeSuppressed means the job found no updates; nobody is alerted.
	OutcomeSuppressed
	// OutcomeUnretrievable means the job details could not be read. Text
	// still holds a short message worth sending.
	OutcomeUnretrievable
)

// String returns a human-readable kind name.
func (k OutcomeKind) String() string {
	switch k {
	case OutcomeReport:
		return "report"
	case OutcomeSuppressed:
		return "suppressed"
	case OutcomeUnretrievable:
		return "unretrievable"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}
