// Package lambda routes inbound Lambda events to the scheduled-build and
// build-finished paths.
package lambda

// Fixed replies returned to the invoker.
const (
	UnknownEventText  = "Unknown event"
	NotOurConcernText = "The automation change is not our concern"
	NoBaseImageText   = "No AMI can be used as template, nothing to do"
	NoUpdateText      = "No update published in the bulletin feed since the base AMI was created"
)
