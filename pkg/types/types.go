package types

import (
	"encoding/json"
	"fmt"
)

// ScheduledMarker is the value of the "Event" field on the scheduled trigger.
const ScheduledMarker = "AMI_Update_Startup"

// Image is the subset of an EC2 image record the handler reads.
type Image struct {
	ID           string `json:"imageId"`
	Name         string `json:"name"`
	CreationDate string `json:"creationDate"` // ISO-8601, fixed width, UTC
}

// Outcome is the interpreter's verdict on a finished automation job.
type Outcome struct {
	Kind OutcomeKind
	Text string
}

// InboundEvent is the raw shape of everything the handler can be invoked
// with. Detail stays raw so a malformed detail never fails decoding of the
// envelope.
type InboundEvent struct {
	Event  string          `json:"Event,omitempty"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// StatusDetail is the detail block of an automation status-change
// notification.
type StatusDetail struct {
	Definition  string `json:"Definition"`
	Status      string `json:"Status"`
	ExecutionID string `json:"ExecutionId"`
}

// ParseInboundEvent decodes the envelope by exact key. encoding/json folds
// case when filling structs, so "event" or "DETAIL" would otherwise be read
// as the fields above. A non-string "Event" is left empty.
func ParseInboundEvent(payload []byte) (InboundEvent, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payload, &fields); err != nil {
		return InboundEvent{}, fmt.Errorf("decoding event: %w", err)
	}
	var evt InboundEvent
	if raw, ok := fields["Event"]; ok {
		_ = json.Unmarshal(raw, &evt.Event)
	}
	evt.Detail = fields["detail"]
	return evt, nil
}

// ParseStatusDetail decodes a detail block by exact key. Missing keys stay
// empty; a present key holding a non-string value is an error.
func ParseStatusDetail(raw json.RawMessage) (StatusDetail, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return StatusDetail{}, fmt.Errorf("decoding detail: %w", err)
	}
	var d StatusDetail
	for key, dst := range map[string]*string{
		"Definition":  &d.Definition,
		"Status":      &d.Status,
		"ExecutionId": &d.ExecutionID,
	} {
		v, ok := fields[key]
		if !ok {
			continue
		}
		if err := json.Unmarshal(v, dst); err != nil {
			return StatusDetail{}, fmt.Errorf("decoding detail %s: %w", key, err)
		}
	}
	return d, nil
}
