package main

import (
	"context"
	"encoding/json"
	"testing"
)

func TestHandlerSignature(t *testing.T) {
	// The dispatch logic is covered in internal/lambda; this only pins the
	// signature aws-lambda-go reflects on.
	var _ func(context.Context, json.RawMessage) (string, error) = handler
}
