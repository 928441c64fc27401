// ami-update Lambda launches patch builds on a schedule and reports on them
// when the automation finishes. Invoked by EventBridge with either
// {"Event": "AMI_Update_Startup"} or an SSM automation status-change event.
package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"

	awslambda "github.com/aws/aws-lambda-go/lambda"

	intlambda "github.com/dwsmith1983/amipatch/internal/lambda"
)

func handler(ctx context.Context, payload json.RawMessage) (string, error) {
	d, err := intlambda.GetDeps()
	if err != nil {
		return "", err
	}
	return intlambda.Handle(ctx, d, payload)
}

func main() {
	slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stderr, nil)))
	awslambda.Start(handler)
}
