package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	intlambda "github.com/dwsmith1983/amipatch/internal/lambda"
	"github.com/dwsmith1983/amipatch/pkg/types"
)

// NewInvokeCmd creates the invoke command.
func NewInvokeCmd() *cobra.Command {
	var (
		configPath string
		eventPath  string
		scheduled  bool
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "invoke",
		Short: "Run the handler once against an event, using live AWS credentials",
		Long: `Invoke runs the same dispatch the Lambda runs. The event is read from
--event (a file, or "-" for stdin); --scheduled sends the scheduled trigger.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			payload, err := readEvent(cmd.InOrStdin(), eventPath, scheduled)
			if err != nil {
				return err
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runInvoke(ctx, cmd.OutOrStdout(), configPath, payload)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML settings file (default: environment)")
	cmd.Flags().StringVarP(&eventPath, "event", "e", "-", `event JSON file, "-" for stdin`)
	cmd.Flags().BoolVar(&scheduled, "scheduled", false, "send the scheduled build trigger")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Minute, "overall time limit")
	return cmd
}

func readEvent(stdin io.Reader, path string, scheduled bool) (json.RawMessage, error) {
	if scheduled {
		return json.Marshal(types.InboundEvent{Event: types.ScheduledMarker})
	}
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("reading event: %w", err)
	}
	if !json.Valid(data) {
		return nil, fmt.Errorf("event is not valid JSON")
	}
	return data, nil
}

func runInvoke(ctx context.Context, out io.Writer, configPath string, payload json.RawMessage) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	d, err := intlambda.Init(ctx)
	if err != nil {
		return err
	}
	d.Level.Set(cfg.SlogLevel())

	result, err := intlambda.Dispatch(ctx, d, cfg, payload)
	if err != nil {
		return fmt.Errorf("invocation failed: %w", err)
	}
	color.New(color.Bold).Fprintln(out, "Result:")
	fmt.Fprintln(out, result)
	return nil
}
