package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dwsmith1983/amipatch/internal/commands"
)

var version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "amipatch",
		Short: "Keep a Windows AMI patched",
		Long: `amipatch runs the AMI auto-patching handler outside Lambda: invoke it
against an event, check the bulletin feed, or validate settings.`,
		Version: version,
	}

	root.AddCommand(
		commands.NewInvokeCmd(),
		commands.NewFeedCmd(),
		commands.NewConfigCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
