package commands

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewConfigCmd creates the config command.
func NewConfigCmd() *cobra.Command {
	var configPath string
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Validate settings and print them as resolved",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConfig(cmd.OutOrStdout(), configPath)
		},
	}
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "YAML settings file (default: environment)")
	return cmd
}

func runConfig(out io.Writer, configPath string) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	color.New(color.FgGreen).Fprintln(out, "Configuration valid")
	fmt.Fprintf(out, "s3 bucket: %s\ns3 key: %s\n", cfg.S3Bucket, cfg.S3Key)
	_, err = out.Write(data)
	return err
}
