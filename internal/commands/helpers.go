// Package commands implements the CLI subcommands for the amipatch binary.
package commands

import (
	"fmt"
	"os"

	"github.com/dwsmith1983/amipatch/internal/config"
)

// loadConfig reads settings from path when given, otherwise from the
// environment exactly as the Lambda does.
func loadConfig(path string) (config.Config, error) {
	if path != "" {
		return config.LoadFile(path)
	}
	cfg, err := config.FromEnv(os.Environ())
	if err != nil {
		return config.Config{}, fmt.Errorf("loading config from environment: %w", err)
	}
	return cfg, nil
}
