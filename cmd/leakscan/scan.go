package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/raaihank/incident-sentinel/internal/logger"
	"github.com/raaihank/incident-sentinel/internal/privacy"
	"github.com/spf13/cobra"
)

// leakExitCode is returned by scan --fail-on-leak when findings exist
const leakExitCode = 2

func newScanCmd(logLevel *string) *cobra.Command {
	var failOnLeak bool

	cmd := &cobra.Command{
		Use:   "scan [file|-]",
		Short: "Redact a text file or stdin and list the findings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := newLogger(*logLevel)
			if err != nil {
				return err
			}
			defer log.Sync()

			text, err := readInput(cmd, args)
			if err != nil {
				return err
			}

			result := privacy.New(log).Process(text)

			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(result); err != nil {
				return err
			}

			if failOnLeak && !result.Clean() {
				return &exitCodeError{code: leakExitCode}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&failOnLeak, "fail-on-leak", false, fmt.Sprintf("Exit with status %d when sensitive data is found", leakExitCode))

	return cmd
}

func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return string(data), nil
	}

	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func newLogger(level string) (*logger.Logger, error) {
	return logger.New(logger.Config{
		Level:  level,
		Format: "console",
		Output: "stderr",
	})
}
