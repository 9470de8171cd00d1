package commands

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Oeditus/propwise/pkg/report"
)

// ErrReportInvalid is returned when a report violates the schema.
var ErrReportInvalid = errors.New("report does not match schema")

func newValidateCommand() *cobra.Command {
	var noColor bool

	cmd := &cobra.Command{
		Use:   "validate <report.json>",
		Short: "Check a JSON report against the report schema",
		Long:  `Validate a report produced by "analyze --format json". Use "-" to read stdin.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(cmd, args[0], noColor)
		},
	}

	cmd.Flags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	return cmd
}

func runValidate(cmd *cobra.Command, inputPath string, noColor bool) error {
	data, err := readInput(cmd, inputPath)
	if err != nil {
		return err
	}

	problems, err := report.Validate(data)
	if err != nil {
		return err
	}

	ok := color.New(color.FgGreen)
	bad := color.New(color.FgRed)

	if noColor {
		ok.DisableColor()
		bad.DisableColor()
	}

	out := cmd.OutOrStdout()

	if len(problems) == 0 {
		ok.Fprintf(out, "Report is valid (%s)\n", inputPath)

		return nil
	}

	bad.Fprintf(out, "Report validation failed (%s)\n", inputPath)

	for _, problem := range problems {
		bad.Fprintf(out, "  - %s (got %v)\n", problem, problem.Value)
	}

	return fmt.Errorf("%w: %d problems", ErrReportInvalid, len(problems))
}

func readInput(cmd *cobra.Command, inputPath string) ([]byte, error) {
	if inputPath == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return nil, fmt.Errorf("read stdin: %w", err)
		}

		return data, nil
	}

	data, err := os.ReadFile(inputPath)
	if err != nil {
		return nil, fmt.Errorf("read report: %w", err)
	}

	return data, nil
}
