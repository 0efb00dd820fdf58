package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/titlepatch/internal/ui"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file...]",
	Short: "Load patch files and report every problem found",
	Long:  "Loads the given patch files, or every file in the patch directory, and prints skipped edits, rejected files and duplicate ids.",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	report, err := s.load(cmd.Context(), args)
	if err != nil {
		return err
	}
	ui.NewWriter(cmd.OutOrStdout()).ValidateResult(report.Loaded, report.Rejected, s.sys.Diagnostics())
	if report.Rejected > 0 {
		return fmt.Errorf("validation failed: %d file(s) rejected", report.Rejected)
	}
	return nil
}
