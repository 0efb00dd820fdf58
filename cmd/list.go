package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/titlepatch/internal/ui"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List loaded patch files by title",
	Args:  cobra.NoArgs,
	RunE:  runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, _ []string) error {
	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.load(cmd.Context(), nil); err != nil {
		return err
	}
	ui.NewWriter(cmd.OutOrStdout()).FileList(s.sys.Files())
	return nil
}
