package cmd

import (
	"github.com/spf13/cobra"

	"github.com/papapumpkin/titlepatch/internal/ui"
)

var showCmd = &cobra.Command{
	Use:   "show <title_id>",
	Short: "Show the patches and edits loaded for a title",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	titleID, err := parseTitleID(args[0])
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()

	if _, err := s.load(cmd.Context(), nil); err != nil {
		return err
	}
	ui.NewWriter(cmd.OutOrStdout()).TitleShow(titleID, s.sys.PatchesForTitle(titleID))
	return nil
}
