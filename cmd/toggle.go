package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papapumpkin/titlepatch/internal/store"
	"github.com/papapumpkin/titlepatch/internal/ui"
)

var enableCmd = &cobra.Command{
	Use:   "enable <title_id> <patch_id>",
	Short: "Persistently enable a patch",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return runToggle(cmd, args, true) },
}

var disableCmd = &cobra.Command{
	Use:   "disable <title_id> <patch_id>",
	Short: "Persistently disable a patch",
	Args:  cobra.ExactArgs(2),
	RunE:  func(cmd *cobra.Command, args []string) error { return runToggle(cmd, args, false) },
}

var resetCmd = &cobra.Command{
	Use:   "reset <title_id> <patch_id>",
	Short: "Drop a stored override so the patch file default applies again",
	Args:  cobra.ExactArgs(2),
	RunE:  runReset,
}

func init() {
	rootCmd.AddCommand(enableCmd)
	rootCmd.AddCommand(disableCmd)
	rootCmd.AddCommand(resetCmd)
}

var errNoStateDB = errors.New("overrides need a state database; set --state-db")

func parseToggleArgs(args []string) (uint32, uint32, error) {
	titleID, err := parseTitleID(args[0])
	if err != nil {
		return 0, 0, err
	}
	patchID, err := parseUint32("patch id", args[1])
	if err != nil {
		return 0, 0, err
	}
	return titleID, patchID, nil
}

func runToggle(cmd *cobra.Command, args []string, enabled bool) error {
	titleID, patchID, err := parseToggleArgs(args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	if s.store == nil {
		return errNoStateDB
	}

	if _, err := s.load(cmd.Context(), nil); err != nil {
		return err
	}
	o := store.Override{TitleID: titleID, PatchID: patchID, Enabled: enabled}
	if err := s.store.Set(cmd.Context(), o); err != nil {
		return err
	}
	matched := s.sys.SetEnabled(titleID, patchID, enabled)
	ui.NewWriter(cmd.OutOrStdout()).Toggled(titleID, patchID, patchName(s, titleID, patchID), enabled, matched)
	return nil
}

// patchName returns the name of the first loaded definition with patchID.
func patchName(s *session, titleID, patchID uint32) string {
	for _, f := range s.sys.PatchesForTitle(titleID) {
		if d := f.Definition(patchID); d != nil {
			return d.Name
		}
	}
	return ""
}

func runReset(cmd *cobra.Command, args []string) error {
	titleID, patchID, err := parseToggleArgs(args)
	if err != nil {
		return err
	}

	s, err := openSession(cmd.Context())
	if err != nil {
		return err
	}
	defer s.Close()
	if s.store == nil {
		return errNoStateDB
	}
	printer := ui.NewWriter(cmd.OutOrStdout())
	if _, ok, err := s.store.Get(cmd.Context(), titleID, patchID); err != nil {
		return err
	} else if !ok {
		printer.Info(fmt.Sprintf("no override stored for patch %d of %s", patchID, ui.TitleID(titleID)))
		return nil
	}
	if err := s.store.Delete(cmd.Context(), titleID, patchID); err != nil {
		return err
	}
	printer.Info(fmt.Sprintf("override removed for patch %d of %s", patchID, ui.TitleID(titleID)))
	return nil
}
